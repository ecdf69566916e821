package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/stockroom/internal/analytics"
)

type projection struct {
	StockQuantity int64                 `json:"stock_quantity"`
	Sales30d      int64                 `json:"sales_30d"`
	RemainingDays int64                 `json:"remaining_days"`
	Status        analytics.StockStatus `json:"status"`
}

func newProjectCommand() *cobra.Command {
	var (
		stock    int64
		sales30d int64
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project remaining days of stock from trailing 30 day sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stock < 0 || sales30d < 0 {
				return errors.New("project: stock and sales must not be negative")
			}
			days := analytics.RemainingDays(stock, sales30d)
			p := projection{StockQuantity: stock, Sales30d: sales30d, RemainingDays: days, Status: analytics.ClassifyStock(days)}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			fmt.Fprintf(out, "remaining_days=%d status=%s\n", p.RemainingDays, p.Status)
			return nil
		},
	}
	cmd.Flags().Int64Var(&stock, "stock", 0, "units on hand")
	cmd.Flags().Int64Var(&sales30d, "sales30d", 0, "units sold in the last 30 days")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON output")
	return cmd
}
