package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/stockroom/internal/importer"
)

func newImportCommand(env Env) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import an inventory or order CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := importer.Kind(kind)
			if !k.Valid() {
				return importer.ErrInvalidKind
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if env.OpenImporter == nil {
				return errors.New("import: importer not configured")
			}
			svc, closer, err := env.OpenImporter(cmd.Context())
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			summary, err := svc.Import(cmd.Context(), k, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d %s rows from %s (import %s)\n", summary.Imported, summary.Type, summary.FileName, summary.ImportID)
			if len(summary.Skipped) > 0 {
				fmt.Fprintf(out, "skipped lines: %v\n", summary.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", string(importer.KindInventory), "import type: inventory or order")
	return cmd
}
