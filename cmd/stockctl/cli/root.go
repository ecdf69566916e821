package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/stockroom/internal/importer"
)

// Importer applies a CSV file synchronously.
type Importer interface {
	Import(ctx context.Context, kind importer.Kind, fileName string, r io.Reader) (importer.Summary, error)
}

// JobsBackend triggers tasks and reports queue state.
type JobsBackend interface {
	Trigger(ctx context.Context, taskType string) (string, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// Env opens the backends commands need. Returned closers release them.
type Env struct {
	OpenImporter func(ctx context.Context) (Importer, io.Closer, error)
	OpenJobs     func(ctx context.Context) (JobsBackend, io.Closer, error)
}

// NewRootCommand assembles the stockctl command tree.
func NewRootCommand(env Env) *cobra.Command {
	root := &cobra.Command{
		Use:   "stockctl",
		Short: "Stockroom operator tooling",
		Long: `stockctl imports marketplace CSV exports, triggers background jobs
and runs the stock projection from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newImportCommand(env), newJobsCommand(env), newProjectCommand())
	return root
}
