package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ramiqadoumi/go-task-queue/services/taskqueue"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Drain the queue on a cron schedule until interrupted",
	Long: `Run the equivalent of "execute" every time the schedule fires. The schedule
is a five-field cron expression or a descriptor such as "@every 5m" or
"@hourly". A tick is skipped while the previous run is still going or while
another process holds a running task.`,
	Args: cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		spec, _ := cmd.Flags().GetString("cron")
		sched, err := taskqueue.NewScheduler(a.executor(), spec, a.logger)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return sched.Run(ctx)
	}),
}

func init() {
	watchCmd.Flags().String("cron", "@every 1m", "when to drain the queue")
}
