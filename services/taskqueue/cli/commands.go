package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/queue"
)

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a task to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		p := queue.DefaultAddParams(args[0])
		p.Description, _ = f.GetString("description")
		p.Command, _ = f.GetString("command")
		p.TimeoutSeconds, _ = f.GetInt("timeout")
		p.MaxRetries, _ = f.GetInt("max-retries")
		p.Dependencies, _ = f.GetStringSlice("depends-on")
		if p.TimeoutSeconds <= 0 {
			return &domain.ValidationError{Field: "timeout", Value: fmt.Sprint(p.TimeoutSeconds), Reason: "must be positive"}
		}

		var err error
		if s, _ := f.GetString("priority"); s != "" {
			if p.Priority, err = domain.ParsePriority(s); err != nil {
				return err
			}
		}
		if s, _ := f.GetString("type"); s != "" {
			if p.Type, err = domain.ParseTaskType(s); err != nil {
				return err
			}
		}

		task, err := a.queue.Add(ctx, p)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, task, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "added %s (%s, %s)\n", task.ID, task.Priority, task.Type)
			return err
		})
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counts, the running task and the health score",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		sum, err := a.queue.Status(ctx)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, sum, func(w io.Writer) error {
			return writeSummary(w, sum)
		})
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		var filter queue.Filter
		var err error
		f := cmd.Flags()
		if s, _ := f.GetString("status"); s != "" {
			if filter.Status, err = domain.ParseStatus(s); err != nil {
				return err
			}
		}
		if s, _ := f.GetString("priority"); s != "" {
			if filter.Priority, err = domain.ParsePriority(s); err != nil {
				return err
			}
		}
		if s, _ := f.GetString("type"); s != "" {
			if filter.Type, err = domain.ParseTaskType(s); err != nil {
				return err
			}
		}
		filter.Limit, _ = f.GetInt("limit")

		tasks, err := a.queue.List(ctx, filter)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, tasks, func(w io.Writer) error {
			return writeTasks(w, tasks, time.Now())
		})
	}),
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one task in full",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		task, err := a.queue.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, task, func(w io.Writer) error {
			return writeTask(w, task)
		})
	}),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a task that has not finished",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		task, err := a.queue.Cancel(ctx, args[0])
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, task, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "cancelled %s\n", task.ID)
			return err
		})
	}),
}

var completeCmd = &cobra.Command{
	Use:   "complete ID",
	Short: "Mark a task as done by hand (manual tasks)",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		result, _ := cmd.Flags().GetString("result")
		task, err := a.queue.Complete(ctx, args[0], result)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, task, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "completed %s\n", task.ID)
			return err
		})
	}),
}

var retryCmd = &cobra.Command{
	Use:   "retry [ID]",
	Short: "Send failed tasks back to the queue",
	Long: `Retry one failed task by id, or every failed task with --all (optionally
narrowed by --priority and --type). A task that used all its retries is
refused unless --reset starts its counter over.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		reset, _ := f.GetBool("reset")
		all, _ := f.GetBool("all")

		if len(args) == 1 {
			task, err := a.queue.Retry(ctx, args[0], reset)
			if err != nil {
				return err
			}
			return cliutil.Render(cmd.OutOrStdout(), a.format, task, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "retrying %s (attempt %d of %d)\n", task.ID, task.CurrentRetry+1, task.MaxRetries+1)
				return err
			})
		}
		if !all {
			return &domain.ValidationError{Field: "retry", Reason: "give a task id or --all"}
		}

		filter := queue.RetryFilter{Reset: reset}
		var err error
		if s, _ := f.GetString("priority"); s != "" {
			if filter.Priority, err = domain.ParsePriority(s); err != nil {
				return err
			}
		}
		if s, _ := f.GetString("type"); s != "" {
			if filter.Type, err = domain.ParseTaskType(s); err != nil {
				return err
			}
		}
		res, err := a.queue.RetryMatching(ctx, filter)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "retrying %d task(s); %d skipped with no retries left\n", len(res.Retried), len(res.Exhausted))
			return err
		})
	}),
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old finished tasks",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		hours, _ := f.GetFloat64("older-than")
		keep, _ := f.GetInt("keep-recent")
		dryRun, _ := f.GetBool("dry-run")
		names, _ := f.GetStringSlice("status")

		p := queue.ClearParams{
			OlderThan:  time.Duration(hours * float64(time.Hour)),
			KeepRecent: keep,
			DryRun:     dryRun,
		}
		for _, n := range names {
			st, err := domain.ParseStatus(n)
			if err != nil {
				return err
			}
			p.Statuses = append(p.Statuses, st)
		}

		res, err := a.queue.Clear(ctx, p)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), a.format, res, func(w io.Writer) error {
			verb := "removed"
			if res.DryRun {
				verb = "would remove"
			}
			if _, err := fmt.Fprintf(w, "%s %d task(s), %d remain\n", verb, len(res.Removed), res.Remaining); err != nil {
				return err
			}
			if res.DryRun {
				return writeTasks(w, res.Removed, time.Now())
			}
			return nil
		})
	}),
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Move an unreadable queue file aside and start empty",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		backup, err := a.queue.Repair(ctx)
		if err != nil {
			return err
		}
		out := map[string]string{"path": a.queue.Path(), "backup": backup}
		return cliutil.Render(cmd.OutOrStdout(), a.format, out, func(w io.Writer) error {
			if backup == "" {
				_, err := fmt.Fprintf(w, "started empty queue at %s\n", a.queue.Path())
				return err
			}
			_, err := fmt.Fprintf(w, "previous queue saved to %s\n", backup)
			return err
		})
	}),
}

func init() {
	af := addCmd.Flags()
	af.String("priority", "medium", "critical | high | medium | low")
	af.String("type", "manual", "slash_command | autonomous | background | manual")
	af.String("command", "", "command to run (required unless --type manual)")
	af.String("description", "", "free-form description")
	af.Int("timeout", queue.DefaultTimeoutSeconds, "execution timeout in seconds")
	af.Int("max-retries", queue.DefaultMaxRetries, "extra attempts after a failure")
	af.StringSlice("depends-on", nil, "ids of tasks that must complete first (repeat or comma-separate)")

	lf := listCmd.Flags()
	lf.String("status", "", "only tasks in this status")
	lf.String("priority", "", "only tasks with this priority")
	lf.String("type", "", "only tasks of this type")
	lf.Int("limit", 0, "show at most this many tasks (0 = all)")

	completeCmd.Flags().String("result", "", "result text to store on the task")

	rf := retryCmd.Flags()
	rf.Bool("reset", false, "start the retry counter over")
	rf.Bool("all", false, "retry every failed task")
	rf.String("priority", "", "with --all, only this priority")
	rf.String("type", "", "with --all, only this type")

	cf := clearCmd.Flags()
	cf.Float64("older-than", 24, "only tasks finished at least this many hours ago")
	cf.Int("keep-recent", 10, "always keep this many newest tasks per status")
	cf.StringSlice("status", nil, "only these terminal statuses (default: completed, failed, cancelled)")
	cf.Bool("dry-run", false, "show what would be removed without writing")
}
