package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/queue"
	"github.com/ramiqadoumi/go-task-queue/services/taskqueue"
)

func writeSummary(w io.Writer, s queue.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "tasks:\t%d\n", s.Total)
	for _, st := range domain.Statuses {
		fmt.Fprintf(tw, "  %s:\t%d\n", st, s.Counts[st])
	}
	fmt.Fprintf(tw, "ready:\t%d\n", s.Ready)
	if len(s.Blocked) > 0 {
		fmt.Fprintf(tw, "blocked:\t%s\n", strings.Join(s.Blocked, ", "))
	}
	if s.Running != nil {
		since := ""
		if s.Running.StartedAt != nil {
			since = " since " + humanize.Time(*s.Running.StartedAt)
		}
		fmt.Fprintf(tw, "running:\t%s %q%s\n", s.Running.ID, s.Running.Name, since)
	}
	if s.OldestQueuedSeconds > 0 {
		age := time.Duration(s.OldestQueuedSeconds * float64(time.Second))
		fmt.Fprintf(tw, "oldest queued:\t%s\n", humanize.RelTime(time.Now().Add(-age), time.Now(), "ago", ""))
	}
	fmt.Fprintf(tw, "health:\t%d/100\n", s.HealthScore)
	for _, warn := range s.Warnings {
		fmt.Fprintf(tw, "warning:\t%s\n", warn)
	}
	return tw.Flush()
}

func writeTasks(w io.Writer, tasks []domain.Task, now time.Time) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "no tasks")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTYPE\tRETRIES\tCREATED\tNAME")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			t.ID, t.Status, t.Priority, t.Type, t.CurrentRetry, t.MaxRetries,
			humanize.RelTime(t.CreatedAt, now, "ago", "from now"), t.Name)
	}
	return tw.Flush()
}

func writeTask(w io.Writer, t *domain.Task) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", t.ID)
	fmt.Fprintf(tw, "name:\t%s\n", t.Name)
	if t.Description != "" {
		fmt.Fprintf(tw, "description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "status:\t%s\n", t.Status)
	fmt.Fprintf(tw, "priority:\t%s\n", t.Priority)
	fmt.Fprintf(tw, "type:\t%s\n", t.Type)
	if t.Command != "" {
		fmt.Fprintf(tw, "command:\t%s\n", t.Command)
	}
	fmt.Fprintf(tw, "timeout:\t%s\n", t.Timeout())
	fmt.Fprintf(tw, "retries:\t%d of %d\n", t.CurrentRetry, t.MaxRetries)
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(tw, "depends on:\t%s\n", strings.Join(t.Dependencies, ", "))
	}
	fmt.Fprintf(tw, "created:\t%s\n", t.CreatedAt.Format(time.RFC3339))
	if t.StartedAt != nil {
		fmt.Fprintf(tw, "started:\t%s\n", t.StartedAt.Format(time.RFC3339))
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(tw, "finished:\t%s\n", t.CompletedAt.Format(time.RFC3339))
	}
	if t.ExitCode != nil {
		fmt.Fprintf(tw, "exit code:\t%d\n", *t.ExitCode)
	}
	if t.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", t.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if t.Result != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", t.Result)
		return err
	}
	return nil
}

func writeReport(w io.Writer, r taskqueue.Report) error {
	if r.Executed == 0 {
		fmt.Fprintln(w, "nothing to run")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TASK\tATTEMPT\tRESULT\tDURATION\tNAME")
		for _, run := range r.Runs {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", run.TaskID, run.Attempt, run.Status,
				(time.Duration(run.DurationMs) * time.Millisecond).String(), run.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d run(s): %d completed, %d will retry, %d failed\n", r.Executed, r.Completed, r.Retried, r.Failed)
	}
	if len(r.Blocked) > 0 {
		fmt.Fprintf(w, "waiting on dependencies: %s\n", strings.Join(r.Blocked, ", "))
	}
	if r.Stopped != "" {
		fmt.Fprintf(w, "stopped: %s\n", r.Stopped)
	}
	return nil
}
