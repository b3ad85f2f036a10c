package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/quality"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append a quality score",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, t *quality.Tracker, f cliutil.Format, cmd *cobra.Command, _ []string) error {
		fl := cmd.Flags()
		if !fl.Changed("score") {
			return &domain.ValidationError{Field: "score", Reason: "is required"}
		}
		var r quality.Record
		r.Score, _ = fl.GetFloat64("score")
		r.TaskType, _ = fl.GetString("task-type")
		r.Notes, _ = fl.GetString("notes")
		raw, _ := fl.GetStringSlice("metric")
		metrics, err := parseMetrics(raw)
		if err != nil {
			return err
		}
		r.Metrics = metrics

		rec, err := t.Record(ctx, r)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), f, rec, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "recorded %s (score %.1f)\n", rec.ID, rec.Score)
			return err
		})
	}),
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show quality over the last N days",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, t *quality.Tracker, f cliutil.Format, cmd *cobra.Command, _ []string) error {
		days, _ := cmd.Flags().GetInt("days")
		tr, err := t.Trends(ctx, days)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), f, tr, func(w io.Writer) error {
			return writeTrends(w, tr)
		})
	}),
}

func init() {
	rf := recordCmd.Flags()
	rf.Float64("score", 0, "overall score 0-100 (required)")
	rf.String("task-type", "", "task type the score belongs to")
	rf.String("notes", "", "free-form notes")
	rf.StringSlice("metric", nil, "named sub-score as name=value (repeatable)")

	trendsCmd.Flags().Int("days", 30, "window size in days")
}

// parseMetrics turns name=value pairs into a metric map.
func parseMetrics(raw []string) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(raw))
	for _, kv := range raw {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, &domain.ValidationError{Field: "metric", Value: kv, Reason: "must be name=value"}
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, &domain.ValidationError{Field: "metric", Value: kv, Reason: "value must be a number"}
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

func writeTrends(w io.Writer, tr quality.Trends) error {
	if tr.Count == 0 {
		_, err := fmt.Fprintf(w, "no quality records in the last %d days\n", tr.Days)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "records:\t%d (last %d days)\n", tr.Count, tr.Days)
	fmt.Fprintf(tw, "average:\t%.2f\n", tr.Average)
	fmt.Fprintf(tw, "trend:\t%s", tr.Direction)
	if tr.Count >= 2 {
		fmt.Fprintf(tw, " (%.2f -> %.2f)", tr.FirstHalfAverage, tr.SecondHalfAverage)
	}
	fmt.Fprintln(tw)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAVERAGE\tRECORDS")
	for _, d := range tr.Daily {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\n", d.Date, d.Average, d.Count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(tr.Metrics) > 0 {
		names := make([]string, 0, len(tr.Metrics))
		for n := range tr.Metrics {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "METRIC\tAVERAGE")
		for _, n := range names {
			fmt.Fprintf(tw, "%s\t%.2f\n", n, tr.Metrics[n])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	for _, warn := range tr.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}
