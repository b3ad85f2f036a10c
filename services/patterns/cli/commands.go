package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/internal/patterns"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the stored patterns",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, s *patterns.Store, f cliutil.Format, cmd *cobra.Command, _ []string) error {
		st, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), f, st, func(w io.Writer) error {
			return writeStats(w, st)
		})
	}),
}

var addCmd = &cobra.Command{
	Use:   "add TASK_TYPE",
	Short: "Record how a task was done",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, s *patterns.Store, f cliutil.Format, cmd *cobra.Command, args []string) error {
		fl := cmd.Flags()
		p := patterns.Pattern{TaskType: args[0]}
		p.Description, _ = fl.GetString("description")
		p.Approach, _ = fl.GetString("approach")
		p.SkillsUsed, _ = fl.GetStringSlice("skills")
		p.AgentsDelegated, _ = fl.GetStringSlice("agents")
		p.Context, _ = fl.GetStringToString("context")
		p.DurationSeconds, _ = fl.GetFloat64("duration")
		p.QualityScore, _ = fl.GetFloat64("quality")
		failed, _ := fl.GetBool("failed")
		p.Success = !failed

		stored, err := s.Add(ctx, p)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), f, stored, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "stored %s\n", stored.ID)
			return err
		})
	}),
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Find patterns, best quality first",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, s *patterns.Store, f cliutil.Format, cmd *cobra.Command, _ []string) error {
		fl := cmd.Flags()
		var q patterns.Filter
		q.TaskType, _ = fl.GetString("task-type")
		q.MinQuality, _ = fl.GetFloat64("min-quality")
		q.SuccessOnly, _ = fl.GetBool("success-only")
		q.Limit, _ = fl.GetInt("limit")
		q.RecordUse, _ = fl.GetBool("record-use")

		found, err := s.Query(ctx, q)
		if err != nil {
			return err
		}
		return cliutil.Render(cmd.OutOrStdout(), f, found, func(w io.Writer) error {
			return writePatterns(w, found)
		})
	}),
}

func init() {
	af := addCmd.Flags()
	af.String("description", "", "what the task was")
	af.String("approach", "", "how it was done")
	af.StringSlice("skills", nil, "skills used (repeat or comma-separate)")
	af.StringSlice("agents", nil, "agents the work was delegated to")
	af.StringToString("context", nil, "extra key=value context")
	af.Float64("duration", 0, "duration in seconds")
	af.Float64("quality", 0, "quality score 0-100")
	af.Bool("failed", false, "record the attempt as unsuccessful")

	qf := queryCmd.Flags()
	qf.String("task-type", "", "only this task type (case-insensitive)")
	qf.Float64("min-quality", 0, "minimum quality score")
	qf.Bool("success-only", false, "only successful patterns")
	qf.Int("limit", 10, "at most this many patterns (0 = all)")
	qf.Bool("record-use", false, "count the returned patterns as reused")
}

func writeStats(w io.Writer, st patterns.Stats) error {
	if st.Total == 0 {
		_, err := fmt.Fprintln(w, "no patterns stored")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "patterns:\t%d\n", st.Total)
	fmt.Fprintf(tw, "success rate:\t%.0f%%\n", st.SuccessRate*100)
	fmt.Fprintf(tw, "average quality:\t%.2f\n", st.AverageQuality)
	fmt.Fprintf(tw, "reuses:\t%d\n", st.TotalReuses)
	if err := tw.Flush(); err != nil {
		return err
	}

	types := make([]string, 0, len(st.ByTaskType))
	for t := range st.ByTaskType {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK TYPE\tCOUNT\tSUCCESSFUL\tAVG QUALITY")
	for _, t := range types {
		ts := st.ByTaskType[t]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\n", t, ts.Count, ts.Successful, ts.AverageQuality)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.TopSkills) > 0 {
		skills := make([]string, len(st.TopSkills))
		for i, sk := range st.TopSkills {
			skills[i] = fmt.Sprintf("%s (%d)", sk.Skill, sk.Count)
		}
		fmt.Fprintf(w, "\ntop skills: %s\n", strings.Join(skills, ", "))
	}
	for _, warn := range st.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

func writePatterns(w io.Writer, ps []patterns.Pattern) error {
	if len(ps) == 0 {
		_, err := fmt.Fprintln(w, "no matching patterns")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tQUALITY\tOK\tREUSED\tSKILLS\tAPPROACH")
	for _, p := range ps {
		ok := "yes"
		if !p.Success {
			ok = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%d\t%s\t%s\n",
			p.ID, p.TaskType, p.QualityScore, ok, p.ReuseCount, strings.Join(p.SkillsUsed, ","), p.Approach)
	}
	return tw.Flush()
}
