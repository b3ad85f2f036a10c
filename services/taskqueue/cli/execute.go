package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
	"github.com/ramiqadoumi/go-task-queue/services/taskqueue"
)

// backgroundLog collects the output of detached runs inside the data dir.
const backgroundLog = "taskqueue-background.log"

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run ready tasks one at a time in priority order",
	Long: `Claim the highest-priority ready task, run it with its timeout, record the
result, and repeat until nothing is ready. Failed tasks with retries left are
run again in the same call. Manual tasks are never run.`,
	Args: cobra.NoArgs,
	RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		if bg, _ := f.GetBool("background"); bg {
			return launchBackground(ctx, a, cmd)
		}

		stopOnError, _ := f.GetBool("stop-on-error")
		maxTasks, _ := f.GetInt("max-tasks")
		taskID, _ := f.GetString("task")

		ctx, stop := signal.NotifyContext(telemetry.ContextFromEnv(ctx), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := a.executor(
			taskqueue.WithStopOnError(stopOnError),
			taskqueue.WithMaxRuns(maxTasks),
		)

		var rep taskqueue.Report
		var err error
		if taskID != "" {
			rep, err = runner.ExecuteTask(ctx, taskID)
		} else {
			rep, err = runner.Execute(ctx)
		}
		if err != nil {
			return err
		}
		if err := cliutil.Render(cmd.OutOrStdout(), a.format, rep, func(w io.Writer) error {
			return writeReport(w, rep)
		}); err != nil {
			return err
		}
		if rep.Failed > 0 && stopOnError {
			return fmt.Errorf("stopped: %s", rep.Stopped)
		}
		return nil
	}),
}

// launchBackground starts the same command again without --background,
// detached from the terminal, and returns once it has started.
func launchBackground(ctx context.Context, a *app, cmd *cobra.Command) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logPath := filepath.Join(a.cfg.Dir, backgroundLog)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open background log: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(self, foregroundArgs(os.Args[1:])...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.Env = append(os.Environ(), telemetry.EnvCarrier(ctx)...)
	detach(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start background run: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	a.logger.Info("background run started", slog.Int("pid", pid), slog.String("log", logPath))
	out := map[string]any{"pid": pid, "log": logPath}
	return cliutil.Render(cmd.OutOrStdout(), a.format, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "started background run, pid %d (output in %s)\n", pid, logPath)
		return err
	})
}

// foregroundArgs drops --background in any spelling.
func foregroundArgs(args []string) []string {
	return slices.DeleteFunc(slices.Clone(args), func(s string) bool {
		return s == "--background" || strings.HasPrefix(s, "--background=")
	})
}

func init() {
	f := executeCmd.Flags()
	f.Bool("stop-on-error", false, "stop at the first task that fails for good")
	f.Bool("background", false, "run detached and return immediately")
	f.String("task", "", "run only this task id, ignoring priority order")
	f.Int("max-tasks", 0, "stop after this many runs (0 = no limit)")
}
