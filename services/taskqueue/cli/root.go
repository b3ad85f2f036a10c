package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/handlers"
	"github.com/ramiqadoumi/go-task-queue/internal/jsonstore"
	"github.com/ramiqadoumi/go-task-queue/internal/queue"
	redisstore "github.com/ramiqadoumi/go-task-queue/internal/redis"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
	"github.com/ramiqadoumi/go-task-queue/services/taskqueue"
	"github.com/ramiqadoumi/go-task-queue/services/taskqueue/config"
)

const serviceName = "taskqueue"

const defaultTaskQueueYAML = `# taskqueue config
# Priority: CLI flag > TASKQUEUE_* env > this file > default.

dir:       ".claude-patterns"   # holds task_queue.json
log_level: "warn"               # debug | info | warn | error
format:    "text"               # text | json | yaml

lock_timeout: "30s"   # 0 waits forever for the queue lock

# Slash-command tasks ("/name args") run as: <prefix> "/name args"
slash_command_prefix: "claude -p"
# shell: "bash -c"        # default: /bin/sh -c, cmd /C on Windows
# work_dir: "."

# metrics_file: "/var/lib/node_exporter/taskqueue.prom"
# redis_addr: "localhost:6379"     # mirror task state to Redis
# otel_endpoint: "localhost:4318"  # uncomment to enable OpenTelemetry tracing
`

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taskqueue",
	Short: "Priority task queue stored in a locked JSON file",
	Long: `taskqueue keeps a priority-ordered list of tasks in <dir>/task_queue.json
and runs them one at a time. Every command takes the file lock, so several
processes can share one queue safely.`,
	SilenceUsage: true,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return telemetry.WriteTextfile(viper.GetString("metrics_file"))
	},
}

// Execute is the entry point called from cmd/taskqueue/main.go.
func Execute() {
	cliutil.Execute(rootCmd)
}

func init() {
	cobra.OnInitialize(cliutil.InitConfig(serviceName, &cfgFile))

	cliutil.AddCommonFlags(rootCmd, &cfgFile)
	pf := rootCmd.PersistentFlags()
	pf.String("format", "text", "output format: text | json | yaml")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile after the command")
	pf.String("redis-addr", "", "mirror task state changes to this Redis (host:port); empty disables")
	pf.String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")
	pf.Duration("lock-timeout", 30*time.Second, "how long to wait for the queue lock before continuing unlocked; 0 waits forever")

	cliutil.BindFlag("format", pf, "format")
	cliutil.BindFlag("metrics_file", pf, "metrics-file")
	cliutil.BindFlag("redis_addr", pf, "redis-addr")
	cliutil.BindFlag("otel_endpoint", pf, "otel-endpoint")
	cliutil.BindFlag("lock_timeout", pf, "lock-timeout")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	viper.SetDefault("slash_command_prefix", "claude -p")

	rootCmd.AddCommand(addCmd, statusCmd, executeCmd, watchCmd, listCmd, showCmd)
	rootCmd.AddCommand(retryCmd, cancelCmd, completeCmd, clearCmd, repairCmd)
	rootCmd.AddCommand(cliutil.NewInitCmd(serviceName, defaultTaskQueueYAML, &cfgFile))
	rootCmd.AddCommand(cliutil.NewVersionCmd(serviceName))
}

// app bundles what a subcommand needs. close must run before exit.
type app struct {
	cfg    config.Config
	format cliutil.Format
	logger *slog.Logger
	queue  *queue.Queue
	close  func()
}

func newApp() (*app, error) {
	cfg := config.Load(viper.GetViper())
	format, err := cliutil.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	logger := cliutil.BuildLogger(cfg.LogLevel, serviceName)

	shutdownTracer, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	closers := []func(){shutdownTracer}

	opts := []queue.Option{
		queue.WithLogger(logger),
		queue.WithStoreOptions(jsonstore.WithLockTimeout(cfg.LockTimeout)),
	}
	if cfg.RedisAddr != "" {
		client := redisstore.NewClient(cfg.RedisAddr)
		closers = append(closers, func() { _ = client.Close() })
		opts = append(opts, queue.WithObserver(redisstore.NewMirror(redisstore.NewStateStore(client), logger)))
	}

	return &app{
		cfg:    cfg,
		format: format,
		logger: logger,
		queue:  queue.New(cfg.Dir, opts...),
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

// registry wires a command handler for every auto-executable task type.
func (a *app) registry() *handlers.Registry {
	var opts []handlers.CommandOption
	if len(a.cfg.Shell) > 0 {
		opts = append(opts, handlers.WithShell(a.cfg.Shell...))
	}
	if a.cfg.WorkDir != "" {
		opts = append(opts, handlers.WithDir(a.cfg.WorkDir))
	}

	reg := handlers.NewRegistry()
	for _, t := range domain.TaskTypes {
		if !t.AutoExecutable() {
			continue
		}
		typeOpts := opts
		if t == domain.TypeSlashCommand {
			typeOpts = append(append([]handlers.CommandOption{}, opts...), handlers.WithPrefix(a.cfg.SlashPrefix))
		}
		reg.Register(handlers.NewCommandHandler(t, typeOpts...))
	}
	return reg
}

// executor returns an Executor over the app's queue and handlers.
func (a *app) executor(opts ...taskqueue.Option) *taskqueue.Executor {
	opts = append([]taskqueue.Option{taskqueue.WithLogger(a.logger)}, opts...)
	return taskqueue.NewExecutor(a.queue, a.registry(), opts...)
}

// run builds an app, hands it to fn, and releases it afterwards.
func run(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a, cmd, args)
	}
}
