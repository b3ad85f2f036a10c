package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/internal/jsonstore"
	"github.com/ramiqadoumi/go-task-queue/internal/patterns"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
	"github.com/ramiqadoumi/go-task-queue/services/patterns/config"
)

const serviceName = "patterns"

const defaultPatternsYAML = `# patterns config
# Priority: CLI flag > PATTERNS_* env > this file > default.

dir:          ".claude-patterns"   # holds patterns.json
log_level:    "warn"
format:       "text"               # text | json | yaml
lock_timeout: "30s"
# metrics_file: "/var/lib/node_exporter/patterns.prom"
`

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "patterns",
	Short:        "Record and look up approaches that worked for past tasks",
	SilenceUsage: true,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return telemetry.WriteTextfile(viper.GetString("metrics_file"))
	},
}

// Execute is the entry point called from cmd/patterns/main.go.
func Execute() {
	cliutil.Execute(rootCmd)
}

func init() {
	cobra.OnInitialize(cliutil.InitConfig(serviceName, &cfgFile))

	cliutil.AddCommonFlags(rootCmd, &cfgFile)
	pf := rootCmd.PersistentFlags()
	pf.String("format", "text", "output format: text | json | yaml")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile after the command")
	pf.Duration("lock-timeout", 30*time.Second, "how long to wait for the file lock before continuing unlocked; 0 waits forever")
	cliutil.BindFlag("format", pf, "format")
	cliutil.BindFlag("metrics_file", pf, "metrics-file")
	cliutil.BindFlag("lock_timeout", pf, "lock-timeout")

	rootCmd.AddCommand(statsCmd, addCmd, queryCmd)
	rootCmd.AddCommand(cliutil.NewInitCmd(serviceName, defaultPatternsYAML, &cfgFile))
	rootCmd.AddCommand(cliutil.NewVersionCmd(serviceName))
}

func open() (*patterns.Store, cliutil.Format, error) {
	cfg := config.Load(viper.GetViper())
	format, err := cliutil.ParseFormat(cfg.Format)
	if err != nil {
		return nil, "", err
	}
	logger := cliutil.BuildLogger(cfg.LogLevel, serviceName)
	return patterns.New(cfg.Dir,
		patterns.WithLogger(logger),
		patterns.WithStoreOptions(jsonstore.WithLockTimeout(cfg.LockTimeout)),
	), format, nil
}

func run(fn func(ctx context.Context, s *patterns.Store, f cliutil.Format, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, f, err := open()
		if err != nil {
			return err
		}
		return fn(cmd.Context(), s, f, cmd, args)
	}
}
