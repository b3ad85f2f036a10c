package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/internal/jsonstore"
	"github.com/ramiqadoumi/go-task-queue/internal/quality"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
	"github.com/ramiqadoumi/go-task-queue/services/quality/config"
)

const serviceName = "quality"

const defaultQualityYAML = `# quality config
# Priority: CLI flag > QUALITY_* env > this file > default.

dir:          ".claude-patterns"   # holds quality_history.json
log_level:    "warn"
format:       "text"               # text | json | yaml
lock_timeout: "30s"
# metrics_file: "/var/lib/node_exporter/quality.prom"
`

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "quality",
	Short:        "Track quality scores over time",
	SilenceUsage: true,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return telemetry.WriteTextfile(viper.GetString("metrics_file"))
	},
}

// Execute is the entry point called from cmd/quality/main.go.
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

	rootCmd.AddCommand(recordCmd, trendsCmd)
	rootCmd.AddCommand(cliutil.NewInitCmd(serviceName, defaultQualityYAML, &cfgFile))
	rootCmd.AddCommand(cliutil.NewVersionCmd(serviceName))
}

func run(fn func(ctx context.Context, t *quality.Tracker, f cliutil.Format, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(viper.GetViper())
		format, err := cliutil.ParseFormat(cfg.Format)
		if err != nil {
			return err
		}
		logger := cliutil.BuildLogger(cfg.LogLevel, serviceName)
		tr := quality.New(cfg.Dir,
			quality.WithLogger(logger),
			quality.WithStoreOptions(jsonstore.WithLockTimeout(cfg.LockTimeout)),
		)
		return fn(cmd.Context(), tr, format, cmd, args)
	}
}
