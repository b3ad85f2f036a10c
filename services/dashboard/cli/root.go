package cli

import (
	"github.com/spf13/cobra"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
)

const serviceName = "dashboard"

const defaultDashboardYAML = `# dashboard config
# Priority: CLI flag > DASHBOARD_* env > this file > default.

dir:          ".claude-patterns"
addr:         "127.0.0.1:8787"
log_level:    "info"
lock_timeout: "5s"

# redis_addr: "localhost:6379"     # enables per-client rate limiting
# rate_limit: 120                   # requests per client per minute
# otel_endpoint: "localhost:4318"  # uncomment to enable OpenTelemetry tracing
`

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "dashboard",
	Short:        "Read-only HTTP view of the task queue, patterns and quality history",
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/dashboard/main.go.
func Execute() {
	cliutil.Execute(rootCmd)
}

func init() {
	cobra.OnInitialize(cliutil.InitConfig(serviceName, &cfgFile))
	cliutil.AddCommonFlags(rootCmd, &cfgFile)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cliutil.NewInitCmd(serviceName, defaultDashboardYAML, &cfgFile))
	rootCmd.AddCommand(cliutil.NewVersionCmd(serviceName))
}
