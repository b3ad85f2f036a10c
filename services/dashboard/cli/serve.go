package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramiqadoumi/go-task-queue/internal/cliutil"
	"github.com/ramiqadoumi/go-task-queue/internal/jsonstore"
	"github.com/ramiqadoumi/go-task-queue/internal/patterns"
	"github.com/ramiqadoumi/go-task-queue/internal/quality"
	"github.com/ramiqadoumi/go-task-queue/internal/queue"
	redisstore "github.com/ramiqadoumi/go-task-queue/internal/redis"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
	"github.com/ramiqadoumi/go-task-queue/services/dashboard/config"
	"github.com/ramiqadoumi/go-task-queue/services/dashboard/handler"
	"github.com/ramiqadoumi/go-task-queue/services/dashboard/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "127.0.0.1:8787", "listen address")
	f.String("redis-addr", "", "Redis address for rate limiting (host:port); empty disables")
	f.Int("rate-limit", 120, "requests per client per minute when Redis is set")
	f.String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")
	f.Duration("lock-timeout", 5*time.Second, "how long a request waits for a file lock")

	cliutil.BindFlag("addr", f, "addr")
	cliutil.BindFlag("redis_addr", f, "redis-addr")
	cliutil.BindFlag("rate_limit", f, "rate-limit")
	cliutil.BindFlag("otel_endpoint", f, "otel-endpoint")
	cliutil.BindFlag("lock_timeout", f, "lock-timeout")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := cliutil.BuildLogger(cfg.LogLevel, serviceName)

	shutdownTracer, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	storeOpt := jsonstore.WithLockTimeout(cfg.LockTimeout)
	rest := handler.NewREST(
		queue.New(cfg.Dir, queue.WithLogger(logger), queue.WithStoreOptions(storeOpt)),
		patterns.New(cfg.Dir, patterns.WithLogger(logger), patterns.WithStoreOptions(storeOpt)),
		quality.New(cfg.Dir, quality.WithLogger(logger), quality.WithStoreOptions(storeOpt)),
		logger,
	)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	if cfg.RedisAddr != "" {
		client := redisstore.NewClient(cfg.RedisAddr)
		defer func() { _ = client.Close() }()
		r.Use(middleware.RateLimit(redisstore.NewRateLimiter(client, cfg.RateLimit, time.Minute), logger))
	}
	rest.Routes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("dashboard starting", slog.String("dir", cfg.Dir), slog.String("addr", cfg.Addr))
	return telemetry.Serve(ctx, cfg.Addr, r, logger)
}
