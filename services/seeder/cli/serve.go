package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramiqadoumi/leadflow/internal/postgres"
	redisstore "github.com/ramiqadoumi/leadflow/internal/redis"
	"github.com/ramiqadoumi/leadflow/internal/version"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
	"github.com/ramiqadoumi/leadflow/services/seeder"
)

const leaderKey = "leadflow:seeder:leader"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Seed on the configured cron schedule",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("seed-schedule", "0 5 * * *", "cron expression or descriptor (@daily, @weekly)")
	serveCmd.Flags().Bool("run-on-start", false, "seed once immediately on startup")
	serveCmd.Flags().String("redis-addr", "", "Redis address (host:port) for leader election; empty seeds on every instance")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics server address")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("seed_schedule", serveCmd.Flags(), "seed-schedule")
	bindFlag("run_on_start", serveCmd.Flags(), "run-on-start")
	bindFlag("redis_addr", serveCmd.Flags(), "redis-addr")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	instanceID := "seeder-" + uuid.New().String()[:8]
	logger := buildLogger(cfg.LogLevel, "seeder").With(slog.String("instance_id", instanceID))

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "leadflow-seeder", cfg.OTelEndpoint,
		telemetry.WithServiceVersion(version.Version),
		telemetry.WithSampleRatio(cfg.SampleRatio),
	)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	pool, err := postgres.Connect(runCtx, cfg.PostgresDSN, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	counters := telemetry.NewCounters()
	emitter, closeEmitter := buildEmitter(cfg, logger)
	defer closeEmitter()

	opts := []seeder.Option{
		seeder.WithLogger(logger),
		seeder.WithRunOnStart(viper.GetBool("run_on_start")),
	}
	if cfg.RedisAddr != "" {
		redisClient := redisstore.NewClient(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
		opts = append(opts, seeder.WithElector(redisstore.NewLeader(redisClient, leaderKey, instanceID, cfg.LeaderTTL)))
	}

	runner := newSeeder(cfg, postgres.NewRepository(pool), counters, emitter, logger)
	sched, err := seeder.NewScheduler(cfg.Schedule, runner, opts...)
	if err != nil {
		return err
	}

	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, counters, func(ctx context.Context) error {
		return pool.Ping(ctx)
	}, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down...")
		runCancel()
	}()

	logger.Info("seeder starting",
		slog.String("schedule", cfg.Schedule),
		slog.Bool("leader_election", cfg.RedisAddr != ""),
	)
	if err := sched.Run(runCtx); err != nil {
		return fmt.Errorf("seeder: %w", err)
	}
	logger.Info("stopped")
	return nil
}
