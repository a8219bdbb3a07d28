package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramiqadoumi/leadflow/internal/events"
	"github.com/ramiqadoumi/leadflow/internal/kafka"
	"github.com/ramiqadoumi/leadflow/internal/postgres"
	taskseeder "github.com/ramiqadoumi/leadflow/internal/seeder"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
	"github.com/ramiqadoumi/leadflow/services/seeder/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one seed pass and print its stats",
	RunE:  runOnce,
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg.LogLevel, "seeder")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	counters := telemetry.NewCounters()
	emitter, closeEmitter := buildEmitter(cfg, logger)
	defer closeEmitter()

	s := newSeeder(cfg, postgres.NewRepository(pool), counters, emitter, logger)
	report, err := s.Run(ctx)
	printStats(cmd, report, counters)
	return err
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newSeeder(cfg config.Config, store taskseeder.Store, counters *telemetry.Counters, emitter events.Emitter, logger *slog.Logger) *taskseeder.Seeder {
	return taskseeder.New(cfg.Seed, store,
		taskseeder.WithCounters(counters),
		taskseeder.WithEmitter(emitter),
		taskseeder.WithLogger(logger),
	)
}

// buildEmitter logs every event and also publishes to Kafka when brokers
// are configured.
func buildEmitter(cfg config.Config, logger *slog.Logger) (events.Emitter, func()) {
	logEmitter := events.NewLogEmitter(logger)
	if cfg.KafkaBrokers == "" {
		return logEmitter, func() {}
	}
	producer := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","))
	emitter := events.Multi(logEmitter, events.NewKafkaEmitter(producer, cfg.EventsTopic, logger))
	return emitter, func() { _ = producer.Close() }
}

func printStats(cmd *cobra.Command, report taskseeder.Report, counters *telemetry.Counters) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bucket:    %s\n", report.Bucket)
	fmt.Fprintf(out, "generated: %d\n", report.Generated)
	fmt.Fprintf(out, "inserted:  %d\n", report.Inserted)
	fmt.Fprintf(out, "skipped:   %d\n", report.Skipped)

	snap := counters.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		if strings.HasPrefix(k, "seeder_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s = %g\n", k, snap[k])
	}
}
