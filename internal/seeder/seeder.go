// Package seeder turns a seed configuration into idempotent search task rows.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/events"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

// Store inserts a task unless one with the same (type, fingerprint) exists.
// It returns the number of rows inserted: 1, or 0 for a duplicate.
type Store interface {
	InsertIfAbsent(ctx context.Context, t *domain.SearchTask) (int64, error)
}

// Report summarises a seed run.
type Report struct {
	Generated int    `json:"generated"`
	Inserted  int    `json:"inserted"`
	Skipped   int    `json:"skipped"`
	Bucket    string `json:"bucket"`
}

// Seeder runs seed passes against a Store.
type Seeder struct {
	cfg      Config
	store    Store
	emitter  events.Emitter
	counters *telemetry.Counters
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithEmitter sets where run events go. Defaults to discarding them.
func WithEmitter(e events.Emitter) Option { return func(s *Seeder) { s.emitter = e } }

// WithCounters sets the counters incremented by each run.
func WithCounters(c *telemetry.Counters) Option { return func(s *Seeder) { s.counters = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Seeder) { s.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Seeder) { s.now = now } }

// New builds a Seeder.
func New(cfg Config, store Store, opts ...Option) *Seeder {
	s := &Seeder{
		cfg:      cfg,
		store:    store,
		emitter:  events.Nop{},
		counters: telemetry.NewCounters(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run generates the candidates for the current bucket and inserts the ones
// not already stored. A small-profile run whose candidates exceed the cap
// fails before touching the store.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("seeder").Start(ctx, "seeder.run")
	defer span.End()

	start := s.now()
	report, err := s.run(ctx, start)
	span.SetAttributes(
		attribute.Int("seed.generated", report.Generated),
		attribute.Int("seed.inserted", report.Inserted),
		attribute.String("seed.bucket", report.Bucket),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.counters.SeedRuns.WithLabelValues("failed").Inc()
		s.emit(ctx, events.SeedFailed, report, err)
		return report, err
	}

	s.counters.SeedRuns.WithLabelValues("completed").Inc()
	s.logger.Info("seed run completed",
		slog.Int("generated", report.Generated),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped),
		slog.String("bucket", report.Bucket),
		slog.Duration("took", s.now().Sub(start)),
	)
	s.emit(ctx, events.SeedCompleted, report, nil)
	return report, nil
}

func (s *Seeder) run(ctx context.Context, now time.Time) (Report, error) {
	cfg, err := s.cfg.Normalize()
	if err != nil {
		return Report{}, err
	}
	tasks, err := Generate(cfg, now)
	if err != nil {
		return Report{}, err
	}

	report := Report{Generated: len(tasks)}
	if len(tasks) > 0 {
		report.Bucket = tasks[0].Bucket
	}
	s.counters.TasksGenerated.Add(float64(len(tasks)))

	if cfg.Profile == domain.ProfileSmall && len(tasks) > cfg.MaxTasks {
		return report, &domain.CapExceededError{Profile: cfg.Profile, Generated: len(tasks), Cap: cfg.MaxTasks}
	}

	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("seed run cancelled: %w", err)
		}
		n, err := s.store.InsertIfAbsent(ctx, &tasks[i])
		if err != nil {
			return report, fmt.Errorf("insert task %s: %w", tasks[i].Fingerprint, err)
		}
		if n > 0 {
			report.Inserted++
			s.counters.TasksInserted.Inc()
		} else {
			report.Skipped++
			s.counters.TasksSkipped.Inc()
		}
	}
	return report, nil
}

func (s *Seeder) emit(ctx context.Context, name string, report Report, runErr error) {
	payload := map[string]any{
		"generated": report.Generated,
		"inserted":  report.Inserted,
		"skipped":   report.Skipped,
		"bucket":    report.Bucket,
		"profile":   s.cfg.Profile,
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
		var capErr *domain.CapExceededError
		if errors.As(runErr, &capErr) {
			payload["cap"] = capErr.Cap
		}
	}
	err := s.emitter.Emit(ctx, events.Event{
		Name:      name,
		Payload:   payload,
		Counters:  s.counters.Snapshot(),
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to emit seed event",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}
