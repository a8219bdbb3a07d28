// Package seeder runs seed passes on a cron schedule. When several seeder
// instances share a Redis, a TTL lease lets only one of them seed per tick.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	taskseeder "github.com/ramiqadoumi/leadflow/internal/seeder"
)

// Runner performs one seed pass.
type Runner interface {
	Run(ctx context.Context) (taskseeder.Report, error)
}

// Elector decides which instance seeds. *redis.Leader implements it.
type Elector interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler fires seed passes on a cron schedule.
type Scheduler struct {
	spec       string
	runner     Runner
	elector    Elector
	runOnStart bool
	logger     *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithElector restricts seeding to the lease holder. Without one every tick seeds.
func WithElector(e Elector) Option { return func(s *Scheduler) { s.elector = e } }

// WithRunOnStart seeds once immediately when Run starts.
func WithRunOnStart(b bool) Option { return func(s *Scheduler) { s.runOnStart = b } }

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// NewScheduler validates spec, a standard five-field cron expression or a
// descriptor such as "@daily".
func NewScheduler(spec string, runner Runner, opts ...Option) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, &domain.ConfigError{Field: "seed_schedule", Reason: err.Error()}
	}
	s := &Scheduler{spec: spec, runner: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run blocks until ctx is cancelled, then waits for a running pass and
// gives up the lease.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule seed run: %w", err)
	}

	if s.runOnStart {
		s.Tick(ctx)
	}
	c.Start()
	s.logger.Info("seed schedule started", slog.String("schedule", s.spec))

	<-ctx.Done()
	<-c.Stop().Done()

	if s.elector != nil {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.elector.Release(releaseCtx); err != nil {
			s.logger.Warn("failed to release seeder lease", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Tick runs one seed pass if this instance holds the lease.
func (s *Scheduler) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.elector != nil {
		leader, err := s.elector.Acquire(ctx)
		if err != nil {
			s.logger.Error("seeder leader election failed", slog.String("error", err.Error()))
			return
		}
		if !leader {
			s.logger.Debug("another instance holds the seeder lease, skipping")
			return
		}
	}

	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error("seed run failed", slog.String("error", err.Error()))
	}
}

// cronLogger routes robfig/cron's logging through slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
