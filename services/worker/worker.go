package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/events"
	"github.com/ramiqadoumi/leadflow/internal/followup"
	"github.com/ramiqadoumi/leadflow/internal/kafka"
	"github.com/ramiqadoumi/leadflow/internal/providers"
	redisstore "github.com/ramiqadoumi/leadflow/internal/redis"
	"github.com/ramiqadoumi/leadflow/pkg/retry"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

// Store is the persistence the worker needs.
type Store interface {
	ClaimPending(ctx context.Context, now time.Time) (*domain.SearchTask, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, at time.Time, reason string) error
	Defer(ctx context.Context, id string, at time.Time, reason string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
	UpsertLead(ctx context.Context, taskID string, lead *domain.NormalizedLead) (string, bool, error)
	InsertFollowUp(ctx context.Context, f *domain.FollowUp) (bool, error)
}

// Worker claims due search tasks and runs them through discovery,
// enrichment and lead storage.
type Worker struct {
	store     Store
	registry  *providers.Registry
	quota     redisstore.Quota
	cache     redisstore.EnrichmentCache
	followups *followup.Scheduler
	emitter   events.Emitter
	counters  *telemetry.Counters
	logger    *slog.Logger
	now       func() time.Time

	workerID     string
	concurrency  int
	pollInterval time.Duration
	timeout      time.Duration
	maxAttempts  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	staleAfter   time.Duration
	pageSize     int
	filters      providers.ICPFilters

	wake chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

func WithConcurrency(n int) Option                  { return func(w *Worker) { w.concurrency = n } }
func WithPollInterval(d time.Duration) Option       { return func(w *Worker) { w.pollInterval = d } }
func WithTimeout(d time.Duration) Option            { return func(w *Worker) { w.timeout = d } }
func WithMaxAttempts(n int) Option                  { return func(w *Worker) { w.maxAttempts = n } }
func WithBaseDelay(d time.Duration) Option          { return func(w *Worker) { w.baseDelay = d } }
func WithMaxDelay(d time.Duration) Option           { return func(w *Worker) { w.maxDelay = d } }
func WithStaleAfter(d time.Duration) Option         { return func(w *Worker) { w.staleAfter = d } }
func WithPageSize(n int) Option                     { return func(w *Worker) { w.pageSize = n } }
func WithFilters(f providers.ICPFilters) Option     { return func(w *Worker) { w.filters = f } }
func WithQuota(q redisstore.Quota) Option           { return func(w *Worker) { w.quota = q } }
func WithCache(c redisstore.EnrichmentCache) Option { return func(w *Worker) { w.cache = c } }
func WithFollowUps(s *followup.Scheduler) Option    { return func(w *Worker) { w.followups = s } }
func WithEmitter(e events.Emitter) Option           { return func(w *Worker) { w.emitter = e } }
func WithCounters(c *telemetry.Counters) Option     { return func(w *Worker) { w.counters = c } }
func WithLogger(l *slog.Logger) Option              { return func(w *Worker) { w.logger = l } }
func WithClock(now func() time.Time) Option         { return func(w *Worker) { w.now = now } }

// NewWorker constructs a Worker with the given dependencies and options.
func NewWorker(workerID string, store Store, registry *providers.Registry, opts ...Option) *Worker {
	w := &Worker{
		workerID:     workerID,
		store:        store,
		registry:     registry,
		emitter:      events.Nop{},
		logger:       slog.Default(),
		now:          time.Now,
		concurrency:  4,
		pollInterval: 5 * time.Second,
		timeout:      30 * time.Second,
		maxAttempts:  5,
		baseDelay:    30 * time.Second,
		maxDelay:     time.Hour,
		staleAfter:   10 * time.Minute,
		pageSize:     25,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.counters == nil {
		w.counters = telemetry.NewCounters()
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	if w.staleAfter <= 0 {
		w.staleAfter = 10 * time.Minute
	}
	w.wake = make(chan struct{}, w.concurrency)
	return w
}

// Run starts the claim loops and the stale-claim sweeper. Blocks until ctx
// is cancelled and every in-flight task has finished.
func (w *Worker) Run(ctx context.Context) error {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx)
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.sweep(ctx)
	}()

	<-ctx.Done()
	w.wg.Wait()
	return nil
}

// Wake makes idle claim loops poll immediately.
func (w *Worker) Wake() {
	for i := 0; i < cap(w.wake); i++ {
		select {
		case w.wake <- struct{}{}:
		default:
			return
		}
	}
}

// HandleEvent is a kafka.HandlerFunc that wakes the claim loops when a seed
// run has inserted new tasks. Malformed messages are logged and committed.
func (w *Worker) HandleEvent(_ context.Context, msg kafka.Message) error {
	var e events.Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		w.logger.Warn("malformed event message, discarding",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
		return nil
	}
	if e.Name == events.SeedCompleted {
		w.logger.Debug("seed run completed, waking claim loops")
		w.Wake()
	}
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		worked, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("claim failed", slog.String("error", err.Error()))
		}
		if worked {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	ticker := time.NewTicker(w.staleAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.store.RequeueStale(ctx, w.now().Add(-w.staleAfter))
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Error("requeue stale tasks failed", slog.String("error", err.Error()))
				}
				continue
			}
			if n > 0 {
				w.logger.Warn("requeued stale tasks", slog.Int64("count", n))
			}
		}
	}
}

// ProcessNext claims one due task and runs it. It reports false when no
// task was due.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	task, err := w.store.ClaimPending(ctx, w.now())
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	if task == nil {
		return false, nil
	}
	w.process(ctx, task)
	return true, nil
}

// outcome labels for TasksProcessed.
const (
	outcomeDone        = "done"
	outcomeRescheduled = "rescheduled"
	outcomeDeferred    = "deferred"
	outcomeFailed      = "failed"
)

func (w *Worker) process(parent context.Context, task *domain.SearchTask) {
	// Store writes use a context that survives shutdown so a claimed task is
	// never left running because the process was stopping.
	ctx, span := otel.Tracer("worker").Start(context.WithoutCancel(parent), "worker.process_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.type", string(task.Type)),
		attribute.Int("task.attempts", task.Attempts),
		attribute.String("worker.id", w.workerID),
	)

	log := w.logger.With(
		slog.String("task_id", task.ID),
		slog.String("task_type", string(task.Type)),
		slog.Int("attempt", task.Attempts),
	)

	w.counters.TasksInFlight.Inc()
	start := time.Now()
	defer func() {
		w.counters.TasksInFlight.Dec()
		w.counters.TaskDuration.Observe(time.Since(start).Seconds())
	}()

	provider, err := w.registry.ForTask(task.Type)
	if err != nil {
		log.Error("no provider for task type", slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no provider routed")
		w.fail(ctx, log, task, "", err.Error())
		return
	}
	span.SetAttributes(attribute.String("provider", provider.Name()))
	log = log.With(slog.String("provider", provider.Name()))

	if !w.allow(ctx, log, provider.Name()) {
		at := w.now().Add(w.quotaDelay())
		if err := w.store.Defer(ctx, task.ID, at, "provider quota exhausted"); err != nil {
			log.Error("failed to defer task", slog.String("error", err.Error()))
		}
		w.counters.QuotaDeferred.WithLabelValues(provider.Name()).Inc()
		w.counters.TasksProcessed.WithLabelValues(string(task.Type), outcomeDeferred).Inc()
		log.Info("provider quota exhausted, task deferred", slog.Time("next_run_at", at))
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, w.timeout)
	res := provider.DiscoverLeads(execCtx, w.discoverRequest(task))
	cancel()

	page, ok := res.Value()
	if !ok {
		perr := res.Err()
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(perr.Class))
		if res.IsRetryable() {
			w.retryLater(ctx, log, task, provider.Name(), perr)
			return
		}
		log.Error("discovery failed", slog.String("error", perr.Error()))
		w.fail(ctx, log, task, provider.Name(), perr.Error())
		return
	}

	stored, created, err := w.storeLeads(ctx, log, task, page.Leads)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store leads")
		w.retryLater(ctx, log, task, provider.Name(), err)
		return
	}

	if err := w.store.MarkDone(ctx, task.ID); err != nil {
		log.Error("failed to mark task done", slog.String("error", err.Error()))
		return
	}
	w.counters.TasksProcessed.WithLabelValues(string(task.Type), outcomeDone).Inc()
	log.Info("task completed",
		slog.Int("leads", stored),
		slog.Int("created", created),
		slog.String("source", page.Source),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	w.emit(ctx, events.TaskCompleted, task, map[string]any{
		"provider": provider.Name(),
		"source":   page.Source,
		"leads":    stored,
		"created":  created,
	})
}

func (w *Worker) discoverRequest(task *domain.SearchTask) providers.DiscoverRequest {
	req := providers.DiscoverRequest{
		Query:    task.Query,
		Limit:    w.pageSize,
		Page:     task.Page,
		Country:  task.Country,
		Language: task.Language,
		Filters:  w.filters,
	}
	if task.City != nil {
		req.City = *task.City
	}
	return req
}

// retryLater reschedules a task after a retryable failure, or fails it once
// maxAttempts is spent. The delay honours a provider Retry-After hint.
func (w *Worker) retryLater(ctx context.Context, log *slog.Logger, task *domain.SearchTask, provider string, cause error) {
	if task.Attempts >= w.maxAttempts {
		log.Error("task failed after all attempts",
			slog.Int("max_attempts", w.maxAttempts),
			slog.String("error", cause.Error()),
		)
		w.fail(ctx, log, task, provider, cause.Error())
		return
	}

	delay := retry.Backoff(task.Attempts, w.baseDelay, w.maxDelay)
	var perr *providers.ProviderError
	if errors.As(cause, &perr) && perr.RetryAfter > delay {
		delay = perr.RetryAfter
	}
	at := w.now().Add(delay)
	if err := w.store.Reschedule(ctx, task.ID, at, cause.Error()); err != nil {
		log.Error("failed to reschedule task", slog.String("error", err.Error()))
		return
	}
	w.counters.TasksProcessed.WithLabelValues(string(task.Type), outcomeRescheduled).Inc()
	log.Warn("task rescheduled",
		slog.Duration("delay", delay),
		slog.String("error", cause.Error()),
	)
}

func (w *Worker) fail(ctx context.Context, log *slog.Logger, task *domain.SearchTask, provider, reason string) {
	if err := w.store.MarkFailed(ctx, task.ID, reason); err != nil {
		log.Error("failed to mark task failed", slog.String("error", err.Error()))
		return
	}
	w.counters.TasksProcessed.WithLabelValues(string(task.Type), outcomeFailed).Inc()
	w.emit(ctx, events.TaskFailed, task, map[string]any{
		"provider": provider,
		"error":    reason,
	})
}

// storeLeads enriches and upserts each lead, scheduling a follow-up for new
// leads with an email address. Leads with no identity are skipped; any other
// store error aborts the page.
func (w *Worker) storeLeads(ctx context.Context, log *slog.Logger, task *domain.SearchTask, leads []domain.NormalizedLead) (stored, created int, err error) {
	for i := range leads {
		lead := &leads[i]
		if lead.NeedsEnrichment() {
			w.enrich(ctx, log, lead)
		}

		id, isNew, err := w.store.UpsertLead(ctx, task.ID, lead)
		var missing *domain.MissingIdentityError
		if errors.As(err, &missing) {
			w.counters.LeadsUnkeyed.WithLabelValues(missing.Source).Inc()
			log.Warn("skipping lead without identity",
				slog.String("source", missing.Source),
				slog.String("name", providers.Deref(lead.Name)),
			)
			continue
		}
		if err != nil {
			return stored, created, fmt.Errorf("upsert lead: %w", err)
		}
		stored++
		w.counters.LeadsStored.WithLabelValues(fmt.Sprint(isNew)).Inc()
		if !isNew {
			continue
		}
		created++

		if lead.Email != nil && w.followups != nil {
			w.scheduleFollowUp(ctx, log, id)
		}
	}
	return stored, created, nil
}

func (w *Worker) scheduleFollowUp(ctx context.Context, log *slog.Logger, leadID string) {
	f := &domain.FollowUp{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		Kind:      domain.FollowUpStandard,
		DueAt:     w.followups.Next(domain.FollowUpStandard),
		Status:    domain.StatusPending,
		CreatedAt: w.now().UTC(),
	}
	inserted, err := w.store.InsertFollowUp(ctx, f)
	if err != nil {
		log.Error("failed to schedule follow-up",
			slog.String("lead_id", leadID),
			slog.String("error", err.Error()),
		)
		return
	}
	if inserted {
		w.counters.FollowUpsScheduled.WithLabelValues(string(f.Kind)).Inc()
	}
}

// enrich tries each enricher in order until one succeeds. Failures of either
// class move on to the next enricher; the lead is stored regardless.
func (w *Worker) enrich(ctx context.Context, log *slog.Logger, lead *domain.NormalizedLead) {
	req := providers.EnrichRequest{
		Email:   providers.Deref(lead.Email),
		Domain:  providers.Deref(lead.Domain),
		Name:    providers.Deref(lead.Name),
		Country: providers.Deref(lead.Country),
	}
	if !req.Validate() {
		return
	}
	lookup := firstNonEmpty(req.Email, req.Domain, req.Name)

	for _, p := range w.registry.Enrichers() {
		if w.cache != nil {
			payload, hit, err := w.cache.Get(ctx, p.Name(), lookup)
			if err != nil {
				log.Warn("enrichment cache read failed", slog.String("error", err.Error()))
			}
			if hit {
				w.counters.EnrichmentCacheHit.Inc()
				apply(lead, payload)
				return
			}
		}

		if !w.allow(ctx, log, p.Name()) {
			w.counters.QuotaDeferred.WithLabelValues(p.Name()).Inc()
			continue
		}

		execCtx, cancel := context.WithTimeout(ctx, w.timeout)
		res := p.EnrichLead(execCtx, req)
		cancel()

		payload, ok := res.Value()
		if !ok {
			log.Debug("enricher skipped",
				slog.String("enricher", p.Name()),
				slog.String("outcome", string(res.Outcome())),
				slog.String("error", res.Err().Error()),
			)
			continue
		}
		apply(lead, &payload)
		if w.cache != nil {
			if err := w.cache.Set(ctx, p.Name(), lookup, &payload); err != nil {
				log.Warn("enrichment cache write failed", slog.String("error", err.Error()))
			}
		}
		return
	}
}

// allow consults the shared quota. A quota backend error lets the call
// through.
func (w *Worker) allow(ctx context.Context, log *slog.Logger, provider string) bool {
	if w.quota == nil {
		return true
	}
	ok, err := w.quota.Allow(ctx, provider)
	if err != nil {
		log.Warn("quota check failed, allowing call",
			slog.String("quota_key", provider),
			slog.String("error", err.Error()),
		)
		return true
	}
	return ok
}

// quotaDelay spaces deferred tasks by the average slot width of the window.
func (w *Worker) quotaDelay() time.Duration {
	if w.quota == nil || w.quota.Limit() <= 0 {
		return w.pollInterval
	}
	return max(w.quota.Window()/time.Duration(w.quota.Limit()), time.Second)
}

func (w *Worker) emit(ctx context.Context, name string, task *domain.SearchTask, payload map[string]any) {
	payload["task_id"] = task.ID
	payload["task_type"] = string(task.Type)
	payload["attempts"] = task.Attempts
	e := events.Event{
		Name:      name,
		Payload:   payload,
		Counters:  w.counters.Snapshot(),
		Timestamp: w.now().UTC(),
	}
	if err := w.emitter.Emit(ctx, e); err != nil {
		w.logger.Warn("failed to emit event",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}

func apply(lead *domain.NormalizedLead, p *domain.EnrichmentPayload) {
	lead.Merge(p.Lead)
	lead.ApplyCompany(p.Company)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
