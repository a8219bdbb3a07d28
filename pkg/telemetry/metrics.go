package telemetry

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "leadflow"

// Counters is the process-wide set of event counters. It is created once by
// the service entry point and passed to every component that increments it.
type Counters struct {
	registry *prometheus.Registry

	// ─── Seeder ──────────────────────────────────────────────────────────────────

	TasksGenerated prometheus.Counter
	TasksInserted  prometheus.Counter
	TasksSkipped   prometheus.Counter
	SeedRuns       *prometheus.CounterVec

	// ─── Providers ───────────────────────────────────────────────────────────────

	ProviderCalls   *prometheus.CounterVec
	LimiterWaits    *prometheus.CounterVec
	LeadsDiscovered *prometheus.CounterVec
	LeadsFiltered   *prometheus.CounterVec
	PhoneRejected   *prometheus.CounterVec

	// ─── Worker ──────────────────────────────────────────────────────────────────

	TasksProcessed     *prometheus.CounterVec
	TasksInFlight      prometheus.Gauge
	TaskDuration       prometheus.Histogram
	LeadsStored        *prometheus.CounterVec
	LeadsUnkeyed       *prometheus.CounterVec
	EnrichmentCacheHit prometheus.Counter
	QuotaDeferred      *prometheus.CounterVec
	FollowUpsScheduled *prometheus.CounterVec
}

// NewCounters registers every counter on a private registry.
func NewCounters() *Counters {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Counters{
		registry: reg,

		TasksGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "seeder", Name: "tasks_generated_total",
			Help: "Candidate search tasks produced by the generator.",
		}),
		TasksInserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "seeder", Name: "tasks_inserted_total",
			Help: "Search tasks actually inserted into the store.",
		}),
		TasksSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "seeder", Name: "tasks_skipped_total",
			Help: "Candidate tasks skipped because the (type, fingerprint) key already existed.",
		}),
		SeedRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "seeder", Name: "runs_total",
			Help: "Seed runs, labelled by outcome.",
		}, []string{"outcome"}),

		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "calls_total",
			Help: "Provider calls, labelled by provider, operation, outcome and error class.",
		}, []string{"provider", "op", "outcome", "class"}),
		LimiterWaits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "limiter_waits_total",
			Help: "Calls that had to wait for the provider rate limiter.",
		}, []string{"provider"}),
		LeadsDiscovered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "leads_discovered_total",
			Help: "Leads returned by discovery after exclude filtering.",
		}, []string{"provider"}),
		LeadsFiltered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "leads_filtered_total",
			Help: "Leads dropped by exclude-list filtering.",
		}, []string{"provider"}),
		PhoneRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "provider", Name: "phone_rejected_total",
			Help: "Raw phone numbers that could not be normalized to E.164.",
		}, []string{"provider"}),

		TasksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "tasks_processed_total",
			Help: "Search tasks processed, labelled by task type and outcome.",
		}, []string{"task_type", "outcome"}),
		TasksInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "worker", Name: "tasks_inflight",
			Help: "Search tasks currently being executed.",
		}),
		TaskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "task_duration_seconds",
			Help:    "End-to-end task execution time in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		LeadsStored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "leads_stored_total",
			Help: "Leads upserted into the store, labelled by whether the row was new.",
		}, []string{"created"}),
		LeadsUnkeyed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "leads_unkeyed_total",
			Help: "Discovered leads skipped because no field could identify them.",
		}, []string{"source"}),
		EnrichmentCacheHit: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "enrichment_cache_hits_total",
			Help: "Enrichment lookups served from cache.",
		}),
		QuotaDeferred: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "quota_deferred_total",
			Help: "Tasks deferred because the shared provider quota was exhausted.",
		}, []string{"provider"}),
		FollowUpsScheduled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "followups_scheduled_total",
			Help: "Follow-up actions scheduled, labelled by kind.",
		}, []string{"kind"}),
	}
}

// Registry exposes the private registry for the /metrics handler.
func (c *Counters) Registry() *prometheus.Registry { return c.registry }

// Snapshot flattens all counter and gauge values into name{labels} → value.
// Histograms report their sample count.
func (c *Counters) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := c.registry.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		name := strings.TrimPrefix(mf.GetName(), namespace+"_")
		for _, m := range mf.GetMetric() {
			key := name
			if labels := m.GetLabel(); len(labels) > 0 {
				parts := make([]string, 0, len(labels))
				for _, lp := range labels {
					parts = append(parts, lp.GetName()+"="+lp.GetValue())
				}
				sort.Strings(parts)
				key += "{" + strings.Join(parts, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}
