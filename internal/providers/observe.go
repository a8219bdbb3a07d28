package providers

import (
	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

// Observe counts r under provider and op and returns it unchanged.
func Observe[T any](counters *telemetry.Counters, provider, op string, r Result[T]) Result[T] {
	if counters == nil {
		return r
	}
	class := ""
	if err := r.Err(); err != nil {
		class = string(err.Class)
	}
	counters.ProviderCalls.WithLabelValues(provider, op, string(r.Outcome()), class).Inc()
	return r
}

// FilteredPage applies the request's ICP filters to leads and wraps the
// rest as a successful page, counting discovered and dropped leads.
func FilteredPage(counters *telemetry.Counters, provider string, leads []domain.NormalizedLead, filters ICPFilters, next *string) Result[DiscoverPage] {
	kept, dropped := ApplyExcludes(leads, filters)
	if counters != nil {
		counters.LeadsDiscovered.WithLabelValues(provider).Add(float64(len(kept)))
		if dropped > 0 {
			counters.LeadsFiltered.WithLabelValues(provider).Add(float64(dropped))
		}
	}
	return Success(DiscoverPage{Leads: kept, NextCursor: next, Source: provider})
}
