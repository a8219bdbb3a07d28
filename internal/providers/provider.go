// Package providers defines the capability contract shared by every external
// lead-data and enrichment provider, and the plumbing adapters build on:
// tri-state results, rate limiting, HTTP classification and field extraction.
package providers

import (
	"context"
	"strings"

	"github.com/ramiqadoumi/leadflow/internal/domain"
)

// SourceStub tags discovery pages returned by a disabled or unconfigured adapter.
const SourceStub = "stub"

// Provider is implemented once per external provider. The orchestrator is
// written against this interface only and never branches on provider identity.
//
// Ordinary provider failures are reported through Result, never by panicking.
type Provider interface {
	Name() string
	DiscoverLeads(ctx context.Context, req DiscoverRequest) Result[DiscoverPage]
	EnrichLead(ctx context.Context, req EnrichRequest) Result[domain.EnrichmentPayload]
}

// ICPFilters narrow discovery to the ideal customer profile.
type ICPFilters struct {
	Industries     []string `json:"industries,omitempty"`
	Countries      []string `json:"countries,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
	ExcludeTerms   []string `json:"exclude_terms,omitempty"`
	MinEmployees   int      `json:"min_employees,omitempty"`
	MaxEmployees   int      `json:"max_employees,omitempty"`
}

// DiscoverRequest asks a provider for a page of leads.
type DiscoverRequest struct {
	Query    string
	Limit    int
	Cursor   string
	Page     int
	Country  string
	City     string
	Language string
	Filters  ICPFilters
}

// DiscoverPage is one page of normalized leads. NextCursor is nil when the
// provider has nothing more.
type DiscoverPage struct {
	Leads      []domain.NormalizedLead
	NextCursor *string
	Source     string
}

// StubPage is the empty page a disabled adapter returns.
func StubPage() Result[DiscoverPage] {
	return Success(DiscoverPage{Source: SourceStub})
}

// EnrichRequest identifies the lead to enrich. At least one field must be set.
type EnrichRequest struct {
	Email   string
	Domain  string
	Name    string
	Country string
}

// Validate reports whether the request carries an identity.
func (r EnrichRequest) Validate() bool {
	return strings.TrimSpace(r.Email) != "" ||
		strings.TrimSpace(r.Domain) != "" ||
		strings.TrimSpace(r.Name) != ""
}

// Settings are the per-provider options read from configuration.
type Settings struct {
	Enabled bool
	APIKey  string
	BaseURL string
}

// Configured reports whether the adapter may make network calls.
func (s Settings) Configured() bool {
	return s.Enabled && strings.TrimSpace(s.APIKey) != ""
}

// PreflightEnrich returns the terminal failure an enrichment call must report
// without touching the network, or nil when the call may proceed.
func PreflightEnrich(name string, s Settings, req EnrichRequest) *ProviderError {
	switch {
	case !s.Enabled:
		return &ProviderError{Provider: name, Class: ClassDisabled, Reason: "provider disabled"}
	case strings.TrimSpace(s.APIKey) == "":
		return &ProviderError{Provider: name, Class: ClassMissingCredentials, Reason: "api key not configured"}
	case !req.Validate():
		return &ProviderError{Provider: name, Class: ClassInvalidRequest, Reason: "one of email, domain or name is required"}
	}
	return nil
}
