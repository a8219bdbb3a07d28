// Package serper adapts the Serper Google web search API. Serper has no
// enrichment endpoint.
package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ramiqadoumi/leadflow/internal/canon"
	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/providers"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

const (
	// Name identifies the provider in configuration, metrics and lead provenance.
	Name = "serper"

	defaultBaseURL = "https://google.serper.dev"
	defaultLimit   = 10
	maxLimit       = 100
)

type searchRequest struct {
	Q    string `json:"q"`
	GL   string `json:"gl,omitempty"`
	HL   string `json:"hl,omitempty"`
	Num  int    `json:"num"`
	Page int    `json:"page"`
}

type searchResponse struct {
	Organic []json.RawMessage `json:"organic"`
}

type organicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Provider implements providers.Provider using Serper.
type Provider struct {
	settings providers.Settings
	baseURL  string
	caller   *providers.Caller
	counters *telemetry.Counters
}

// New builds a Serper provider.
func New(settings providers.Settings, opts ...providers.Option) *Provider {
	o := providers.ApplyOptions(opts)
	return &Provider{
		settings: settings,
		baseURL:  providers.BaseURL(settings.BaseURL, defaultBaseURL),
		caller:   providers.NewCallerFromOptions(Name, o),
		counters: o.Counters,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return Name }

// DiscoverLeads turns organic results into company leads. Results that point
// at social profiles or map pages carry no website and are dropped.
func (p *Provider) DiscoverLeads(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	if !p.settings.Configured() {
		return providers.StubPage()
	}
	return providers.Observe(p.counters, Name, "discover", p.discover(ctx, req))
}

func (p *Provider) discover(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return providers.Terminal[providers.DiscoverPage](Name, providers.ClassInvalidRequest, "web search needs a query")
	}
	page := 1
	if n, err := strconv.Atoi(req.Cursor); err == nil && n > 0 {
		page = n
	} else if req.Page > 0 {
		page = req.Page
	}
	num := defaultLimit
	if req.Limit > 0 {
		num = min(req.Limit, maxLimit)
	}

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, p.baseURL+"/search", searchRequest{
		Q:    query,
		GL:   strings.ToLower(req.Country),
		HL:   strings.ToLower(req.Language),
		Num:  num,
		Page: page,
	})
	if err != nil {
		return providers.RequestFailure[providers.DiscoverPage](Name, err)
	}
	httpReq.Header.Set("X-API-KEY", p.settings.APIKey)

	var resp searchResponse
	if perr := p.caller.Do(ctx, "discover", httpReq, &resp); perr != nil {
		return providers.Failure[providers.DiscoverPage](perr)
	}

	country := providers.Country(req.Country)
	seen := make(map[string]bool)
	leads := make([]domain.NormalizedLead, 0, len(resp.Organic))
	for _, raw := range resp.Organic {
		var r organicResult
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		website := providers.Website(r.Link)
		dom := providers.DomainFromURL(r.Link)
		if website == nil || dom == nil || seen[*dom] {
			continue
		}
		seen[*dom] = true
		leads = append(leads, domain.NormalizedLead{
			CompanyName: providers.Str(companyName(r.Title)),
			Domain:      dom,
			Website:     website,
			Country:     country,
			City:        canon.NormalizeCity(req.City),
			Source:      Name,
			SourceID:    *dom,
			Raw:         raw,
		})
	}

	var next *string
	if len(resp.Organic) >= num {
		n := strconv.Itoa(page + 1)
		next = &n
	}
	return providers.FilteredPage(p.counters, Name, leads, req.Filters, next)
}

// EnrichLead is not offered by Serper.
func (p *Provider) EnrichLead(_ context.Context, req providers.EnrichRequest) providers.Result[domain.EnrichmentPayload] {
	if perr := providers.PreflightEnrich(Name, p.settings, req); perr != nil {
		return providers.Observe(p.counters, Name, "enrich", providers.Failure[domain.EnrichmentPayload](perr))
	}
	return providers.Observe(p.counters, Name, "enrich",
		providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassUnsupported, "serper does not offer enrichment"))
}

// companyName strips the " | tagline" or " - site" suffix search titles carry.
func companyName(title string) string {
	for _, sep := range []string{" | ", " - ", " – ", " — "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
		}
	}
	return title
}

var _ providers.Provider = (*Provider)(nil)
