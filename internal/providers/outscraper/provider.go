// Package outscraper adapts the Outscraper Google Maps search and domain
// contacts APIs.
package outscraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ramiqadoumi/leadflow/internal/canon"
	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/providers"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

const (
	// Name identifies the provider in configuration, metrics and lead provenance.
	Name = "outscraper"

	defaultBaseURL = "https://api.app.outscraper.com"
	defaultLimit   = 20
	maxLimit       = 500
)

// Provider implements providers.Provider using Outscraper.
type Provider struct {
	settings providers.Settings
	baseURL  string
	caller   *providers.Caller
	counters *telemetry.Counters
}

// New builds an Outscraper provider.
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

// DiscoverLeads runs a Maps search. The cursor is the number of places to skip.
func (p *Provider) DiscoverLeads(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	if !p.settings.Configured() {
		return providers.StubPage()
	}
	return providers.Observe(p.counters, Name, "discover", p.discover(ctx, req))
}

func (p *Provider) discover(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return providers.Terminal[providers.DiscoverPage](Name, providers.ClassInvalidRequest, "maps search needs a query")
	}
	lim := defaultLimit
	if req.Limit > 0 {
		lim = min(req.Limit, maxLimit)
	}
	skip := providers.Offset(req, lim)

	params := url.Values{
		"query": {query},
		"limit": {strconv.Itoa(lim)},
		"skip":  {strconv.Itoa(skip)},
		"async": {"false"},
	}
	if req.Language != "" {
		params.Set("language", strings.ToLower(req.Language))
	}
	if req.Country != "" {
		params.Set("region", strings.ToUpper(req.Country))
	}

	httpReq, err := p.newRequest(ctx, "/maps/search-v3", params)
	if err != nil {
		return providers.RequestFailure[providers.DiscoverPage](Name, err)
	}
	var resp envelope
	if perr := p.caller.Do(ctx, "discover", httpReq, &resp); perr != nil {
		return providers.Failure[providers.DiscoverPage](perr)
	}

	records := resp.records()
	leads := make([]domain.NormalizedLead, 0, len(records))
	for _, raw := range records {
		var pl place
		if err := json.Unmarshal(raw, &pl); err != nil {
			continue
		}
		leads = append(leads, p.normalize(pl, raw, req))
	}

	var next *string
	if len(records) >= lim {
		n := strconv.Itoa(skip + len(records))
		next = &n
	}
	return providers.FilteredPage(p.counters, Name, leads, req.Filters, next)
}

func (p *Provider) normalize(pl place, raw json.RawMessage, req providers.DiscoverRequest) domain.NormalizedLead {
	country := providers.Country(pl.CountryCode)
	if country == nil {
		country = providers.Country(req.Country)
	}
	city := canon.NormalizeCity(pl.City)
	if city == nil {
		city = canon.NormalizeCity(req.City)
	}

	links := append([]string(pl.Socials), pl.Facebook, pl.Instagram, pl.Twitter, pl.LinkedIn)
	website := providers.Website(pl.Site)
	var dom *string
	if website != nil {
		dom = providers.DomainFromURL(*website)
	}
	industry := pl.Category
	if industry == "" {
		industry = pl.Type
	}
	id := pl.PlaceID
	if id == "" {
		id = pl.GoogleID
	}

	return domain.NormalizedLead{
		CompanyName: providers.Str(pl.Name),
		Email:       providers.Str(strings.ToLower(pl.Email)),
		Phone:       providers.Phone(p.counters, Name, pl.Phone, providers.Deref(country)),
		Domain:      dom,
		Website:     website,
		Industry:    providers.Str(industry),
		Country:     country,
		City:        city,
		Socials:     providers.SocialsFromURLs(links...),
		Source:      Name,
		SourceID:    id,
		Raw:         raw,
	}
}

// EnrichLead fetches the contacts Outscraper scraped from the lead's domain.
// An email's domain is used when no domain is given.
func (p *Provider) EnrichLead(ctx context.Context, req providers.EnrichRequest) providers.Result[domain.EnrichmentPayload] {
	if perr := providers.PreflightEnrich(Name, p.settings, req); perr != nil {
		return providers.Observe(p.counters, Name, "enrich", providers.Failure[domain.EnrichmentPayload](perr))
	}
	return providers.Observe(p.counters, Name, "enrich", p.enrich(ctx, req))
}

func (p *Provider) enrich(ctx context.Context, req providers.EnrichRequest) providers.Result[domain.EnrichmentPayload] {
	target := req.Domain
	if strings.TrimSpace(target) == "" {
		if _, after, ok := strings.Cut(req.Email, "@"); ok {
			target = after
		}
	}
	dom := providers.DomainFromURL(target)
	if dom == nil {
		return providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassUnsupported, "enrichment needs a domain or email")
	}

	httpReq, err := p.newRequest(ctx, "/emails-and-contacts", url.Values{"query": {*dom}, "async": {"false"}})
	if err != nil {
		return providers.RequestFailure[domain.EnrichmentPayload](Name, err)
	}
	var resp envelope
	if perr := p.caller.Do(ctx, "enrich", httpReq, &resp); perr != nil {
		return providers.Failure[domain.EnrichmentPayload](perr)
	}
	records := resp.records()
	if len(records) == 0 {
		return providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassNotFound, "no contacts for domain")
	}
	var c contacts
	if err := json.Unmarshal(records[0], &c); err != nil {
		return providers.Failure[domain.EnrichmentPayload](&providers.ProviderError{
			Provider: Name, Class: providers.ClassBadPayload, Reason: "decode contacts", Err: err,
		})
	}

	country := providers.Country(c.Details.Country)
	if country == nil {
		country = providers.Country(req.Country)
	}
	company := domain.NormalizedCompany{
		Name:          providers.Str(c.Details.Name),
		Domain:        dom,
		Website:       providers.Str("https://" + *dom),
		Industry:      providers.Str(c.Details.Industry),
		EmployeeCount: providers.Int(c.Details.EmployeesMax),
		Country:       country,
		Socials:       providers.SocialsFromURLs(c.Socials...),
	}
	for _, ph := range c.Phones {
		if company.Phone = providers.Phone(p.counters, Name, ph.Value, providers.Deref(country)); company.Phone != nil {
			break
		}
	}

	lead := domain.NormalizedLead{Source: Name, SourceID: *dom, Raw: records[0]}
	if e := strings.TrimSpace(req.Email); e != "" {
		lead.Email = providers.Str(strings.ToLower(e))
	} else if len(c.Emails) > 0 {
		lead.Email = providers.Str(strings.ToLower(c.Emails[0].Value))
	}
	lead.Phone = company.Phone
	lead.ApplyCompany(company)
	return providers.Success(domain.EnrichmentPayload{Lead: lead, Company: company})
}

func (p *Provider) newRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	req, err := providers.NewJSONRequest(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", p.settings.APIKey)
	return req, nil
}

var _ providers.Provider = (*Provider)(nil)
