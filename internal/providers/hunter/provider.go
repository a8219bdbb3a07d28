// Package hunter adapts the Hunter domain search and enrichment APIs.
package hunter

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
	Name = "hunter"

	defaultBaseURL = "https://api.hunter.io"
	defaultLimit   = 10
	maxLimit       = 100
)

// Provider implements providers.Provider using Hunter.
type Provider struct {
	settings providers.Settings
	baseURL  string
	caller   *providers.Caller
	counters *telemetry.Counters
}

// New builds a Hunter provider.
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

// DiscoverLeads lists the people Hunter knows at a domain. A query that looks
// like a domain is searched as one, anything else as a company name. The
// cursor is the result offset.
func (p *Provider) DiscoverLeads(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	if !p.settings.Configured() {
		return providers.StubPage()
	}
	return providers.Observe(p.counters, Name, "discover", p.discover(ctx, req))
}

func (p *Provider) discover(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return providers.Terminal[providers.DiscoverPage](Name, providers.ClassInvalidRequest, "domain search needs a domain or company")
	}
	lim := limit(req.Limit)
	offset := providers.Offset(req, lim)

	params := url.Values{}
	if d := providers.DomainFromURL(query); d != nil && !strings.Contains(query, " ") {
		params.Set("domain", *d)
	} else {
		params.Set("company", query)
	}
	params.Set("limit", strconv.Itoa(lim))
	params.Set("offset", strconv.Itoa(offset))

	httpReq, err := p.newRequest(ctx, "/v2/domain-search", params)
	if err != nil {
		return providers.RequestFailure[providers.DiscoverPage](Name, err)
	}
	var resp domainSearchResponse
	if perr := p.caller.Do(ctx, "discover", httpReq, &resp); perr != nil {
		return providers.Failure[providers.DiscoverPage](perr)
	}

	data := resp.Data
	country := providers.Country(data.Country)
	if country == nil {
		country = providers.Country(req.Country)
	}
	phoneCountry := providers.Deref(country)
	company := domain.NormalizedCompany{
		Name:     providers.Str(data.Organization),
		Domain:   providers.Str(strings.ToLower(data.Domain)),
		Industry: providers.Str(data.Industry),
		Country:  country,
		City:     canon.NormalizeCity(data.City),
		Socials:  providers.SocialsFromURLs(data.LinkedIn, data.Twitter, data.Facebook, data.Instagram),
	}
	if company.Domain != nil {
		company.Website = providers.Str("https://" + *company.Domain)
	}
	company.EmployeeCount = headcount(data.Headcount)

	leads := make([]domain.NormalizedLead, 0, len(data.Emails))
	for _, raw := range data.Emails {
		var e email
		if err := json.Unmarshal(raw, &e); err != nil || strings.TrimSpace(e.Value) == "" {
			continue
		}
		lead := domain.NormalizedLead{
			Name:     providers.Str(strings.TrimSpace(e.FirstName + " " + e.LastName)),
			Email:    providers.Str(strings.ToLower(e.Value)),
			Phone:    providers.Phone(p.counters, Name, e.PhoneNumber, phoneCountry),
			Socials:  providers.SocialsFromURLs(e.LinkedIn, twitterURL(e.Twitter)),
			Source:   Name,
			SourceID: strings.ToLower(e.Value),
			Raw:      raw,
		}
		lead.ApplyCompany(company)
		leads = append(leads, lead)
	}

	var next *string
	if end := offset + len(data.Emails); len(data.Emails) > 0 && end < resp.Meta.Results {
		n := strconv.Itoa(end)
		next = &n
	}
	return providers.FilteredPage(p.counters, Name, leads, req.Filters, next)
}

// EnrichLead looks up a person by email, or a company by domain.
func (p *Provider) EnrichLead(ctx context.Context, req providers.EnrichRequest) providers.Result[domain.EnrichmentPayload] {
	if perr := providers.PreflightEnrich(Name, p.settings, req); perr != nil {
		return providers.Observe(p.counters, Name, "enrich", providers.Failure[domain.EnrichmentPayload](perr))
	}
	return providers.Observe(p.counters, Name, "enrich", p.enrich(ctx, req))
}

func (p *Provider) enrich(ctx context.Context, req providers.EnrichRequest) providers.Result[domain.EnrichmentPayload] {
	email := strings.TrimSpace(req.Email)
	dom := strings.TrimSpace(req.Domain)
	switch {
	case email != "":
		return p.enrichPerson(ctx, email, req.Country)
	case dom != "":
		return p.enrichCompany(ctx, dom, req.Country)
	default:
		return providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassUnsupported, "enrichment by name alone is not supported")
	}
}

func (p *Provider) enrichPerson(ctx context.Context, email, country string) providers.Result[domain.EnrichmentPayload] {
	httpReq, err := p.newRequest(ctx, "/v2/combined/find", url.Values{"email": {email}})
	if err != nil {
		return providers.RequestFailure[domain.EnrichmentPayload](Name, err)
	}
	var resp combinedResponse
	if perr := p.caller.Do(ctx, "enrich", httpReq, &resp); perr != nil {
		return providers.Failure[domain.EnrichmentPayload](perr)
	}
	if resp.Data.Person == nil && resp.Data.Company == nil {
		return providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassNotFound, "no record for email")
	}

	var payload domain.EnrichmentPayload
	if c := resp.Data.Company; c != nil {
		payload.Company = p.normalizeCompany(*c, country)
	}
	if ps := resp.Data.Person; ps != nil {
		pc := providers.Country(ps.Geo.CountryCode)
		if pc == nil {
			pc = payload.Company.Country
		}
		if pc == nil {
			pc = providers.Country(country)
		}
		payload.Lead = domain.NormalizedLead{
			Name:    providers.Str(ps.Name.FullName),
			Email:   providers.Str(strings.ToLower(ps.Email)),
			Phone:   providers.Phone(p.counters, Name, ps.Phone, providers.Deref(pc)),
			Country: pc,
			City:    canon.NormalizeCity(ps.Geo.City),
			Socials: domain.Socials{
				LinkedIn: providers.Str(ps.LinkedIn.Handle),
				Twitter:  providers.Str(ps.Twitter.Handle),
				Facebook: providers.Str(ps.Facebook.Handle),
			},
			Source:   Name,
			SourceID: ps.ID,
		}
		if payload.Lead.SourceID == "" {
			payload.Lead.SourceID = strings.ToLower(email)
		}
	}
	payload.Lead.ApplyCompany(payload.Company)
	return providers.Success(payload)
}

func (p *Provider) enrichCompany(ctx context.Context, dom, country string) providers.Result[domain.EnrichmentPayload] {
	d := providers.DomainFromURL(dom)
	if d == nil {
		return providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassInvalidRequest, "domain is not valid")
	}
	httpReq, err := p.newRequest(ctx, "/v2/companies/find", url.Values{"domain": {*d}})
	if err != nil {
		return providers.RequestFailure[domain.EnrichmentPayload](Name, err)
	}
	var resp companyResponse
	if perr := p.caller.Do(ctx, "enrich", httpReq, &resp); perr != nil {
		return providers.Failure[domain.EnrichmentPayload](perr)
	}
	if resp.Data == nil {
		return providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassNotFound, "no record for domain")
	}
	company := p.normalizeCompany(*resp.Data, country)
	lead := domain.NormalizedLead{Phone: company.Phone, Source: Name, SourceID: *d}
	lead.ApplyCompany(company)
	return providers.Success(domain.EnrichmentPayload{Lead: lead, Company: company})
}

func (p *Provider) normalizeCompany(c companyRecord, fallbackCountry string) domain.NormalizedCompany {
	country := providers.Country(c.Geo.CountryCode)
	if country == nil {
		country = providers.Country(fallbackCountry)
	}
	phone := c.Phone
	if phone == "" && len(c.Site.PhoneNumbers) > 0 {
		phone = c.Site.PhoneNumbers[0]
	}
	out := domain.NormalizedCompany{
		Name:     providers.Str(c.Name),
		Domain:   providers.Str(strings.ToLower(c.Domain)),
		Industry: providers.Str(c.Category.Industry),
		Phone:    providers.Phone(p.counters, Name, phone, providers.Deref(country)),
		Country:  country,
		City:     canon.NormalizeCity(c.Geo.City),
		Socials: domain.Socials{
			LinkedIn:  providers.Str(c.LinkedIn.Handle),
			Twitter:   providers.Str(c.Twitter.Handle),
			Facebook:  providers.Str(c.Facebook.Handle),
			Instagram: providers.Str(c.Instagram.Handle),
		},
	}
	if out.Domain != nil {
		out.Website = providers.Str("https://" + *out.Domain)
	}
	out.EmployeeCount = headcount(strings.Trim(string(c.Metrics.Employees), `"`))
	return out
}

func (p *Provider) newRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	req, err := providers.NewJSONRequest(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", p.settings.APIKey)
	return req, nil
}

// headcount reads a plain count or a "11-50" style range as its upper bound.
func headcount(s string) *int {
	s = strings.TrimSpace(strings.TrimSuffix(s, "+"))
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return providers.Int(n)
}

func twitterURL(handle string) string {
	if handle == "" || strings.Contains(handle, "/") {
		return handle
	}
	return "https://twitter.com/" + strings.TrimPrefix(handle, "@")
}

func limit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	default:
		return n
	}
}

var _ providers.Provider = (*Provider)(nil)
