// Package apollo adapts the Apollo people search and people match APIs.
package apollo

import (
	"context"
	"encoding/json"
	"fmt"
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
	Name = "apollo"

	defaultBaseURL = "https://api.apollo.io"
	defaultLimit   = 25
	maxLimit       = 100
)

// Provider implements providers.Provider using Apollo.
type Provider struct {
	settings providers.Settings
	baseURL  string
	caller   *providers.Caller
	counters *telemetry.Counters
}

// New builds an Apollo provider.
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

// DiscoverLeads runs a people search. The cursor is the next page number.
func (p *Provider) DiscoverLeads(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	if !p.settings.Configured() {
		return providers.StubPage()
	}
	return providers.Observe(p.counters, Name, "discover", p.discover(ctx, req))
}

func (p *Provider) discover(ctx context.Context, req providers.DiscoverRequest) providers.Result[providers.DiscoverPage] {
	page := pageFrom(req)
	body := searchRequest{
		Keywords:       req.Query,
		Page:           page,
		PerPage:        limit(req.Limit),
		OrgKeywordTags: req.Filters.Industries,
		EmployeeRanges: employeeRanges(req.Filters),
		OrgLocations:   orgLocations(req.Filters),
	}
	if loc := location(req); loc != "" {
		body.PersonLocations = []string{loc}
	}

	httpReq, err := p.newRequest(ctx, "/v1/mixed_people/search", body)
	if err != nil {
		return providers.RequestFailure[providers.DiscoverPage](Name, err)
	}
	var resp searchResponse
	if perr := p.caller.Do(ctx, "discover", httpReq, &resp); perr != nil {
		return providers.Failure[providers.DiscoverPage](perr)
	}

	leads := make([]domain.NormalizedLead, 0, len(resp.People))
	for _, raw := range resp.People {
		var ps person
		if err := json.Unmarshal(raw, &ps); err != nil {
			continue
		}
		leads = append(leads, p.normalize(ps, raw, req.Country))
	}

	var next *string
	if resp.Pagination.TotalPages > page {
		n := strconv.Itoa(page + 1)
		next = &n
	}
	return providers.FilteredPage(p.counters, Name, leads, req.Filters, next)
}

// EnrichLead matches a single person by email, domain or name.
func (p *Provider) EnrichLead(ctx context.Context, req providers.EnrichRequest) providers.Result[domain.EnrichmentPayload] {
	if perr := providers.PreflightEnrich(Name, p.settings, req); perr != nil {
		return providers.Observe(p.counters, Name, "enrich", providers.Failure[domain.EnrichmentPayload](perr))
	}
	return providers.Observe(p.counters, Name, "enrich", p.enrich(ctx, req))
}

func (p *Provider) enrich(ctx context.Context, req providers.EnrichRequest) providers.Result[domain.EnrichmentPayload] {
	httpReq, err := p.newRequest(ctx, "/v1/people/match", matchRequest{
		Email:  strings.TrimSpace(req.Email),
		Domain: strings.TrimSpace(req.Domain),
		Name:   strings.TrimSpace(req.Name),
	})
	if err != nil {
		return providers.RequestFailure[domain.EnrichmentPayload](Name, err)
	}
	var resp matchResponse
	if perr := p.caller.Do(ctx, "enrich", httpReq, &resp); perr != nil {
		return providers.Failure[domain.EnrichmentPayload](perr)
	}
	if len(resp.Person) == 0 || string(resp.Person) == "null" {
		return providers.Terminal[domain.EnrichmentPayload](Name, providers.ClassNotFound, "no matching person")
	}
	var ps person
	if err := json.Unmarshal(resp.Person, &ps); err != nil {
		return providers.Failure[domain.EnrichmentPayload](&providers.ProviderError{
			Provider: Name, Class: providers.ClassBadPayload, Err: fmt.Errorf("decode person: %w", err),
		})
	}

	lead := p.normalize(ps, resp.Person, req.Country)
	var company domain.NormalizedCompany
	if ps.Organization != nil {
		company = p.normalizeOrg(*ps.Organization, req.Country)
	}
	return providers.Success(domain.EnrichmentPayload{Lead: lead, Company: company})
}

func (p *Provider) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	req, err := providers.NewJSONRequest(ctx, http.MethodPost, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", p.settings.APIKey)
	req.Header.Set("Cache-Control", "no-cache")
	return req, nil
}

func (p *Provider) normalize(ps person, raw json.RawMessage, fallbackCountry string) domain.NormalizedLead {
	country := providers.Country(ps.Country)
	if country == nil {
		country = providers.Country(fallbackCountry)
	}
	phoneCountry := ""
	if country != nil {
		phoneCountry = *country
	}

	name := ps.Name
	if name == "" {
		name = strings.TrimSpace(ps.FirstName + " " + ps.LastName)
	}

	lead := domain.NormalizedLead{
		Name:     providers.Str(name),
		Email:    providers.Str(strings.ToLower(ps.Email)),
		Country:  country,
		City:     canon.NormalizeCity(ps.City),
		Socials:  providers.SocialsFromURLs(ps.LinkedInURL, ps.TwitterURL, ps.FacebookURL),
		Source:   Name,
		SourceID: ps.ID,
		Raw:      raw,
	}
	for _, n := range ps.PhoneNumbers {
		number := n.SanitizedNumber
		if number == "" {
			number = n.RawNumber
		}
		if lead.Phone = providers.Phone(p.counters, Name, number, phoneCountry); lead.Phone != nil {
			break
		}
	}
	if ps.Organization != nil {
		lead.ApplyCompany(p.normalizeOrg(*ps.Organization, phoneCountry))
	}
	return lead
}

func (p *Provider) normalizeOrg(org organization, fallbackCountry string) domain.NormalizedCompany {
	country := providers.Country(org.Country)
	if country == nil {
		country = providers.Country(fallbackCountry)
	}
	phoneCountry := ""
	if country != nil {
		phoneCountry = *country
	}
	phone := org.PrimaryPhone.Number
	if phone == "" {
		phone = org.Phone
	}

	dom := providers.Str(strings.ToLower(org.PrimaryDomain))
	if dom == nil {
		dom = providers.DomainFromURL(org.WebsiteURL)
	}
	return domain.NormalizedCompany{
		Name:          providers.Str(org.Name),
		Domain:        dom,
		Website:       providers.Website(org.WebsiteURL),
		Industry:      providers.Str(org.Industry),
		EmployeeCount: providers.Int(org.EstimatedNumEmployees),
		Phone:         providers.Phone(p.counters, Name, phone, phoneCountry),
		Country:       country,
		City:          canon.NormalizeCity(org.City),
		Socials:       providers.SocialsFromURLs(org.LinkedInURL, org.TwitterURL, org.FacebookURL),
	}
}

func pageFrom(req providers.DiscoverRequest) int {
	if n, err := strconv.Atoi(strings.TrimSpace(req.Cursor)); err == nil && n > 0 {
		return n
	}
	if req.Page > 0 {
		return req.Page
	}
	return 1
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

func location(req providers.DiscoverRequest) string {
	country := canon.CountryName(req.Country)
	if req.City == "" {
		return country
	}
	if country == "" {
		return req.City
	}
	return req.City + ", " + country
}

// orgLocations turns the country allow-list into Apollo location names.
func orgLocations(f providers.ICPFilters) []string {
	var out []string
	for _, c := range f.Countries {
		code, ok := canon.NormalizeCountry(c)
		if !ok {
			continue
		}
		out = append(out, canon.CountryName(code))
	}
	return out
}

func employeeRanges(f providers.ICPFilters) []string {
	if f.MinEmployees <= 0 && f.MaxEmployees <= 0 {
		return nil
	}
	lo, hi := max(f.MinEmployees, 1), f.MaxEmployees
	if hi <= 0 {
		hi = 1000000
	}
	return []string{fmt.Sprintf("%d,%d", lo, hi)}
}

var _ providers.Provider = (*Provider)(nil)
