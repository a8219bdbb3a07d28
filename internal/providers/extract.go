package providers

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/ramiqadoumi/leadflow/internal/canon"
	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

// Str returns a pointer to the trimmed s, or nil when nothing is left.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *s, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Int returns a pointer to n, or nil when n is not positive.
func Int(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// Country normalizes a provider country field to a supported ISO-2 code.
func Country(s string) *string {
	code, ok := canon.NormalizeCountry(s)
	if !ok {
		return nil
	}
	return &code
}

// Phone normalizes raw to E.164, counting numbers that had to be dropped.
func Phone(counters *telemetry.Counters, provider, raw, country string) *string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	p := canon.NormalizePhoneE164(raw, country)
	if p == nil && counters != nil {
		counters.PhoneRejected.WithLabelValues(provider).Inc()
	}
	return p
}

func parseLooseURL(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

func bareHost(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// DomainFromURL returns the registrable-looking host of raw without "www.".
func DomainFromURL(raw string) *string {
	u := parseLooseURL(raw)
	if u == nil {
		return nil
	}
	host := bareHost(u)
	if !strings.Contains(host, ".") {
		return nil
	}
	return &host
}

// IsMapsURL reports whether raw points at a map or navigation page rather
// than a business's own site.
func IsMapsURL(raw string) bool {
	u := parseLooseURL(raw)
	if u == nil {
		return false
	}
	host := bareHost(u)
	path := strings.ToLower(u.Path)
	switch {
	case host == "maps.google.com", host == "maps.app.goo.gl", host == "maps.apple.com":
		return true
	case host == "goo.gl" && strings.HasPrefix(path, "/maps"):
		return true
	case strings.HasPrefix(host, "google.") && strings.HasPrefix(path, "/maps"):
		return true
	case host == "waze.com" || strings.HasSuffix(host, ".waze.com"):
		return true
	}
	return false
}

var socialHosts = []string{
	"linkedin.com", "twitter.com", "x.com", "facebook.com", "fb.com", "instagram.com",
}

func isSocialURL(raw string) bool {
	u := parseLooseURL(raw)
	if u == nil {
		return false
	}
	host := bareHost(u)
	for _, h := range socialHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Website returns raw as a candidate company website, or nil when it is empty,
// a map/navigation link or a social profile.
func Website(raw string) *string {
	if parseLooseURL(raw) == nil || IsMapsURL(raw) || isSocialURL(raw) {
		return nil
	}
	return Str(raw)
}

// SocialHandle extracts the path segment following prefix (a host plus an
// optional path such as "linkedin.com/in/") from raw. The scheme, "www." and
// trailing slashes are ignored.
func SocialHandle(raw, prefix string) *string {
	u := parseLooseURL(raw)
	if u == nil {
		return nil
	}
	full := bareHost(u) + strings.TrimRight(u.EscapedPath(), "/")
	prefix = strings.TrimRight(strings.ToLower(prefix), "/") + "/"
	if !strings.HasPrefix(strings.ToLower(full), prefix) {
		return nil
	}
	rest := full[len(prefix):]
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}
	return Str(rest)
}

func firstHandle(raw string, prefixes ...string) *string {
	for _, p := range prefixes {
		if h := SocialHandle(raw, p); h != nil {
			return h
		}
	}
	return nil
}

// SocialsFromURLs fills each social handle from the first URL that matches it.
func SocialsFromURLs(urls ...string) domain.Socials {
	var s domain.Socials
	for _, raw := range urls {
		if s.LinkedIn == nil {
			s.LinkedIn = firstHandle(raw, "linkedin.com/in", "linkedin.com/company")
		}
		if s.Twitter == nil {
			s.Twitter = firstHandle(raw, "twitter.com", "x.com")
		}
		if s.Facebook == nil {
			s.Facebook = firstHandle(raw, "facebook.com", "fb.com")
		}
		if s.Instagram == nil {
			s.Instagram = firstHandle(raw, "instagram.com")
		}
	}
	return s
}

// Links is a list of URLs decoded from any of the shapes providers use: an
// object of named keys ({"facebook": "https://…"}), an array of strings, an
// array of {"url": …} objects, or a single string. Anything else decodes to
// an empty list rather than failing the surrounding record.
type Links []string

func (l *Links) UnmarshalJSON(data []byte) error {
	*l = nil
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	*l = collectURLs(raw)
	return nil
}

func collectURLs(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, collectURLs(item)...)
		}
		return out
	case map[string]any:
		for _, key := range []string{"url", "link", "href"} {
			if s, ok := t[key].(string); ok {
				return collectURLs(s)
			}
		}
		var out []string
		for _, item := range t {
			out = append(out, collectURLs(item)...)
		}
		return out
	}
	return nil
}

// ApplyExcludes drops leads whose domain is in filters.ExcludeDomains (or a
// subdomain of one), whose name, company or domain contains an excluded
// term, or whose country is outside a non-empty filters.Countries. Leads
// without a country pass the country check. It returns the kept leads and
// the number dropped.
func ApplyExcludes(leads []domain.NormalizedLead, filters ICPFilters) ([]domain.NormalizedLead, int) {
	if len(filters.ExcludeDomains) == 0 && len(filters.ExcludeTerms) == 0 && len(filters.Countries) == 0 {
		return leads, 0
	}
	domains := make([]string, 0, len(filters.ExcludeDomains))
	for _, d := range filters.ExcludeDomains {
		if dd := DomainFromURL(d); dd != nil {
			domains = append(domains, *dd)
		}
	}
	terms := make([]string, 0, len(filters.ExcludeTerms))
	for _, t := range filters.ExcludeTerms {
		if nt := canon.NormalizeQuery(t); nt != "" {
			terms = append(terms, nt)
		}
	}
	countries := make(map[string]struct{}, len(filters.Countries))
	for _, c := range filters.Countries {
		if code, ok := canon.NormalizeCountry(c); ok {
			countries[code] = struct{}{}
		}
	}

	kept := leads[:0:0]
	for _, lead := range leads {
		if excludedDomain(lead, domains) || excludedTerm(lead, terms) || !allowedCountry(lead, countries) {
			continue
		}
		kept = append(kept, lead)
	}
	return kept, len(leads) - len(kept)
}

func allowedCountry(lead domain.NormalizedLead, countries map[string]struct{}) bool {
	if len(countries) == 0 || lead.Country == nil {
		return true
	}
	code, ok := canon.NormalizeCountry(*lead.Country)
	if !ok {
		return false
	}
	_, ok = countries[code]
	return ok
}

func excludedDomain(lead domain.NormalizedLead, domains []string) bool {
	d := lead.Domain
	if d == nil && lead.Website != nil {
		d = DomainFromURL(*lead.Website)
	}
	if d == nil {
		return false
	}
	host := strings.ToLower(*d)
	for _, ex := range domains {
		if host == ex || strings.HasSuffix(host, "."+ex) {
			return true
		}
	}
	return false
}

func excludedTerm(lead domain.NormalizedLead, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	var fields []string
	for _, f := range []*string{lead.Name, lead.CompanyName, lead.Domain} {
		if f != nil {
			fields = append(fields, canon.NormalizeQuery(*f))
		}
	}
	for _, term := range terms {
		for _, f := range fields {
			if strings.Contains(f, term) {
				return true
			}
		}
	}
	return false
}
