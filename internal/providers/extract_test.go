package providers_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/providers"
)

func TestSocialHandle(t *testing.T) {
	tests := []struct {
		raw, prefix, want string
	}{
		{"https://www.linkedin.com/company/acme-corp/", "linkedin.com/company", "acme-corp"},
		{"http://linkedin.com/in/jane-doe", "linkedin.com/in", "jane-doe"},
		{"twitter.com/acme/", "twitter.com", "acme"},
		{"https://x.com/acme?lang=en", "x.com", "acme"},
		{"https://www.facebook.com/acme.dubai/posts/1", "facebook.com", "acme.dubai"},
		{"https://instagram.com/", "instagram.com", "<nil>"},
		{"https://example.com/acme", "twitter.com", "<nil>"},
		{"", "twitter.com", "<nil>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, providers.Deref(providers.SocialHandle(tt.raw, tt.prefix)), "raw %q", tt.raw)
	}
}

func TestSocialsFromURLs(t *testing.T) {
	s := providers.SocialsFromURLs(
		"https://acme.com",
		"https://www.linkedin.com/company/acme/",
		"https://facebook.com/acmefb",
		"https://instagram.com/acme.ig/",
	)
	assert.Equal(t, "acme", providers.Deref(s.LinkedIn))
	assert.Equal(t, "acmefb", providers.Deref(s.Facebook))
	assert.Equal(t, "acme.ig", providers.Deref(s.Instagram))
	assert.Nil(t, s.Twitter)
}

func TestIsMapsURL(t *testing.T) {
	for _, raw := range []string{
		"https://maps.google.com/?cid=123",
		"https://www.google.com/maps/place/Acme",
		"https://google.ae/maps?q=acme",
		"https://maps.app.goo.gl/xyz",
		"https://goo.gl/maps/abc",
		"https://waze.com/ul?ll=1,2",
	} {
		assert.True(t, providers.IsMapsURL(raw), raw)
	}
	for _, raw := range []string{"https://acme.com", "https://google.com/search?q=x", ""} {
		assert.False(t, providers.IsMapsURL(raw), raw)
	}
}

func TestWebsite(t *testing.T) {
	assert.Equal(t, "https://acme.com", providers.Deref(providers.Website("https://acme.com")))
	assert.Nil(t, providers.Website("https://www.google.com/maps/place/Acme"))
	assert.Nil(t, providers.Website("https://facebook.com/acme"))
	assert.Nil(t, providers.Website(""))
}

func TestDomainFromURL(t *testing.T) {
	assert.Equal(t, "acme.com", providers.Deref(providers.DomainFromURL("https://WWW.Acme.com/about")))
	assert.Equal(t, "acme.co.uk", providers.Deref(providers.DomainFromURL("acme.co.uk")))
	assert.Nil(t, providers.DomainFromURL("localhost"))
	assert.Nil(t, providers.DomainFromURL(""))
}

func TestLinks_AcceptsEveryShape(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{"object", `{"facebook":"https://facebook.com/a","twitter":""}`, []string{"https://facebook.com/a"}},
		{"array of strings", `["https://facebook.com/a","https://x.com/b"]`, []string{"https://facebook.com/a", "https://x.com/b"}},
		{"array of objects", `[{"url":"https://facebook.com/a"},{"link":"https://x.com/b"}]`, []string{"https://facebook.com/a", "https://x.com/b"}},
		{"object of arrays", `{"facebook":["https://facebook.com/a"]}`, []string{"https://facebook.com/a"}},
		{"string", `"https://facebook.com/a"`, []string{"https://facebook.com/a"}},
		{"null", `null`, nil},
		{"number", `42`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var holder struct {
				Links providers.Links `json:"links"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"links":`+tt.json+`}`), &holder))
			assert.ElementsMatch(t, tt.want, []string(holder.Links))
		})
	}
}

func TestApplyExcludes(t *testing.T) {
	lead := func(name, dom string) domain.NormalizedLead {
		return domain.NormalizedLead{Name: providers.Str(name), Domain: providers.Str(dom)}
	}
	leads := []domain.NormalizedLead{
		lead("Acme Dental", "acme.com"),
		lead("Blog of Acme", "blog.acme.com"),
		lead("Competitor LLC", "rival.io"),
		lead("Jobs Board", "hire.me"),
		lead("Keep Me", "keep.ae"),
	}

	kept, dropped := providers.ApplyExcludes(leads, providers.ICPFilters{
		ExcludeDomains: []string{"https://www.acme.com", "rival.io"},
		ExcludeTerms:   []string{"  JOBS "},
	})
	assert.Equal(t, 4, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, "Keep Me", *kept[0].Name)
}

func TestApplyExcludes_CountryAllowList(t *testing.T) {
	lead := func(name string, country *string) domain.NormalizedLead {
		return domain.NormalizedLead{Name: providers.Str(name), Country: country}
	}
	leads := []domain.NormalizedLead{
		lead("Dubai Dental", providers.Str("AE")),
		lead("Riyadh Clinic", providers.Str("SA")),
		lead("London Smiles", providers.Str("GB")),
		lead("Unknown Origin", nil),
	}

	kept, dropped := providers.ApplyExcludes(leads, providers.ICPFilters{
		Countries: []string{"UAE", " ksa "},
	})
	assert.Equal(t, 1, dropped)
	require.Len(t, kept, 3)
	assert.Equal(t, "Dubai Dental", *kept[0].Name)
	assert.Equal(t, "Riyadh Clinic", *kept[1].Name)
	assert.Equal(t, "Unknown Origin", *kept[2].Name)
}

func TestApplyExcludes_NoFilters(t *testing.T) {
	leads := []domain.NormalizedLead{{Name: providers.Str("A")}}
	kept, dropped := providers.ApplyExcludes(leads, providers.ICPFilters{})
	assert.Zero(t, dropped)
	assert.Len(t, kept, 1)
}

func TestStrIntDeref(t *testing.T) {
	assert.Nil(t, providers.Str("  "))
	assert.Equal(t, "x", providers.Deref(providers.Str(" x ")))
	assert.Empty(t, providers.Deref(nil))
	assert.Nil(t, providers.Int(0))
	assert.Equal(t, 5, *providers.Int(5))
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, providers.Offset(providers.DiscoverRequest{}, 25))
	assert.Equal(t, 50, providers.Offset(providers.DiscoverRequest{Page: 3}, 25))
	assert.Equal(t, 40, providers.Offset(providers.DiscoverRequest{Page: 3, Cursor: "40"}, 25))
	assert.Equal(t, 0, providers.Offset(providers.DiscoverRequest{Cursor: "-5"}, 25))
}
