package outscraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/leadflow/internal/providers"
	"github.com/ramiqadoumi/leadflow/internal/providers/outscraper"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *outscraper.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return outscraper.New(providers.Settings{Enabled: true, APIKey: "ok", BaseURL: srv.URL})
}

func TestDiscoverLeads_MapsSearch(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/search-v3", r.URL.Path)
		assert.Equal(t, "ok", r.Header.Get("X-API-KEY"))
		q := r.URL.Query()
		assert.Equal(t, "dentists dubai", q.Get("query"))
		assert.Equal(t, "2", q.Get("limit"))
		assert.Equal(t, "AE", q.Get("region"))
		_, _ = w.Write([]byte(`{"status": "Success", "data": [[
			{
				"place_id": "pl-1", "name": "Acme Dental", "city": "Dubai", "country_code": "AE",
				"phone": "+971 4 123 4567", "site": "https://acme.ae/?utm=maps", "category": "Dentist",
				"socials": {"facebook": "https://facebook.com/acmedental", "instagram": "https://instagram.com/acme.smiles"}
			},
			{
				"google_id": "g-2", "name": "Pin Only Clinic", "phone": "n/a",
				"site": "https://maps.google.com/?cid=42",
				"socials": ["https://x.com/pinclinic", "https://linkedin.com/company/pin-clinic"]
			}
		]]}`))
	})

	page, ok := p.DiscoverLeads(context.Background(), providers.DiscoverRequest{
		Query: "dentists dubai", Country: "AE", Limit: 2,
	}).Value()
	require.True(t, ok)
	require.Len(t, page.Leads, 2)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "2", *page.NextCursor)

	acme := page.Leads[0]
	assert.Equal(t, "Acme Dental", *acme.CompanyName)
	assert.Equal(t, "+97141234567", *acme.Phone)
	assert.Equal(t, "acme.ae", *acme.Domain)
	assert.Equal(t, "Dentist", *acme.Industry)
	assert.Equal(t, "dubai", *acme.City)
	assert.Equal(t, "acmedental", *acme.Socials.Facebook)
	assert.Equal(t, "acme.smiles", *acme.Socials.Instagram)
	assert.Equal(t, "pl-1", acme.SourceID)

	pin := page.Leads[1]
	assert.Nil(t, pin.Website, "maps links are never a website")
	assert.Nil(t, pin.Domain)
	assert.Nil(t, pin.Phone)
	assert.Equal(t, "AE", *pin.Country)
	assert.Equal(t, "pinclinic", *pin.Socials.Twitter)
	assert.Equal(t, "pin-clinic", *pin.Socials.LinkedIn)
	assert.Equal(t, "g-2", pin.SourceID)
}

func TestDiscoverLeads_FlatDataAndMalformedSocials(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40", r.URL.Query().Get("skip"))
		_, _ = w.Write([]byte(`{"data": [{"place_id": "pl-9", "name": "Flat", "socials": 17}]}`))
	})

	page, ok := p.DiscoverLeads(context.Background(), providers.DiscoverRequest{Query: "x", Cursor: "40"}).Value()
	require.True(t, ok)
	require.Len(t, page.Leads, 1)
	assert.Equal(t, "Flat", *page.Leads[0].CompanyName)
	assert.Nil(t, page.NextCursor)
}

func TestEnrichLead_DomainContacts(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails-and-contacts", r.URL.Path)
		assert.Equal(t, "acme.kw", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"data": [{
			"query": "acme.kw",
			"emails": [{"value": "Sales@acme.kw"}],
			"phones": [{"value": "bad"}, {"value": "2222 3333"}],
			"socials": [{"url": "https://linkedin.com/company/acme-kw"}],
			"details": {"name": "Acme Kuwait", "country": "Kuwait", "employees_max": 30}
		}]}`))
	})

	payload, ok := p.EnrichLead(context.Background(), providers.EnrichRequest{Email: "ceo@acme.kw"}).Value()
	require.True(t, ok)
	assert.Equal(t, "ceo@acme.kw", *payload.Lead.Email)
	assert.Equal(t, "+96522223333", *payload.Lead.Phone)
	assert.Equal(t, "KW", *payload.Company.Country)
	assert.Equal(t, "acme-kw", *payload.Company.Socials.LinkedIn)
	assert.Equal(t, "Acme Kuwait", *payload.Lead.CompanyName)
	assert.Equal(t, 30, *payload.Company.EmployeeCount)
}

func TestEnrichLead_NoContacts(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [[]]}`))
	})
	res := p.EnrichLead(context.Background(), providers.EnrichRequest{Domain: "acme.kw"})
	require.True(t, res.IsTerminal())
	assert.Equal(t, providers.ClassNotFound, res.Err().Class)
}

func TestDiscoverLeads_Disabled(t *testing.T) {
	p := outscraper.New(providers.Settings{Enabled: false})
	page, ok := p.DiscoverLeads(context.Background(), providers.DiscoverRequest{Query: "x"}).Value()
	require.True(t, ok)
	assert.Equal(t, providers.SourceStub, page.Source)
}
