package domain

import "encoding/json"

// Socials holds handles extracted from social profile URLs.
type Socials struct {
	LinkedIn  *string `json:"linkedin,omitempty"`
	Twitter   *string `json:"twitter,omitempty"`
	Facebook  *string `json:"facebook,omitempty"`
	Instagram *string `json:"instagram,omitempty"`
}

// NormalizedCompany is the provider-agnostic shape of an organisation.
type NormalizedCompany struct {
	Name          *string `json:"name,omitempty"`
	Domain        *string `json:"domain,omitempty"`
	Website       *string `json:"website,omitempty"`
	Industry      *string `json:"industry,omitempty"`
	EmployeeCount *int    `json:"employee_count,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Country       *string `json:"country,omitempty"`
	City          *string `json:"city,omitempty"`
	Socials       Socials `json:"socials"`
}

// NormalizedLead is the provider-agnostic shape every adapter emits.
// Phone is either valid E.164 or nil.
type NormalizedLead struct {
	Name          *string         `json:"name,omitempty"`
	Email         *string         `json:"email,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Domain        *string         `json:"domain,omitempty"`
	Website       *string         `json:"website,omitempty"`
	CompanyName   *string         `json:"company_name,omitempty"`
	Industry      *string         `json:"industry,omitempty"`
	EmployeeCount *int            `json:"employee_count,omitempty"`
	Country       *string         `json:"country,omitempty"`
	City          *string         `json:"city,omitempty"`
	Socials       Socials         `json:"socials"`
	Source        string          `json:"source"`
	SourceID      string          `json:"source_id"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// EnrichmentPayload is what an enrichment call adds to a lead.
type EnrichmentPayload struct {
	Lead    NormalizedLead    `json:"lead"`
	Company NormalizedCompany `json:"company"`
}

// Merge fills nil fields of l from other. Provenance is kept from l.
func (l *NormalizedLead) Merge(other NormalizedLead) {
	fill := func(dst **string, src *string) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	fill(&l.Name, other.Name)
	fill(&l.Email, other.Email)
	fill(&l.Phone, other.Phone)
	fill(&l.Domain, other.Domain)
	fill(&l.Website, other.Website)
	fill(&l.CompanyName, other.CompanyName)
	fill(&l.Industry, other.Industry)
	fill(&l.Country, other.Country)
	fill(&l.City, other.City)
	fill(&l.Socials.LinkedIn, other.Socials.LinkedIn)
	fill(&l.Socials.Twitter, other.Socials.Twitter)
	fill(&l.Socials.Facebook, other.Socials.Facebook)
	fill(&l.Socials.Instagram, other.Socials.Instagram)
	if l.EmployeeCount == nil && other.EmployeeCount != nil {
		l.EmployeeCount = other.EmployeeCount
	}
}

// ApplyCompany copies company fields onto nil lead fields.
func (l *NormalizedLead) ApplyCompany(c NormalizedCompany) {
	l.Merge(NormalizedLead{
		CompanyName:   c.Name,
		Domain:        c.Domain,
		Website:       c.Website,
		Industry:      c.Industry,
		EmployeeCount: c.EmployeeCount,
		Country:       c.Country,
		City:          c.City,
		Socials:       c.Socials,
	})
}

// NeedsEnrichment reports whether the lead lacks a contact channel.
func (l *NormalizedLead) NeedsEnrichment() bool {
	return l.Email == nil || l.Phone == nil
}
