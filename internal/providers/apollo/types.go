package apollo

import "encoding/json"

type searchRequest struct {
	Keywords        string   `json:"q_keywords,omitempty"`
	Page            int      `json:"page"`
	PerPage         int      `json:"per_page"`
	PersonLocations []string `json:"person_locations,omitempty"`
	OrgLocations    []string `json:"organization_locations,omitempty"`
	OrgKeywordTags  []string `json:"q_organization_keyword_tags,omitempty"`
	EmployeeRanges  []string `json:"organization_num_employees_ranges,omitempty"`
}

type searchResponse struct {
	People     []json.RawMessage `json:"people"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type matchRequest struct {
	Email  string `json:"email,omitempty"`
	Domain string `json:"domain,omitempty"`
	Name   string `json:"name,omitempty"`
}

type matchResponse struct {
	Person json.RawMessage `json:"person"`
}

type phoneNumber struct {
	RawNumber       string `json:"raw_number"`
	SanitizedNumber string `json:"sanitized_number"`
}

type organization struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	WebsiteURL            string `json:"website_url"`
	PrimaryDomain         string `json:"primary_domain"`
	Industry              string `json:"industry"`
	EstimatedNumEmployees int    `json:"estimated_num_employees"`
	LinkedInURL           string `json:"linkedin_url"`
	TwitterURL            string `json:"twitter_url"`
	FacebookURL           string `json:"facebook_url"`
	Country               string `json:"country"`
	City                  string `json:"city"`
	Phone                 string `json:"phone"`
	PrimaryPhone          struct {
		Number string `json:"number"`
	} `json:"primary_phone"`
}

type person struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Email        string        `json:"email"`
	LinkedInURL  string        `json:"linkedin_url"`
	TwitterURL   string        `json:"twitter_url"`
	FacebookURL  string        `json:"facebook_url"`
	City         string        `json:"city"`
	Country      string        `json:"country"`
	PhoneNumbers []phoneNumber `json:"phone_numbers"`
	Organization *organization `json:"organization"`
}
