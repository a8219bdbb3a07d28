package hunter

import "encoding/json"

type domainSearchResponse struct {
	Data struct {
		Domain       string            `json:"domain"`
		Organization string            `json:"organization"`
		Industry     string            `json:"industry"`
		Headcount    string            `json:"headcount"`
		Country      string            `json:"country"`
		City         string            `json:"city"`
		LinkedIn     string            `json:"linkedin"`
		Twitter      string            `json:"twitter"`
		Facebook     string            `json:"facebook"`
		Instagram    string            `json:"instagram"`
		Emails       []json.RawMessage `json:"emails"`
	} `json:"data"`
	Meta struct {
		Results int `json:"results"`
		Limit   int `json:"limit"`
		Offset  int `json:"offset"`
	} `json:"meta"`
}

type email struct {
	Value       string `json:"value"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	LinkedIn    string `json:"linkedin"`
	Twitter     string `json:"twitter"`
}

type handle struct {
	Handle string `json:"handle"`
}

type geo struct {
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

type personRecord struct {
	ID   string `json:"id"`
	Name struct {
		FullName string `json:"fullName"`
	} `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Geo      geo    `json:"geo"`
	LinkedIn handle `json:"linkedin"`
	Twitter  handle `json:"twitter"`
	Facebook handle `json:"facebook"`
}

type companyRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Category struct {
		Industry string `json:"industry"`
	} `json:"category"`
	Metrics struct {
		Employees json.RawMessage `json:"employees"`
	} `json:"metrics"`
	Site struct {
		PhoneNumbers []string `json:"phoneNumbers"`
	} `json:"site"`
	Phone     string `json:"phone"`
	Geo       geo    `json:"geo"`
	LinkedIn  handle `json:"linkedin"`
	Twitter   handle `json:"twitter"`
	Facebook  handle `json:"facebook"`
	Instagram handle `json:"instagram"`
}

type combinedResponse struct {
	Data struct {
		Person  *personRecord  `json:"person"`
		Company *companyRecord `json:"company"`
	} `json:"data"`
}

type companyResponse struct {
	Data *companyRecord `json:"data"`
}
