package outscraper

import (
	"bytes"
	"encoding/json"

	"github.com/ramiqadoumi/leadflow/internal/providers"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// records flattens data, which arrives either as a list of records or as one
// list of records per query.
func (e envelope) records() []json.RawMessage {
	var top []json.RawMessage
	if err := json.Unmarshal(e.Data, &top); err != nil {
		return nil
	}
	var out []json.RawMessage
	for _, item := range top {
		if bytes.HasPrefix(bytes.TrimSpace(item), []byte("[")) {
			var inner []json.RawMessage
			if err := json.Unmarshal(item, &inner); err == nil {
				out = append(out, inner...)
			}
			continue
		}
		out = append(out, item)
	}
	return out
}

type place struct {
	PlaceID      string          `json:"place_id"`
	GoogleID     string          `json:"google_id"`
	Name         string          `json:"name"`
	FullAddress  string          `json:"full_address"`
	City         string          `json:"city"`
	CountryCode  string          `json:"country_code"`
	Phone        string          `json:"phone"`
	Site         string          `json:"site"`
	Category     string          `json:"category"`
	Type         string          `json:"type"`
	LocationLink string          `json:"location_link"`
	Socials      providers.Links `json:"socials"`
	Facebook     string          `json:"facebook"`
	Instagram    string          `json:"instagram"`
	Twitter      string          `json:"twitter"`
	LinkedIn     string          `json:"linkedin"`
	Email        string          `json:"email_1"`
}

type valueItem struct {
	Value string `json:"value"`
}

type contacts struct {
	Query   string          `json:"query"`
	Emails  []valueItem     `json:"emails"`
	Phones  []valueItem     `json:"phones"`
	Socials providers.Links `json:"socials"`
	Details struct {
		Name         string `json:"name"`
		Industry     string `json:"industry"`
		EmployeesMax int    `json:"employees_max"`
		Country      string `json:"country"`
	} `json:"details"`
}
