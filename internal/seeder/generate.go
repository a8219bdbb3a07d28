package seeder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramiqadoumi/leadflow/internal/canon"
	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/fingerprint"
)

const (
	placeholderCountry = "{country}"
	placeholderCity    = "{city}"
)

type taskParams struct {
	Template string `json:"template"`
}

// Generate expands cfg into candidate tasks for the bucket containing now:
// countries × cities × languages × task types × templates × pages. Templates
// without {city} are expanded once per country; templates with {city} are
// expanded per configured city and skipped for countries that have none.
// Candidates sharing (type, fingerprint) are collapsed to the first.
func Generate(cfg Config, now time.Time) ([]domain.SearchTask, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}
	bucket, err := fingerprint.TimeBucket(now, cfg.Cadence)
	if err != nil {
		return nil, &domain.ConfigError{Field: "cadence", Reason: err.Error()}
	}
	now = now.UTC()

	seen := make(map[string]struct{})
	var tasks []domain.SearchTask
	for _, country := range cfg.Countries {
		countryName := canon.CountryName(country)
		for _, tmpl := range cfg.QueryTemplates {
			cities := []*string{nil}
			if strings.Contains(tmpl, placeholderCity) {
				cities = cities[:0]
				for _, c := range cfg.Cities[country] {
					cities = append(cities, &c)
				}
			}
			params, err := json.Marshal(taskParams{Template: tmpl})
			if err != nil {
				return nil, fmt.Errorf("marshal task params: %w", err)
			}

			for _, city := range cities {
				query := render(tmpl, countryName, city)
				key := canon.NormalizeQuery(query)
				if key == "" {
					continue
				}
				for _, lang := range cfg.Languages {
					for _, tt := range cfg.TaskTypes {
						for page := 1; page <= cfg.MaxPages; page++ {
							fp := fingerprint.Compute(tt, country, lang, key, page, bucket)
							if _, dup := seen[string(tt)+"|"+fp]; dup {
								continue
							}
							seen[string(tt)+"|"+fp] = struct{}{}
							tasks = append(tasks, domain.SearchTask{
								ID:          uuid.NewString(),
								Type:        tt,
								Country:     country,
								City:        city,
								Language:    lang,
								Query:       strings.Join(strings.Fields(query), " "),
								QueryKey:    key,
								Fingerprint: fp,
								Params:      params,
								Page:        page,
								Bucket:      bucket,
								Status:      domain.StatusPending,
								NextRunAt:   now,
								CreatedAt:   now,
								UpdatedAt:   now,
							})
						}
					}
				}
			}
		}
	}
	return tasks, nil
}

func render(tmpl, countryName string, city *string) string {
	out := strings.ReplaceAll(tmpl, placeholderCountry, countryName)
	if city != nil {
		out = strings.ReplaceAll(out, placeholderCity, *city)
	}
	return out
}
