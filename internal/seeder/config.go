package seeder

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ramiqadoumi/leadflow/internal/canon"
	"github.com/ramiqadoumi/leadflow/internal/domain"
)

// Config enumerates what a seed run expands.
type Config struct {
	Countries      []string
	Languages      []string
	TaskTypes      []domain.TaskType
	QueryTemplates []string
	// Cities lists cities per country; only templates with a {city}
	// placeholder are expanded over them.
	Cities   map[string][]string
	MaxPages int
	Cadence  domain.Cadence
	Profile  string
	// MaxTasks caps the candidate count. Enforced only for ProfileSmall.
	MaxTasks int
}

// Normalize validates c and returns a copy with canonical, de-duplicated
// countries, languages, templates and cities. Validation failures are
// *domain.ConfigError.
func (c Config) Normalize() (Config, error) {
	out := Config{
		MaxPages: c.MaxPages,
		Cadence:  c.Cadence,
		Profile:  strings.ToLower(strings.TrimSpace(c.Profile)),
		MaxTasks: c.MaxTasks,
		Cities:   make(map[string][]string),
	}

	if len(c.Countries) == 0 {
		return Config{}, &domain.ConfigError{Field: "countries", Reason: "at least one country is required"}
	}
	for _, raw := range c.Countries {
		code, ok := canon.NormalizeCountry(raw)
		if !ok {
			return Config{}, &domain.ConfigError{Field: "countries", Reason: fmt.Sprintf("unsupported country %q", raw)}
		}
		out.Countries = appendUnique(out.Countries, code)
	}

	if len(c.Languages) == 0 {
		return Config{}, &domain.ConfigError{Field: "languages", Reason: "at least one language is required"}
	}
	for _, raw := range c.Languages {
		lang := strings.ToLower(strings.TrimSpace(raw))
		if !canon.IsSupportedLanguage(lang) {
			return Config{}, &domain.ConfigError{Field: "languages", Reason: fmt.Sprintf("unsupported language %q", raw)}
		}
		out.Languages = appendUnique(out.Languages, lang)
	}

	if len(c.TaskTypes) == 0 {
		return Config{}, &domain.ConfigError{Field: "task_types", Reason: "at least one task type is required"}
	}
	for _, tt := range c.TaskTypes {
		parsed, ok := domain.ParseTaskType(strings.TrimSpace(string(tt)))
		if !ok {
			return Config{}, &domain.ConfigError{Field: "task_types", Reason: fmt.Sprintf("unsupported task type %q", tt)}
		}
		out.TaskTypes = appendUnique(out.TaskTypes, parsed)
	}

	for _, tmpl := range c.QueryTemplates {
		if t := strings.TrimSpace(tmpl); t != "" {
			out.QueryTemplates = appendUnique(out.QueryTemplates, t)
		}
	}
	if len(out.QueryTemplates) == 0 {
		return Config{}, &domain.ConfigError{Field: "query_templates", Reason: "at least one query template is required"}
	}

	for rawCountry, cities := range c.Cities {
		code, ok := canon.NormalizeCountry(rawCountry)
		if !ok {
			return Config{}, &domain.ConfigError{Field: "cities", Reason: fmt.Sprintf("unsupported country %q", rawCountry)}
		}
		for _, city := range cities {
			if nc := canon.NormalizeCity(city); nc != nil {
				out.Cities[code] = appendUnique(out.Cities[code], *nc)
			}
		}
	}

	if out.MaxPages <= 0 {
		return Config{}, &domain.ConfigError{Field: "max_pages", Reason: "must be a positive integer"}
	}
	if out.Cadence != domain.CadenceDaily && out.Cadence != domain.CadenceWeekly {
		return Config{}, &domain.ConfigError{Field: "cadence", Reason: fmt.Sprintf("must be daily or weekly, got %q", c.Cadence)}
	}
	if out.Profile == domain.ProfileSmall && out.MaxTasks <= 0 {
		return Config{}, &domain.ConfigError{Field: "max_tasks", Reason: "must be a positive integer for the small profile"}
	}
	return out, nil
}

func appendUnique[T comparable](s []T, v T) []T {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}

type templatesFile struct {
	Templates []string `yaml:"templates"`
}

// LoadTemplates reads query templates from a YAML file of the form:
//
//	templates:
//	  - "dentists in {city}"
//	  - "law firms {country}"
func LoadTemplates(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	var f templatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &domain.ConfigError{Field: "templates_file", Reason: err.Error()}
	}
	return f.Templates, nil
}
