package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/providers"
	"github.com/ramiqadoumi/leadflow/internal/providers/apollo"
	"github.com/ramiqadoumi/leadflow/internal/providers/hunter"
	"github.com/ramiqadoumi/leadflow/internal/providers/outscraper"
	"github.com/ramiqadoumi/leadflow/internal/providers/serper"
)

// ProviderNames lists every adapter the worker can build.
var ProviderNames = []string{apollo.Name, hunter.Name, outscraper.Name, serper.Name}

// ProviderConfig is the providers.<name> block.
type ProviderConfig struct {
	Enabled     bool
	APIKey      string
	BaseURL     string
	MinInterval time.Duration
}

// Settings converts to the adapter settings type.
func (p ProviderConfig) Settings() providers.Settings {
	return providers.Settings{Enabled: p.Enabled, APIKey: p.APIKey, BaseURL: p.BaseURL}
}

// Config holds typed configuration for the worker service.
type Config struct {
	LogLevel     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers string
	EventsTopic  string
	MetricsAddr  string
	OTelEndpoint string
	SampleRatio  float64

	Concurrency    int
	PollInterval   time.Duration
	TaskTimeout    time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	StaleAfter     time.Duration
	PageSize       int

	TaskProviders map[string]string
	Enrichers     []string
	Providers     map[string]ProviderConfig
	ICP           providers.ICPFilters

	QuotaLimit         int
	QuotaWindow        time.Duration
	EnrichmentCacheTTL time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	cfg := Config{
		LogLevel:     v.GetString("log_level"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		RedisAddr:    v.GetString("redis_addr"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		EventsTopic:  v.GetString("events_topic"),
		MetricsAddr:  v.GetString("metrics_addr"),
		OTelEndpoint: v.GetString("otel_endpoint"),
		SampleRatio:  v.GetFloat64("trace_sample_ratio"),

		Concurrency:    v.GetInt("concurrency"),
		PollInterval:   v.GetDuration("poll_interval"),
		TaskTimeout:    v.GetDuration("task_timeout"),
		MaxAttempts:    v.GetInt("max_attempts"),
		RetryBaseDelay: v.GetDuration("retry_base_delay"),
		RetryMaxDelay:  v.GetDuration("retry_max_delay"),
		StaleAfter:     v.GetDuration("stale_after"),
		PageSize:       v.GetInt("page_size"),

		TaskProviders: v.GetStringMapString("task_providers"),
		Enrichers:     v.GetStringSlice("enrichers"),
		Providers:     make(map[string]ProviderConfig, len(ProviderNames)),
		ICP: providers.ICPFilters{
			Industries:     v.GetStringSlice("icp.industries"),
			Countries:      v.GetStringSlice("icp.countries"),
			ExcludeDomains: v.GetStringSlice("icp.exclude_domains"),
			ExcludeTerms:   v.GetStringSlice("icp.exclude_terms"),
			MinEmployees:   v.GetInt("icp.min_employees"),
			MaxEmployees:   v.GetInt("icp.max_employees"),
		},

		QuotaLimit:         v.GetInt("quota_limit"),
		QuotaWindow:        v.GetDuration("quota_window"),
		EnrichmentCacheTTL: v.GetDuration("enrichment_cache_ttl"),
	}
	for _, name := range ProviderNames {
		prefix := "providers." + name + "."
		cfg.Providers[name] = ProviderConfig{
			Enabled:     v.GetBool(prefix + "enabled"),
			APIKey:      v.GetString(prefix + "api_key"),
			BaseURL:     v.GetString(prefix + "base_url"),
			MinInterval: v.GetDuration(prefix + "min_interval"),
		}
	}
	return cfg
}

// Validate checks the configuration before any work starts.
func (c Config) Validate() error {
	switch {
	case c.PostgresDSN == "":
		return &domain.ConfigError{Field: "postgres_dsn", Reason: "required"}
	case c.Concurrency < 1:
		return &domain.ConfigError{Field: "concurrency", Reason: "must be at least 1"}
	case c.PollInterval <= 0:
		return &domain.ConfigError{Field: "poll_interval", Reason: "must be positive"}
	case c.TaskTimeout <= 0:
		return &domain.ConfigError{Field: "task_timeout", Reason: "must be positive"}
	case c.MaxAttempts < 1:
		return &domain.ConfigError{Field: "max_attempts", Reason: "must be at least 1"}
	case c.SampleRatio < 0 || c.SampleRatio > 1:
		return &domain.ConfigError{Field: "trace_sample_ratio", Reason: "must be between 0 and 1"}
	case c.RetryBaseDelay <= 0:
		return &domain.ConfigError{Field: "retry_base_delay", Reason: "must be positive"}
	case c.QuotaLimit < 0:
		return &domain.ConfigError{Field: "quota_limit", Reason: "must not be negative"}
	case c.QuotaLimit > 0 && c.QuotaWindow <= 0:
		return &domain.ConfigError{Field: "quota_window", Reason: "must be positive when quota_limit is set"}
	case c.QuotaLimit > 0 && c.RedisAddr == "":
		return &domain.ConfigError{Field: "redis_addr", Reason: "required when quota_limit is set"}
	case c.ICP.MaxEmployees > 0 && c.ICP.MinEmployees > c.ICP.MaxEmployees:
		return &domain.ConfigError{Field: "icp.min_employees", Reason: "exceeds icp.max_employees"}
	}

	if len(c.TaskProviders) == 0 {
		return &domain.ConfigError{Field: "task_providers", Reason: "at least one route is required"}
	}
	for tt, name := range c.TaskProviders {
		if _, ok := domain.ParseTaskType(tt); !ok {
			return &domain.ConfigError{Field: "task_providers", Reason: fmt.Sprintf("unknown task type %q", tt)}
		}
		if !slices.Contains(ProviderNames, name) {
			return &domain.ConfigError{Field: "task_providers", Reason: fmt.Sprintf("unknown provider %q", name)}
		}
	}
	for _, name := range c.Enrichers {
		if !slices.Contains(ProviderNames, name) {
			return &domain.ConfigError{Field: "enrichers", Reason: fmt.Sprintf("unknown provider %q", name)}
		}
	}
	return nil
}
