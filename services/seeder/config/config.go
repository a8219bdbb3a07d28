package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	taskseeder "github.com/ramiqadoumi/leadflow/internal/seeder"
)

// Config holds typed configuration for the seeder service.
type Config struct {
	LogLevel     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers string
	EventsTopic  string
	MetricsAddr  string
	OTelEndpoint string
	SampleRatio  float64

	Schedule  string
	LeaderTTL time.Duration

	TemplatesFile string
	Seed          taskseeder.Config
}

// Load reads all values from the given viper instance. Templates from
// templates_file are appended to query_templates.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		LogLevel:     v.GetString("log_level"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		RedisAddr:    v.GetString("redis_addr"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		EventsTopic:  v.GetString("events_topic"),
		MetricsAddr:  v.GetString("metrics_addr"),
		OTelEndpoint: v.GetString("otel_endpoint"),
		SampleRatio:  v.GetFloat64("trace_sample_ratio"),

		Schedule:  v.GetString("seed_schedule"),
		LeaderTTL: v.GetDuration("leader_ttl"),

		TemplatesFile: v.GetString("templates_file"),
		Seed: taskseeder.Config{
			Countries:      v.GetStringSlice("countries"),
			Languages:      v.GetStringSlice("languages"),
			QueryTemplates: v.GetStringSlice("query_templates"),
			Cities:         v.GetStringMapStringSlice("cities"),
			MaxPages:       v.GetInt("max_pages"),
			Cadence:        domain.Cadence(v.GetString("cadence")),
			Profile:        v.GetString("seed_profile"),
			MaxTasks:       v.GetInt("max_tasks"),
		},
	}
	for _, tt := range v.GetStringSlice("task_types") {
		cfg.Seed.TaskTypes = append(cfg.Seed.TaskTypes, domain.TaskType(tt))
	}

	if cfg.TemplatesFile != "" {
		templates, err := taskseeder.LoadTemplates(cfg.TemplatesFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Seed.QueryTemplates = append(cfg.Seed.QueryTemplates, templates...)
	}
	return cfg, nil
}

// Validate checks the seed configuration and store settings.
func (c Config) Validate() error {
	if c.PostgresDSN == "" {
		return &domain.ConfigError{Field: "postgres_dsn", Reason: "required"}
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return &domain.ConfigError{Field: "trace_sample_ratio", Reason: "must be between 0 and 1"}
	}
	if _, err := c.Seed.Normalize(); err != nil {
		return err
	}
	if c.RedisAddr != "" && c.LeaderTTL <= 0 {
		return &domain.ConfigError{Field: "leader_ttl", Reason: fmt.Sprintf("must be positive, got %s", c.LeaderTTL)}
	}
	return nil
}
