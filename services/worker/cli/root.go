package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "leadflow-worker",
	Short:        "LeadFlow worker: claims search tasks and turns them into stored leads",
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/leadflow-worker/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./worker.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug | info | warn | error")
	bindFlag("log_level", rootCmd.PersistentFlags(), "log-level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newInitCmd("worker", defaultWorkerYAML))
	rootCmd.AddCommand(versionCmd)

	setDefaults(viper.GetViper())
}

// setDefaults covers keys that have no flag.
func setDefaults(v *viper.Viper) {
	v.SetDefault("events_topic", "leadflow.events")
	v.SetDefault("trace_sample_ratio", 1.0)
	v.SetDefault("retry_max_delay", time.Hour)
	v.SetDefault("stale_after", 10*time.Minute)
	v.SetDefault("page_size", 25)
	v.SetDefault("quota_window", time.Minute)
	v.SetDefault("enrichment_cache_ttl", 7*24*time.Hour)
	v.SetDefault("task_providers", map[string]string{
		"web-search":            "serper",
		"local-business-search": "apollo",
		"maps-search":           "outscraper",
	})
	v.SetDefault("enrichers", []string{"hunter", "apollo", "outscraper"})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.SetConfigName("worker")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(home + "/.leadflow")
		viper.AddConfigPath("/etc/leadflow")
	}

	// providers.apollo.api_key ← LEADFLOW_PROVIDERS_APOLLO_API_KEY
	viper.SetEnvPrefix("leadflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "error reading config file:", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintln(os.Stderr, "config:", viper.ConfigFileUsed())
	}
}

func buildLogger(level, service string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With(slog.String("service", service))
}

func bindFlag(viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := viper.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, viperKey, err))
	}
}
