package cli

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/providers/hunter"
	"github.com/ramiqadoumi/leadflow/internal/providers/outscraper"
	"github.com/ramiqadoumi/leadflow/internal/providers/serper"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
	"github.com/ramiqadoumi/leadflow/services/worker/config"
)

func TestDefaultYAML_LoadsAndValidates(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(defaultWorkerYAML)))

	cfg := config.Load(v)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []string{"hunter", "apollo", "outscraper"}, cfg.Enrichers)
}

func TestBuildRegistry_RoutesAndEnrichers(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := config.Load(v)

	reg := buildRegistry(cfg, telemetry.NewCounters())

	p, err := reg.ForTask(domain.TaskWebSearch)
	require.NoError(t, err)
	assert.Equal(t, serper.Name, p.Name())
	p, err = reg.ForTask(domain.TaskMapsSearch)
	require.NoError(t, err)
	assert.Equal(t, outscraper.Name, p.Name())

	enrichers := reg.Enrichers()
	require.Len(t, enrichers, 3)
	assert.Equal(t, hunter.Name, enrichers[0].Name())
}
