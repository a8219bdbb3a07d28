package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	taskseeder "github.com/ramiqadoumi/leadflow/internal/seeder"
	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

func TestInitCmd_WritesParseableDefault(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "seeder.yaml")
	cfgFile = dest
	t.Cleanup(func() { cfgFile = "" })

	cmd := newInitCmd("seeder", defaultSeederYAML)
	require.NoError(t, cmd.RunE(cmd, nil))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "small", parsed["seed_profile"])

	err = cmd.RunE(cmd, nil)
	require.Error(t, err, "second init without --force must not overwrite")
	assert.Contains(t, err.Error(), "already exists")
}

func TestPrintStats(t *testing.T) {
	counters := telemetry.NewCounters()
	counters.TasksGenerated.Add(12)
	counters.TasksInserted.Add(9)
	counters.TasksSkipped.Add(3)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	printStats(cmd, taskseeder.Report{Generated: 12, Inserted: 9, Skipped: 3, Bucket: "2026-W10"}, counters)

	out := buf.String()
	assert.Contains(t, out, "bucket:    2026-W10")
	assert.Contains(t, out, "inserted:  9")
	assert.Contains(t, out, "seeder_tasks_generated_total = 12")
	assert.NotContains(t, out, "worker_", "only seeder counters are printed")
}
