package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ramiqadoumi/leadflow/pkg/telemetry"
)

func TestCounters_Snapshot(t *testing.T) {
	c := telemetry.NewCounters()
	c.TasksGenerated.Add(12)
	c.TasksInserted.Add(10)
	c.TasksSkipped.Add(2)
	c.ProviderCalls.WithLabelValues("apollo", "enrich", "retryable", "rate_limited").Inc()

	snap := c.Snapshot()
	assert.Equal(t, 12.0, snap["seeder_tasks_generated_total"])
	assert.Equal(t, 10.0, snap["seeder_tasks_inserted_total"])
	assert.Equal(t, 2.0, snap["seeder_tasks_skipped_total"])
	assert.Equal(t, 1.0,
		snap["provider_calls_total{class=rate_limited,op=enrich,outcome=retryable,provider=apollo}"])
}

func TestCounters_AreIndependentPerInstance(t *testing.T) {
	a := telemetry.NewCounters()
	b := telemetry.NewCounters()
	a.TasksInserted.Inc()

	assert.Equal(t, 1.0, a.Snapshot()["seeder_tasks_inserted_total"])
	assert.Equal(t, 0.0, b.Snapshot()["seeder_tasks_inserted_total"])
}
