package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/leadflow/internal/events"
)

// ── mocks ─────────────────────────────────────────────────────────────────────

type mockProducer struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	topic     string
	key       string
	value     []byte
}

func (m *mockProducer) Publish(_ context.Context, topic, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failFirst {
		return errors.New("broker unavailable")
	}
	m.topic, m.key, m.value = topic, key, value
	return nil
}

func (m *mockProducer) Close() error { return nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func sample() events.Event {
	return events.Event{
		Name:      events.SeedCompleted,
		Payload:   map[string]any{"generated": 12, "inserted": 10},
		Counters:  map[string]float64{"seeder_tasks_inserted_total": 10},
		Timestamp: time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC),
	}
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestKafkaEmitter_PublishesJSON(t *testing.T) {
	p := &mockProducer{}
	em := events.NewKafkaEmitter(p, "", discard())

	require.NoError(t, em.Emit(context.Background(), sample()))
	assert.Equal(t, events.DefaultTopic, p.topic)
	assert.Equal(t, events.SeedCompleted, p.key)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(p.value, &decoded))
	assert.Equal(t, "seed.completed", decoded["event"])
	assert.Equal(t, float64(10), decoded["payload"].(map[string]any)["inserted"])
	assert.Equal(t, float64(10), decoded["counters"].(map[string]any)["seeder_tasks_inserted_total"])
}

func TestKafkaEmitter_RetriesTransientFailures(t *testing.T) {
	p := &mockProducer{failFirst: 2}
	em := events.NewKafkaEmitter(p, "custom", discard())

	require.NoError(t, em.Emit(context.Background(), sample()))
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, "custom", p.topic)
}

func TestKafkaEmitter_GivesUp(t *testing.T) {
	p := &mockProducer{failFirst: 10}
	em := events.NewKafkaEmitter(p, "custom", discard())

	err := em.Emit(context.Background(), sample())
	require.Error(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestLogEmitter_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	em := events.NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, em.Emit(context.Background(), sample()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "seed.completed", line["event"])
	assert.NotNil(t, line["counters"])
}

func TestMulti_ReturnsFirstErrorButDeliversToAll(t *testing.T) {
	ok := &mockProducer{}
	failing := &mockProducer{failFirst: 10}
	em := events.Multi(
		events.NewKafkaEmitter(failing, "a", discard()),
		events.NewKafkaEmitter(ok, "b", discard()),
	)

	err := em.Emit(context.Background(), sample())
	require.Error(t, err)
	assert.Equal(t, "b", ok.topic)
}
