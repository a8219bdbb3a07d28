// Package events publishes the structured run events consumed by the
// observability stack: an event name, its payload and a counter snapshot.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ramiqadoumi/leadflow/internal/kafka"
	"github.com/ramiqadoumi/leadflow/pkg/retry"
)

const (
	SeedCompleted = "seed.completed"
	SeedFailed    = "seed.failed"
	TaskCompleted = "task.completed"
	TaskFailed    = "task.failed"
)

// DefaultTopic is the Kafka topic events go to unless configured otherwise.
const DefaultTopic = "leadflow.events"

// Event is one outbound record.
type Event struct {
	Name      string             `json:"event"`
	Payload   map[string]any     `json:"payload"`
	Counters  map[string]float64 `json:"counters"`
	Timestamp time.Time          `json:"timestamp"`
}

// Emitter delivers events. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// ─── Log ──────────────────────────────────────────────────────────────────────

type logEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter writes each event as one structured log line.
func NewLogEmitter(logger *slog.Logger) Emitter {
	return &logEmitter{logger: logger}
}

func (l *logEmitter) Emit(ctx context.Context, e Event) error {
	l.logger.InfoContext(ctx, "event",
		slog.String("event", e.Name),
		slog.Any("payload", e.Payload),
		slog.Any("counters", e.Counters),
		slog.Time("timestamp", e.Timestamp),
	)
	return nil
}

// ─── Kafka ────────────────────────────────────────────────────────────────────

type kafkaEmitter struct {
	producer kafka.Producer
	topic    string
	retry    retry.Config
	logger   *slog.Logger
}

// NewKafkaEmitter publishes events to topic, keyed by event name. Publishing
// is retried with quadratic backoff.
func NewKafkaEmitter(producer kafka.Producer, topic string, logger *slog.Logger) Emitter {
	if topic == "" {
		topic = DefaultTopic
	}
	k := &kafkaEmitter{producer: producer, topic: topic, logger: logger}
	k.retry = retry.Config{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		OnRetry: func(attempt int, err error) {
			k.logger.Warn("event publish failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}
	return k
}

func (k *kafkaEmitter) Emit(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Name, err)
	}
	return retry.Do(ctx, k.retry, func() error {
		return k.producer.Publish(ctx, k.topic, e.Name, value)
	})
}

// ─── Fan-out ──────────────────────────────────────────────────────────────────

type multi []Emitter

// Multi sends every event to each emitter and returns the first error.
func Multi(emitters ...Emitter) Emitter {
	return multi(emitters)
}

func (m multi) Emit(ctx context.Context, e Event) error {
	var first error
	for _, em := range m {
		if err := em.Emit(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
