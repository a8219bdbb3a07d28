// Package followup places follow-up actions at randomized future instants so
// a large cohort of leads never fires in one synchronized burst.
package followup

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ramiqadoumi/leadflow/internal/domain"
)

const (
	StandardDelay    = 72 * time.Hour
	OutOfOfficeDelay = 168 * time.Hour

	JitterMin = -12 * time.Hour
	JitterMax = 24 * time.Hour
)

// BaseDelay returns the un-jittered delay for kind.
func BaseDelay(kind domain.FollowUpKind) time.Duration {
	if kind == domain.FollowUpOutOfOffice {
		return OutOfOfficeDelay
	}
	return StandardDelay
}

// Scheduler computes jittered follow-up times. Safe for concurrent use.
type Scheduler struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// NewScheduler uses src for jitter. Pass a seeded source in tests.
func NewScheduler(src rand.Source, opts ...Option) *Scheduler {
	s := &Scheduler{rnd: rand.New(src), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns now + base(kind) + jitter.
func (s *Scheduler) Next(kind domain.FollowUpKind) time.Time {
	return s.NextFrom(s.now(), kind)
}

// NextFrom returns from + base(kind) + a jitter drawn uniformly from
// [JitterMin, JitterMax].
func (s *Scheduler) NextFrom(from time.Time, kind domain.FollowUpKind) time.Time {
	return from.Add(BaseDelay(kind) + s.jitter())
}

func (s *Scheduler) jitter() time.Duration {
	span := int64(JitterMax - JitterMin)
	s.mu.Lock()
	n := s.rnd.Int64N(span + 1)
	s.mu.Unlock()
	return JitterMin + time.Duration(n)
}
