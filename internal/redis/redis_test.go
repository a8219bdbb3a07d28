package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/leadflow/internal/domain"
)

// ── Leader ────────────────────────────────────────────────────────────────────

func TestLeader_AcquireFreeLease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLeader(db, "seeder:leader", "inst-a", 30*time.Second)

	mock.ExpectSetNX("seeder:leader", "inst-a", 30*time.Second).SetVal(true)
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeader_RenewsOwnLease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLeader(db, "seeder:leader", "inst-a", 30*time.Second)

	mock.ExpectSetNX("seeder:leader", "inst-a", 30*time.Second).SetVal(false)
	mock.ExpectEvalSha(renewScript.Hash(), []string{"seeder:leader"}, "inst-a", int64(30000)).SetVal(int64(1))
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeader_LeaseHeldElsewhere(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLeader(db, "seeder:leader", "inst-b", 30*time.Second)

	mock.ExpectSetNX("seeder:leader", "inst-b", 30*time.Second).SetVal(false)
	mock.ExpectEvalSha(renewScript.Hash(), []string{"seeder:leader"}, "inst-b", int64(30000)).SetVal(int64(0))
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeader_SetNXError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLeader(db, "seeder:leader", "inst-a", 30*time.Second)

	mock.ExpectSetNX("seeder:leader", "inst-a", 30*time.Second).SetErr(errors.New("connection refused"))
	ok, err := l.Acquire(context.Background())
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}

func TestLeader_Release(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLeader(db, "seeder:leader", "inst-a", 30*time.Second)

	mock.ExpectEvalSha(releaseScript.Hash(), []string{"seeder:leader"}, "inst-a").SetVal(int64(1))
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ── Quota ─────────────────────────────────────────────────────────────────────

func newTestQuota(t *testing.T, limit int) (*slidingWindowQuota, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	q := NewQuota(db, limit, time.Minute).(*slidingWindowQuota)
	q.now = func() time.Time { return time.Unix(1000, 0) }
	q.member = func() string { return "m" }
	return q, mock
}

func expectQuota(mock redismock.ClientMock, limit string) *redismock.ExpectedCmd {
	return mock.ExpectEvalSha(quotaScript.Hash(), []string{"quota:apollo"},
		"940000000000", "1000000000000", limit, "1000000000000-m", "120000")
}

func TestQuota_AllowsWithinWindow(t *testing.T) {
	q, mock := newTestQuota(t, 5)
	expectQuota(mock, "5").SetVal(int64(1))

	ok, err := q.Allow(context.Background(), "apollo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuota_DeniesWhenWindowFull(t *testing.T) {
	q, mock := newTestQuota(t, 5)
	expectQuota(mock, "5").SetVal(int64(0))

	ok, err := q.Allow(context.Background(), "apollo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuota_SurfacesErrors(t *testing.T) {
	q, mock := newTestQuota(t, 5)
	expectQuota(mock, "5").SetErr(errors.New("READONLY"))

	_, err := q.Allow(context.Background(), "apollo")
	assert.ErrorContains(t, err, "apollo")
	assert.Equal(t, 5, q.Limit())
	assert.Equal(t, time.Minute, q.Window())
}

// ── Enrichment cache ──────────────────────────────────────────────────────────

func TestEnrichmentCache_RoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewEnrichmentCache(db, time.Hour)
	email := "ceo@acme.ae"
	payload := &domain.EnrichmentPayload{Lead: domain.NormalizedLead{Email: &email, Source: "hunter"}}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	mock.ExpectSet("enrich:hunter:ceo@acme.ae", data, time.Hour).SetVal("OK")
	require.NoError(t, cache.Set(context.Background(), "hunter", " CEO@acme.ae ", payload))

	mock.ExpectGet("enrich:hunter:ceo@acme.ae").SetVal(string(data))
	got, ok, err := cache.Get(context.Background(), "hunter", "ceo@acme.ae")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ceo@acme.ae", *got.Lead.Email)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrichmentCache_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewEnrichmentCache(db, 0)

	mock.ExpectGet("enrich:apollo:acme.ae").RedisNil()
	got, ok, err := cache.Get(context.Background(), "apollo", "acme.ae")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEnrichmentCache_CorruptEntry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewEnrichmentCache(db, 0)

	mock.ExpectGet("enrich:apollo:acme.ae").SetVal("{not json")
	_, ok, err := cache.Get(context.Background(), "apollo", "acme.ae")
	assert.Error(t, err)
	assert.False(t, ok)
}
