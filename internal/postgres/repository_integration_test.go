//go:build integration

package postgres_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/postgres"
	"github.com/ramiqadoumi/leadflow/internal/seeder"
)

var testPostgresDSN string

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	pgCtr, err := tcPostgres.Run(ctx, "postgres:15-alpine",
		tcPostgres.WithDatabase("leadflow"),
		tcPostgres.WithUsername("leadflow"),
		tcPostgres.WithPassword("leadflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer pgCtr.Terminate(ctx) //nolint:errcheck

	dsn, err := pgCtr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("postgres connection string: %v", err)
	}
	testPostgresDSN = dsn

	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if _, err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	// Applying twice must be harmless.
	if _, err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("re-run migrations: %v", err)
	}

	return m.Run()
}

// newRepo creates a repository connected to the test container and
// truncates the tables on cleanup.
func newRepo(t *testing.T) postgres.Repository {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, testPostgresDSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(ctx, "TRUNCATE follow_ups, leads, search_tasks CASCADE") //nolint:errcheck
		pool.Close()
	})
	return postgres.NewRepository(pool)
}

func seedConfig() seeder.Config {
	return seeder.Config{
		Countries:      []string{"AE", "SA"},
		Languages:      []string{"en"},
		TaskTypes:      []domain.TaskType{domain.TaskWebSearch, domain.TaskMapsSearch},
		QueryTemplates: []string{"dentists in {country}"},
		MaxPages:       3,
		Cadence:        domain.CadenceWeekly,
		Profile:        "full",
	}
}

func TestPostgres_SeedTwiceIsIdempotent(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	s := seeder.New(seedConfig(), repo, seeder.WithClock(func() time.Time { return now }))

	first, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, first.Generated)
	assert.Equal(t, 12, first.Inserted)

	second, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, second.Generated)
	assert.Zero(t, second.Inserted)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, counts[domain.StatusPending])
}

func TestPostgres_ConcurrentSeedersConverge(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := seeder.New(seedConfig(), repo, seeder.WithClock(func() time.Time { return now })).Run(ctx)
			assert.NoError(t, err)
			mu.Lock()
			inserted += r.Inserted
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 12, inserted)
}

func TestPostgres_SmallProfileCapInsertsNothing(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	cfg := seedConfig()
	cfg.Profile = domain.ProfileSmall
	cfg.MaxTasks = 5

	_, err := seeder.New(cfg, repo).Run(ctx)
	require.Error(t, err)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestPostgres_ClaimLifecycle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tasks, err := seeder.Generate(seedConfig(), now)
	require.NoError(t, err)
	for i := range tasks {
		_, err := repo.InsertIfAbsent(ctx, &tasks[i])
		require.NoError(t, err)
	}

	claimed, err := repo.ClaimPending(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, domain.StatusRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	later := now.Add(time.Hour)
	require.NoError(t, repo.Reschedule(ctx, claimed.ID, later, "rate_limited"))
	got, err := repo.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "rate_limited", got.LastError)
	assert.WithinDuration(t, later, got.NextRunAt, time.Millisecond)

	require.NoError(t, repo.MarkFailed(ctx, claimed.ID, "unauthorized"))
	got, err = repo.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	var nf *domain.TaskNotFoundError
	assert.ErrorAs(t, repo.MarkDone(ctx, "00000000-0000-0000-0000-000000000000"), &nf)
}

func TestPostgres_ConcurrentClaimsNeverShareATask(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tasks, err := seeder.Generate(seedConfig(), now)
	require.NoError(t, err)
	for i := range tasks {
		_, err := repo.InsertIfAbsent(ctx, &tasks[i])
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := repo.ClaimPending(ctx, now.Add(time.Second))
				if !assert.NoError(t, err) || task == nil {
					return
				}
				mu.Lock()
				seen[task.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, len(tasks))
	for id, n := range seen {
		assert.Equal(t, 1, n, "task %s claimed %d times", id, n)
	}
}

func TestPostgres_DeferRefundsAttempt(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tasks, err := seeder.Generate(seedConfig(), now)
	require.NoError(t, err)
	_, err = repo.InsertIfAbsent(ctx, &tasks[0])
	require.NoError(t, err)

	claimed, err := repo.ClaimPending(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, repo.Defer(ctx, claimed.ID, now.Add(time.Minute), "quota"))

	got, err := repo.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Attempts)

	none, err := repo.ClaimPending(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, none, "deferred task is not due yet")
}

func TestPostgres_RequeueStale(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tasks, err := seeder.Generate(seedConfig(), now)
	require.NoError(t, err)
	_, err = repo.InsertIfAbsent(ctx, &tasks[0])
	require.NoError(t, err)
	_, err = repo.ClaimPending(ctx, now.Add(time.Second))
	require.NoError(t, err)

	n, err := repo.RequeueStale(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func str(s string) *string { return &s }

func TestPostgres_UpsertLeadMergesAndFollowUpOncePerKind(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	lead := &domain.NormalizedLead{
		Name: str("Acme"), Phone: str("+971501234567"), Source: "outscraper", SourceID: "pl-1",
		Raw: []byte(`{"place_id":"pl-1"}`),
	}
	id, created, err := repo.UpsertLead(ctx, "", lead)
	require.NoError(t, err)
	assert.True(t, created)

	again := &domain.NormalizedLead{Name: str("Other"), Email: str("hi@acme.ae"), Source: "outscraper", SourceID: "pl-1"}
	id2, created, err := repo.UpsertLead(ctx, "", again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, id2)

	f := &domain.FollowUp{LeadID: id, Kind: domain.FollowUpStandard, DueAt: time.Now().Add(72 * time.Hour)}
	ok, err := repo.InsertFollowUp(ctx, f)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.InsertFollowUp(ctx, &domain.FollowUp{LeadID: id, Kind: domain.FollowUpStandard, DueAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_RejectsNonE164Phone(t *testing.T) {
	repo := newRepo(t)
	_, _, err := repo.UpsertLead(context.Background(), "", &domain.NormalizedLead{
		Phone: str("0501234567"), Source: "test", SourceID: "x",
	})
	assert.Error(t, err)
}
