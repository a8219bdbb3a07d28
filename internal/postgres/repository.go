// Package postgres is the relational store for search tasks, leads and
// follow-ups.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ramiqadoumi/leadflow/internal/domain"
	"github.com/ramiqadoumi/leadflow/internal/postgres/migrations"
)

// TaskRepository is the task half of the store used by the seeder and worker.
type TaskRepository interface {
	// InsertIfAbsent returns 1 when the task was inserted and 0 when a task
	// with the same (type, fingerprint) already existed.
	InsertIfAbsent(ctx context.Context, task *domain.SearchTask) (int64, error)
	// ClaimPending marks the oldest due pending task running, increments its
	// attempts and returns it. It returns nil, nil when nothing is due.
	ClaimPending(ctx context.Context, now time.Time) (*domain.SearchTask, error)
	MarkDone(ctx context.Context, id string) error
	// Reschedule puts a task back to pending at the given time.
	Reschedule(ctx context.Context, id string, at time.Time, reason string) error
	// Defer is Reschedule without spending the claimed attempt.
	Defer(ctx context.Context, id string, at time.Time, reason string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	// RequeueStale returns running tasks untouched since before cutoff to pending.
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.SearchTask, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

// LeadRepository stores discovered leads and their follow-ups.
type LeadRepository interface {
	// UpsertLead merges lead into the row keyed by (source, source_id), keeping
	// existing non-null values, and reports whether the row was new.
	UpsertLead(ctx context.Context, taskID string, lead *domain.NormalizedLead) (id string, created bool, err error)
	// InsertFollowUp stores f unless the lead already has one of that kind.
	InsertFollowUp(ctx context.Context, f *domain.FollowUp) (bool, error)
}

// Repository is the full store.
type Repository interface {
	TaskRepository
	LeadRepository
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a pgxpool with the Repository interface.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Migrate applies every embedded migration in file-name order and returns
// the names applied. Migrations are written to be re-runnable.
func Migrate(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)
	for _, f := range files {
		sql, err := migrations.FS.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", f, err)
		}
	}
	return files, nil
}

const taskColumns = `id, task_type, country, city, language, query, query_key, fingerprint,
	params, page, bucket, status, attempts, next_run_at, last_error, created_at, updated_at`

func (r *repository) InsertIfAbsent(ctx context.Context, t *domain.SearchTask) (int64, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	if t.NextRunAt.IsZero() {
		t.NextRunAt = t.CreatedAt
	}
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	params := t.Params
	if len(params) == 0 {
		params = []byte(`{}`)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO search_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (task_type, fingerprint) DO NOTHING
	`,
		t.ID, string(t.Type), t.Country, t.City, t.Language, t.Query, t.QueryKey, t.Fingerprint,
		params, t.Page, t.Bucket, string(t.Status), t.Attempts, t.NextRunAt, t.LastError,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert task %s: %w", t.Fingerprint, err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) ClaimPending(ctx context.Context, now time.Time) (*domain.SearchTask, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE search_tasks
		SET status = 'running', attempts = attempts + 1, updated_at = $1
		WHERE id = (
			SELECT id FROM search_tasks
			WHERE status = 'pending' AND next_run_at <= $1
			ORDER BY next_run_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns, now.UTC())

	task, err := scanTask(row)
	if err != nil {
		var nf *domain.TaskNotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim pending task: %w", err)
	}
	return task, nil
}

func (r *repository) MarkDone(ctx context.Context, id string) error {
	return r.transition(ctx, id, `
		UPDATE search_tasks SET status = 'done', last_error = '', updated_at = $2
		WHERE id = $1`, time.Now().UTC())
}

func (r *repository) Reschedule(ctx context.Context, id string, at time.Time, reason string) error {
	return r.transition(ctx, id, `
		UPDATE search_tasks SET status = 'pending', next_run_at = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1`, at.UTC(), reason)
}

func (r *repository) Defer(ctx context.Context, id string, at time.Time, reason string) error {
	return r.transition(ctx, id, `
		UPDATE search_tasks
		SET status = 'pending', next_run_at = $2, last_error = $3,
		    attempts = GREATEST(attempts - 1, 0), updated_at = NOW()
		WHERE id = $1`, at.UTC(), reason)
}

func (r *repository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.transition(ctx, id, `
		UPDATE search_tasks SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1`, reason)
}

func (r *repository) transition(ctx context.Context, id, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.TaskNotFoundError{TaskID: id}
	}
	return nil
}

func (r *repository) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE search_tasks
		SET status = 'pending', next_run_at = NOW(), last_error = 'requeued after stale claim', updated_at = NOW()
		WHERE status = 'running' AND updated_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("requeue stale tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*domain.SearchTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM search_tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		var nf *domain.TaskNotFoundError
		if errors.As(err, &nf) {
			return nil, &domain.TaskNotFoundError{TaskID: id}
		}
		return nil, err
	}
	return task, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM search_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

// scanTask reads a task row from any pgx row type.
func scanTask(row interface {
	Scan(...any) error
}) (*domain.SearchTask, error) {
	var t domain.SearchTask
	var taskType, status string
	err := row.Scan(
		&t.ID, &taskType, &t.Country, &t.City, &t.Language, &t.Query, &t.QueryKey, &t.Fingerprint,
		&t.Params, &t.Page, &t.Bucket, &status, &t.Attempts, &t.NextRunAt, &t.LastError,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.TaskNotFoundError{TaskID: "unknown"}
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Type = domain.TaskType(taskType)
	t.Status = domain.Status(status)
	return &t, nil
}

// ─── Leads ────────────────────────────────────────────────────────────────────

func (r *repository) UpsertLead(ctx context.Context, taskID string, lead *domain.NormalizedLead) (string, bool, error) {
	key := SourceKey(lead)
	if key == "" {
		return "", false, &domain.MissingIdentityError{Source: lead.Source}
	}
	var task *string
	if taskID != "" {
		task = &taskID
	}
	var raw []byte
	if len(lead.Raw) > 0 {
		raw = lead.Raw
	}

	var id string
	var created bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, source, source_id, task_id, name, email, phone, domain, website, company_name,
			industry, employee_count, country, city, linkedin, twitter, facebook, instagram, raw
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (source, source_id) DO UPDATE SET
			name           = COALESCE(leads.name, EXCLUDED.name),
			email          = COALESCE(leads.email, EXCLUDED.email),
			phone          = COALESCE(leads.phone, EXCLUDED.phone),
			domain         = COALESCE(leads.domain, EXCLUDED.domain),
			website        = COALESCE(leads.website, EXCLUDED.website),
			company_name   = COALESCE(leads.company_name, EXCLUDED.company_name),
			industry       = COALESCE(leads.industry, EXCLUDED.industry),
			employee_count = COALESCE(leads.employee_count, EXCLUDED.employee_count),
			country        = COALESCE(leads.country, EXCLUDED.country),
			city           = COALESCE(leads.city, EXCLUDED.city),
			linkedin       = COALESCE(leads.linkedin, EXCLUDED.linkedin),
			twitter        = COALESCE(leads.twitter, EXCLUDED.twitter),
			facebook       = COALESCE(leads.facebook, EXCLUDED.facebook),
			instagram      = COALESCE(leads.instagram, EXCLUDED.instagram),
			raw            = COALESCE(EXCLUDED.raw, leads.raw),
			updated_at     = NOW()
		RETURNING id, (xmax = 0) AS created
	`,
		uuid.NewString(), lead.Source, key, task, lead.Name, lead.Email, lead.Phone, lead.Domain,
		lead.Website, lead.CompanyName, lead.Industry, lead.EmployeeCount, lead.Country, lead.City,
		lead.Socials.LinkedIn, lead.Socials.Twitter, lead.Socials.Facebook, lead.Socials.Instagram, raw,
	).Scan(&id, &created)
	if err != nil {
		return "", false, fmt.Errorf("upsert lead %s/%s: %w", lead.Source, key, err)
	}
	return id, created, nil
}

// SourceKey is the provider record id, or the best natural key when the
// provider supplied none.
func SourceKey(lead *domain.NormalizedLead) string {
	if k := strings.TrimSpace(lead.SourceID); k != "" {
		return k
	}
	for _, f := range []*string{lead.Email, lead.Domain, lead.Phone, lead.Website} {
		if f != nil && *f != "" {
			return strings.ToLower(*f)
		}
	}
	if lead.Name != nil && lead.CompanyName != nil {
		return strings.ToLower(*lead.Name + "@" + *lead.CompanyName)
	}
	return ""
}

func (r *repository) InsertFollowUp(ctx context.Context, f *domain.FollowUp) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = domain.StatusPending
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO follow_ups (id, lead_id, kind, due_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lead_id, kind) DO NOTHING
	`, f.ID, f.LeadID, string(f.Kind), f.DueAt.UTC(), string(f.Status), f.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert follow-up for lead %s: %w", f.LeadID, err)
	}
	return tag.RowsAffected() == 1, nil
}
