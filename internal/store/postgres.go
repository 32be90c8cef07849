package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps jobs in the repair_jobs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema files in name order. Every statement is
// idempotent, so it runs on each start.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		slog.Debug("migration applied", "file", name)
	}
	return nil
}

const jobColumns = `id, session_id, image_id, regions, instruction, prompt, model, status,
	result_id, result_url, model_text, error_kind, error, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, job *Job) error {
	regions, err := json.Marshal(job.Regions)
	if err != nil {
		return fmt.Errorf("marshal regions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO repair_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, job.SessionID, job.ImageID, regions, job.Instruction, job.Prompt, job.Model,
		string(job.Status), job.ResultID, job.ResultURL, job.ModelText, job.ErrorKind, job.Error,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, job *Job) error {
	tag, err := s.pool.Exec(ctx, `UPDATE repair_jobs SET
		status = $2, model = $3, result_id = $4, result_url = $5, model_text = $6,
		error_kind = $7, error = $8, updated_at = $9
		WHERE id = $1`,
		job.ID, string(job.Status), job.Model, job.ResultID, job.ResultURL, job.ModelText,
		job.ErrorKind, job.Error, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM repair_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM repair_jobs
		WHERE session_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job     Job
		regions []byte
		status  string
	)
	err := row.Scan(&job.ID, &job.SessionID, &job.ImageID, &regions, &job.Instruction, &job.Prompt,
		&job.Model, &status, &job.ResultID, &job.ResultURL, &job.ModelText, &job.ErrorKind,
		&job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	if err := json.Unmarshal(regions, &job.Regions); err != nil {
		return nil, fmt.Errorf("unmarshal regions: %w", err)
	}
	return &job, nil
}
