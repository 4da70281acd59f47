package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
)

const demoProjectsSchema = `
	CREATE TABLE IF NOT EXISTS demo_projects (
		id UUID PRIMARY KEY,
		project_id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS demo_projects_expires_at_idx ON demo_projects (expires_at);
`

// PostgresStore keeps tracking rows in the demo_projects table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the demo_projects table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, demoProjectsSchema); err != nil {
		return fmt.Errorf("failed to create demo_projects schema: %w", err)
	}
	return nil
}

// Insert stores a tracking row. Rows are written once; a duplicate project id
// is ignored.
func (s *PostgresStore) Insert(ctx context.Context, rec domain.TrackingRecord) error {
	query := `
		INSERT INTO demo_projects (id, project_id, kind, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, uuid.New().String(), rec.ProjectID, string(rec.Kind), rec.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert demo project: %w", err)
	}
	return nil
}

// ListExpired returns up to limit rows whose expiry is at or before now,
// oldest first.
func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.TrackingRecord, error) {
	query := `
		SELECT project_id, kind, expires_at
		FROM demo_projects
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired demo projects: %w", err)
	}
	defer rows.Close()

	var out []domain.TrackingRecord
	for rows.Next() {
		var (
			rec  domain.TrackingRecord
			kind string
		)
		if err := rows.Scan(&rec.ProjectID, &kind, &rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan demo project: %w", err)
		}
		rec.Kind = domain.SourceKind(kind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate demo projects: %w", err)
	}

	return out, nil
}

// Delete removes the tracking row for projectID. Missing rows are not an error.
func (s *PostgresStore) Delete(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM demo_projects WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete demo project: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
