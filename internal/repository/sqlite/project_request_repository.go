package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
)

const createProjectRequestsTable = `
CREATE TABLE IF NOT EXISTS project_requests (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	project_title TEXT NOT NULL,
	project_description TEXT NOT NULL,
	budget REAL NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_project_requests_user_id ON project_requests(user_id, created_at);
`

const selectProjectRequest = `
SELECT id, user_id, name, email, project_title, project_description, budget, status, created_at
FROM project_requests`

type ProjectRequestRepository struct {
	db *sql.DB
}

func NewProjectRequestRepository(db *sql.DB) repository.ProjectRequestRepository {
	return &ProjectRequestRepository{db: db}
}

func (r *ProjectRequestRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createProjectRequestsTable); err != nil {
		return fmt.Errorf("create project_requests table: %w", err)
	}
	return nil
}

func (r *ProjectRequestRepository) Create(ctx context.Context, req *domain.ProjectRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.Status == "" {
		req.Status = domain.ProjectStatusPending
	}

	var budget sql.NullFloat64
	if req.Budget != nil {
		budget = sql.NullFloat64{Float64: *req.Budget, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO project_requests (id, user_id, name, email, project_title, project_description, budget, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.UserID,
		req.Name,
		req.Email,
		req.Title,
		req.Description,
		budget,
		string(req.Status),
		req.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert project request: %w", err)
	}
	return nil
}

func (r *ProjectRequestRepository) Get(ctx context.Context, id string) (*domain.ProjectRequest, error) {
	row := r.db.QueryRowContext(ctx, selectProjectRequest+`
WHERE id = ?`, id)
	return scanProjectRequest(row)
}

func (r *ProjectRequestRepository) ListByUser(ctx context.Context, userID string) ([]domain.ProjectRequest, error) {
	return r.query(ctx, selectProjectRequest+`
WHERE user_id = ?
ORDER BY created_at DESC, rowid DESC`, userID)
}

func (r *ProjectRequestRepository) List(ctx context.Context) ([]domain.ProjectRequest, error) {
	return r.query(ctx, selectProjectRequest+`
ORDER BY created_at DESC, rowid DESC`)
}

func (r *ProjectRequestRepository) UpdateStatus(ctx context.Context, id string, status domain.ProjectStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE project_requests
SET status = ?
WHERE id = ?`,
		string(status),
		id,
	)
	if err != nil {
		return fmt.Errorf("update project request status: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("project request rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("project request %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *ProjectRequestRepository) query(ctx context.Context, query string, args ...any) ([]domain.ProjectRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query project requests: %w", err)
	}
	defer rows.Close()

	requests := []domain.ProjectRequest{}
	for rows.Next() {
		req, err := scanProjectRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanProjectRequest(row rowScanner) (*domain.ProjectRequest, error) {
	var (
		req    domain.ProjectRequest
		status string
		budget sql.NullFloat64
	)
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Name,
		&req.Email,
		&req.Title,
		&req.Description,
		&budget,
		&status,
		&req.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project request: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan project request: %w", err)
	}

	req.Status = domain.ProjectStatus(status)
	if budget.Valid {
		b := budget.Float64
		req.Budget = &b
	}
	return &req, nil
}
