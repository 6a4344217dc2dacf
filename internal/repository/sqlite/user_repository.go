package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL DEFAULT '',
	confirmation_hash TEXT NULL UNIQUE,
	confirmation_sent_at DATETIME NULL,
	email_confirmed_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const userColumns = `id, email, password_hash, first_name, last_name, phone_number,
confirmation_hash, confirmation_sent_at, email_confirmed_at, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Metadata.FirstName,
		user.Metadata.LastName,
		user.Metadata.PhoneNumber,
		nullString(user.ConfirmationHash),
		nullTime(user.ConfirmationSentAt),
		nullTime(user.EmailConfirmedAt),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("insert user %s: %w", user.Email, repository.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByConfirmationHash(ctx context.Context, hash string) (*domain.User, error) {
	if hash == "" {
		return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE confirmation_hash = ?`, hash)
	return scanUser(row)
}

func (r *UserRepository) ConfirmEmail(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET email_confirmed_at = ?, confirmation_hash = NULL, updated_at = ?
WHERE id = ? AND confirmation_hash IS NOT NULL`,
		at.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm email rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s has no pending confirmation: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user                domain.User
		confirmationHash    sql.NullString
		sentAt, confirmedAt sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Metadata.FirstName,
		&user.Metadata.LastName,
		&user.Metadata.PhoneNumber,
		&confirmationHash,
		&sentAt,
		&confirmedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.ConfirmationHash = confirmationHash.String
	user.ConfirmationSentAt = timePtr(sentAt)
	user.EmailConfirmedAt = timePtr(confirmedAt)
	return &user, nil
}
