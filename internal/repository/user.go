package repository

import (
	"context"
	"errors"
	"time"

	"agency-site/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("already exists")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByConfirmationHash(ctx context.Context, hash string) (*domain.User, error)
	// ConfirmEmail marks the address confirmed and consumes the pending
	// confirmation token. It returns ErrNotFound when no token is pending.
	ConfirmEmail(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context) ([]domain.User, error)
}

// RefreshTokenRepository stores hashed refresh tokens.
type RefreshTokenRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Revoke marks the token revoked. It returns ErrNotFound when the token is
	// missing or was already revoked, so only one caller can consume it.
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
