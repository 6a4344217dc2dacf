package repository

import (
	"context"

	"agency-site/internal/domain"
)

// ProfileRepository persists profiles keyed by user ID.
type ProfileRepository interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, id string) (*domain.Profile, error)
	// Upsert inserts the profile or updates the names and phone number of the
	// existing row. Avatar and admin flag of an existing row are kept.
	Upsert(ctx context.Context, profile *domain.Profile) error
	Update(ctx context.Context, id string, fields domain.ProfileFields) (*domain.Profile, error)
	SetAdmin(ctx context.Context, id string, admin bool) error
	List(ctx context.Context) ([]domain.Profile, error)
}
