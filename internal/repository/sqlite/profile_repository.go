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

const createProfilesTable = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	first_name TEXT NULL,
	last_name TEXT NULL,
	avatar_url TEXT NULL,
	phone_number TEXT NULL,
	is_admin BOOLEAN NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(id) REFERENCES users(id) ON DELETE CASCADE
);
`

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) repository.ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createProfilesTable); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}
	return nil
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, first_name, last_name, avatar_url, phone_number, is_admin, created_at, updated_at
FROM profiles
WHERE id = ?`,
		id,
	)
	return scanProfile(row)
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (id, first_name, last_name, avatar_url, phone_number, is_admin, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	phone_number = excluded.phone_number,
	updated_at = excluded.updated_at`,
		profile.ID,
		nullString(profile.FirstName),
		nullString(profile.LastName),
		nullString(profile.AvatarURL),
		nullString(profile.PhoneNumber),
		nullBool(profile.Admin.Bool()),
		profile.CreatedAt.UTC(),
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) Update(ctx context.Context, id string, fields domain.ProfileFields) (*domain.Profile, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		sets = append(sets, column+" = ?")
		args = append(args, nullString(*v))
	}
	add("first_name", fields.FirstName)
	add("last_name", fields.LastName)
	add("phone_number", fields.PhoneNumber)
	add("avatar_url", fields.AvatarURL)

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE profiles SET %s WHERE id = ?`, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("profile update rows affected: %w", err)
	}
	if aff == 0 {
		return nil, fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
	}
	return r.Get(ctx, id)
}

func (r *ProfileRepository) SetAdmin(ctx context.Context, id string, admin bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE profiles
SET is_admin = ?, updated_at = ?
WHERE id = ?`,
		admin,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set profile admin: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("profile admin rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, first_name, last_name, avatar_url, phone_number, is_admin, created_at, updated_at
FROM profiles
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		p                          domain.Profile
		first, last, avatar, phone sql.NullString
		isAdmin                    sql.NullBool
	)
	if err := row.Scan(&p.ID, &first, &last, &avatar, &phone, &isAdmin, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	p.FirstName = first.String
	p.LastName = last.String
	p.AvatarURL = avatar.String
	p.PhoneNumber = phone.String
	if isAdmin.Valid {
		p.Admin = domain.AdminFlagFromBool(&isAdmin.Bool)
	}
	return &p, nil
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
