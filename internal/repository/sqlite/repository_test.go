package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
)

type testRepos struct {
	users    repository.UserRepository
	tokens   repository.RefreshTokenRepository
	profiles repository.ProfileRepository
	projects repository.ProjectRequestRepository
	contacts repository.ContactMessageRepository
}

func openTestDB(t *testing.T) (*sql.DB, testRepos) {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "agency.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := testRepos{
		users:    NewUserRepository(db),
		tokens:   NewRefreshTokenRepository(db),
		profiles: NewProfileRepository(db),
		projects: NewProjectRequestRepository(db),
		contacts: NewContactMessageRepository(db),
	}
	require.NoError(t, InitAll(context.Background(),
		repos.users, repos.tokens, repos.profiles, repos.projects, repos.contacts))
	return db, repos
}

func createUser(t *testing.T, repos testRepos, email string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		Metadata:     domain.UserMetadata{FirstName: "Jane", LastName: "Doe"},
	}
	require.NoError(t, repos.users.Create(context.Background(), user))
	return user
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()

	user := createUser(t, repos, "jane@example.com")

	byEmail, err := repos.users.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "Jane", byEmail.Metadata.FirstName)

	_, err = repos.users.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	dup := &domain.User{ID: uuid.NewString(), Email: "jane@example.com", PasswordHash: "x"}
	assert.ErrorIs(t, repos.users.Create(ctx, dup), repository.ErrConflict)
}

func TestUserRepository_ConfirmEmail(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	sent := time.Now().UTC().Add(-time.Minute)

	user := &domain.User{
		ID:                 uuid.NewString(),
		Email:              "jane@example.com",
		PasswordHash:       "hash",
		ConfirmationHash:   "pending-hash",
		ConfirmationSentAt: &sent,
	}
	require.NoError(t, repos.users.Create(ctx, user))

	got, err := repos.users.GetByConfirmationHash(ctx, "pending-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.False(t, got.Confirmed())
	require.NotNil(t, got.ConfirmationSentAt)
	assert.WithinDuration(t, sent, *got.ConfirmationSentAt, time.Second)

	require.NoError(t, repos.users.ConfirmEmail(ctx, user.ID, time.Now()))
	assert.ErrorIs(t, repos.users.ConfirmEmail(ctx, user.ID, time.Now()), repository.ErrNotFound)

	_, err = repos.users.GetByConfirmationHash(ctx, "pending-hash")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.users.GetByConfirmationHash(ctx, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err = repos.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.Confirmed())
	assert.Empty(t, got.ConfirmationHash)
}

func TestProfileRepository_UpsertKeepsAdminAndAvatar(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	user := createUser(t, repos, "jane@example.com")

	require.NoError(t, repos.profiles.Upsert(ctx, &domain.Profile{
		ID:        user.ID,
		FirstName: "Jane",
		AvatarURL: "https://cdn.example.com/a.png",
		Admin:     domain.AdminTrue,
	}))

	require.NoError(t, repos.profiles.Upsert(ctx, &domain.Profile{
		ID:          user.ID,
		FirstName:   "Janet",
		LastName:    "Doe",
		PhoneNumber: "5551234",
	}))

	p, err := repos.profiles.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Janet", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, "5551234", p.PhoneNumber)
	assert.Equal(t, "https://cdn.example.com/a.png", p.AvatarURL)
	assert.Equal(t, domain.AdminTrue, p.Admin)

	profiles, err := repos.profiles.List(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestProfileRepository_UpdateAndSetAdmin(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	user := createUser(t, repos, "jane@example.com")

	require.NoError(t, repos.profiles.Upsert(ctx, &domain.Profile{ID: user.ID, FirstName: "Jane"}))

	p, err := repos.profiles.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AdminUnknown, p.Admin)

	phone := "5550000"
	p, err = repos.profiles.Update(ctx, user.ID, domain.ProfileFields{PhoneNumber: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, "5550000", p.PhoneNumber)

	require.NoError(t, repos.profiles.SetAdmin(ctx, user.ID, false))
	p, err = repos.profiles.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AdminFalse, p.Admin)

	_, err = repos.profiles.Update(ctx, uuid.NewString(), domain.ProfileFields{PhoneNumber: &phone})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProjectRequestRepository_ListNewestFirst(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	jane := createUser(t, repos, "jane@example.com")
	john := createUser(t, repos, "john@example.com")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	budget := 5000.0
	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, repos.projects.Create(ctx, &domain.ProjectRequest{
			ID:          uuid.NewString(),
			UserID:      jane.ID,
			Title:       title,
			Description: "site",
			Budget:      &budget,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repos.projects.Create(ctx, &domain.ProjectRequest{
		ID:          uuid.NewString(),
		UserID:      john.ID,
		Title:       "other",
		Description: "shop",
		CreatedAt:   base,
	}))

	mine, err := repos.projects.ListByUser(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "third", mine[0].Title)
	assert.Equal(t, "first", mine[2].Title)
	assert.Equal(t, domain.ProjectStatusPending, mine[0].Status)
	require.NotNil(t, mine[0].Budget)
	assert.InDelta(t, 5000.0, *mine[0].Budget, 0.001)

	all, err := repos.projects.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := repos.projects.ListByUser(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProjectRequestRepository_UpdateStatus(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	jane := createUser(t, repos, "jane@example.com")

	req := &domain.ProjectRequest{ID: uuid.NewString(), UserID: jane.ID, Title: "t", Description: "d"}
	require.NoError(t, repos.projects.Create(ctx, req))

	require.NoError(t, repos.projects.UpdateStatus(ctx, req.ID, domain.ProjectStatusInProgress))
	got, err := repos.projects.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusInProgress, got.Status)
	assert.Nil(t, got.Budget)

	err = repos.projects.UpdateStatus(ctx, uuid.NewString(), domain.ProjectStatusApproved)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProjectRequestRepository_RequiresExistingUser(t *testing.T) {
	_, repos := openTestDB(t)

	err := repos.projects.Create(context.Background(), &domain.ProjectRequest{
		ID:          uuid.NewString(),
		UserID:      uuid.NewString(),
		Title:       "orphan",
		Description: "d",
	})
	assert.Error(t, err)
}

func TestContactMessageRepository_MarkRead(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()

	msg := &domain.ContactMessage{ID: uuid.NewString(), Name: "Ann", Email: "ann@example.com", Message: "hello"}
	require.NoError(t, repos.contacts.Create(ctx, msg))

	require.NoError(t, repos.contacts.MarkRead(ctx, msg.ID))
	require.NoError(t, repos.contacts.MarkRead(ctx, msg.ID))

	messages, err := repos.contacts.List(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)

	assert.ErrorIs(t, repos.contacts.MarkRead(ctx, uuid.NewString()), repository.ErrNotFound)
}

func TestRefreshTokenRepository_RevokeAndExpire(t *testing.T) {
	_, repos := openTestDB(t)
	ctx := context.Background()
	jane := createUser(t, repos, "jane@example.com")
	now := time.Now().UTC()

	live := &domain.RefreshToken{ID: uuid.NewString(), UserID: jane.ID, TokenHash: "live", ExpiresAt: now.Add(time.Hour)}
	stale := &domain.RefreshToken{ID: uuid.NewString(), UserID: jane.ID, TokenHash: "stale", ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, repos.tokens.Create(ctx, live))
	require.NoError(t, repos.tokens.Create(ctx, stale))

	got, err := repos.tokens.GetByHash(ctx, "live")
	require.NoError(t, err)
	assert.True(t, got.Active(now))

	require.NoError(t, repos.tokens.Revoke(ctx, live.ID, now))
	got, err = repos.tokens.GetByHash(ctx, "live")
	require.NoError(t, err)
	assert.False(t, got.Active(now))
	assert.ErrorIs(t, repos.tokens.Revoke(ctx, live.ID, now.Add(time.Minute)), repository.ErrNotFound)

	got, err = repos.tokens.GetByHash(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.WithinDuration(t, now, *got.RevokedAt, time.Second)

	n, err := repos.tokens.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repos.tokens.GetByHash(ctx, "stale")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
