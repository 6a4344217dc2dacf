package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-site/internal/domain"
	"agency-site/internal/service"
)

func strPtr(s string) *string { return &s }

func TestProfileService_RowPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signUp(t, "a@x.test", domain.UserMetadata{FirstName: "Ana"})
	other := f.signUp(t, "b@x.test", domain.UserMetadata{})
	boss := f.signUp(t, testAdminEmail, domain.UserMetadata{})

	got, err := f.profile.Get(ctx, self(owner), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FirstName)

	_, err = f.profile.Get(ctx, self(other), owner.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	got, err = f.profile.Get(ctx, admin(boss), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ID)

	_, err = f.profile.Get(ctx, admin(boss), "missing")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.profile.Update(ctx, admin(boss), owner.ID, domain.ProfileFields{FirstName: strPtr("X")})
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestProfileService_IsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "a@x.test", domain.UserMetadata{})
	boss := f.signUp(t, testAdminEmail, domain.UserMetadata{})

	ok, err := f.profile.IsAdmin(ctx, self(user), user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.profile.IsAdmin(ctx, self(boss), boss.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.profile.IsAdmin(ctx, self(user), boss.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	ok, err = f.profile.IsAdmin(ctx, admin(boss), "no-such-user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProfileService_UpsertCannotGrantAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "a@x.test", domain.UserMetadata{})

	got, err := f.profile.Upsert(ctx, self(user), domain.Profile{
		ID:        user.ID,
		FirstName: "Ana",
		AvatarURL: "https://evil.test/a.png",
		Admin:     domain.AdminTrue,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FirstName)
	assert.False(t, got.IsAdmin())
	assert.Empty(t, got.AvatarURL)

	_, err = f.profile.Upsert(ctx, self(user), domain.Profile{ID: "someone-else"})
	assert.ErrorIs(t, err, service.ErrForbidden)
}

func TestProfileService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "a@x.test", domain.UserMetadata{FirstName: "Ana"})

	got, err := f.profile.Update(ctx, self(user), user.ID, domain.ProfileFields{
		LastName:    strPtr("Ng"),
		PhoneNumber: strPtr("5550000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.FirstName)
	assert.Equal(t, "Ng", got.LastName)
	assert.Equal(t, "5550000", got.PhoneNumber)

	_, err = f.profile.Update(ctx, self(user), user.ID, domain.ProfileFields{PhoneNumber: strPtr("call me")})
	var verr *service.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = f.profile.Update(ctx, self(user), user.ID, domain.ProfileFields{AvatarURL: strPtr("https://x.test/a.png")})
	assert.True(t, errors.As(err, &verr))
}

func TestProfileService_UpdateCreatesMissingProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := &domain.User{
		ID:           "u-raw",
		Email:        "raw@x.test",
		PasswordHash: "x",
		Metadata:     domain.UserMetadata{FirstName: "Raw", LastName: "Row", PhoneNumber: "5550000"},
	}
	require.NoError(t, f.users.Create(ctx, user))

	got, err := f.profile.Update(ctx, self(user), user.ID, domain.ProfileFields{LastName: strPtr("Rowe")})
	require.NoError(t, err)
	assert.Equal(t, "Raw", got.FirstName)
	assert.Equal(t, "Rowe", got.LastName)
	assert.Equal(t, "5550000", got.PhoneNumber)
	assert.Equal(t, domain.AdminUnknown, got.Admin)

	_, err = f.profile.Update(ctx, self(&domain.User{ID: "ghost"}), "ghost", domain.ProfileFields{FirstName: strPtr("G")})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestProfileService_UploadAvatarReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "a@x.test", domain.UserMetadata{})

	first, err := f.profile.UploadAvatar(ctx, self(user), user.ID, service.AvatarUpload{
		Filename: "me.PNG",
		Body:     strings.NewReader("png-1"),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first.AvatarURL, fakeBaseURL+"avatars/"+user.ID+"-"))
	assert.True(t, strings.HasSuffix(first.AvatarURL, ".png"))

	second, err := f.profile.UploadAvatar(ctx, self(user), user.ID, service.AvatarUpload{
		Filename: "me.jpg",
		Body:     strings.NewReader("jpg-2"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.AvatarURL, second.AvatarURL)

	firstKey, _ := f.storage.KeyFromURL(first.AvatarURL)
	secondKey, _ := f.storage.KeyFromURL(second.AvatarURL)
	assert.Equal(t, []string{firstKey}, f.storage.deleted)
	assert.Equal(t, map[string]string{secondKey: "jpg-2"}, f.storage.objects)
}

func TestProfileService_UploadAvatarRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "a@x.test", domain.UserMetadata{})
	other := f.signUp(t, "b@x.test", domain.UserMetadata{})

	_, err := f.profile.UploadAvatar(ctx, self(user), user.ID, service.AvatarUpload{
		Filename: "script.sh",
		Body:     strings.NewReader("#!"),
	})
	var verr *service.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = f.profile.UploadAvatar(ctx, self(other), user.ID, service.AvatarUpload{
		Filename: "a.png",
		Body:     strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, service.ErrForbidden)

	noStorage := service.NewProfileService(f.profiles, f.users, nil, nil)
	_, err = noStorage.UploadAvatar(ctx, self(user), user.ID, service.AvatarUpload{
		Filename: "a.png",
		Body:     strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, service.ErrStorageUnavailable)
}

func TestProfileService_ListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signUp(t, "a@x.test", domain.UserMetadata{FirstName: "Ana"})
	boss := f.signUp(t, testAdminEmail, domain.UserMetadata{})

	_, err := f.profile.ListUsers(ctx, self(user))
	assert.ErrorIs(t, err, service.ErrForbidden)

	list, err := f.profile.ListUsers(ctx, admin(boss))
	require.NoError(t, err)
	require.Len(t, list, 2)
	byEmail := map[string]domain.UserWithProfile{}
	for _, entry := range list {
		assert.Empty(t, entry.User.PasswordHash)
		byEmail[entry.User.Email] = entry
	}
	require.NotNil(t, byEmail["a@x.test"].Profile)
	assert.Equal(t, "Ana", byEmail["a@x.test"].Profile.FirstName)
	assert.True(t, byEmail[testAdminEmail].Profile.IsAdmin())
}
