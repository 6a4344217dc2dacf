package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
	"agency-site/internal/storage"
)

var avatarContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// AvatarUpload is an image submitted for a profile.
type AvatarUpload struct {
	Filename string
	Body     io.Reader
}

// ProfileService enforces the profile row policy on top of the repository.
type ProfileService interface {
	Get(ctx context.Context, actor Actor, id string) (*domain.Profile, error)
	Upsert(ctx context.Context, actor Actor, profile domain.Profile) (*domain.Profile, error)
	Update(ctx context.Context, actor Actor, id string, fields domain.ProfileFields) (*domain.Profile, error)
	// IsAdmin answers the is_user_admin query for userID.
	IsAdmin(ctx context.Context, actor Actor, userID string) (bool, error)
	// AdminStatus is the unchecked lookup used to authorize requests.
	AdminStatus(ctx context.Context, userID string) (bool, error)
	UploadAvatar(ctx context.Context, actor Actor, id string, upload AvatarUpload) (*domain.Profile, error)
	ListUsers(ctx context.Context, actor Actor) ([]domain.UserWithProfile, error)
}

type profileService struct {
	profiles repository.ProfileRepository
	users    repository.UserRepository
	storage  storage.Service
	logger   logrus.FieldLogger
}

// NewProfileService builds the service. store may be nil, in which case avatar
// uploads fail with ErrStorageUnavailable.
func NewProfileService(profiles repository.ProfileRepository, users repository.UserRepository, store storage.Service, logger logrus.FieldLogger) ProfileService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &profileService{
		profiles: profiles,
		users:    users,
		storage:  store,
		logger:   logger,
	}
}

func (s *profileService) Get(ctx context.Context, actor Actor, id string) (*domain.Profile, error) {
	if !actor.owns(id) && !actor.Admin {
		return nil, ErrForbidden
	}
	profile, err := s.profiles.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return profile, err
}

func (s *profileService) Upsert(ctx context.Context, actor Actor, profile domain.Profile) (*domain.Profile, error) {
	if !actor.owns(profile.ID) {
		return nil, ErrForbidden
	}
	if err := validatePhone(profile.PhoneNumber); err != nil {
		return nil, err
	}
	// The admin flag is never client controlled.
	profile.Admin = domain.AdminUnknown
	profile.AvatarURL = ""
	if err := s.profiles.Upsert(ctx, &profile); err != nil {
		return nil, err
	}
	return s.profiles.Get(ctx, profile.ID)
}

func (s *profileService) Update(ctx context.Context, actor Actor, id string, fields domain.ProfileFields) (*domain.Profile, error) {
	if !actor.owns(id) {
		return nil, ErrForbidden
	}
	if fields.AvatarURL != nil {
		return nil, invalid("avatar_url", "avatar_url is set by the avatar upload")
	}
	if fields.PhoneNumber != nil {
		if err := validatePhone(*fields.PhoneNumber); err != nil {
			return nil, err
		}
	}
	return s.update(ctx, id, fields)
}

func (s *profileService) IsAdmin(ctx context.Context, actor Actor, userID string) (bool, error) {
	if !actor.owns(userID) && !actor.Admin {
		return false, ErrForbidden
	}
	return s.AdminStatus(ctx, userID)
}

func (s *profileService) AdminStatus(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.IsAdmin(), nil
}

func (s *profileService) UploadAvatar(ctx context.Context, actor Actor, id string, upload AvatarUpload) (*domain.Profile, error) {
	if !actor.owns(id) {
		return nil, ErrForbidden
	}
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	ext := strings.ToLower(path.Ext(upload.Filename))
	contentType, ok := avatarContentTypes[ext]
	if !ok {
		return nil, invalid("file", "unsupported avatar type %q", ext)
	}

	previous, err := s.profiles.Get(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%s-%s%s", id, uuid.NewString(), ext)
	if err := s.storage.PutObject(ctx, storage.Object{Key: key, ContentType: contentType, Body: upload.Body}); err != nil {
		return nil, err
	}

	url := s.storage.PublicURL(key)
	profile, err := s.update(ctx, id, domain.ProfileFields{AvatarURL: &url})
	if err != nil {
		return nil, err
	}

	if previous != nil && previous.AvatarURL != "" {
		if oldKey, ok := s.storage.KeyFromURL(previous.AvatarURL); ok {
			if err := s.storage.DeleteObject(ctx, oldKey); err != nil {
				s.logger.WithError(err).WithField("key", oldKey).Warn("delete previous avatar")
			}
		}
	}
	return profile, nil
}

func (s *profileService) ListUsers(ctx context.Context, actor Actor) ([]domain.UserWithProfile, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Profile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	out := make([]domain.UserWithProfile, 0, len(users))
	for _, user := range users {
		user.PasswordHash = ""
		out = append(out, domain.UserWithProfile{User: user, Profile: byID[user.ID]})
	}
	return out, nil
}

// update creates the profile row from the account's signup data when the
// account has none yet.
func (s *profileService) update(ctx context.Context, id string, fields domain.ProfileFields) (*domain.Profile, error) {
	profile, err := s.profiles.Update(ctx, id, fields)
	if !errors.Is(err, repository.ErrNotFound) {
		return profile, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	profile = &domain.Profile{
		ID:          id,
		FirstName:   user.Metadata.FirstName,
		LastName:    user.Metadata.LastName,
		PhoneNumber: user.Metadata.PhoneNumber,
	}
	fields.Apply(profile)
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return s.profiles.Get(ctx, id)
}
