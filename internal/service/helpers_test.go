package service_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
	"agency-site/internal/repository/sqlite"
	"agency-site/internal/service"
	"agency-site/internal/storage"
)

const testAdminEmail = "owner@agency.test"

type fixture struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	tokens   repository.RefreshTokenRepository
	requests repository.ProjectRequestRepository
	messages repository.ContactMessageRepository

	auth     service.AuthService
	profile  service.ProfileService
	projects service.ProjectService
	contact  service.ContactService
	storage  *fakeStorage
	mailbox  *mailbox
	logs     *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(t.TempDir() + "/agency.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		users:    sqlite.NewUserRepository(db),
		profiles: sqlite.NewProfileRepository(db),
		tokens:   sqlite.NewRefreshTokenRepository(db),
		requests: sqlite.NewProjectRequestRepository(db),
		messages: sqlite.NewContactMessageRepository(db),
		storage:  newFakeStorage(),
		mailbox:  &mailbox{tokens: make(map[string]string)},
	}
	require.NoError(t, sqlite.InitAll(ctx, f.users, f.profiles, f.tokens, f.requests, f.messages))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.logs = hook

	f.auth = service.NewAuthService(f.users, f.profiles, f.tokens, service.AuthConfig{
		JWTSecret:   "test-secret",
		Issuer:      "agency-test",
		AccessTTL:   time.Hour,
		RefreshTTL:  24 * time.Hour,
		AdminEmails: []string{" Owner@Agency.test "},
		Mailer:      f.mailbox,
		Logger:      logger,
	})
	sanitizer := service.NewSanitizer()
	f.profile = service.NewProfileService(f.profiles, f.users, f.storage, logger)
	f.projects = service.NewProjectService(f.requests, f.users, f.profiles, sanitizer)
	f.contact = service.NewContactService(f.messages, sanitizer)
	return f
}

// signUp registers email, filling in placeholder names when meta has none.
func (f *fixture) signUp(t *testing.T, email string, meta domain.UserMetadata) *domain.User {
	t.Helper()
	if meta.FirstName == "" {
		meta.FirstName = "Test"
	}
	if meta.LastName == "" {
		meta.LastName = "User"
	}
	user, err := f.auth.SignUp(context.Background(), service.SignUpInput{
		Email:    email,
		Password: "pw123456",
		Metadata: meta,
	})
	require.NoError(t, err)
	return user
}

func self(user *domain.User) service.Actor {
	return service.Actor{UserID: user.ID}
}

func admin(user *domain.User) service.Actor {
	return service.Actor{UserID: user.ID, Admin: true}
}

const fakeBaseURL = "https://cdn.agency.test/"

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]string)}
}

func (s *fakeStorage) PutObject(_ context.Context, obj storage.Object) error {
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.Key] = string(body)
	return nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) PublicURL(key string) string {
	return fakeBaseURL + key
}

func (s *fakeStorage) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, fakeBaseURL)
	return key, ok && key != ""
}

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *mailbox) SendConfirmation(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

func (m *mailbox) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}
