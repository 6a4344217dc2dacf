package apiclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agency-site/internal/apiclient"
	"agency-site/internal/domain"
	apphttp "agency-site/internal/http"
	"agency-site/internal/repository/sqlite"
	"agency-site/internal/service"
)

const adminEmail = "owner@agency.test"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newBackend starts the real API stack on an httptest server.
func newBackend(t *testing.T, accessTTL time.Duration) *httptest.Server {
	t.Helper()
	srv, _ := newBackendWithMail(t, accessTTL)
	return srv
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

func newBackendWithMail(t *testing.T, accessTTL time.Duration) (*httptest.Server, *mailbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "agency.db"))
	require.NoError(t, err)

	users := sqlite.NewUserRepository(db)
	profiles := sqlite.NewProfileRepository(db)
	tokens := sqlite.NewRefreshTokenRepository(db)
	requests := sqlite.NewProjectRequestRepository(db)
	messages := sqlite.NewContactMessageRepository(db)
	require.NoError(t, sqlite.InitAll(ctx, users, profiles, tokens, requests, messages))

	logger := quietLogger()
	mail := &mailbox{tokens: make(map[string]string)}
	sanitizer := service.NewSanitizer()
	handler := apphttp.NewHandler(
		service.NewAuthService(users, profiles, tokens, service.AuthConfig{
			JWTSecret:   "test-secret",
			Issuer:      "agency-test",
			AccessTTL:   accessTTL,
			RefreshTTL:  time.Hour,
			AdminEmails: []string{adminEmail},
			Mailer:      mail,
			Logger:      logger,
		}),
		service.NewProfileService(profiles, users, nil, logger),
		service.NewProjectService(requests, users, profiles, sanitizer),
		service.NewContactService(messages, sanitizer),
		apphttp.Options{RateLimit: apphttp.RateLimitConfig{PerMinute: 6000, Burst: 1000}, Logger: logger},
	)
	router := gin.New()
	handler.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		handler.Close()
		_ = db.Close()
	})
	return srv, mail
}

func newClient(t *testing.T, baseURL string, store apiclient.SessionStore, margin time.Duration) *apiclient.Client {
	t.Helper()
	client, err := apiclient.New(apiclient.Config{
		BaseURL:       baseURL,
		HTTPClient:    &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
		Store:         store,
		Logger:        quietLogger(),
		RefreshMargin: margin,
	})
	require.NoError(t, err)
	return client
}

type recordedEvent struct {
	event   apiclient.AuthEvent
	session *apiclient.Session
}

type eventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *eventLog) listener(event apiclient.AuthEvent, session *apiclient.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{event, session})
}

func (l *eventLog) names() []apiclient.AuthEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]apiclient.AuthEvent, len(l.events))
	for i, e := range l.events {
		out[i] = e.event
	}
	return out
}

func (l *eventLog) last() recordedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func signUpAndIn(t *testing.T, client *apiclient.Client, email string) *apiclient.Session {
	t.Helper()
	ctx := context.Background()
	_, err := client.SignUp(ctx, email, "pw123456", domain.UserMetadata{FirstName: "Ana", LastName: "Ng"})
	require.NoError(t, err)
	session, err := client.SignInWithPassword(ctx, email, "pw123456")
	require.NoError(t, err)
	return session
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := apiclient.New(apiclient.Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestOnAuthStateChange_FiresImmediatelyAndUnsubscribes(t *testing.T) {
	srv := newBackend(t, time.Hour)
	client := newClient(t, srv.URL, apiclient.NewMemoryStore(), time.Second)

	var log eventLog
	sub := client.OnAuthStateChange(log.listener)
	require.Equal(t, []apiclient.AuthEvent{apiclient.EventInitialSession}, log.names())
	assert.Nil(t, log.last().session)

	session := signUpAndIn(t, client, "a@x.test")
	assert.Equal(t, []apiclient.AuthEvent{apiclient.EventInitialSession, apiclient.EventSignedIn}, log.names())
	assert.Equal(t, session.AccessToken, log.last().session.AccessToken)

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, client.SignOut(context.Background()))
	assert.Len(t, log.names(), 2)

	var late eventLog
	client.OnAuthStateChange(late.listener)
	assert.Equal(t, []apiclient.AuthEvent{apiclient.EventInitialSession}, late.names())
	assert.Nil(t, late.last().session)
}

func TestVerifyEmail(t *testing.T) {
	srv, mail := newBackendWithMail(t, time.Hour)
	client := newClient(t, srv.URL, nil, time.Second)
	ctx := context.Background()

	user, err := client.SignUp(ctx, "a@x.test", "pw123456", domain.UserMetadata{FirstName: "Ana", LastName: "Ng"})
	require.NoError(t, err)
	assert.Nil(t, user.EmailConfirmedAt)

	_, err = client.VerifyEmail(ctx, "bogus")
	var apiErr *apiclient.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	verified, err := client.VerifyEmail(ctx, mail.token("a@x.test"))
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.NotNil(t, verified.EmailConfirmedAt)
	assert.Nil(t, client.CurrentSession())
}

func TestSignIn_ErrorEnvelope(t *testing.T) {
	srv := newBackend(t, time.Hour)
	client := newClient(t, srv.URL, nil, time.Second)

	_, err := client.SignInWithPassword(context.Background(), "nobody@x.test", "pw123456")
	var apiErr *apiclient.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_credentials", apiErr.Code)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
	assert.Nil(t, client.CurrentSession())
	assert.False(t, apiclient.IsRecursivePolicyError(err))
}

func TestFileStore_PersistsAcrossClients(t *testing.T) {
	srv := newBackend(t, time.Hour)
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	first := newClient(t, srv.URL, apiclient.NewFileStore(path), time.Second)
	session := signUpAndIn(t, first, "a@x.test")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := newClient(t, srv.URL, apiclient.NewFileStore(path), time.Second)
	restored, err := second.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, session.User.ID, restored.User.ID)

	user, err := second.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@x.test", user.Email)

	require.NoError(t, second.SignOut(context.Background()))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStore_CorruptFileIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	client := newClient(t, "http://127.0.0.1:1", apiclient.NewFileStore(path), time.Second)
	assert.Nil(t, client.CurrentSession())
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGetSession_RefreshesExpiringToken(t *testing.T) {
	srv := newBackend(t, time.Minute)
	client := newClient(t, srv.URL, apiclient.NewMemoryStore(), time.Second)
	first := signUpAndIn(t, client, "a@x.test")

	// A margin longer than the token lifetime makes every session look expiring.
	eager := newClient(t, srv.URL, storeWith(t, first), 2*time.Minute)
	var log eventLog
	eager.OnAuthStateChange(log.listener)

	refreshed, err := eager.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.NotEqual(t, first.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, apiclient.EventTokenRefreshed, log.last().event)
}

func TestGetSession_RejectedRefreshSignsOut(t *testing.T) {
	srv := newBackend(t, time.Minute)
	client := newClient(t, srv.URL, apiclient.NewMemoryStore(), time.Second)
	session := signUpAndIn(t, client, "a@x.test")

	stale := newClient(t, srv.URL, storeWith(t, session), 2*time.Minute)
	var log eventLog
	stale.OnAuthStateChange(log.listener)

	// Rotating the token elsewhere revokes the copy held by stale.
	_, err := client.RefreshSession(context.Background())
	require.NoError(t, err)

	got, err := stale.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, stale.CurrentSession())
	assert.Equal(t, apiclient.EventSignedOut, log.last().event)

	_, err = stale.GetProfile(context.Background(), session.User.ID)
	assert.ErrorIs(t, err, apiclient.ErrNoSession)
}

func TestSignOut_ClearsLocallyWhenBackendFails(t *testing.T) {
	session := &apiclient.Session{
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         apiclient.User{ID: "u1"},
	}
	client := newClient(t, "http://127.0.0.1:1", storeWith(t, session), time.Second)
	var log eventLog
	client.OnAuthStateChange(log.listener)

	err := client.SignOut(context.Background())
	assert.Error(t, err)
	assert.Nil(t, client.CurrentSession())
	assert.Equal(t, apiclient.EventSignedOut, log.last().event)
	assert.Nil(t, log.last().session)
}

func TestGetUser_EmitsUserUpdated(t *testing.T) {
	srv := newBackend(t, time.Hour)
	client := newClient(t, srv.URL, apiclient.NewMemoryStore(), time.Second)
	session := signUpAndIn(t, client, "a@x.test")

	session.User.UserMetadata.FirstName = "Stale"
	other := newClient(t, srv.URL, storeWith(t, session), time.Second)
	var log eventLog
	other.OnAuthStateChange(log.listener)

	user, err := other.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.UserMetadata.FirstName)
	assert.Equal(t, apiclient.EventUserUpdated, log.last().event)
	assert.Equal(t, "Ana", other.CurrentSession().User.UserMetadata.FirstName)

	_, err = other.GetUser(context.Background())
	require.NoError(t, err)
	assert.Len(t, log.names(), 2)
}

func TestStartAutoRefresh(t *testing.T) {
	srv := newBackend(t, 2*time.Second)
	client := newClient(t, srv.URL, apiclient.NewMemoryStore(), 1500*time.Millisecond)

	refreshed := make(chan struct{}, 1)
	client.OnAuthStateChange(func(event apiclient.AuthEvent, _ *apiclient.Session) {
		if event == apiclient.EventTokenRefreshed {
			select {
			case refreshed <- struct{}{}:
			default:
			}
		}
	})

	stop := client.StartAutoRefresh(context.Background())
	first := signUpAndIn(t, client, "a@x.test")

	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("session was not refreshed")
	}
	stop()
	assert.NotEqual(t, first.RefreshToken, client.CurrentSession().RefreshToken)
}

func TestDataCalls(t *testing.T) {
	srv := newBackend(t, time.Hour)
	ctx := context.Background()
	client := newClient(t, srv.URL, nil, time.Second)
	session := signUpAndIn(t, client, "a@x.test")
	id := session.User.ID

	profile, err := client.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.FirstName)
	assert.Equal(t, domain.AdminFalse, profile.Admin)

	admin, err := client.IsUserAdmin(ctx, id)
	require.NoError(t, err)
	assert.False(t, admin)

	profile, err = client.UpsertProfile(ctx, apiclient.ProfileUpsert{ID: id, FirstName: "Anna", LastName: "Ng", PhoneNumber: "5551234"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", profile.FirstName)

	last := "Lee"
	profile, err = client.UpdateProfile(ctx, id, apiclient.ProfileUpdate{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Anna Lee", profile.FullName())
	assert.Equal(t, "5551234", profile.PhoneNumber)

	_, err = client.UploadAvatar(ctx, id, "me.png", strings.NewReader("png"))
	assert.True(t, apiclient.HasCode(err, "storage_unavailable"))

	budget := 2500.0
	created, err := client.CreateProjectRequest(ctx, apiclient.ProjectRequestInput{Title: "Site", Description: "New site", Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusPending, created.Status)
	assert.Equal(t, "Anna Lee", created.Name)

	list, err := client.ListProjectRequests(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	require.NotNil(t, list[0].Budget)
	assert.Equal(t, budget, *list[0].Budget)

	_, err = client.ListUsers(ctx)
	assert.True(t, apiclient.HasCode(err, "forbidden"))
}

func TestAdminCalls(t *testing.T) {
	srv := newBackend(t, time.Hour)
	ctx := context.Background()

	customer := newClient(t, srv.URL, nil, time.Second)
	signUpAndIn(t, customer, "a@x.test")
	req, err := customer.CreateProjectRequest(ctx, apiclient.ProjectRequestInput{Title: "Shop", Description: "Rebuild"})
	require.NoError(t, err)

	visitor := newClient(t, srv.URL, nil, time.Second)
	msg, err := visitor.SubmitContactMessage(ctx, apiclient.ContactMessageInput{Name: "Bo", Email: "bo@x.test", Message: "Hello"})
	require.NoError(t, err)

	boss := newClient(t, srv.URL, nil, time.Second)
	bossSession := signUpAndIn(t, boss, adminEmail)
	isAdmin, err := boss.IsUserAdmin(ctx, bossSession.User.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	messages, stats, err := boss.ListContactMessages(ctx, "")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.ContactStats{Total: 1, Unread: 1}, stats)

	require.NoError(t, boss.MarkContactMessageRead(ctx, msg.ID))
	messages, stats, err = boss.ListContactMessages(ctx, "bo@")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)
	assert.Equal(t, 1, stats.Read)

	updated, err := boss.UpdateProjectRequestStatus(ctx, req.ID, domain.ProjectStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusInProgress, updated.Status)

	all, pstats, err := boss.ListAllProjectRequests(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, domain.ProjectRequestStats{Active: 1}, pstats)

	users, err := boss.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func storeWith(t *testing.T, session *apiclient.Session) apiclient.SessionStore {
	t.Helper()
	store := apiclient.NewMemoryStore()
	require.NoError(t, store.Save(session))
	return store
}
