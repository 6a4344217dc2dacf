// Package session keeps the signed-in user's session, profile and project
// requests in sync with the backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"agency-site/internal/apiclient"
	"agency-site/internal/domain"
)

// Routes the synchronizer navigates to.
const (
	RouteHome     = "/"
	RouteAuth     = "/auth"
	RouteBuilding = "/building"
)

var (
	ErrNotSignedIn   = errors.New("not signed in")
	ErrNotAdmin      = errors.New("administrator access required")
	ErrMissingFields = errors.New("missing required fields")
)

// Backend is the part of the API client the synchronizer depends on.
type Backend interface {
	GetSession(ctx context.Context) (*apiclient.Session, error)
	OnAuthStateChange(fn apiclient.AuthListener) apiclient.Subscription
	GetUser(ctx context.Context) (*apiclient.User, error)
	IsUserAdmin(ctx context.Context, userID string) (bool, error)

	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p apiclient.ProfileUpsert) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, u apiclient.ProfileUpdate) (*domain.Profile, error)
	UploadAvatar(ctx context.Context, id, filename string, r io.Reader) (*domain.Profile, error)

	SignUp(ctx context.Context, email, password string, meta domain.UserMetadata) (*apiclient.User, error)
	VerifyEmail(ctx context.Context, token string) (*apiclient.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*apiclient.Session, error)
	SignOut(ctx context.Context) error

	ListProjectRequests(ctx context.Context, owner string) ([]domain.ProjectRequest, error)
	CreateProjectRequest(ctx context.Context, in apiclient.ProjectRequestInput) (*domain.ProjectRequest, error)
}

var _ Backend = (*apiclient.Client)(nil)

// Notifier shows short user-facing messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(route string)
}

type State int

const (
	StateUninitialized State = iota
	StateAnonymous
	StateAuthenticating
	StateAuthenticated
	StateAuthenticatedDegraded
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthenticatedDegraded:
		return "authenticated_degraded"
	default:
		return "uninitialized"
	}
}

// Snapshot is a copy of the synchronizer state. Changing it has no effect on
// the synchronizer.
type Snapshot struct {
	State           State
	Session         *apiclient.Session
	User            *apiclient.User
	Profile         *domain.Profile
	ProjectRequests []domain.ProjectRequest
	Loading         bool
}

type Config struct {
	Backend   Backend
	Notifier  Notifier
	Navigator Navigator
	Logger    logrus.FieldLogger
}

// Synchronizer owns the session, user, profile and project request list of
// the current user. It is safe for concurrent use.
type Synchronizer struct {
	backend   Backend
	notifier  Notifier
	navigator Navigator
	logger    logrus.FieldLogger
	fetches   singleflight.Group

	mu       sync.RWMutex
	state    State
	session  *apiclient.Session
	profile  *domain.Profile
	requests []domain.ProjectRequest
	loading  bool
	// gen changes whenever the signed-in user changes. Results of calls
	// started under an older generation are dropped.
	gen uint64

	watchMu  sync.Mutex
	watchers map[uint64]func(Snapshot)
	nextID   uint64

	lifeMu  sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	sub     apiclient.Subscription
	closed  bool
	pending sync.WaitGroup
}

func New(cfg Config) (*Synchronizer, error) {
	if cfg.Backend == nil {
		return nil, errors.New("session: backend is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Navigator == nil {
		cfg.Navigator = nopNavigator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Synchronizer{
		backend:   cfg.Backend,
		notifier:  cfg.Notifier,
		navigator: cfg.Navigator,
		logger:    cfg.Logger,
		loading:   true,
		watchers:  make(map[uint64]func(Snapshot)),
	}, nil
}

// Start subscribes to session changes and loads the current session. The
// subscription fires immediately, so both paths race to the same state.
// A failing session query leaves the synchronizer anonymous and is returned.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	if s.closed || s.sub != nil {
		s.lifeMu.Unlock()
		return errors.New("session: synchronizer already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.lifeMu.Unlock()

	sub := s.backend.OnAuthStateChange(s.onAuthStateChange)

	s.lifeMu.Lock()
	s.sub = sub
	s.lifeMu.Unlock()

	session, err := s.backend.GetSession(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("load current session")
		s.mu.Lock()
		if s.state == StateUninitialized {
			s.state = StateAnonymous
		}
		s.loading = false
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("load current session: %w", err)
	}

	s.reconcile(ctx, session, false)

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.notify()
	return nil
}

// Close releases the subscription and waits for background loads to finish.
func (s *Synchronizer) Close() {
	s.lifeMu.Lock()
	if s.closed {
		s.lifeMu.Unlock()
		return
	}
	s.closed = true
	sub, cancel := s.sub, s.cancel
	s.lifeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Unsubscribe()
	}
	s.pending.Wait()
}

// onAuthStateChange applies the new session at once and loads the profile in
// the background. The client may call it while holding its own locks.
func (s *Synchronizer) onAuthStateChange(event apiclient.AuthEvent, session *apiclient.Session) {
	s.logger.WithField("event", event).Debug("auth state changed")

	load, gen := s.apply(session)
	if !load {
		return
	}

	s.lifeMu.Lock()
	if s.closed || s.ctx == nil {
		s.lifeMu.Unlock()
		return
	}
	ctx := s.ctx
	s.pending.Add(1)
	s.lifeMu.Unlock()

	go func() {
		defer s.pending.Done()
		s.load(ctx, session.User.ID, gen)
	}()
}

// reconcile is the single entry point for a session change. force reloads
// the profile even when it is already current.
func (s *Synchronizer) reconcile(ctx context.Context, session *apiclient.Session, force bool) {
	if load, gen := s.apply(session); load || (force && session != nil) {
		s.load(ctx, session.User.ID, gen)
	}
}

// apply stores session and reports whether the profile needs loading.
func (s *Synchronizer) apply(session *apiclient.Session) (bool, uint64) {
	s.mu.Lock()
	if session == nil {
		s.clearLocked()
		s.mu.Unlock()
		s.notify()
		return false, 0
	}

	cp := *session
	if s.session == nil || s.session.User.ID != session.User.ID {
		s.gen++
		s.profile = nil
		s.requests = nil
		s.state = StateAuthenticating
	}
	s.session = &cp
	load := s.state != StateAuthenticated
	gen := s.gen
	s.mu.Unlock()

	s.notify()
	return load, gen
}

func (s *Synchronizer) clearLocked() {
	if s.session != nil {
		s.gen++
	}
	s.session = nil
	s.profile = nil
	s.requests = nil
	s.state = StateAnonymous
}

func (s *Synchronizer) load(ctx context.Context, userID string, gen uint64) {
	s.loadProfile(ctx, userID, gen)
	s.fetchProjectRequests(ctx, userID, gen)
}

func (s *Synchronizer) loadProfile(ctx context.Context, userID string, gen uint64) {
	key := fmt.Sprintf("%s#%d", userID, gen)
	v, err, _ := s.fetches.Do(key, func() (any, error) {
		return s.fetchProfile(ctx, userID, gen)
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("profile unavailable")
		s.mu.Lock()
		if s.gen == gen && s.profile == nil {
			s.state = StateAuthenticatedDegraded
		}
		s.mu.Unlock()
		s.notify()
		return
	}
	s.publishProfile(gen, v.(*domain.Profile))
}

func (s *Synchronizer) fetchProfile(ctx context.Context, userID string, gen uint64) (*domain.Profile, error) {
	profile, err := s.backend.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !apiclient.IsRecursivePolicyError(err) {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	s.logger.WithField("user_id", userID).Info("profile policy recursion, using account metadata")
	return s.fallbackProfile(ctx, userID, gen)
}

// fallbackProfile builds the profile from the account metadata, publishes it
// and then tries to persist it.
func (s *Synchronizer) fallbackProfile(ctx context.Context, userID string, gen uint64) (*domain.Profile, error) {
	user, err := s.backend.GetUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch account metadata: %w", err)
	}
	if user.ID != userID {
		return nil, fmt.Errorf("account %s does not match session user %s", user.ID, userID)
	}

	profile := &domain.Profile{
		ID:          userID,
		FirstName:   user.UserMetadata.FirstName,
		LastName:    user.UserMetadata.LastName,
		PhoneNumber: user.UserMetadata.PhoneNumber,
		Admin:       domain.AdminUnknown,
	}
	admin, err := s.backend.IsUserAdmin(ctx, userID)
	switch {
	case err != nil:
		s.logger.WithError(err).WithField("user_id", userID).Warn("admin check failed")
	case admin:
		profile.Admin = domain.AdminTrue
	default:
		profile.Admin = domain.AdminFalse
	}

	s.publishProfile(gen, profile)

	s.bestEffort(ctx, "upsert fallback profile", func(ctx context.Context) error {
		_, err := s.backend.UpsertProfile(ctx, apiclient.ProfileUpsert{
			ID:          userID,
			FirstName:   profile.FirstName,
			LastName:    profile.LastName,
			PhoneNumber: profile.PhoneNumber,
		})
		return err
	})
	return profile, nil
}

func (s *Synchronizer) publishProfile(gen uint64, profile *domain.Profile) {
	if profile == nil {
		return
	}
	s.mu.Lock()
	if s.gen != gen || s.session == nil || s.session.User.ID != profile.ID {
		s.mu.Unlock()
		return
	}
	cp := *profile
	s.profile = &cp
	s.state = StateAuthenticated
	s.mu.Unlock()
	s.notify()
}

// bestEffort runs a background write. Failures are logged only.
func (s *Synchronizer) bestEffort(ctx context.Context, op string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		s.logger.WithError(err).WithField("op", op).Warn("best-effort write failed")
	}
}

// current returns the signed-in user id and generation.
func (s *Synchronizer) current() (string, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return "", 0, false
	}
	return s.session.User.ID, s.gen, true
}

// FetchProjectRequests reloads the user's project requests, newest first. It
// does nothing without a signed-in user and keeps the old list on failure.
func (s *Synchronizer) FetchProjectRequests(ctx context.Context) {
	userID, gen, ok := s.current()
	if !ok {
		return
	}
	s.fetchProjectRequests(ctx, userID, gen)
}

func (s *Synchronizer) fetchProjectRequests(ctx context.Context, userID string, gen uint64) {
	requests, err := s.backend.ListProjectRequests(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("fetch project requests")
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.requests = copyRequests(requests)
	s.mu.Unlock()
	s.notify()
}

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// SignUp creates the account and sends the user to the sign-in screen.
func (s *Synchronizer) SignUp(ctx context.Context, in SignUpInput) error {
	for _, v := range []string{in.Email, in.Password, in.FirstName, in.LastName} {
		if strings.TrimSpace(v) == "" {
			s.notifier.Error("Please fill in all required fields")
			return ErrMissingFields
		}
	}

	meta := domain.UserMetadata{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: in.PhoneNumber,
	}
	user, err := s.backend.SignUp(ctx, in.Email, in.Password, meta)
	if err != nil {
		s.logger.WithError(err).Warn("sign up failed")
		s.notifier.Error(messageOr(err, "An error occurred during sign up"))
		return err
	}

	s.bestEffort(ctx, "upsert signup profile", func(ctx context.Context) error {
		profile, err := s.backend.UpsertProfile(ctx, apiclient.ProfileUpsert{
			ID:          user.ID,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			PhoneNumber: in.PhoneNumber,
		})
		if err != nil {
			return err
		}
		if _, gen, ok := s.current(); ok {
			s.publishProfile(gen, profile)
		}
		return nil
	})

	s.notifier.Success("Account created successfully! Please check your email for verification.")
	s.navigator.Navigate(RouteAuth)
	return nil
}

// SignIn signs the user in and loads their profile before returning.
func (s *Synchronizer) SignIn(ctx context.Context, email, password string) error {
	session, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.WithError(err).Info("sign in rejected")
		s.notifier.Error(messageOr(err, "Invalid login credentials"))
		return err
	}

	s.reconcile(ctx, session, true)

	s.notifier.Success("Signed in successfully!")
	s.navigator.Navigate(RouteHome)
	return nil
}

// VerifyEmail confirms the address behind a sign-up token and sends the user
// to the sign-in screen.
func (s *Synchronizer) VerifyEmail(ctx context.Context, token string) error {
	if _, err := s.backend.VerifyEmail(ctx, strings.TrimSpace(token)); err != nil {
		s.logger.WithError(err).Warn("email verification failed")
		s.notifier.Error("Failed to verify email: " + messageOr(err, "Unknown error"))
		return err
	}
	s.notifier.Success("Email successfully verified! You can now log in.")
	s.navigator.Navigate(RouteAuth)
	return nil
}

// SignOut ends the session. Local state is cleared even when the backend call
// fails.
func (s *Synchronizer) SignOut(ctx context.Context) error {
	err := s.backend.SignOut(ctx)

	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
	s.notify()

	s.navigator.Navigate(RouteHome)
	if err != nil {
		s.logger.WithError(err).Warn("sign out failed")
		s.notifier.Error(messageOr(err, "Error signing out"))
		return err
	}
	s.notifier.Success("Signed out successfully")
	return nil
}

// UpdateProfile saves the set fields of the signed-in user's profile.
func (s *Synchronizer) UpdateProfile(ctx context.Context, u apiclient.ProfileUpdate) error {
	userID, gen, ok := s.current()
	if !ok {
		s.notifier.Error("Please log in to update your profile")
		return ErrNotSignedIn
	}

	profile, err := s.backend.UpdateProfile(ctx, userID, u)
	if err != nil {
		s.logger.WithError(err).Warn("update profile")
		s.notifier.Error("Error updating profile: " + err.Error())
		return err
	}
	s.publishProfile(gen, profile)
	s.notifier.Success("Profile updated successfully!")
	return nil
}

// UploadAvatar replaces the signed-in user's avatar.
func (s *Synchronizer) UploadAvatar(ctx context.Context, filename string, r io.Reader) error {
	userID, gen, ok := s.current()
	if !ok {
		s.notifier.Error("Please log in to update your profile")
		return ErrNotSignedIn
	}

	profile, err := s.backend.UploadAvatar(ctx, userID, filename, r)
	if err != nil {
		s.logger.WithError(err).Warn("upload avatar")
		s.notifier.Error("Error uploading avatar: " + err.Error())
		return err
	}
	s.publishProfile(gen, profile)
	s.notifier.Success("Avatar updated successfully!")
	return nil
}

// SubmitProjectRequest files a new project request for the signed-in user.
func (s *Synchronizer) SubmitProjectRequest(ctx context.Context, in apiclient.ProjectRequestInput) (*domain.ProjectRequest, error) {
	if _, _, ok := s.current(); !ok {
		s.notifier.Error("Please log in to submit a project request")
		s.navigator.Navigate(RouteAuth)
		return nil, ErrNotSignedIn
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		s.notifier.Error("Please fill in all required fields")
		return nil, ErrMissingFields
	}

	req, err := s.backend.CreateProjectRequest(ctx, in)
	if err != nil {
		s.logger.WithError(err).Warn("submit project request")
		s.notifier.Error(messageOr(err, "Error submitting project request"))
		return nil, err
	}

	s.FetchProjectRequests(ctx)
	s.notifier.Success("Project request submitted successfully!")
	s.navigator.Navigate(RouteBuilding)
	return req, nil
}

// RequireAdmin sends non-administrators home.
func (s *Synchronizer) RequireAdmin() error {
	s.mu.RLock()
	admin := s.profile.IsAdmin()
	s.mu.RUnlock()
	if !admin {
		s.navigator.Navigate(RouteHome)
		return ErrNotAdmin
	}
	return nil
}

func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           s.state,
		Loading:         s.loading,
		ProjectRequests: copyRequests(s.requests),
	}
	if s.session != nil {
		session := *s.session
		user := session.User
		snap.Session = &session
		snap.User = &user
	}
	if s.profile != nil {
		profile := *s.profile
		snap.Profile = &profile
	}
	return snap
}

// Watch calls fn with a snapshot after every state change until the returned
// func is called.
func (s *Synchronizer) Watch(fn func(Snapshot)) (unwatch func()) {
	s.watchMu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	s.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.watchMu.Lock()
			delete(s.watchers, id)
			s.watchMu.Unlock()
		})
	}
}

func (s *Synchronizer) notify() {
	s.watchMu.Lock()
	if len(s.watchers) == 0 {
		s.watchMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

func copyRequests(in []domain.ProjectRequest) []domain.ProjectRequest {
	if in == nil {
		return nil
	}
	out := make([]domain.ProjectRequest, len(in))
	for i, r := range in {
		if r.Budget != nil {
			b := *r.Budget
			r.Budget = &b
		}
		out[i] = r
	}
	return out
}

func messageOr(err error, fallback string) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
