// Package apiclient talks to the agency backend and owns the client-side session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AuthEvent names a session change.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthListener receives session changes. session is nil after sign-out.
type AuthListener func(event AuthEvent, session *Session)

// Subscription is a registered AuthListener.
type Subscription interface {
	Unsubscribe()
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      SessionStore
	Logger     logrus.FieldLogger
	// RefreshMargin is how long before expiry a session counts as expired.
	RefreshMargin time.Duration
}

// Client is the backend API client. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      SessionStore
	logger     logrus.FieldLogger
	margin     time.Duration
	now        func() time.Time

	mu        sync.Mutex
	session   *Session
	listeners map[uint64]AuthListener
	order     []uint64
	nextID    uint64
	wake      chan struct{}

	refreshMu sync.Mutex
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = 30 * time.Second
	}

	c := &Client{
		baseURL:    base,
		httpClient: cfg.HTTPClient,
		store:      cfg.Store,
		logger:     cfg.Logger,
		margin:     cfg.RefreshMargin,
		now:        time.Now,
		listeners:  make(map[uint64]AuthListener),
		wake:       make(chan struct{}, 1),
	}

	session, err := cfg.Store.Load()
	if err != nil {
		c.logger.WithError(err).Warn("discarding stored session")
		_ = cfg.Store.Clear()
	}
	c.session = session
	return c, nil
}

// CurrentSession returns the cached session without refreshing it.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// GetSession returns the current session, refreshing it first when the access
// token is about to expire. A rejected refresh signs the client out and
// returns a nil session.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	session := c.CurrentSession()
	if session == nil || !session.ExpiresWithin(c.now(), c.margin) {
		return session, nil
	}
	refreshed, err := c.refresh(ctx, session)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// RefreshSession exchanges the refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	session := c.CurrentSession()
	if session == nil {
		return nil, ErrNoSession
	}
	return c.refresh(ctx, session)
}

func (c *Client) refresh(ctx context.Context, stale *Session) (*Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if current := c.CurrentSession(); current == nil {
		return nil, &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "session ended"}
	} else if current.RefreshToken != stale.RefreshToken {
		return current, nil
	}

	var next Session
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": stale.RefreshToken}, &next)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.logger.WithField("user_id", stale.User.ID).Info("refresh token rejected, signing out")
			c.setSession(EventSignedOut, nil)
		}
		return nil, err
	}
	c.setSession(EventTokenRefreshed, &next)
	return next.clone(), nil
}

// OnAuthStateChange registers fn. It fires immediately with
// INITIAL_SESSION and the current session, then on every change.
func (c *Client) OnAuthStateChange(fn AuthListener) Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.order = append(c.order, id)
	session := c.session.clone()
	c.mu.Unlock()

	fn(EventInitialSession, session)
	return &subscription{client: c, id: id}
}

type subscription struct {
	client *Client
	id     uint64
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		c := s.client
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, s.id)
		for i, id := range c.order {
			if id == s.id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	})
}

// setSession stores session, persists it and notifies listeners outside the lock.
func (c *Client) setSession(event AuthEvent, session *Session) {
	c.mu.Lock()
	c.session = session.clone()
	listeners := make([]AuthListener, 0, len(c.order))
	for _, id := range c.order {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	var err error
	if session == nil {
		err = c.store.Clear()
	} else {
		err = c.store.Save(session)
	}
	if err != nil {
		c.logger.WithError(err).Warn("persist session")
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}

	for _, fn := range listeners {
		fn(event, session.clone())
	}
}

// StartAutoRefresh refreshes the session shortly before it expires until ctx
// ends. The returned func cancels the loop and waits for it to exit.
func (c *Client) StartAutoRefresh(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.autoRefreshLoop(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (c *Client) autoRefreshLoop(ctx context.Context) {
	const retryDelay = 10 * time.Second
	for {
		wait := time.Hour
		if session := c.CurrentSession(); session != nil {
			wait = session.Expiry().Add(-c.margin).Sub(c.now())
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		session := c.CurrentSession()
		if session == nil || !session.ExpiresWithin(c.now(), c.margin) {
			continue
		}
		if _, err := c.refresh(ctx, session); err != nil {
			if HasCode(err, "unauthorized") || ctx.Err() != nil {
				continue
			}
			c.logger.WithError(err).Warn("auto refresh failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrNoSession
	}
	return session.AccessToken, nil
}

// authed performs a request with the current access token.
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case *multipartBody:
		reader = b.body
		contentType = b.contentType
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var envelope struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Message = envelope.Error
			apiErr.Code = envelope.Code
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		c.logger.WithField("status", resp.StatusCode).WithField("code", apiErr.Code).Debugf("%s %s failed", method, path)
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	rel, err := url.Parse(path)
	if err != nil {
		return u.String() + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + rel.Path
	u.RawQuery = rel.RawQuery
	return u.String()
}
