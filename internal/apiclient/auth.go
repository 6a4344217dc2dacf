package apiclient

import (
	"context"
	"net/http"

	"agency-site/internal/domain"
)

// SignUp registers a new account. It does not sign the user in.
func (c *Client) SignUp(ctx context.Context, email, password string, meta domain.UserMetadata) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
		"data":     meta,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// VerifyEmail confirms the address behind a sign-up confirmation token. It does
// not sign the user in.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/verify", "", map[string]string{"token": token}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// SignInWithPassword exchanges credentials for a session and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/auth/token", "", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	c.setSession(EventSignedIn, &session)
	return session.clone(), nil
}

// SignOut revokes the session on the backend. The local session is cleared
// and SIGNED_OUT emitted even when the backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	session := c.CurrentSession()
	if session == nil {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", session.AccessToken,
		map[string]string{"refresh_token": session.RefreshToken}, nil)
	c.setSession(EventSignedOut, nil)
	return err
}

// GetUser fetches the signed-in account. A change in the account data is
// stored in the session and emitted as USER_UPDATED.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.authed(ctx, http.MethodGet, "/api/auth/user", nil, &user); err != nil {
		return nil, err
	}

	if session := c.CurrentSession(); session != nil && session.User.ID == user.ID &&
		(session.User.Email != user.Email || session.User.UserMetadata != user.UserMetadata) {
		session.User = user
		c.setSession(EventUserUpdated, session)
	}
	return &user, nil
}
