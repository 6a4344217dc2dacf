package domain

import "time"

// UserMetadata is the free-form signup data attached to an account.
type UserMetadata struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// User represents an account that can sign in to the site.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     UserMetadata

	// ConfirmationHash is the hash of the pending email confirmation token.
	// It is cleared once the address is confirmed.
	ConfirmationHash   string
	ConfirmationSentAt *time.Time
	EmailConfirmedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confirmed reports whether the user has confirmed their email address.
func (u User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// RefreshToken is a server-side record of an issued refresh token. Only the
// hash of the opaque token is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Active reports whether the token may still be exchanged.
func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
