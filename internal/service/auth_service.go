package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes and rejects longer passwords.
	maxPasswordLength = 72
)

// SignUpInput carries a new account request.
type SignUpInput struct {
	Email    string
	Password string
	Metadata domain.UserMetadata
}

// AuthConfig configures token lifetimes and admin bootstrap.
type AuthConfig struct {
	JWTSecret   string
	Issuer      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	AdminEmails []string
	// ConfirmationTTL bounds how long an email confirmation token is valid.
	ConfirmationTTL time.Duration
	// RequireConfirmation rejects sign-in until the email is confirmed.
	RequireConfirmation bool
	Mailer              Mailer
	Logger              logrus.FieldLogger
}

// AuthService manages accounts and the tokens that authenticate them.
type AuthService interface {
	SignUp(ctx context.Context, in SignUpInput) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (*domain.User, *Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.User, *Tokens, error)
	// VerifyEmail consumes a confirmation token and marks the address confirmed.
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
	SignOut(ctx context.Context, refreshToken string) error
	VerifyAccessToken(token string) (*AccessClaims, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// SyncAdmins marks the profiles of configured admin emails as administrators.
	SyncAdmins(ctx context.Context) error
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type authService struct {
	users      repository.UserRepository
	profiles   repository.ProfileRepository
	tokens     repository.RefreshTokenRepository
	issuer     *TokenIssuer
	refreshTTL time.Duration
	admins     map[string]struct{}
	logger     logrus.FieldLogger
	now        func() time.Time

	mailer          Mailer
	confirmationTTL time.Duration
	requireConfirm  bool
}

func NewAuthService(users repository.UserRepository, profiles repository.ProfileRepository, tokens repository.RefreshTokenRepository, cfg AuthConfig) AuthService {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.ConfirmationTTL <= 0 {
		cfg.ConfirmationTTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Mailer == nil {
		cfg.Mailer = LogMailer{Logger: cfg.Logger}
	}
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		if email = normalizeEmail(email); email != "" {
			admins[email] = struct{}{}
		}
	}
	return &authService{
		users:      users,
		profiles:   profiles,
		tokens:     tokens,
		issuer:     NewTokenIssuer(cfg.JWTSecret, cfg.Issuer, cfg.AccessTTL),
		refreshTTL: cfg.RefreshTTL,
		admins:     admins,
		logger:     cfg.Logger,
		now:        time.Now,

		mailer:          cfg.Mailer,
		confirmationTTL: cfg.ConfirmationTTL,
		requireConfirm:  cfg.RequireConfirmation,
	}
}

func (s *authService) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password", "password must be at least %d characters", minPasswordLength)
	}
	if len(in.Password) > maxPasswordLength {
		return nil, invalid("password", "password must be at most %d bytes", maxPasswordLength)
	}
	meta := domain.UserMetadata{
		FirstName:   strings.TrimSpace(in.Metadata.FirstName),
		LastName:    strings.TrimSpace(in.Metadata.LastName),
		PhoneNumber: strings.TrimSpace(in.Metadata.PhoneNumber),
	}
	if meta.FirstName == "" {
		return nil, invalid("first_name", "first name is required")
	}
	if meta.LastName == "" {
		return nil, invalid("last_name", "last name is required")
	}
	if err := validatePhone(meta.PhoneNumber); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	confirmation, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	sentAt := s.now().UTC()

	user := &domain.User{
		ID:                 uuid.NewString(),
		Email:              email,
		PasswordHash:       string(hash),
		Metadata:           meta,
		ConfirmationHash:   hashToken(confirmation),
		ConfirmationSentAt: &sentAt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	admin := domain.AdminFalse
	if s.isAdminEmail(email) {
		admin = domain.AdminTrue
	}
	profile := &domain.Profile{
		ID:          user.ID,
		FirstName:   meta.FirstName,
		LastName:    meta.LastName,
		PhoneNumber: meta.PhoneNumber,
		Admin:       admin,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("create profile for new user")
	}
	if err := s.mailer.SendConfirmation(ctx, email, confirmation); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("send confirmation email")
	}

	return user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByConfirmationHash(ctx, hashToken(strings.TrimSpace(token)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	now := s.now()
	if user.ConfirmationSentAt == nil || now.After(user.ConfirmationSentAt.Add(s.confirmationTTL)) {
		return nil, ErrInvalidToken
	}
	if err := s.users.ConfirmEmail(ctx, user.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	s.logger.WithField("user_id", user.ID).Info("email confirmed")
	return s.users.GetByID(ctx, user.ID)
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*domain.User, *Tokens, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if s.requireConfirm && !user.Confirmed() {
		return nil, nil, ErrEmailNotConfirmed
	}

	tokens, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, nil, ErrInvalidToken
	}
	stored, err := s.tokens.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	now := s.now()
	if !stored.Active(now) {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	if err := s.tokens.Revoke(ctx, stored.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	tokens, err := s.issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *authService) SignOut(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	stored, err := s.tokens.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	err = s.tokens.Revoke(ctx, stored.ID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (s *authService) VerifyAccessToken(token string) (*AccessClaims, error) {
	return s.issuer.Verify(token)
}

func (s *authService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

func (s *authService) SyncAdmins(ctx context.Context) error {
	for email := range s.admins {
		user, err := s.users.GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		err = s.profiles.SetAdmin(ctx, user.ID, true)
		if errors.Is(err, repository.ErrNotFound) {
			err = s.profiles.Upsert(ctx, &domain.Profile{
				ID:          user.ID,
				FirstName:   user.Metadata.FirstName,
				LastName:    user.Metadata.LastName,
				PhoneNumber: user.Metadata.PhoneNumber,
				Admin:       domain.AdminTrue,
			})
		}
		if err != nil {
			return fmt.Errorf("grant admin to %s: %w", email, err)
		}
		s.logger.WithField("user_id", user.ID).Info("admin flag granted")
	}
	return nil
}

func (s *authService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}

func (s *authService) issue(ctx context.Context, user *domain.User) (*Tokens, error) {
	access, expiresAt, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.tokens.Create(ctx, &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.issuer.ttl / time.Second),
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *authService) isAdminEmail(email string) bool {
	_, ok := s.admins[email]
	return ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "email %q is not a valid address", raw)
	}
	return email, nil
}

func validatePhone(phone string) error {
	for _, r := range phone {
		if r < '0' || r > '9' {
			return invalid("phone_number", "phone number must contain digits only")
		}
	}
	return nil
}
