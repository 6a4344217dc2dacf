package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Mailer delivers account emails.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, token string) error
}

// LogMailer writes confirmation tokens to the log instead of sending mail.
type LogMailer struct {
	Logger logrus.FieldLogger
}

func (m LogMailer) SendConfirmation(_ context.Context, email, token string) error {
	m.Logger.WithFields(logrus.Fields{
		"email": email,
		"token": token,
	}).Info("email confirmation token issued, confirm with: agencyctl verify --token <token>")
	return nil
}
