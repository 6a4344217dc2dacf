package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
)

const maxContactMessageLength = 5000

// ContactInput is a public contact form submission.
type ContactInput struct {
	Name    string
	Email   string
	Message string
}

// ContactService handles the public contact form and its admin inbox.
type ContactService interface {
	Submit(ctx context.Context, in ContactInput) (*domain.ContactMessage, error)
	List(ctx context.Context, actor Actor) ([]domain.ContactMessage, error)
	MarkRead(ctx context.Context, actor Actor, id string) error
	Stats(ctx context.Context, actor Actor) (domain.ContactStats, error)
}

type contactService struct {
	messages  repository.ContactMessageRepository
	sanitizer *Sanitizer
}

func NewContactService(messages repository.ContactMessageRepository, sanitizer *Sanitizer) ContactService {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	return &contactService{messages: messages, sanitizer: sanitizer}
}

func (s *contactService) Submit(ctx context.Context, in ContactInput) (*domain.ContactMessage, error) {
	msg := &domain.ContactMessage{
		ID:      uuid.NewString(),
		Name:    s.sanitizer.Text(in.Name),
		Message: s.sanitizer.Text(in.Message),
	}
	if msg.Name == "" {
		return nil, invalid("name", "name is required")
	}
	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	msg.Email = email
	if msg.Message == "" {
		return nil, invalid("message", "message is required")
	}
	if len(msg.Message) > maxContactMessageLength {
		return nil, invalid("message", "message must be at most %d characters", maxContactMessageLength)
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *contactService) List(ctx context.Context, actor Actor) ([]domain.ContactMessage, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	return s.messages.List(ctx)
}

func (s *contactService) MarkRead(ctx context.Context, actor Actor, id string) error {
	if !actor.Admin {
		return ErrForbidden
	}
	err := s.messages.MarkRead(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *contactService) Stats(ctx context.Context, actor Actor) (domain.ContactStats, error) {
	messages, err := s.List(ctx, actor)
	if err != nil {
		return domain.ContactStats{}, err
	}
	return domain.SummariseContactMessages(messages), nil
}
