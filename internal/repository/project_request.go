package repository

import (
	"context"

	"agency-site/internal/domain"
)

// ProjectRequestRepository exposes persistence operations for project requests.
type ProjectRequestRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, req *domain.ProjectRequest) error
	Get(ctx context.Context, id string) (*domain.ProjectRequest, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ProjectRequest, error)
	List(ctx context.Context) ([]domain.ProjectRequest, error)
	UpdateStatus(ctx context.Context, id string, status domain.ProjectStatus) error
}

// ContactMessageRepository manages contact form submissions.
type ContactMessageRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, msg *domain.ContactMessage) error
	List(ctx context.Context) ([]domain.ContactMessage, error)
	MarkRead(ctx context.Context, id string) error
}
