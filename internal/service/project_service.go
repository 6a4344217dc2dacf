package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"

	"agency-site/internal/domain"
	"agency-site/internal/repository"
)

// ProjectRequestInput is a new project request. Name and Email default to the
// requester's profile and account when empty.
type ProjectRequestInput struct {
	Name        string
	Email       string
	Title       string
	Description string
	Budget      *float64
}

// ProjectService manages project requests.
type ProjectService interface {
	Create(ctx context.Context, actor Actor, in ProjectRequestInput) (*domain.ProjectRequest, error)
	ListByUser(ctx context.Context, actor Actor, userID string) ([]domain.ProjectRequest, error)
	ListAll(ctx context.Context, actor Actor) ([]domain.ProjectRequest, domain.ProjectRequestStats, error)
	UpdateStatus(ctx context.Context, actor Actor, id string, status domain.ProjectStatus) (*domain.ProjectRequest, error)
}

type projectService struct {
	requests  repository.ProjectRequestRepository
	users     repository.UserRepository
	profiles  repository.ProfileRepository
	sanitizer *Sanitizer
}

func NewProjectService(requests repository.ProjectRequestRepository, users repository.UserRepository, profiles repository.ProfileRepository, sanitizer *Sanitizer) ProjectService {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	return &projectService{
		requests:  requests,
		users:     users,
		profiles:  profiles,
		sanitizer: sanitizer,
	}
}

func (s *projectService) Create(ctx context.Context, actor Actor, in ProjectRequestInput) (*domain.ProjectRequest, error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	req := &domain.ProjectRequest{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		Name:        s.sanitizer.Text(in.Name),
		Email:       normalizeEmail(in.Email),
		Title:       s.sanitizer.Text(in.Title),
		Description: s.sanitizer.Text(in.Description),
		Budget:      in.Budget,
		Status:      domain.ProjectStatusPending,
	}
	if req.Title == "" {
		return nil, invalid("project_title", "project title is required")
	}
	if req.Description == "" {
		return nil, invalid("project_description", "project description is required")
	}
	if b := req.Budget; b != nil && (*b < 0 || math.IsNaN(*b) || math.IsInf(*b, 0)) {
		return nil, invalid("budget", "budget must be a non-negative number")
	}

	if req.Email != "" {
		if _, err := validateEmail(req.Email); err != nil {
			return nil, err
		}
	}
	if err := s.fillContact(ctx, req); err != nil {
		return nil, err
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *projectService) ListByUser(ctx context.Context, actor Actor, userID string) ([]domain.ProjectRequest, error) {
	if userID == "" {
		userID = actor.UserID
	}
	if !actor.owns(userID) && !actor.Admin {
		return nil, ErrForbidden
	}
	return s.requests.ListByUser(ctx, userID)
}

func (s *projectService) ListAll(ctx context.Context, actor Actor) ([]domain.ProjectRequest, domain.ProjectRequestStats, error) {
	if !actor.Admin {
		return nil, domain.ProjectRequestStats{}, ErrForbidden
	}
	requests, err := s.requests.List(ctx)
	if err != nil {
		return nil, domain.ProjectRequestStats{}, err
	}
	return requests, domain.SummariseProjectRequests(requests), nil
}

func (s *projectService) UpdateStatus(ctx context.Context, actor Actor, id string, status domain.ProjectStatus) (*domain.ProjectRequest, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	status = domain.ProjectStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	if err := s.requests.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.requests.Get(ctx, id)
}

func (s *projectService) fillContact(ctx context.Context, req *domain.ProjectRequest) error {
	if req.Name != "" && req.Email != "" {
		return nil
	}
	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if req.Email == "" {
		req.Email = user.Email
	}
	if req.Name == "" {
		profile, err := s.profiles.Get(ctx, req.UserID)
		switch {
		case err == nil:
			req.Name = profile.FullName()
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}
	if req.Name == "" {
		req.Name = strings.TrimSpace(user.Metadata.FirstName + " " + user.Metadata.LastName)
	}
	return nil
}
