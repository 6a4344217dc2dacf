package http

import (
	"time"

	"agency-site/internal/domain"
	"agency-site/internal/service"
)

type metadataBody struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

type signUpRequest struct {
	Email    string       `json:"email" binding:"required"`
	Password string       `json:"password" binding:"required"`
	Data     metadataBody `json:"data"`
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileUpsertRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

type profilePatchRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	AvatarURL   *string `json:"avatar_url"`
}

type isAdminRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type projectRequestBody struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Title       string   `json:"project_title"`
	Description string   `json:"project_description"`
	Budget      *float64 `json:"budget"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type UserResponse struct {
	ID               string              `json:"id"`
	Email            string              `json:"email"`
	UserMetadata     domain.UserMetadata `json:"user_metadata"`
	EmailConfirmedAt *time.Time          `json:"email_confirmed_at"`
	CreatedAt        time.Time           `json:"created_at"`
}

type SessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         UserResponse `json:"user"`
}

type ProfileResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	AvatarURL   string    `json:"avatar_url"`
	PhoneNumber string    `json:"phone_number"`
	IsAdmin     *bool     `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectRequestResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Title       string    `json:"project_title"`
	Description string    `json:"project_description"`
	Budget      *float64  `json:"budget"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProjectRequestStatsResponse struct {
	Pending  int `json:"pending"`
	Active   int `json:"active"`
	Rejected int `json:"rejected"`
}

type ContactMessageResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type ContactStatsResponse struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
	Read   int `json:"read"`
}

type AdminUserResponse struct {
	UserResponse
	Profile *ProfileResponse `json:"profile"`
}

func userToResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		UserMetadata:     u.Metadata,
		EmailConfirmedAt: u.EmailConfirmedAt,
		CreatedAt:        u.CreatedAt,
	}
}

func sessionToResponse(u domain.User, t service.Tokens) SessionResponse {
	return SessionResponse{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		ExpiresAt:    t.ExpiresAt.Unix(),
		User:         userToResponse(u),
	}
}

func profileToResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		AvatarURL:   p.AvatarURL,
		PhoneNumber: p.PhoneNumber,
		IsAdmin:     p.Admin.Bool(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func projectRequestToResponse(r domain.ProjectRequest) ProjectRequestResponse {
	return ProjectRequestResponse{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Email:       r.Email,
		Title:       r.Title,
		Description: r.Description,
		Budget:      r.Budget,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
	}
}

func projectRequestsToResponse(requests []domain.ProjectRequest) []ProjectRequestResponse {
	resp := make([]ProjectRequestResponse, len(requests))
	for i := range requests {
		resp[i] = projectRequestToResponse(requests[i])
	}
	return resp
}

func contactMessageToResponse(m domain.ContactMessage) ContactMessageResponse {
	return ContactMessageResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Message:   m.Message,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}
