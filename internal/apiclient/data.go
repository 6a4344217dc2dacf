package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"agency-site/internal/domain"
)

// ProfileUpsert is the full set of user-editable profile fields.
type ProfileUpsert struct {
	ID          string `json:"-"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

// ProfileUpdate changes only the non-nil fields.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// ProjectRequestInput is a new project request. Empty name and email default
// to the signed-in user's.
type ProjectRequestInput struct {
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Title       string   `json:"project_title"`
	Description string   `json:"project_description"`
	Budget      *float64 `json:"budget,omitempty"`
}

// ContactMessageInput is a contact form submission.
type ContactMessageInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type profileWire struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	AvatarURL   string    `json:"avatar_url"`
	PhoneNumber string    `json:"phone_number"`
	IsAdmin     *bool     `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p profileWire) toDomain() *domain.Profile {
	return &domain.Profile{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		AvatarURL:   p.AvatarURL,
		PhoneNumber: p.PhoneNumber,
		Admin:       domain.AdminFlagFromBool(p.IsAdmin),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type projectRequestWire struct {
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

func (r projectRequestWire) toDomain() domain.ProjectRequest {
	return domain.ProjectRequest{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Email:       r.Email,
		Title:       r.Title,
		Description: r.Description,
		Budget:      r.Budget,
		Status:      domain.ProjectStatus(r.Status),
		CreatedAt:   r.CreatedAt,
	}
}

func projectRequestsToDomain(in []projectRequestWire) []domain.ProjectRequest {
	out := make([]domain.ProjectRequest, len(in))
	for i := range in {
		out[i] = in[i].toDomain()
	}
	return out
}

type contactMessageWire struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (m contactMessageWire) toDomain() domain.ContactMessage {
	return domain.ContactMessage{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Message:   m.Message,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}

type multipartBody struct {
	body        io.Reader
	contentType string
}

// GetProfile fetches the profile keyed by id.
func (c *Client) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var wire profileWire
	if err := c.authed(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(id), nil, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// UpsertProfile creates the profile or overwrites its names and phone number.
func (c *Client) UpsertProfile(ctx context.Context, p ProfileUpsert) (*domain.Profile, error) {
	var wire profileWire
	if err := c.authed(ctx, http.MethodPut, "/api/profiles/"+url.PathEscape(p.ID), p, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*domain.Profile, error) {
	var wire profileWire
	if err := c.authed(ctx, http.MethodPatch, "/api/profiles/"+url.PathEscape(id), u, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// UploadAvatar stores an image and returns the profile with its new avatar URL.
func (c *Client) UploadAvatar(ctx context.Context, id, filename string, r io.Reader) (*domain.Profile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var wire profileWire
	body := &multipartBody{body: &buf, contentType: mw.FormDataContentType()}
	if err := c.authed(ctx, http.MethodPost, "/api/profiles/"+url.PathEscape(id)+"/avatar", body, &wire); err != nil {
		return nil, err
	}
	return wire.toDomain(), nil
}

// IsUserAdmin asks the backend whether userID is an administrator.
func (c *Client) IsUserAdmin(ctx context.Context, userID string) (bool, error) {
	var admin bool
	if err := c.authed(ctx, http.MethodPost, "/api/rpc/is_user_admin", map[string]string{"user_id": userID}, &admin); err != nil {
		return false, err
	}
	return admin, nil
}

// ListProjectRequests returns owner's project requests, newest first.
func (c *Client) ListProjectRequests(ctx context.Context, owner string) ([]domain.ProjectRequest, error) {
	var wire []projectRequestWire
	path := "/api/project-requests?" + url.Values{"user_id": {owner}}.Encode()
	if err := c.authed(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	return projectRequestsToDomain(wire), nil
}

func (c *Client) CreateProjectRequest(ctx context.Context, in ProjectRequestInput) (*domain.ProjectRequest, error) {
	var wire projectRequestWire
	if err := c.authed(ctx, http.MethodPost, "/api/project-requests", in, &wire); err != nil {
		return nil, err
	}
	req := wire.toDomain()
	return &req, nil
}

// SubmitContactMessage posts the public contact form. No session is needed.
func (c *Client) SubmitContactMessage(ctx context.Context, in ContactMessageInput) (*domain.ContactMessage, error) {
	var wire contactMessageWire
	if err := c.do(ctx, http.MethodPost, "/api/contact-messages", "", in, &wire); err != nil {
		return nil, err
	}
	msg := wire.toDomain()
	return &msg, nil
}

// ListContactMessages returns the admin inbox filtered by query, and stats
// over the whole inbox.
func (c *Client) ListContactMessages(ctx context.Context, query string) ([]domain.ContactMessage, domain.ContactStats, error) {
	var resp struct {
		Messages []contactMessageWire `json:"messages"`
		Stats    struct {
			Total  int `json:"total"`
			Unread int `json:"unread"`
			Read   int `json:"read"`
		} `json:"stats"`
	}
	path := "/api/admin/contact-messages"
	if query != "" {
		path += "?" + url.Values{"q": {query}}.Encode()
	}
	if err := c.authed(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, domain.ContactStats{}, err
	}
	messages := make([]domain.ContactMessage, len(resp.Messages))
	for i := range resp.Messages {
		messages[i] = resp.Messages[i].toDomain()
	}
	return messages, domain.ContactStats(resp.Stats), nil
}

func (c *Client) MarkContactMessageRead(ctx context.Context, id string) error {
	return c.authed(ctx, http.MethodPatch, "/api/admin/contact-messages/"+url.PathEscape(id)+"/read", nil, nil)
}

// ListAllProjectRequests returns every request, optionally only those with status.
func (c *Client) ListAllProjectRequests(ctx context.Context, status string) ([]domain.ProjectRequest, domain.ProjectRequestStats, error) {
	var resp struct {
		Requests []projectRequestWire `json:"requests"`
		Stats    struct {
			Pending  int `json:"pending"`
			Active   int `json:"active"`
			Rejected int `json:"rejected"`
		} `json:"stats"`
	}
	path := "/api/admin/project-requests"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	if err := c.authed(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, domain.ProjectRequestStats{}, err
	}
	return projectRequestsToDomain(resp.Requests), domain.ProjectRequestStats(resp.Stats), nil
}

func (c *Client) UpdateProjectRequestStatus(ctx context.Context, id string, status domain.ProjectStatus) (*domain.ProjectRequest, error) {
	var wire projectRequestWire
	path := "/api/admin/project-requests/" + url.PathEscape(id) + "/status"
	if err := c.authed(ctx, http.MethodPatch, path, map[string]string{"status": string(status)}, &wire); err != nil {
		return nil, err
	}
	req := wire.toDomain()
	return &req, nil
}

// ListUsers returns every account with its profile.
func (c *Client) ListUsers(ctx context.Context) ([]domain.UserWithProfile, error) {
	var resp []struct {
		User
		Profile *profileWire `json:"profile"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/admin/users", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.UserWithProfile, len(resp))
	for i, entry := range resp {
		out[i].User = domain.User{
			ID:        entry.ID,
			Email:     entry.Email,
			Metadata:  entry.UserMetadata,
			CreatedAt: entry.CreatedAt,
		}
		if entry.Profile != nil {
			out[i].Profile = entry.Profile.toDomain()
		}
	}
	return out, nil
}
