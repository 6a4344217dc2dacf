package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agency-site/internal/domain"
	"agency-site/internal/service"
)

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(*profile))
}

func (h *Handler) upsertProfile(c *gin.Context) {
	var req profileUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	profile, err := h.profiles.Upsert(c.Request.Context(), actorFrom(c), domain.Profile{
		ID:          c.Param("id"),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(*profile))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req profilePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	fields := domain.ProfileFields{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		AvatarURL:   req.AvatarURL,
	}
	if fields.Empty() {
		h.badRequest(c, errors.New("no profile fields to update"))
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), actorFrom(c), c.Param("id"), fields)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(*profile))
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes)
	header, err := c.FormFile("file")
	if err != nil {
		h.badRequest(c, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.badRequest(c, err)
		return
	}
	defer file.Close()

	profile, err := h.profiles.UploadAvatar(c.Request.Context(), actorFrom(c), c.Param("id"), service.AvatarUpload{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileToResponse(*profile))
}

func (h *Handler) isUserAdmin(c *gin.Context) {
	var req isAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	admin, err := h.profiles.IsAdmin(c.Request.Context(), actorFrom(c), req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, admin)
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.profiles.ListUsers(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]AdminUserResponse, len(users))
	for i, u := range users {
		resp[i] = AdminUserResponse{UserResponse: userToResponse(u.User)}
		if u.Profile != nil {
			p := profileToResponse(*u.Profile)
			resp[i].Profile = &p
		}
	}
	c.JSON(http.StatusOK, resp)
}
