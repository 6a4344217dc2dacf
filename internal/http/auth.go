package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agency-site/internal/domain"
	"agency-site/internal/service"
)

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	user, err := h.auth.SignUp(c.Request.Context(), service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Metadata: domain.UserMetadata{
			FirstName:   req.Data.FirstName,
			LastName:    req.Data.LastName,
			PhoneNumber: req.Data.PhoneNumber,
		},
	})
	h.metrics.RecordAuthEvent("signup", err == nil)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userToResponse(*user)})
}

func (h *Handler) signIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	user, tokens, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	h.metrics.RecordAuthEvent("signin", err == nil)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionToResponse(*user, *tokens))
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	user, tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	h.metrics.RecordAuthEvent("refresh", err == nil)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionToResponse(*user, *tokens))
}

func (h *Handler) verifyEmail(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	user, err := h.auth.VerifyEmail(c.Request.Context(), req.Token)
	h.metrics.RecordAuthEvent("verify", err == nil)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToResponse(*user)})
}

func (h *Handler) signOut(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	err := h.auth.SignOut(c.Request.Context(), req.RefreshToken)
	h.metrics.RecordAuthEvent("signout", err == nil)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) currentUser(c *gin.Context) {
	user, err := h.auth.GetUser(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}
