package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agency-site/internal/service"
)

// Envelope codes returned in the "code" field of error responses.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeValidationFailed   = "validation_failed"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeRateLimited        = "rate_limited"
	CodeStorageUnavailable = "storage_unavailable"
	CodeInternal           = "internal_error"
)

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		abortWithError(c, http.StatusUnprocessableEntity, CodeValidationFailed, verr.Message)
	case errors.Is(err, service.ErrInvalidCredentials):
		abortWithError(c, http.StatusBadRequest, CodeInvalidCredentials, "Invalid login credentials")
	case errors.Is(err, service.ErrEmailNotConfirmed):
		abortWithError(c, http.StatusBadRequest, CodeEmailNotConfirmed, "Email not confirmed")
	case errors.Is(err, service.ErrUserAlreadyExists):
		abortWithError(c, http.StatusConflict, CodeUserAlreadyExists, "User already registered")
	case errors.Is(err, service.ErrInvalidToken):
		abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		abortWithError(c, http.StatusForbidden, CodeForbidden, "permission denied")
	case errors.Is(err, service.ErrNotFound):
		abortWithError(c, http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, service.ErrStorageUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, CodeStorageUnavailable, err.Error())
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	abortWithError(c, http.StatusUnprocessableEntity, CodeValidationFailed, err.Error())
}
