package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"

	"agency-site/internal/service"
)

const (
	ctxUserID = "auth.user_id"
	ctxEmail  = "auth.email"
	ctxActor  = "auth.actor"
)

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Retry-After")
		if allowedOrigin != "*" {
			c.Writer.Header().Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request through logrus and records its metrics.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		h.metrics.ObserveRequest(c.Request.Method, c.FullPath(), status, latency)

		entry := h.logger.WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", status).
			WithField("latency", latency.String()).
			WithField("ip", c.ClientIP())
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Info("request")
		default:
			entry.Debug("request")
		}
	}
}

// requireAuth validates the bearer access token and resolves the caller.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token")
			return
		}

		claims, err := h.auth.VerifyAccessToken(strings.TrimSpace(token))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
			return
		}

		admin, err := h.admins.lookup(c.Request.Context(), claims.Subject)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxActor, service.Actor{UserID: claims.Subject, Admin: admin})
		c.Next()
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Admin {
			abortWithError(c, http.StatusForbidden, CodeForbidden, "administrator access required")
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Actor{}
}

// adminCache memoizes the admin flag per user for a short TTL.
type adminCache struct {
	profiles service.ProfileService
	cache    *ttlcache.Cache[string, bool]
}

func newAdminCache(profiles service.ProfileService, ttl time.Duration) *adminCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, bool](ttl),
		ttlcache.WithDisableTouchOnHit[string, bool](),
	)
	go cache.Start()
	return &adminCache{profiles: profiles, cache: cache}
}

func (a *adminCache) lookup(ctx context.Context, userID string) (bool, error) {
	if item := a.cache.Get(userID); item != nil {
		return item.Value(), nil
	}
	admin, err := a.profiles.AdminStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	a.cache.Set(userID, admin, ttlcache.DefaultTTL)
	return admin, nil
}

func (a *adminCache) stop() {
	a.cache.Stop()
}
