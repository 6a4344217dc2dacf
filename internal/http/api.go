package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"agency-site/internal/metrics"
	"agency-site/internal/service"
)

const maxAvatarBytes = 5 << 20

// Options configures the handler's cross-cutting behaviour.
type Options struct {
	AllowedOrigin string
	RateLimit     RateLimitConfig
	AdminCacheTTL time.Duration
	Metrics       metrics.Recorder
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth     service.AuthService
	profiles service.ProfileService
	projects service.ProjectService
	contact  service.ContactService

	admins        *adminCache
	limiter       *RateLimiter
	metrics       metrics.Recorder
	gatherer      prometheus.Gatherer
	logger        logrus.FieldLogger
	allowedOrigin string
	closeOnce     sync.Once
}

func NewHandler(auth service.AuthService, profiles service.ProfileService, projects service.ProjectService, contact service.ContactService, opts Options) *Handler {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Handler{
		auth:          auth,
		profiles:      profiles,
		projects:      projects,
		contact:       contact,
		admins:        newAdminCache(profiles, opts.AdminCacheTTL),
		limiter:       NewRateLimiter(opts.RateLimit),
		metrics:       opts.Metrics,
		gatherer:      opts.Gatherer,
		logger:        opts.Logger,
		allowedOrigin: opts.AllowedOrigin,
	}
}

// Close stops the background goroutines owned by the handler.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		h.limiter.Stop()
		h.admins.stop()
	})
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.requestLogger(), corsMiddleware(h.allowedOrigin))

	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(h.gatherer)))
	}

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		api.POST("/auth/signup", h.rateLimit(), h.signUp)
		api.POST("/auth/token", h.rateLimit(), h.signIn)
		api.POST("/auth/refresh", h.refresh)
		api.POST("/auth/verify", h.rateLimit(), h.verifyEmail)
		api.POST("/contact-messages", h.rateLimit(), h.submitContactMessage)

		authed := api.Group("", h.requireAuth())
		authed.POST("/auth/logout", h.signOut)
		authed.GET("/auth/user", h.currentUser)

		authed.GET("/profiles/:id", h.getProfile)
		authed.PUT("/profiles/:id", h.upsertProfile)
		authed.PATCH("/profiles/:id", h.updateProfile)
		authed.POST("/profiles/:id/avatar", h.uploadAvatar)
		authed.POST("/rpc/is_user_admin", h.isUserAdmin)

		authed.GET("/project-requests", h.listProjectRequests)
		authed.POST("/project-requests", h.createProjectRequest)

		admin := authed.Group("/admin", h.requireAdmin())
		admin.GET("/contact-messages", h.listContactMessages)
		admin.PATCH("/contact-messages/:id/read", h.markContactMessageRead)
		admin.GET("/project-requests", h.listAllProjectRequests)
		admin.PATCH("/project-requests/:id/status", h.updateProjectRequestStatus)
		admin.GET("/users", h.listUsers)
	}
}
