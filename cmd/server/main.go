package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agency-site/internal/config"
	apphttp "agency-site/internal/http"
	"agency-site/internal/maintenance"
	"agency-site/internal/metrics"
	"agency-site/internal/repository/sqlite"
	"agency-site/internal/service"
	"agency-site/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	profileRepo := sqlite.NewProfileRepository(db)
	tokenRepo := sqlite.NewRefreshTokenRepository(db)
	requestRepo := sqlite.NewProjectRequestRepository(db)
	messageRepo := sqlite.NewContactMessageRepository(db)
	if err := sqlite.InitAll(ctx, userRepo, profileRepo, tokenRepo, requestRepo, messageRepo); err != nil {
		logger.Fatalf("init repositories: %v", err)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	sanitizer := service.NewSanitizer()
	authService := service.NewAuthService(userRepo, profileRepo, tokenRepo, service.AuthConfig{
		JWTSecret:   cfg.Auth.JWTSecret,
		Issuer:      cfg.Auth.Issuer,
		AccessTTL:   cfg.AccessTokenTTL(),
		RefreshTTL:  cfg.RefreshTokenTTL(),
		AdminEmails: cfg.Auth.AdminEmails,

		ConfirmationTTL:     cfg.ConfirmationTTL(),
		RequireConfirmation: cfg.Auth.RequireEmailConfirmation,
		Logger:              logger,
	})
	profileService := service.NewProfileService(profileRepo, userRepo, storageSvc, logger)
	projectService := service.NewProjectService(requestRepo, userRepo, profileRepo, sanitizer)
	contactService := service.NewContactService(messageRepo, sanitizer)

	housekeeping := maintenance.NewManager(maintenance.Config{Interval: time.Hour, Logger: logger},
		maintenance.Job{Name: "sync-admins", Run: authService.SyncAdmins},
		maintenance.Job{Name: "purge-refresh-tokens", Run: func(ctx context.Context) error {
			n, err := authService.PurgeExpiredTokens(ctx)
			if err == nil && n > 0 {
				logger.Infof("purged %d expired refresh tokens", n)
			}
			return err
		}},
	)
	housekeeping.RunOnce(ctx)
	if err := housekeeping.Start(ctx); err != nil {
		logger.Fatalf("start maintenance: %v", err)
	}

	registry := metrics.NewRegistry()
	collector := metrics.NewCollector(registry)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(authService, profileService, projectService, contactService, apphttp.Options{
		AllowedOrigin: cfg.CORS.AllowedOrigin,
		RateLimit: apphttp.RateLimitConfig{
			PerMinute: cfg.RateLimit.PerMinute,
			Burst:     cfg.RateLimit.Burst,
		},
		Metrics:  collector,
		Gatherer: registry,
		Logger:   logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	handler.Close()
	housekeeping.Shutdown()

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// buildStorage returns nil when no bucket is configured; avatar uploads are
// then rejected as unavailable.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("no storage bucket configured, avatar uploads disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	svc, err := storage.NewS3Service(client, storage.S3Config{
		Bucket:        cfg.Storage.Bucket,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		Region:        cfg.Storage.Region,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return svc, nil
}
