package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"design-desk/request-portal/request-portal-backend/internal/attachments"
	"design-desk/request-portal/request-portal-backend/internal/capacity"
	"design-desk/request-portal/request-portal-backend/internal/config"
	"design-desk/request-portal/request-portal-backend/internal/database"
	"design-desk/request-portal/request-portal-backend/internal/export"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/inbox"
	"design-desk/request-portal/request-portal-backend/internal/jobs"
	"design-desk/request-portal/request-portal-backend/internal/metrics"
	"design-desk/request-portal/request-portal-backend/internal/notifications"
	"design-desk/request-portal/request-portal-backend/internal/notifications/websocket"
	"design-desk/request-portal/request-portal-backend/internal/requests"
	"design-desk/request-portal/request-portal-backend/internal/settings"
	"design-desk/request-portal/request-portal-backend/pkg/storage"
)

// app owns every long-lived dependency of the server.
type app struct {
	router  *gin.Engine
	db      *database.DB
	notify  *notifications.Service
	jobs    *jobs.Scheduler
	closers []func()
	logger  *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, logger: logger}
	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *config.Config) error {
	logger := a.logger
	m := metrics.New()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := storage.LoadAWSConfig(ctx, cfg.Storage.Region, cfg.Storage.AccessKeyID, cfg.Storage.SecretKey)
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	// Identity and settings
	directory := identity.NewDirectory(a.db.Gorm)
	fallback := capacity.Limits{
		MaxNormalPerDay:       cfg.Workflow.MaxNormalPerDay,
		MaxUrgentPerDay:       cfg.Workflow.MaxUrgentPerDay,
		OrderableDaysInFuture: cfg.Workflow.OrderableDaysInFuture,
	}
	settingsService := settings.NewService(settings.NewRepository(a.db.Gorm), directory, fallback, logger)

	// Attachments
	var objects storage.S3Client
	bucket := cfg.Storage.Bucket
	if bucket != "" {
		client, err := storage.NewS3Client(ctx, storage.S3Options{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretKey,
			UsePathStyle:    cfg.Storage.Endpoint != "",
		})
		if err != nil {
			return err
		}
		objects = client
	} else {
		logger.Warn("No storage bucket configured, attachments are kept in memory")
		objects = storage.NewMemoryClient()
		bucket = "local"
	}
	files := attachments.NewStore(objects, bucket, cfg.Storage.Prefix, logger)

	// Notifications
	ws := websocket.NewManager(cfg.Server.AllowedOrigins, logger)
	var channels []notifications.Channel
	if cfg.Notifications.EmailEnabled {
		c, err := loadAWS()
		if err != nil {
			return err
		}
		channels = append(channels, notifications.NewEmailChannel(sesv2.NewFromConfig(c), cfg.Notifications.EmailFrom))
	}
	if cfg.Notifications.PushEnabled {
		c, err := loadAWS()
		if err != nil {
			return err
		}
		channels = append(channels, notifications.NewPushChannel(sns.NewFromConfig(c), cfg.Notifications.PushTopicARN))
	}
	a.notify = notifications.NewService(a.db.Gorm, notifications.ServiceConfig{
		WebSocket:   ws,
		Channels:    channels,
		Contacts:    directory,
		Preferences: settingsService,
		Metrics:     m,
	}, logger)

	// Inbox
	requestRepo := requests.NewRepository(a.db.SQL)
	var markers inbox.MarkerStore
	switch cfg.Inbox.MarkerStore {
	case "dynamodb":
		c, err := loadAWS()
		if err != nil {
			return err
		}
		markers = inbox.NewDynamoMarkerStore(dynamodb.NewFromConfig(c), cfg.Inbox.DynamoTable)
	default:
		markers = inbox.NewMarkerStore(a.db.Gorm)
	}
	var cache inbox.Cache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		cache = inbox.NewRedisCache(client, cfg.Inbox.CacheTTL)
	} else {
		memory := inbox.NewMemoryCache(cfg.Inbox.CacheTTL)
		a.closers = append(a.closers, memory.Stop)
		cache = memory
	}
	inboxService := inbox.NewService(requestRepo, markers, cache, a.notify, m, logger)

	// Workflow
	requestService := requests.NewService(requests.Dependencies{
		Repo:     requestRepo,
		Settings: settingsService,
		Roles:    directory,
		Files:    files,
		Notifier: a.notify,
		Inbox:    inboxService,
		Metrics:  m,
		Logger:   logger,
	})
	capacityService := capacity.NewService(requestRepo, settingsService, logger)
	exporter := export.NewExporter(export.DefaultExcelOptions(), export.DefaultPDFOptions())

	// Background jobs
	a.jobs = jobs.NewScheduler(m, logger)
	auditSpec, reminderSpec := cfg.Jobs.LedgerAudit, cfg.Jobs.DueReminders
	if !cfg.Jobs.Enabled {
		auditSpec, reminderSpec = "", ""
	}
	if err := a.jobs.Add(auditSpec, jobs.NewLedgerAudit(requestRepo, requestService, m, logger)); err != nil {
		return err
	}
	if err := a.jobs.Add(reminderSpec, jobs.NewDueReminders(requestRepo, a.notify, cfg.Jobs.DueReminderLeadDays, logger)); err != nil {
		return err
	}

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.Server.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := a.db.SQL.PingContext(c.Request.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "timestamp": time.Now()})
	})
	router.GET("/metrics", m.Handler())

	auth := identity.AuthConfig{JWTSecret: cfg.Security.JWTSecret, AllowUserHeader: cfg.Security.AllowUserHeader}
	api := router.Group("/api/v1", identity.Authenticate(auth, directory, logger))
	{
		identity.NewHandler(directory, logger).RegisterRoutes(api)
		settings.NewHandler(settingsService, logger).RegisterRoutes(api)
		requests.NewHandler(requestService, exporter, logger).RegisterRoutes(api)
		capacity.NewHandler(capacityService, exporter, logger).RegisterRoutes(api)
		inbox.NewHandler(inboxService, logger).RegisterRoutes(api)
		notifications.NewHandler(a.notify, ws, logger).RegisterRoutes(api)
		jobs.NewHandler(a.jobs, logger).RegisterRoutes(api)
	}

	a.router = router
	return nil
}

// Close stops the jobs and drains pending notifications before closing the pool.
func (a *app) Close() {
	if a.jobs != nil {
		a.jobs.Stop()
	}
	if a.notify != nil {
		a.notify.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// cors allows the configured origins, or any origin when none is configured.
func cors(allowed []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(origins) == 0 || origins["*"]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origins[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-User-ID", "Cache-Control", "X-Requested-With",
		}, ", "))
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
