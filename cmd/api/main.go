package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "hokenhub/api/swagger" // swagger docs
	"hokenhub/internal/config"
	"hokenhub/internal/database"
	"hokenhub/internal/handler"
	"hokenhub/internal/jobs"
	"hokenhub/internal/logger"
	"hokenhub/internal/mailer"
	"hokenhub/internal/middleware"
	"hokenhub/internal/repository"
	"hokenhub/internal/service"
	"hokenhub/internal/storage"
	"hokenhub/internal/token"
	"hokenhub/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// @title           HokenHub Insurance Directory API
// @version         1.0
// @description     Multi-facility insurance plan directory with approval-gated accounts.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Configuration invalid: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Release())
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Database handle unavailable: %v", err)
	}
	log.Info("Connected to database successfully.")

	var mail mailer.Mailer = mailer.NewLogMailer(log)
	if cfg.MailEnabled() {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		log.Warn("SMTP not configured, emails will only be logged")
	}

	var images storage.ImageStore = storage.DisabledStore{}
	if cfg.StorageEnabled() {
		s3Store, err := storage.NewS3ImageStore(context.Background(), storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			UsePathStyle:  cfg.S3UsePathStyle,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			log.Fatalf("Image storage setup failed: %v", err)
		}
		images = s3Store
	} else {
		log.Warn("S3_BUCKET not set, image uploads are disabled")
	}

	tokens := token.NewService(cfg.AccessSecret, cfg.RefreshSecret)

	// Set up dependencies (Repository -> Service -> Handler)
	tm := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	facilityRepo := repository.NewFacilityRepository(db)
	planRepo := repository.NewPlanRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	wsHub := websocket.NewHub(tokens, userRepo, cfg.CORSOrigins, log)
	go wsHub.Run()

	notificationService := service.NewNotificationService(mail, userRepo, planRepo, auditRepo, cfg.SuperAdminEmail, log)
	services := handler.Services{
		Auth:          service.NewAuthService(userRepo, facilityRepo, tokens, notificationService, cfg.FrontendURL, log),
		Admin:         service.NewAdminService(tm, userRepo, facilityRepo, auditRepo, cfg.SuperAdminEmail, log),
		Plans:         service.NewPlanService(tm, planRepo, auditRepo, images, wsHub, log),
		Facilities:    service.NewFacilityService(tm, facilityRepo, auditRepo),
		Notifications: notificationService,
		Audit:         service.NewAuditService(auditRepo),
		Statistics:    service.NewStatisticsService(userRepo, planRepo),
	}
	guard := middleware.NewAuthGuard(tokens, userRepo, log)

	var limiter middleware.Limiter
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute)
	} else {
		limiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	scheduler, err := jobs.NewScheduler(cfg.DigestSchedule, notificationService, log)
	if err != nil {
		log.Fatalf("Scheduler setup failed: %v", err)
	}
	scheduler.Start()

	router := handler.NewRouter(handler.RouterConfig{
		CORSOrigins:  cfg.CORSOrigins,
		CookieSecure: cfg.CookieSecure,
		Swagger:      !cfg.Release(),
		Limiter:      limiter,
		Feed:         wsHub.ServeWs,
		DB:           sqlDB,
	}, services, guard, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP shutdown")
	}
	scheduler.Stop(ctx)
	wsHub.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = sqlDB.Close()
}
