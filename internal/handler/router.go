package handler

import (
	"context"
	"net/http"
	"time"

	"hokenhub/internal/metrics"
	"hokenhub/internal/middleware"
	"hokenhub/internal/service"
	"hokenhub/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Pinger reports store health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services groups the domain services the HTTP layer exposes
type Services struct {
	Auth          service.AuthService
	Admin         service.AdminService
	Plans         service.PlanService
	Facilities    service.FacilityService
	Notifications service.NotificationService
	Audit         service.AuditService
	Statistics    service.StatisticsService
}

// RouterConfig carries the transport settings of the router
type RouterConfig struct {
	CORSOrigins  []string
	CookieSecure bool
	Swagger      bool
	// Limiter throttles credential endpoints; nil disables throttling
	Limiter middleware.Limiter
	// Feed serves /ws when set
	Feed gin.HandlerFunc
	DB   Pinger
}

// NewRouter assembles the gin engine with every route of the API
func NewRouter(cfg RouterConfig, svc Services, guard *middleware.AuthGuard, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	if cfg.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", health(cfg.DB))
	if cfg.Feed != nil {
		router.GET("/ws", cfg.Feed)
	}

	var limit gin.HandlerFunc
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter, log)
	}

	api := router.Group("")
	NewAuthHandler(svc.Auth, guard, middleware.CookieConfig{Secure: cfg.CookieSecure}, limit).RegisterRoutes(api)
	NewUserHandler(svc.Admin, guard).RegisterRoutes(api)
	NewPlanHandler(svc.Plans, guard).RegisterRoutes(api)
	NewFacilityHandler(svc.Facilities, guard).RegisterRoutes(api)
	NewNotificationHandler(svc.Notifications, guard).RegisterRoutes(api)
	NewAuditHandler(svc.Audit, guard).RegisterRoutes(api)
	NewStatisticsHandler(svc.Statistics, guard).RegisterRoutes(api)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Route not found"))
	})
	return router
}

// health handles GET /health
// @Summary      Health check
// @Tags         ops
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}
