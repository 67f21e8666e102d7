package server

import (
	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/files"
	"filetrack-backend/internal/reports"
	"filetrack-backend/internal/scans"
	"filetrack-backend/internal/services/health"
	"filetrack-backend/internal/shared/auth"
	"filetrack-backend/internal/shared/config"
	"filetrack-backend/internal/shared/metrics"
	"filetrack-backend/internal/shared/server/middleware"
	"filetrack-backend/internal/users"
)

const apiPrefix = "/api/v1"

type RouterDeps struct {
	Config         config.Config
	Tokens         *auth.Tokens
	Health         *health.Service
	UserHandler    *users.Handler
	FileHandler    *files.Handler
	ReportsHandler *reports.Handler
	ScanHandler    *scans.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		metrics.Middleware(),
		middleware.Auth(deps.Tokens,
			apiPrefix+"/health",
			apiPrefix+"/auth/login",
			"/metrics",
		),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	if deps.Health != nil {
		deps.Health.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": middleware.PerMinute(deps.Config.LoginRatePerMinute),
			},
		})
		deps.UserHandler.RegisterPublicRoutes(api, loginLimit)
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.FileHandler != nil {
		deps.FileHandler.RegisterRoutes(api)
	}
	if deps.ReportsHandler != nil {
		deps.ReportsHandler.RegisterRoutes(api)
	}
	if deps.ScanHandler != nil {
		deps.ScanHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
