package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpapi "github.com/slc-run/slc-demo-backend/internal/api/http"
	"github.com/slc-run/slc-demo-backend/internal/api/http/middleware"
	demohttp "github.com/slc-run/slc-demo-backend/internal/demo/http"
)

type RouterDeps struct {
	Health             httpapi.HealthDeps
	Demo               demohttp.DemoService
	MaxBodyBytes       int64
	CORSAllowedOrigins []string
	CleanupAPIKey      string
	RateLimitPerMinute int
	RateLimitBurst     int
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(corsConfig(dep.CORSAllowedOrigins)))

	healthHandler := httpapi.NewHealthHandler(dep.Health)
	healthHandler.RegisterRoutes(r)

	var createLimits []gin.HandlerFunc
	if dep.RateLimitPerMinute > 0 {
		limiter := middleware.NewRateLimiter(dep.RateLimitPerMinute, dep.RateLimitBurst)
		createLimits = append(createLimits, limiter.Middleware())
	}

	var cleanupAuth gin.HandlerFunc
	if dep.CleanupAPIKey != "" {
		cleanupAuth = middleware.APIKeyMiddleware(dep.CleanupAPIKey)
	}

	demo := r.Group("/api/demo")
	demohttp.New(dep.Demo, dep.MaxBodyBytes).Register(demo, createLimits, cleanupAuth)

	return r
}

// corsConfig allows every origin when none are configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-API-Key", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
