// Package httpapi wires the HTTP transport (Gin) to the Telegram webhook, the
// reporting API and the shared middleware stack: tracing, correlation IDs,
// redacted logging, panic recovery, metrics, CORS, security headers, gzip and
// rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-taskbuddy/docs" // registers the OpenAPI document
	"github.com/tbourn/go-taskbuddy/internal/config"
	"github.com/tbourn/go-taskbuddy/internal/http/handlers"
	"github.com/tbourn/go-taskbuddy/internal/http/middleware"
	"github.com/tbourn/go-taskbuddy/internal/repo"
	"github.com/tbourn/go-taskbuddy/internal/services"
)

// WebhookPath is where Telegram delivers updates.
const WebhookPath = "/telegram/webhook"

// Deps are the collaborators RegisterRoutes cannot build from the database.
type Deps struct {
	// Updates handles webhook updates; nil leaves the webhook unmounted.
	Updates handlers.UpdateHandler
	// Push is the web push provider; nil reports push as unconfigured.
	Push services.PushSender
}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token and PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//
// The reporting API is mounted only when cfg.APIToken is set. It additionally
// gets the X-API-Key check, gzip and the rate limiter; the webhook gets the
// secret-token check and update deduplication instead.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.APIKeyHeader},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if deps.Updates != nil {
		ttl := cfg.UpdateDedupTTL
		claim := func(ctx context.Context, updateID int64) (bool, error) {
			return repo.ClaimUpdate(ctx, db, updateID, time.Now(), ttl)
		}
		release := func(ctx context.Context, updateID int64) error {
			return repo.ReleaseUpdate(ctx, db, updateID)
		}
		wh := handlers.NewWebhook(deps.Updates, claim, release)
		r.POST(WebhookPath, middleware.TelegramSecret(cfg.Bot.WebhookSecret), wh.Handle)
	}

	if cfg.APIToken == "" {
		return
	}

	stats := &services.StatsService{DB: db, ActiveWindow: cfg.ActiveWindow}
	reports := &services.ReportService{DB: db}
	push := &services.PushService{DB: db, Sender: deps.Push}
	h := handlers.New(stats, reports, push)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.APIKey(cfg.APIToken), gzip.Gzip(gzip.DefaultCompression), rl.Handler())
	{
		api.GET("/stats", h.GetStats)
		api.POST("/stats/recompute", h.RecomputeStats)

		api.GET("/reports/user-growth", h.UserGrowth)
		api.GET("/reports/task-completion", h.TaskCompletion)
		api.GET("/reports/activity", h.Activity)
		api.GET("/reports/partnerships", h.Partnerships)
		api.GET("/reports/task-timeline", h.TaskTimeline)
		api.GET("/reports/productivity", h.Productivity)

		api.GET("/push/status", h.PushStatus)
	}
}

// corsMiddleware allows any origin when origins is empty; otherwise it echoes
// allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.APIKeyHeader},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Force ACAO: * even for requests without an Origin header.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes using http.MaxBytesReader.
// Oversized bodies make downstream reads fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
