// Package httpapi wires the gin engine: middleware, the bridge webhook, the
// status API, health, metrics and Swagger UI.
package httpapi

import (
	"context"
	"errors"
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

	"github.com/veigamann/whisper-zap/internal/bridge"
	"github.com/veigamann/whisper-zap/internal/config"
	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/http/docs"
	"github.com/veigamann/whisper-zap/internal/http/handlers"
	"github.com/veigamann/whisper-zap/internal/http/middleware"
	"github.com/veigamann/whisper-zap/internal/repo"
)

// Deps are the collaborators the routes need.
type Deps struct {
	DB       *gorm.DB
	Inbox    handlers.Inbox
	Settings handlers.PrefixReader
}

// eventStore backs webhook de-duplication with the processed_events table.
// Deliveries and messages are claimed under separate scopes.
type eventStore struct {
	db      *gorm.DB
	session string
	ttl     time.Duration
}

func (s eventStore) claim(ctx context.Context, scope, id string) (bool, error) {
	seen, err := repo.IsEventProcessed(ctx, s.db, scope, id, time.Now().UTC())
	if err != nil || seen {
		return !seen, err
	}
	_, err = repo.ClaimEvent(ctx, s.db, scope, id, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

func (s eventStore) deliveryScope() string { return "delivery:" + s.session }

func (s eventStore) ClaimDelivery(ctx context.Context, id string) (bool, error) {
	return s.claim(ctx, s.deliveryScope(), id)
}

func (s eventStore) ReleaseDelivery(ctx context.Context, id string) error {
	return repo.ReleaseEvent(ctx, s.db, s.deliveryScope(), id)
}

func (s eventStore) Fresh(ctx context.Context, msg domain.InboundMessage) (bool, error) {
	return s.claim(ctx, s.session, msg.Key.ID)
}

func (s eventStore) Forget(ctx context.Context, msg domain.InboundMessage) error {
	return repo.ReleaseEvent(ctx, s.db, s.session, msg.Key.ID)
}

// rosterShim adapts repo.RosterStats to handlers.RosterReader.
type rosterShim struct{ db *gorm.DB }

func (r rosterShim) RosterStats(ctx context.Context) (repo.Roster, error) {
	return repo.RosterStats(ctx, r.db)
}

// RegisterRoutes installs middleware and endpoints on r.
//
// Order: tracing, request id, redacting logger, recovery, body limit,
// metrics, CORS, security headers, gzip. The webhook then checks the shared
// secret, de-duplicates deliveries and rate limits, in that order: only an
// authenticated delivery claims its id, redeliveries are never throttled,
// and a throttled delivery releases its claim for the retry.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{handlers.HeaderWebhookSecret},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/webhook"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	events := eventStore{db: deps.DB, session: cfg.Bridge.Session, ttl: cfg.Store.EventTTL}
	h := handlers.New(handlers.Options{
		Inbox:   deps.Inbox,
		Decoder: bridge.Decoder{SelfID: cfg.Bridge.SelfID, AcceptAny: cfg.Bridge.AcceptAny},
		Filter:  events,
		Secret:  cfg.Bridge.WebhookSecret,
		Roster:  rosterShim{db: deps.DB},
		Prefix:  deps.Settings,
		Session: cfg.Bridge.Session,
	})

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.POST("/webhook",
		h.WebhookAuth,
		middleware.WebhookDedupe(middleware.DedupeOptions{}, events),
		rl.Handler(),
		h.Webhook,
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.GET("/status", rl.Handler(), h.Status)

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = basePathForDocs(cfg.APIBasePath)
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", handlers.HeaderWebhookSecret, middleware.HeaderWebhookRequestID},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// limitBody caps request bodies; reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func basePathForDocs(prefix string) string {
	if prefix == "/" {
		return ""
	}
	return prefix
}
