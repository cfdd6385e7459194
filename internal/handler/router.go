package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talentbridge/messaging/internal/middleware"
	"github.com/talentbridge/messaging/internal/service"
	"github.com/talentbridge/messaging/pkg/logger"
)

// RouterConfig carries what NewRouter needs.
type RouterConfig struct {
	Messenger         *service.Messenger
	Logger            *logger.Logger
	JWTSecret         string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Heartbeat         time.Duration
	ReadinessChecks   map[string]ReadinessCheck

	// Per client IP, across every route including unauthenticated ones.
	IPRateLimitRequests int
	IPRateLimitWindow   time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	healthHandler := NewHealthHandler(cfg.ReadinessChecks)
	conversationHandler := NewConversationHandler(cfg.Messenger, cfg.Logger)
	messageHandler := NewMessageHandler(cfg.Messenger, cfg.Logger)
	notificationHandler := NewNotificationHandler(cfg.Messenger, cfg.Logger)
	streamHandler := NewStreamHandler(cfg.Messenger, cfg.Logger, cfg.Heartbeat)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.IPRateLimitRequests > 0 {
		r.Use(middleware.RateLimit(cfg.IPRateLimitRequests, cfg.IPRateLimitWindow))
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Get("/stream", streamHandler.Inbox)
			r.Get("/unread-count", conversationHandler.UnreadCount)

			r.Route("/{counterpartID}", func(r chi.Router) {
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Get("/stream", streamHandler.Conversation)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/stream", streamHandler.Notifications)
			r.Post("/read-all", notificationHandler.MarkAllRead)
			r.Post("/{id}/read", notificationHandler.MarkRead)
		})

		r.With(middleware.RequireScope(middleware.ScopeNotificationsWrite)).
			Post("/internal/notifications", notificationHandler.Create)
	})

	return r
}
