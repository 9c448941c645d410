// Package api assembles the CoachHub HTTP surface.
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/coachhub-backend/internal/api/handlers"
	"github.com/welldanyogia/coachhub-backend/internal/api/middleware"
	"github.com/welldanyogia/coachhub-backend/internal/logger"
	"github.com/welldanyogia/coachhub-backend/internal/models"
	"github.com/welldanyogia/coachhub-backend/internal/services"
	"github.com/welldanyogia/coachhub-backend/internal/storage"
	"github.com/welldanyogia/coachhub-backend/internal/websocket"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB    *gorm.DB
	Redis handlers.Pinger // nil when Redis is not configured

	Messaging   services.MessagingService
	EmailSync   services.EmailSyncService
	FileStorage storage.FileStorage
	Hub         *websocket.Hub

	Logger    *slog.Logger
	SecLogger *logger.SecurityLogger

	JWTSecret      string
	AllowedOrigins []string
	RateLimiter    *middleware.IPRateLimiter // nil disables rate limiting
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	secLogger := cfg.SecLogger
	if secLogger == nil {
		secLogger = logger.NewSecurityLogger()
	}

	// Order matters: recover first, logging last so it sees the requester
	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins))
	if cfg.RateLimiter != nil {
		e.Use(middleware.RateLimiter(cfg.RateLimiter, secLogger))
	}
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	messagingHandler := handlers.NewMessagingHandler(cfg.Messaging)
	emailSyncHandler := handlers.NewEmailSyncHandler(cfg.EmailSync)
	uploadHandler := handlers.NewUploadHandler(cfg.FileStorage, secLogger)
	wsHandler := handlers.NewWebSocketHandler(cfg.Hub, cfg.Messaging, websocket.NewSecureUpgrader(cfg.AllowedOrigins, secLogger), cfg.Logger)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	api := e.Group("/api", middleware.JWTAuth(cfg.JWTSecret, secLogger))
	coachOnly := middleware.RequireType(secLogger, models.ParticipantCoach)

	messaging := api.Group("/messaging")
	messaging.POST("/conversations", messagingHandler.CreateConversation)
	messaging.GET("/conversations", messagingHandler.ListConversations)
	messaging.GET("/conversations/:id", messagingHandler.GetConversation)
	messaging.POST("/conversations/:id/messages", messagingHandler.SendMessage)
	messaging.GET("/conversations/:id/messages", messagingHandler.ListMessages)
	messaging.GET("/conversations/:id/unread-count", messagingHandler.UnreadCount)
	messaging.PATCH("/messages/:id", messagingHandler.EditMessage)
	messaging.DELETE("/messages/:id", messagingHandler.DeleteMessage)
	messaging.POST("/messages/read", messagingHandler.MarkAsRead)
	messaging.POST("/support", messagingHandler.CreateSupportConversation, coachOnly)
	messaging.POST("/uploads", uploadHandler.Upload)
	messaging.GET("/uploads/:name", uploadHandler.Download)
	messaging.GET("/ws", wsHandler.Connect)

	emailSync := api.Group("/email-sync", coachOnly)
	emailSync.POST("/sync", emailSyncHandler.Sync)
	emailSync.GET("/threads", emailSyncHandler.ListThreads)
	emailSync.GET("/threads/:id", emailSyncHandler.GetThread)
	emailSync.POST("/threads/:id/mark-read", emailSyncHandler.MarkThread)
	emailSync.GET("/stats", emailSyncHandler.Stats)

	return e
}
