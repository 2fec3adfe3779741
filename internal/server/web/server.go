// Package web exposes the chat and notification services over HTTP.
// Routes, request bodies and response shapes follow the JSON API the
// load harness drives; every data-touching handler runs its work in a
// single pooled transaction via the service layer.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/logging"
	"github.com/mkarpis/chatdb/internal/server/models"
)

// ChatService is the conversation and message surface the HTTP layer
// exposes. *services.ChatService implements it.
type ChatService interface {
	CreateConversation(ctx context.Context, userID string, title string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]*models.MessageWithTotal, error)
	AddMessage(ctx context.Context, conversationID string, role string, content string, tokenCount int) (*models.Message, error)
	StreamMessage(ctx context.Context, conversationID string, content string, tokenCount int) ([]string, error)
	SearchMessages(ctx context.Context, userID string, query string, limit int) ([]*models.Message, error)
	DeleteConversation(ctx context.Context, conversationID string) (bool, error)
}

// NotificationService is the notification surface the HTTP layer
// exposes. *services.NotificationService implements it.
type NotificationService interface {
	Broadcast(ctx context.Context, ntype string, payload models.Payload, serializable bool) (int, error)
	ListNotifications(ctx context.Context, userID string) ([]*models.NotificationWithTitle, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Poll(ctx context.Context, userID string, since time.Time) ([]*models.Notification, error)
}

// DBPool is the slice of the connection pool the health check and the
// metrics collectors consult.
type DBPool interface {
	Ping(ctx context.Context) error
	Stat() dbx.PoolStat
}

type HTTPServer struct {
	address         string
	logger          logging.Logger
	chat            ChatService
	notifications   NotificationService
	pool            DBPool
	defaultUserID   string
	shutdownTimeout time.Duration
	startedAt       time.Time
	metrics         *metrics
	router          *gin.Engine
}

func NewHTTPServer(a string, l logging.Logger, cs ChatService, ns NotificationService, pool DBPool, defaultUserID string, shutdownTimeout time.Duration) *HTTPServer {
	s := &HTTPServer{
		address:         a,
		logger:          l.With("module", "http_server"),
		chat:            cs,
		notifications:   ns,
		pool:            pool,
		defaultUserID:   defaultUserID,
		shutdownTimeout: shutdownTimeout,
		startedAt:       time.Now(),
	}
	s.metrics = newMetrics(pool, s.startedAt)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.collectRequestMetrics())

	api := router.Group("/api")
	api.Use(s.attachUnreadCount())
	{
		api.POST("/conversations", s.createConversation)
		api.GET("/conversations", s.listConversations)
		api.GET("/conversations/search", s.searchMessages)
		api.GET("/conversations/:id/messages", s.getMessages)
		api.POST("/conversations/:id/messages", s.addMessage)
		api.POST("/conversations/:id/stream", s.streamMessage)
		api.DELETE("/conversations/:id", s.deleteConversation)

		api.POST("/notifications/broadcast", s.broadcast)
		api.POST("/notifications/broadcast-serializable", s.broadcastSerializable)
		api.GET("/notifications", s.listNotifications)
		api.GET("/notifications/unread-count", s.unreadCount)
		api.POST("/notifications/mark-read", s.markAllRead)
		api.GET("/notifications/poll", s.pollNotifications)
	}

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	s.router = router
	return s
}

// Run serves until ctx is cancelled, then drains in-flight requests for
// at most the configured shutdown timeout. Long-poll handlers observe
// the cancellation through the request context and roll back.
func (s *HTTPServer) Run(ctx context.Context) error {

	// Request contexts derive from ctx, so cancelling it interrupts
	// in-flight long polls and stream delays during the drain.
	srv := &http.Server{
		Addr:        s.address,
		Handler:     s.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// attachUnreadCount stamps API responses with the default user's unread
// notification count. The count is read in its own transaction before
// the handler runs, so every API request costs one extra pool lease.
// Failures only drop the header.
func (s *HTTPServer) attachUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		if count, err := s.notifications.UnreadCount(c.Request.Context(), s.defaultUserID); err == nil {
			c.Header(common.UnreadCountHeaderName, strconv.FormatInt(count, 10))
		}
		c.Next()
	}
}
