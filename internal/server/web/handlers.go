package web

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/server/models"
)

const defaultConversationTitle = "New conversation"

type createConversationRequest struct {
	// A pointer keeps "title omitted" distinct from "title set to empty".
	Title *string `json:"title"`
}

type addMessageRequest struct {
	Content    string `json:"content" binding:"required"`
	Role       string `json:"role"`
	TokenCount int    `json:"token_count"`
}

type streamRequest struct {
	Content    string `json:"content" binding:"required"`
	TokenCount int    `json:"token_count"`
}

type broadcastRequest struct {
	Type    string         `json:"type"`
	Payload models.Payload `json:"payload"`
}

// respondError translates service errors into status codes. Conditions
// the load harness tells apart get distinct codes instead of a blanket
// 500; only genuinely unexpected failures are logged.
func (s *HTTPServer) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrorNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrSerializationFailure):
		status = http.StatusConflict
	case errors.Is(err, common.ErrPoolExhausted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, common.ErrorConstraint):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"detail": err.Error()})
}

// userFromQuery resolves the acting user: an explicit ?user_id= override
// when present, the configured default otherwise.
func (s *HTTPServer) userFromQuery(c *gin.Context) (string, bool) {
	uid := c.Query("user_id")
	if uid == "" {
		return s.defaultUserID, true
	}
	if _, err := uuid.Parse(uid); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid user id"})
		return "", false
	}
	return uid, true
}

func conversationIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid conversation id"})
		return "", false
	}
	return id, true
}

func (s *HTTPServer) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	title := defaultConversationTitle
	if req.Title != nil {
		title = *req.Title
	}

	conv, err := s.chat.CreateConversation(c.Request.Context(), s.defaultUserID, title)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *HTTPServer) listConversations(c *gin.Context) {
	convs, err := s.chat.ListConversations(c.Request.Context(), s.defaultUserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	c.JSON(http.StatusOK, convs)
}

func (s *HTTPServer) searchMessages(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, []*models.Message{})
		return
	}

	results, err := s.chat.SearchMessages(c.Request.Context(), s.defaultUserID, q, 0)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if results == nil {
		results = []*models.Message{}
	}
	c.JSON(http.StatusOK, results)
}

func (s *HTTPServer) getMessages(c *gin.Context) {
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}

	msgs, err := s.chat.GetMessages(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*models.MessageWithTotal{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *HTTPServer) addMessage(c *gin.Context) {
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.Role == "" {
		req.Role = common.RoleUser
	}

	msg, err := s.chat.AddMessage(c.Request.Context(), id, req.Role, req.Content, req.TokenCount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// streamMessage returns the generated chunks in one JSON answer; the
// interesting part is the transaction the service holds open while it
// produces them.
func (s *HTTPServer) streamMessage(c *gin.Context) {
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}

	chunks, err := s.chat.StreamMessage(c.Request.Context(), id, req.Content, req.TokenCount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks, "full_response": strings.Join(chunks, "")})
}

func (s *HTTPServer) deleteConversation(c *gin.Context) {
	id, ok := conversationIDParam(c)
	if !ok {
		return
	}

	deleted, err := s.chat.DeleteConversation(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *HTTPServer) broadcast(c *gin.Context) {
	s.doBroadcast(c, false)
}

func (s *HTTPServer) broadcastSerializable(c *gin.Context) {
	s.doBroadcast(c, true)
}

// doBroadcast runs the shared broadcast flow. Serializable conflicts
// surface as 409 so the caller decides whether to retry.
func (s *HTTPServer) doBroadcast(c *gin.Context, serializable bool) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if req.Type == "" {
		req.Type = common.NotificationTypeSystem
	}
	if req.Payload == nil {
		req.Payload = models.Payload{}
	}

	recipients, err := s.notifications.Broadcast(c.Request.Context(), req.Type, req.Payload, serializable)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"broadcast": true, "recipients": recipients})
}

func (s *HTTPServer) listNotifications(c *gin.Context) {
	uid, ok := s.userFromQuery(c)
	if !ok {
		return
	}

	notifs, err := s.notifications.ListNotifications(c.Request.Context(), uid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if notifs == nil {
		notifs = []*models.NotificationWithTitle{}
	}
	c.JSON(http.StatusOK, notifs)
}

func (s *HTTPServer) unreadCount(c *gin.Context) {
	uid, ok := s.userFromQuery(c)
	if !ok {
		return
	}

	count, err := s.notifications.UnreadCount(c.Request.Context(), uid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (s *HTTPServer) markAllRead(c *gin.Context) {
	uid, ok := s.userFromQuery(c)
	if !ok {
		return
	}

	marked, err := s.notifications.MarkAllRead(c.Request.Context(), uid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": marked})
}

// pollNotifications blocks inside one transaction until something shows
// up for the user or the attempt budget runs out, so the connection
// lease spans the whole wait.
func (s *HTTPServer) pollNotifications(c *gin.Context) {
	uid, ok := s.userFromQuery(c)
	if !ok {
		return
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid since timestamp"})
			return
		}
		since = parsed
	}

	notifs, err := s.notifications.Poll(c.Request.Context(), uid, since)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifs)
}

// health acquires a pooled connection and pings the database. When every
// connection is stuck in a long transaction this answers 503, which is
// exactly the signal the load harness watches for.
func (s *HTTPServer) health(c *gin.Context) {
	if err := s.pool.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}

	stat := s.pool.Stat()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"pool_size":      stat.TotalConns,
		"pool_free":      stat.IdleConns,
		"uptime_seconds": math.Round(time.Since(s.startedAt).Seconds()*10) / 10,
	})
}
