// HTTP handlers for the assistant chat API
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"

	"github.com/alex-paystack/command-centre-api-sub000/pkg/models"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/service"
	"github.com/alex-paystack/command-centre-api-sub000/pkg/utils"
)

// ChatHandler exposes the assistant over HTTP. The user identity comes from
// the X-User-Id header set by the upstream gateway; this service never does
// its own authentication.
type ChatHandler struct {
	chatService *service.ChatService
	logger      *slog.Logger
}

// NewChatHandler creates the handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      utils.GetLogger(),
	}
}

// RegisterRoutes registers chat API routes
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.SendMessage)
	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:id", h.GetConversation)
	r.DELETE("/conversations/:id", h.DeleteConversation)
	r.GET("/conversations/:id/messages", h.GetMessages)
	r.POST("/conversations/:id/continue", h.ContinueConversation)
}

// RequireUser extracts the authenticated user id or rejects the request.
func RequireUser(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-Id header is required"})
		return "", false
	}
	return userID, true
}

// SendMessage handles POST /chat: one user turn, answered as an SSE stream.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := RequireUser(c)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunks, err := h.chatService.SendMessage(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.streamResponse(c, chunks)
}

// streamResponse forwards chunks as SSE events. If the client goes away the
// handler stops writing but keeps draining: the service finishes generation
// and persistence regardless.
func (h *ChatHandler) streamResponse(c *gin.Context, chunks <-chan *models.StreamChunk) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	w := c.Writer
	clientGone := false

	for chunk := range chunks {
		if clientGone {
			continue
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			h.logger.Error("Failed to marshal stream chunk", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			h.logger.Debug("Client disconnected mid-stream", "error", err)
			clientGone = true
			continue
		}
		w.Flush()
	}

	if !clientGone {
		fmt.Fprintf(w, "data: [DONE]\n\n")
		w.Flush()
	}
}

// ListConversations handles GET /conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := RequireUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := h.chatService.ListConversations(userID, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetConversation handles GET /conversations/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := RequireUser(c)
	if !ok {
		return
	}

	conv, err := h.chatService.GetConversation(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// DeleteConversation handles DELETE /conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	userID, ok := RequireUser(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteConversation(userID, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetMessages handles GET /conversations/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := RequireUser(c)
	if !ok {
		return
	}

	resp, err := h.chatService.GetMessages(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ContinueConversation handles POST /conversations/:id/continue
func (h *ChatHandler) ContinueConversation(c *gin.Context) {
	userID, ok := RequireUser(c)
	if !ok {
		return
	}

	var req models.ContinueConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	conv, err := h.chatService.ContinueConversation(userID, c.Param("id"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// writeError maps service errors onto the HTTP error taxonomy.
func (h *ChatHandler) writeError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var rateLimitErr *models.RateLimitError
	var upstreamErr *models.UpstreamError

	switch {
	case pkgerrors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case pkgerrors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case pkgerrors.As(err, &rateLimitErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":         rateLimitErr.Error(),
			"limit":         rateLimitErr.Limit,
			"period_hours":  rateLimitErr.PeriodHours,
			"current_count": rateLimitErr.CurrentCount,
		})
	case pkgerrors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": upstreamErr.Error()})
	default:
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
