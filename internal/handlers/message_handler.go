package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/service"
)

// MessageHandler serves the HTTP mirror of the socket operations.
type MessageHandler struct {
	svc    service.Messaging
	logger *zap.SugaredLogger
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(svc service.Messaging, logger *zap.SugaredLogger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type sendMessageRequest struct {
	ReceiverID         int                `json:"receiverId" binding:"required"`
	Content            string             `json:"content"`
	MessageType        models.MessageType `json:"messageType"`
	FileURL            string             `json:"fileUrl"`
	FileName           string             `json:"fileName"`
	FileSize           int64              `json:"fileSize"`
	MimeType           string             `json:"mimeType"`
	IsDisappearing     bool               `json:"isDisappearing"`
	DisappearAfterRead bool               `json:"disappearAfterRead"`
	DisappearInSeconds int                `json:"disappearInSeconds"`
}

// SendMessage handles POST /api/messages.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := service.WithRequestID(c.Request.Context(), requestIDFromContext(c))
	view, err := h.svc.SendMessage(ctx, service.SendMessageParams{
		SenderID:    userID,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: req.MessageType,
		Media: models.MediaDescriptor{
			FileURL:  req.FileURL,
			FileName: req.FileName,
			FileSize: req.FileSize,
			MimeType: req.MimeType,
		},
		IsDisappearing:     req.IsDisappearing,
		DisappearAfterRead: req.DisappearAfterRead,
		DisappearInSeconds: req.DisappearInSeconds,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": view})
}

// GetMessages handles GET /api/messages/:user_id.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	otherID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid user id")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		cursor, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = &cursor
	}

	page, err := h.svc.GetMessages(c.Request.Context(), service.GetMessagesParams{
		UserID:  userID,
		OtherID: otherID,
		Limit:   limit,
		Before:  before,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": page.Messages,
		"total":    page.Total,
		"hasMore":  page.HasMore,
	})
}

// GetChats handles GET /api/chats.
func (h *MessageHandler) GetChats(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	chats, err := h.svc.GetChats(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "chats": chats})
}

// MarkRead handles PUT /api/messages/:message_id/read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "not authenticated")
		return
	}

	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid message id")
		return
	}

	msg, err := h.svc.MarkRead(c.Request.Context(), userID, messageID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *MessageHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSelfSend):
		respondError(c, http.StatusBadRequest, "cannot send a message to yourself")
	case errors.Is(err, service.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrNotAuthorized):
		respondError(c, http.StatusForbidden, "not authorized")
	default:
		h.logger.Errorw("request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}
