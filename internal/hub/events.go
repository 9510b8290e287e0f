package hub

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/fanout"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/service"
)

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type sendMessagePayload struct {
	ReceiverID         int                `json:"receiverId"`
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

type typingPayload struct {
	ReceiverID int  `json:"receiverId"`
	IsTyping   bool `json:"isTyping"`
}

// TypingNotice is the user-typing event payload.
type TypingNotice struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type markReadPayload struct {
	MessageID int `json:"messageId"`
}

// dispatch routes one inbound frame. Frames are handled in arrival
// order on the connection's read goroutine.
func (c *Conn) dispatch(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.emit(fanout.EventMessageError, gin.H{"message": "malformed frame"})
		return
	}
	observability.IncInboundEvent(frame.Event)

	switch frame.Event {
	case "send-message":
		c.handleSendMessage(frame.Data)
	case "typing":
		c.handleTyping(frame.Data)
	case "mark-read":
		c.handleMarkRead(frame.Data)
	case "initiate-call", "call-user", "answer-call", "accept-call",
		"reject-call", "end-call", "ice-candidate":
		c.handleCall(frame.Event, frame.Data)
	default:
		c.hub.logger.Debugw("unknown event",
			"event", frame.Event, "user_id", c.user.ID, "conn_id", c.info.ConnID)
	}
}

func (c *Conn) handleSendMessage(data json.RawMessage) {
	var p sendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.emit(fanout.EventMessageError, gin.H{"message": "malformed payload"})
		return
	}

	view, err := c.hub.svc.SendMessage(context.Background(), service.SendMessageParams{
		SenderID:    c.user.ID,
		ReceiverID:  p.ReceiverID,
		Content:     p.Content,
		MessageType: p.MessageType,
		Media: models.MediaDescriptor{
			FileURL:  p.FileURL,
			FileName: p.FileName,
			FileSize: p.FileSize,
			MimeType: p.MimeType,
		},
		IsDisappearing:     p.IsDisappearing,
		DisappearAfterRead: p.DisappearAfterRead,
		DisappearInSeconds: p.DisappearInSeconds,
	})
	if err != nil {
		c.hub.logger.Warnw("send-message failed",
			"user_id", c.user.ID, "receiver_id", p.ReceiverID, "error", err)
		c.emit(fanout.EventMessageError, gin.H{"message": sendErrorMessage(err)})
		return
	}
	c.emit(fanout.EventMessageSent, view)
}

func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrSelfSend):
		return "cannot send a message to yourself"
	case errors.Is(err, service.ErrNotFound):
		return "recipient not found"
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid message"
	default:
		return "failed to send message"
	}
}

// handleTyping relays the indicator to the target user only. It is
// fire-and-forget: nothing is stored and there is no error path.
func (c *Conn) handleTyping(data json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == 0 {
		return
	}
	c.hub.fan.EmitToUser(p.ReceiverID, fanout.EventUserTyping, TypingNotice{
		UserID:   c.user.ID,
		Username: c.user.Username,
		IsTyping: p.IsTyping,
	})
}

// handleMarkRead flags a message read. Authorization failures are
// silent on the socket path.
func (c *Conn) handleMarkRead(data json.RawMessage) {
	var p markReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == 0 {
		return
	}
	if _, err := c.hub.svc.MarkRead(context.Background(), c.user.ID, p.MessageID); err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrNotAuthorized) {
			return
		}
		c.hub.logger.Errorw("mark-read failed",
			"user_id", c.user.ID, "message_id", p.MessageID, "error", err)
	}
}
