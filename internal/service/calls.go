package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"messenger-service/internal/fanout"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// CallHistoryType maps a call type string to its history message type.
func CallHistoryType(callType string) models.MessageType {
	if callType == "audio" {
		return models.MessageTypeCallAudioEnded
	}
	return models.MessageTypeCallVideoEnded
}

func callLabel(callType string) string {
	if callType == "audio" {
		return "Voice"
	}
	return "Video"
}

// CallStartedContent is the history line written when a call begins.
func CallStartedContent(callType string) string {
	return callLabel(callType) + " call started"
}

// MissedCallContent is the history line for a rejected call.
func MissedCallContent(callType string) string {
	return "Missed " + strings.ToLower(callLabel(callType)) + " call"
}

// CallEndedContent is the history line for a completed call.
func CallEndedContent(callType string, duration time.Duration) string {
	return fmt.Sprintf("%s call ended (%s)", callLabel(callType), formatDuration(duration))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// RecordCallHistory persists a call outcome as an ordinary message and
// pushes it to both parties so their conversation views update live.
// Call history never disappears.
func (s *MessagingService) RecordCallHistory(ctx context.Context, callerID, calleeID int, messageType models.MessageType, content string) error {
	if callerID == calleeID {
		return ErrSelfSend
	}
	if !messageType.IsCall() {
		return fmt.Errorf("%w: %q is not a call message type", ErrInvalidInput, messageType)
	}

	caller, callee, err := s.resolvePair(ctx, callerID, calleeID)
	if err != nil {
		return err
	}

	chat, err := s.chats.FindOrCreateChat(ctx, callerID, calleeID)
	if err != nil {
		return fmt.Errorf("find or create chat: %w", err)
	}

	msg, err := s.messages.CreateMessage(ctx, repositories.CreateMessageParams{
		SenderID:    callerID,
		ReceiverID:  calleeID,
		Content:     content,
		MessageType: messageType,
	})
	if err != nil {
		return fmt.Errorf("create call history: %w", err)
	}
	observability.IncMessageSent(string(msg.MessageType))

	if err := s.chats.UpdateOnSend(ctx, chat.ID, msg.ID, calleeID, msg.CreatedAt); err != nil {
		s.logger.Errorw("failed to update chat after call history",
			"chat_id", chat.ID, "message_id", msg.ID, "error", err)
	}

	s.invalidatePair(ctx, callerID, calleeID)

	view := models.MessageView{Message: msg, Sender: caller.Public(), Receiver: callee.Public()}
	s.fan.EmitToUser(callerID, fanout.EventReceiveMessage, view)
	s.fan.EmitToUser(calleeID, fanout.EventReceiveMessage, view)

	s.publishEvent(ctx, "call.recorded", map[string]interface{}{
		"messageId": msg.ID,
		"callerId":  callerID,
		"calleeId":  calleeID,
		"type":      msg.MessageType,
	})

	return nil
}
