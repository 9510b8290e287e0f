package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/cache"
	"messenger-service/internal/fanout"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// ReadDeleter is the read-triggered deletion path of the reaper. It is
// fire-and-forget from the service's point of view.
type ReadDeleter interface {
	DeleteAfterRead(ctx context.Context, messageIDs []int)
}

// SendMessageParams carries one outgoing message.
type SendMessageParams struct {
	SenderID           int
	ReceiverID         int
	Content            string
	MessageType        models.MessageType
	Media              models.MediaDescriptor
	IsDisappearing     bool
	DisappearAfterRead bool
	DisappearInSeconds int
}

// GetMessagesParams pages through one conversation.
type GetMessagesParams struct {
	UserID  int
	OtherID int
	Limit   int
	Before  *time.Time
}

// MessagesPage is one page of a conversation.
type MessagesPage struct {
	Messages []models.MessageView `json:"messages"`
	Total    int                  `json:"total"`
	HasMore  bool                 `json:"hasMore"`
}

// ReadReceipt is the message-read event payload.
type ReadReceipt struct {
	MessageID int       `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

// Messaging is the application service behind both the websocket hub
// and the HTTP handlers.
type Messaging interface {
	SendMessage(ctx context.Context, params SendMessageParams) (models.MessageView, error)
	GetMessages(ctx context.Context, params GetMessagesParams) (MessagesPage, error)
	GetChats(ctx context.Context, userID int) ([]models.ChatSummary, error)
	MarkRead(ctx context.Context, userID, messageID int) (models.Message, error)
	RecordCallHistory(ctx context.Context, callerID, calleeID int, messageType models.MessageType, content string) error
}

// MessagingService implements Messaging on top of the repositories,
// the cache, the fanout and the event publisher.
type MessagingService struct {
	users     repositories.UserRepository
	chats     repositories.ChatRepository
	messages  repositories.MessageRepository
	store     cache.Cache
	fan       fanout.Fanout
	publisher rabbitmq.Publisher
	deleter   ReadDeleter
	logger    *zap.SugaredLogger

	chatListTTL     time.Duration
	messageCountTTL time.Duration
}

// NewMessagingService wires the service. deleter may be set later via
// SetReadDeleter because the reaper needs the fanout first.
func NewMessagingService(
	users repositories.UserRepository,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	store cache.Cache,
	fan fanout.Fanout,
	publisher rabbitmq.Publisher,
	logger *zap.SugaredLogger,
	chatListTTL, messageCountTTL time.Duration,
) *MessagingService {
	return &MessagingService{
		users:           users,
		chats:           chats,
		messages:        messages,
		store:           store,
		fan:             fan,
		publisher:       publisher,
		logger:          logger,
		chatListTTL:     chatListTTL,
		messageCountTTL: messageCountTTL,
	}
}

// SetReadDeleter attaches the read-triggered deletion path.
func (s *MessagingService) SetReadDeleter(deleter ReadDeleter) {
	s.deleter = deleter
}

func chatListKey(userID int) string {
	return fmt.Sprintf("chats:%d", userID)
}

func messageCountKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("msgcount:%d:%d", a, b)
}

func (s *MessagingService) invalidatePair(ctx context.Context, a, b int) {
	s.store.Invalidate(ctx, chatListKey(a), chatListKey(b), messageCountKey(a, b))
}

// InvalidateConversation drops both participants' cached views. The
// reaper calls this after deleting messages out of band.
func (s *MessagingService) InvalidateConversation(ctx context.Context, a, b int) {
	s.invalidatePair(ctx, a, b)
}

// SendMessage validates, persists and delivers one message. The chat
// pointer update and the delivery are best-effort once the message row
// exists; their failures are logged, never rolled back.
func (s *MessagingService) SendMessage(ctx context.Context, params SendMessageParams) (models.MessageView, error) {
	if params.SenderID == params.ReceiverID {
		return models.MessageView{}, ErrSelfSend
	}
	if params.MessageType == "" {
		params.MessageType = models.MessageTypeText
	}
	if !params.MessageType.Valid() {
		return models.MessageView{}, fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, params.MessageType)
	}
	params.Content = strings.TrimSpace(params.Content)
	if params.Content == "" && params.Media.FileURL == "" {
		return models.MessageView{}, fmt.Errorf("%w: message needs content or a file", ErrInvalidInput)
	}

	sender, receiver, err := s.resolvePair(ctx, params.SenderID, params.ReceiverID)
	if err != nil {
		return models.MessageView{}, err
	}

	chat, err := s.chats.FindOrCreateChat(ctx, params.SenderID, params.ReceiverID)
	if err != nil {
		return models.MessageView{}, fmt.Errorf("find or create chat: %w", err)
	}

	var disappearAt *time.Time
	if params.IsDisappearing && !params.DisappearAfterRead && params.DisappearInSeconds > 0 {
		deadline := time.Now().Add(time.Duration(params.DisappearInSeconds) * time.Second)
		disappearAt = &deadline
	}

	msg, err := s.messages.CreateMessage(ctx, repositories.CreateMessageParams{
		SenderID:           params.SenderID,
		ReceiverID:         params.ReceiverID,
		Content:            params.Content,
		MessageType:        params.MessageType,
		Media:              params.Media,
		IsDisappearing:     params.IsDisappearing,
		DisappearAfterRead: params.IsDisappearing && params.DisappearAfterRead,
		DisappearAt:        disappearAt,
	})
	if err != nil {
		return models.MessageView{}, fmt.Errorf("create message: %w", err)
	}
	observability.IncMessageSent(string(msg.MessageType))

	if err := s.chats.UpdateOnSend(ctx, chat.ID, msg.ID, params.ReceiverID, msg.CreatedAt); err != nil {
		s.logger.Errorw("failed to update chat after send",
			"chat_id", chat.ID, "message_id", msg.ID, "error", err)
	}

	s.invalidatePair(ctx, params.SenderID, params.ReceiverID)

	view := models.MessageView{Message: msg, Sender: sender.Public(), Receiver: receiver.Public()}
	s.fan.EmitToUser(params.ReceiverID, fanout.EventReceiveMessage, view)

	s.publishEvent(ctx, "message.sent", map[string]interface{}{
		"messageId":  msg.ID,
		"senderId":   msg.SenderID,
		"receiverId": msg.ReceiverID,
		"type":       msg.MessageType,
	})

	return view, nil
}

// GetMessages returns one page of the conversation, oldest first. An
// uncursored call is "opening the conversation": it marks unread
// messages read, zeroes the caller's counter and hands the newly read
// ids to the reaper. Cursored calls are pure reads.
func (s *MessagingService) GetMessages(ctx context.Context, params GetMessagesParams) (MessagesPage, error) {
	if params.UserID == params.OtherID {
		return MessagesPage{}, fmt.Errorf("%w: conversation requires another user", ErrInvalidInput)
	}
	if _, err := s.users.GetUser(ctx, params.OtherID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return MessagesPage{}, ErrNotFound
		}
		return MessagesPage{}, fmt.Errorf("resolve user: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var readIDs []int
	if params.Before == nil {
		ids, err := s.messages.MarkConversationRead(ctx, params.UserID, params.OtherID, time.Now().UTC())
		if err != nil {
			return MessagesPage{}, fmt.Errorf("mark conversation read: %w", err)
		}
		readIDs = ids
	}

	views, err := s.messages.ListBetween(ctx, params.UserID, params.OtherID, params.Before, limit)
	if err != nil {
		return MessagesPage{}, fmt.Errorf("list messages: %w", err)
	}

	total, err := s.countBetween(ctx, params.UserID, params.OtherID, params.Before == nil)
	if err != nil {
		return MessagesPage{}, err
	}

	if params.Before == nil {
		// The reset runs even when nothing new was read. A counter left
		// stale by an earlier failed reset heals on the next open.
		if chat, err := s.chats.FindChat(ctx, params.UserID, params.OtherID); err == nil {
			if err := s.chats.ResetUnread(ctx, chat.ID, params.UserID); err != nil {
				s.logger.Errorw("failed to reset unread counter", "chat_id", chat.ID, "error", err)
			}
		} else if !errors.Is(err, repositories.ErrChatNotFound) {
			s.logger.Errorw("failed to look up chat for unread reset", "error", err)
		}
		s.store.Invalidate(ctx, chatListKey(params.UserID))
		if len(readIDs) > 0 {
			if s.deleter != nil {
				s.deleter.DeleteAfterRead(ctx, readIDs)
			}
			s.store.Invalidate(ctx, chatListKey(params.OtherID), messageCountKey(params.UserID, params.OtherID))
		}
	}

	// On the initial page the count covers the whole conversation, so
	// a page that happens to hold exactly `limit` messages must not
	// promise more. Cursored calls only see a window and fall back to
	// the full-page heuristic.
	hasMore := len(views) == limit
	if params.Before == nil {
		hasMore = total > len(views)
	}

	return MessagesPage{
		Messages: views,
		Total:    total,
		HasMore:  hasMore,
	}, nil
}

// countBetween serves the conversation total, cached briefly on the
// initial page where clients poll it most.
func (s *MessagingService) countBetween(ctx context.Context, userID, otherID int, cacheable bool) (int, error) {
	key := messageCountKey(userID, otherID)
	if cacheable {
		var total int
		if cache.GetJSON(ctx, s.store, key, &total) {
			return total, nil
		}
	}
	total, err := s.messages.CountBetween(ctx, userID, otherID)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	if cacheable {
		cache.SetJSON(ctx, s.store, key, total, s.messageCountTTL)
	}
	return total, nil
}

// GetChats lists the caller's conversations, newest activity first.
func (s *MessagingService) GetChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	key := chatListKey(userID)
	var cached []models.ChatSummary
	if cache.GetJSON(ctx, s.store, key, &cached) {
		return cached, nil
	}

	summaries, err := s.chats.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	cache.SetJSON(ctx, s.store, key, summaries, s.chatListTTL)
	return summaries, nil
}

// MarkRead flags a single message read on behalf of its receiver and
// notifies the sender. Marking an already-read message again succeeds
// without side effects.
func (s *MessagingService) MarkRead(ctx context.Context, userID, messageID int) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("get message: %w", err)
	}
	if msg.IsDeleted {
		return models.Message{}, ErrNotFound
	}
	if msg.ReceiverID != userID {
		return models.Message{}, ErrNotAuthorized
	}
	if msg.IsRead {
		return msg, nil
	}

	readAt := time.Now().UTC()
	if err := s.messages.MarkRead(ctx, messageID, readAt); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("mark read: %w", err)
	}
	msg.IsRead = true
	msg.ReadAt = &readAt

	if s.deleter != nil {
		s.deleter.DeleteAfterRead(ctx, []int{messageID})
	}
	s.invalidatePair(ctx, msg.SenderID, msg.ReceiverID)
	s.fan.EmitToUser(msg.SenderID, fanout.EventMessageRead, ReadReceipt{MessageID: messageID, ReadAt: readAt})

	return msg, nil
}

func (s *MessagingService) resolvePair(ctx context.Context, senderID, receiverID int) (models.User, models.User, error) {
	users, err := s.users.GetUsers(ctx, []int{senderID, receiverID})
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("resolve users: %w", err)
	}
	var sender, receiver *models.User
	for i := range users {
		switch users[i].ID {
		case senderID:
			sender = &users[i]
		case receiverID:
			receiver = &users[i]
		}
	}
	if sender == nil || receiver == nil {
		return models.User{}, models.User{}, ErrNotFound
	}
	return *sender, *receiver, nil
}

func (s *MessagingService) publishEvent(ctx context.Context, eventType string, payload interface{}) {
	envelope := observability.NewEventEnvelope(eventType, payload)
	headers := observability.BuildHeaders(requestIDFromContext(ctx), "")
	// Publisher logs and counts its own failures.
	_ = s.publisher.Publish(ctx, eventType, envelope, headers)
}

type requestIDKey struct{}

// WithRequestID stamps the request id used to correlate broker events.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
