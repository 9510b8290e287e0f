package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/service"
)

// UserRepositoryMock mocks repositories.UserRepository.
type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *UserRepositoryMock) GetUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *UserRepositoryMock) SetPresence(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	args := m.Called(ctx, userID, online, lastSeen)
	return args.Error(0)
}

// ChatRepositoryMock mocks repositories.ChatRepository.
type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) FindOrCreateChat(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *ChatRepositoryMock) FindChat(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *ChatRepositoryMock) UpdateOnSend(ctx context.Context, chatID int, messageID int, receiverID int, sentAt time.Time) error {
	args := m.Called(ctx, chatID, messageID, receiverID, sentAt)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ResetUnread(ctx context.Context, chatID int, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	summaries, _ := args.Get(0).([]models.ChatSummary)
	return summaries, args.Error(1)
}

// MessageRepositoryMock mocks repositories.MessageRepository.
type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, params repositories.CreateMessageParams) (models.Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) ListBetween(ctx context.Context, userID int, otherID int, before *time.Time, limit int) ([]models.MessageView, error) {
	args := m.Called(ctx, userID, otherID, before, limit)
	views, _ := args.Get(0).([]models.MessageView)
	return views, args.Error(1)
}

func (m *MessageRepositoryMock) CountBetween(ctx context.Context, userID int, otherID int) (int, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, userID int, otherID int, readAt time.Time) ([]int, error) {
	args := m.Called(ctx, userID, otherID, readAt)
	ids, _ := args.Get(0).([]int)
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int, readAt time.Time) error {
	args := m.Called(ctx, messageID, readAt)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteExpired(ctx context.Context, now time.Time) ([]models.DeletedMessage, error) {
	args := m.Called(ctx, now)
	deleted, _ := args.Get(0).([]models.DeletedMessage)
	return deleted, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteReadDisappearing(ctx context.Context, messageIDs []int, now time.Time) ([]models.DeletedMessage, error) {
	args := m.Called(ctx, messageIDs, now)
	deleted, _ := args.Get(0).([]models.DeletedMessage)
	return deleted, args.Error(1)
}

// MessagingMock mocks service.Messaging.
type MessagingMock struct {
	mock.Mock
}

func (m *MessagingMock) SendMessage(ctx context.Context, params service.SendMessageParams) (models.MessageView, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(models.MessageView), args.Error(1)
}

func (m *MessagingMock) GetMessages(ctx context.Context, params service.GetMessagesParams) (service.MessagesPage, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(service.MessagesPage), args.Error(1)
}

func (m *MessagingMock) GetChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	summaries, _ := args.Get(0).([]models.ChatSummary)
	return summaries, args.Error(1)
}

func (m *MessagingMock) MarkRead(ctx context.Context, userID, messageID int) (models.Message, error) {
	args := m.Called(ctx, userID, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessagingMock) RecordCallHistory(ctx context.Context, callerID, calleeID int, messageType models.MessageType, content string) error {
	args := m.Called(ctx, callerID, calleeID, messageType, content)
	return args.Error(0)
}

// ReadDeleterMock mocks service.ReadDeleter.
type ReadDeleterMock struct {
	mock.Mock
}

func (m *ReadDeleterMock) DeleteAfterRead(ctx context.Context, messageIDs []int) {
	m.Called(ctx, messageIDs)
}

// PublisherMock mocks rabbitmq.Publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
