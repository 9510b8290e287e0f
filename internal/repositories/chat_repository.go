package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat summary persistence.
type ChatRepository interface {
	FindOrCreateChat(ctx context.Context, userID int, otherID int) (models.Chat, error)
	FindChat(ctx context.Context, userID int, otherID int) (models.Chat, error)
	// UpdateOnSend sets the last-message pointer and atomically increments
	// the receiver's unread counter.
	UpdateOnSend(ctx context.Context, chatID int, messageID int, receiverID int, sentAt time.Time) error
	ResetUnread(ctx context.Context, chatID int, userID int) error
	ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func normalizePair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// FindOrCreateChat returns the chat for the unordered pair, creating it
// on first contact. The upsert keeps concurrent first-messages from
// producing two rows.
func (r *ChatRepo) FindOrCreateChat(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	if userID == otherID {
		return models.Chat{}, errors.New("chat requires two distinct users")
	}
	user1, user2 := normalizePair(userID, otherID)

	var chat models.Chat
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chats (user1_id, user2_id) VALUES ($1, $2)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
         RETURNING id, user1_id, user2_id, last_message_id, last_message_at, created_at`,
		user1, user2).StructScan(&chat)
	return chat, err
}

// FindChat returns the chat for the pair without creating one.
func (r *ChatRepo) FindChat(ctx context.Context, userID int, otherID int) (models.Chat, error) {
	user1, user2 := normalizePair(userID, otherID)
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT id, user1_id, user2_id, last_message_id, last_message_at, created_at
         FROM chats WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// UpdateOnSend advances the last-message pointer and bumps the unread
// counter for the receiver. The counter bump is a single upsert so
// concurrent sends to the same chat never lose an increment.
func (r *ChatRepo) UpdateOnSend(ctx context.Context, chatID int, messageID int, receiverID int, sentAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET last_message_id=$2, last_message_at=$3 WHERE id=$1`,
		chatID, messageID, sentAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_unread (chat_id, user_id, count) VALUES ($1, $2, 1)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET count = chat_unread.count + 1`,
		chatID, receiverID); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetUnread zeroes the unread counter for one participant.
func (r *ChatRepo) ResetUnread(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_unread (chat_id, user_id, count) VALUES ($1, $2, 0)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET count = 0`,
		chatID, userID)
	return err
}

type chatListRow struct {
	models.Chat
	UnreadCount int `db:"unread_count"`

	User1Username string    `db:"user1_username"`
	User1Avatar   string    `db:"user1_avatar"`
	User1Online   bool      `db:"user1_online"`
	User1LastSeen time.Time `db:"user1_last_seen"`

	User2Username string    `db:"user2_username"`
	User2Avatar   string    `db:"user2_avatar"`
	User2Online   bool      `db:"user2_online"`
	User2LastSeen time.Time `db:"user2_last_seen"`

	LastID          *int                `db:"lm_id"`
	LastSenderID    *int                `db:"lm_sender_id"`
	LastReceiverID  *int                `db:"lm_receiver_id"`
	LastContent     *string             `db:"lm_content"`
	LastMessageType *models.MessageType `db:"lm_message_type"`
	LastIsRead      *bool               `db:"lm_is_read"`
	LastIsDeleted   *bool               `db:"lm_is_deleted"`
	LastCreatedAt   *time.Time          `db:"lm_created_at"`
}

// ListChats returns every chat the user participates in, with both
// participants' public profiles, the last message and the caller's
// unread count, newest activity first.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `SELECT
            c.id, c.user1_id, c.user2_id, c.last_message_id, c.last_message_at, c.created_at,
            COALESCE(cu.count, 0) AS unread_count,
            u1.username AS user1_username, u1.avatar AS user1_avatar,
            u1.is_online AS user1_online, u1.last_seen AS user1_last_seen,
            u2.username AS user2_username, u2.avatar AS user2_avatar,
            u2.is_online AS user2_online, u2.last_seen AS user2_last_seen,
            lm.id AS lm_id, lm.sender_id AS lm_sender_id, lm.receiver_id AS lm_receiver_id,
            lm.content AS lm_content, lm.message_type AS lm_message_type,
            lm.is_read AS lm_is_read, lm.is_deleted AS lm_is_deleted, lm.created_at AS lm_created_at
        FROM chats c
        JOIN users u1 ON u1.id = c.user1_id
        JOIN users u2 ON u2.id = c.user2_id
        LEFT JOIN chat_unread cu ON cu.chat_id = c.id AND cu.user_id = $1
        LEFT JOIN messages lm ON lm.id = c.last_message_id
        WHERE c.user1_id = $1 OR c.user2_id = $1
        ORDER BY c.last_message_at DESC`

	var rows []chatListRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.ChatSummary{
			ChatID: row.ID,
			Participants: []models.PublicUser{
				{ID: row.User1ID, Username: row.User1Username, Avatar: row.User1Avatar, IsOnline: row.User1Online, LastSeen: row.User1LastSeen},
				{ID: row.User2ID, Username: row.User2Username, Avatar: row.User2Avatar, IsOnline: row.User2Online, LastSeen: row.User2LastSeen},
			},
			LastMessageAt: row.LastMessageAt,
			UnreadCount:   row.UnreadCount,
		}
		if row.LastID != nil && row.LastIsDeleted != nil && !*row.LastIsDeleted {
			summary.LastMessage = &models.Message{
				ID:          *row.LastID,
				SenderID:    *row.LastSenderID,
				ReceiverID:  *row.LastReceiverID,
				Content:     *row.LastContent,
				MessageType: *row.LastMessageType,
				IsRead:      *row.LastIsRead,
				CreatedAt:   *row.LastCreatedAt,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
