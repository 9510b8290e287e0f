package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// CreateMessageParams are the fields of a new message. Zero values are
// stored as-is; defaults are decided by the caller.
type CreateMessageParams struct {
	SenderID           int
	ReceiverID         int
	Content            string
	MessageType        models.MessageType
	Media              models.MediaDescriptor
	IsDisappearing     bool
	DisappearAfterRead bool
	DisappearAt        *time.Time
}

// MessageRepository defines persistence for direct messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	// ListBetween returns non-deleted messages between the pair, oldest
	// first, limited to limit. A non-nil before cursor restricts the page
	// to messages strictly older than it.
	ListBetween(ctx context.Context, userID int, otherID int, before *time.Time, limit int) ([]models.MessageView, error)
	CountBetween(ctx context.Context, userID int, otherID int) (int, error)
	// MarkConversationRead flags every unread message from otherID to
	// userID as read in one batch and returns the affected ids.
	MarkConversationRead(ctx context.Context, userID int, otherID int, readAt time.Time) ([]int, error)
	MarkRead(ctx context.Context, messageID int, readAt time.Time) error
	// DeleteExpired soft-deletes time-based disappearing messages whose
	// deadline has passed.
	DeleteExpired(ctx context.Context, now time.Time) ([]models.DeletedMessage, error)
	// DeleteReadDisappearing soft-deletes the subset of ids that are
	// disappear-after-read messages already read and not yet deleted.
	DeleteReadDisappearing(ctx context.Context, messageIDs []int, now time.Time) ([]models.DeletedMessage, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, sender_id, receiver_id, content, message_type,
    file_url, file_name, file_size, mime_type,
    is_read, read_at, is_disappearing, disappear_after_read, disappear_at,
    is_deleted, deleted_at, created_at`

// CreateMessage stores a message and returns the persisted row.
func (r *MessageRepo) CreateMessage(ctx context.Context, params CreateMessageParams) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content, message_type,
            file_url, file_name, file_size, mime_type,
            is_disappearing, disappear_after_read, disappear_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
         RETURNING `+messageColumns,
		params.SenderID, params.ReceiverID, params.Content, params.MessageType,
		params.Media.FileURL, params.Media.FileName, params.Media.FileSize, params.Media.MimeType,
		params.IsDisappearing, params.DisappearAfterRead, params.DisappearAt).
		StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message, deleted or not.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

type messageViewRow struct {
	models.Message
	SenderUsername   string    `db:"sender_username"`
	SenderAvatar     string    `db:"sender_avatar"`
	SenderOnline     bool      `db:"sender_online"`
	SenderLastSeen   time.Time `db:"sender_last_seen"`
	ReceiverUsername string    `db:"receiver_username"`
	ReceiverAvatar   string    `db:"receiver_avatar"`
	ReceiverOnline   bool      `db:"receiver_online"`
	ReceiverLastSeen time.Time `db:"receiver_last_seen"`
}

func (row messageViewRow) view() models.MessageView {
	return models.MessageView{
		Message: row.Message,
		Sender: models.PublicUser{
			ID: row.SenderID, Username: row.SenderUsername, Avatar: row.SenderAvatar,
			IsOnline: row.SenderOnline, LastSeen: row.SenderLastSeen,
		},
		Receiver: models.PublicUser{
			ID: row.ReceiverID, Username: row.ReceiverUsername, Avatar: row.ReceiverAvatar,
			IsOnline: row.ReceiverOnline, LastSeen: row.ReceiverLastSeen,
		},
	}
}

// ListBetween pages through the conversation. Rows are fetched newest
// first so the limit selects the most recent slice, then reversed so the
// caller receives them oldest first.
func (r *MessageRepo) ListBetween(ctx context.Context, userID int, otherID int, before *time.Time, limit int) ([]models.MessageView, error) {
	query := `SELECT m.id, m.sender_id, m.receiver_id, m.content, m.message_type,
            m.file_url, m.file_name, m.file_size, m.mime_type,
            m.is_read, m.read_at, m.is_disappearing, m.disappear_after_read, m.disappear_at,
            m.is_deleted, m.deleted_at, m.created_at,
            su.username AS sender_username, su.avatar AS sender_avatar,
            su.is_online AS sender_online, su.last_seen AS sender_last_seen,
            ru.username AS receiver_username, ru.avatar AS receiver_avatar,
            ru.is_online AS receiver_online, ru.last_seen AS receiver_last_seen
        FROM messages m
        JOIN users su ON su.id = m.sender_id
        JOIN users ru ON ru.id = m.receiver_id
        WHERE ((m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1))
          AND m.is_deleted = FALSE`

	args := []interface{}{userID, otherID}
	if before != nil {
		query += ` AND m.created_at < $3`
		args = append(args, *before)
	}
	query += fmt.Sprintf(` ORDER BY m.created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var rows []messageViewRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	views := make([]models.MessageView, len(rows))
	for i, row := range rows {
		views[len(rows)-1-i] = row.view()
	}
	return views, nil
}

// CountBetween counts non-deleted messages between the pair.
func (r *MessageRepo) CountBetween(ctx context.Context, userID int, otherID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages
         WHERE ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
           AND is_deleted = FALSE`, userID, otherID)
	return count, err
}

// MarkConversationRead flags unread messages from otherID to userID.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, userID int, otherID int, readAt time.Time) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`UPDATE messages SET is_read=TRUE, read_at=$3
         WHERE sender_id=$2 AND receiver_id=$1 AND is_read=FALSE AND is_deleted=FALSE
         RETURNING id`, userID, otherID, readAt)
	return ids, err
}

// MarkRead flags a single message as read.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int, readAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read=TRUE, read_at=$2 WHERE id=$1 AND is_deleted=FALSE`,
		messageID, readAt)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteExpired soft-deletes messages whose time-based deadline passed.
// The is_deleted guard makes repeated sweeps idempotent.
func (r *MessageRepo) DeleteExpired(ctx context.Context, now time.Time) ([]models.DeletedMessage, error) {
	var deleted []models.DeletedMessage
	err := r.db.SelectContext(ctx, &deleted,
		`UPDATE messages SET is_deleted=TRUE, deleted_at=$1
         WHERE is_disappearing=TRUE AND disappear_after_read=FALSE
           AND disappear_at IS NOT NULL AND disappear_at <= $1 AND is_deleted=FALSE
         RETURNING id, sender_id, receiver_id, deleted_at`, now)
	return deleted, err
}

// DeleteReadDisappearing soft-deletes already-read disappear-after-read
// messages out of the given batch. Non-matching ids are left untouched.
func (r *MessageRepo) DeleteReadDisappearing(ctx context.Context, messageIDs []int, now time.Time) ([]models.DeletedMessage, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var deleted []models.DeletedMessage
	err := r.db.SelectContext(ctx, &deleted,
		`UPDATE messages SET is_deleted=TRUE, deleted_at=$2
         WHERE id = ANY($1)
           AND is_disappearing=TRUE AND disappear_after_read=TRUE
           AND is_read=TRUE AND is_deleted=FALSE
         RETURNING id, sender_id, receiver_id, deleted_at`,
		pq.Array(messageIDs), now)
	return deleted, err
}
