package models

import "time"

// Chat is the summary record of a two-party conversation. The pair is
// normalized so that user1_id < user2_id; at most one row exists per pair.
type Chat struct {
	ID            int       `db:"id" json:"id"`
	User1ID       int       `db:"user1_id" json:"-"`
	User2ID       int       `db:"user2_id" json:"-"`
	LastMessageID *int      `db:"last_message_id" json:"-"`
	LastMessageAt time.Time `db:"last_message_at" json:"lastMessageAt"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// OtherParticipant returns the participant that is not userID.
func (c Chat) OtherParticipant(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID belongs to the chat.
func (c Chat) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ChatSummary is the per-caller API view of a chat: both participants
// with live presence, the last message and the caller's unread count.
type ChatSummary struct {
	ChatID        int          `json:"chatId"`
	Participants  []PublicUser `json:"participants"`
	LastMessage   *Message     `json:"lastMessage,omitempty"`
	LastMessageAt time.Time    `json:"lastMessageAt"`
	UnreadCount   int          `json:"unreadCount"`
}
