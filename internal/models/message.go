package models

import "time"

// MessageType tags the kind of content a message carries.
type MessageType string

const (
	MessageTypeText           MessageType = "text"
	MessageTypeImage          MessageType = "image"
	MessageTypeAudio          MessageType = "audio"
	MessageTypeVideo          MessageType = "video"
	MessageTypeFile           MessageType = "file"
	MessageTypeCallVideoEnded MessageType = "call-video-ended"
	MessageTypeCallAudioEnded MessageType = "call-audio-ended"
	MessageTypeCallMissed     MessageType = "call-missed"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeAudio, MessageTypeVideo,
		MessageTypeFile, MessageTypeCallVideoEnded, MessageTypeCallAudioEnded,
		MessageTypeCallMissed:
		return true
	}
	return false
}

// IsCall reports whether t is one of the synthesized call-history types.
func (t MessageType) IsCall() bool {
	switch t {
	case MessageTypeCallVideoEnded, MessageTypeCallAudioEnded, MessageTypeCallMissed:
		return true
	}
	return false
}

// MediaDescriptor holds the attachment fields; all zero for text and
// call-history messages.
type MediaDescriptor struct {
	FileURL  string `db:"file_url" json:"fileUrl,omitempty"`
	FileName string `db:"file_name" json:"fileName,omitempty"`
	FileSize int64  `db:"file_size" json:"fileSize,omitempty"`
	MimeType string `db:"mime_type" json:"mimeType,omitempty"`
}

// Message is a single direct message. Deletion is soft: is_deleted flips
// false→true exactly once and the row is retained.
type Message struct {
	ID          int         `db:"id" json:"id"`
	SenderID    int         `db:"sender_id" json:"senderId"`
	ReceiverID  int         `db:"receiver_id" json:"receiverId"`
	Content     string      `db:"content" json:"content"`
	MessageType MessageType `db:"message_type" json:"messageType"`
	MediaDescriptor
	IsRead             bool       `db:"is_read" json:"isRead"`
	ReadAt             *time.Time `db:"read_at" json:"readAt,omitempty"`
	IsDisappearing     bool       `db:"is_disappearing" json:"isDisappearing"`
	DisappearAfterRead bool       `db:"disappear_after_read" json:"disappearAfterRead"`
	DisappearAt        *time.Time `db:"disappear_at" json:"disappearAt,omitempty"`
	IsDeleted          bool       `db:"is_deleted" json:"isDeleted"`
	DeletedAt          *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
}

// MessageView is a message with sender and receiver resolved to their
// public profiles, as emitted to clients.
type MessageView struct {
	Message
	Sender   PublicUser `json:"sender"`
	Receiver PublicUser `json:"receiver"`
}

// DeletedMessage identifies a soft-deleted message and the parties that
// must be notified about it.
type DeletedMessage struct {
	ID         int       `db:"id"`
	SenderID   int       `db:"sender_id"`
	ReceiverID int       `db:"receiver_id"`
	DeletedAt  time.Time `db:"deleted_at"`
}
