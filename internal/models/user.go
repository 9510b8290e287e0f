package models

import "time"

// User is owned by the account service; the hub only mutates the
// presence columns (is_online, last_seen).
type User struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Avatar    string    `db:"avatar" json:"avatar"`
	IsOnline  bool      `db:"is_online" json:"isOnline"`
	LastSeen  time.Time `db:"last_seen" json:"lastSeen"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// PublicUser is the profile shape embedded in message and chat payloads.
type PublicUser struct {
	ID       int       `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar,omitempty"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// Public strips the user down to the fields clients may see.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Avatar:   u.Avatar,
		IsOnline: u.IsOnline,
		LastSeen: u.LastSeen,
	}
}
