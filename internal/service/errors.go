package service

import "errors"

var (
	// ErrInvalidInput marks requests rejected before touching the store.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSelfSend is returned when sender and receiver are the same user.
	ErrSelfSend = errors.New("cannot send a message to yourself")
	// ErrNotFound covers missing users, messages and chats.
	ErrNotFound = errors.New("not found")
	// ErrNotAuthorized is returned when the caller is not the party the
	// operation belongs to.
	ErrNotAuthorized = errors.New("not authorized")
)
