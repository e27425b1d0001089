package domain

import "errors"

var (
	ErrMissingRoomID   = errors.New("missing room id")
	ErrMissingTarget   = errors.New("missing target socket id")
	ErrUsernameTooLong = errors.New("username too long")

	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateRoom   = errors.New("room already exists")
	ErrInvalidPassword = errors.New("invalid password")
	ErrNotAuthorized   = errors.New("not authorized")

	ErrNotParticipant = errors.New("not a participant of the room")
	ErrEmptyMessage   = errors.New("empty message")
)
