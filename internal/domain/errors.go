package domain

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrRoomFull          = errors.New("room is full")
	ErrNotAMember        = errors.New("connection is not a member of the room")
	ErrStoreUnavailable  = errors.New("message store unavailable")
	ErrUnknownConnection = errors.New("unknown connection")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("forbidden")
)
