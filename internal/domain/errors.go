package domain

import "errors"

var (
	// ErrInvalidIdentifier indicates a malformed room-address input.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrUnknownConnection indicates an operation on a connection that is
	// not currently registered (typically a benign disconnect race).
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrInvalidToken indicates credential verification failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrLookupFailed indicates a collaborator could not resolve a post or user.
	ErrLookupFailed = errors.New("lookup failed")
)
