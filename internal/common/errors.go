// Package common defines shared constants and sentinel errors used across
// the tracker, host and client layers of peerchat. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrProtocol marks a malformed frame. It is local to one connection and
	// the reader resynchronises on the next terminator.
	ErrProtocol = errors.New("protocol error")

	// Status-derived errors, one per non-OK response status.
	ErrUnauthorized = errors.New("unauthorized")
	ErrRequest      = errors.New("request error")
	ErrServer       = errors.New("server error")

	// ErrTransport wraps socket failures (closed, reset, refused).
	ErrTransport = errors.New("transport error")

	// ErrTimeout is returned when a correlated response does not arrive in time.
	ErrTimeout = errors.New("request timed out")

	// ErrNotConnected is returned for operations on a channel that is not joined.
	ErrNotConnected = errors.New("channel not connected")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
