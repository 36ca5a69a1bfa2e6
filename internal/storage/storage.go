package storage

import (
	"context"
	"errors"
)

// ErrTokenNotFound is returned when no access token has been stored yet
var ErrTokenNotFound = errors.New("access token not found")

// TokenStore holds the relay's single access token. Writes overwrite
// unconditionally; the last writer wins.
type TokenStore interface {
	GetAccessToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
}

// Closer is implemented by stores that hold a client connection
type Closer interface {
	Close() error
}
