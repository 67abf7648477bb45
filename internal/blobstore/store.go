// Package blobstore persists opaque values under string keys. The inventory
// coordinator keeps each aggregate as one blob and overwrites it after every
// mutation.
package blobstore

import (
	"context"
	"errors"
	"regexp"
)

var ErrInvalidKey = errors.New("invalid blob key")

type Store interface {
	// Get returns ok=false when nothing was stored under key.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	Ping(ctx context.Context) error
}

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

func validKey(key string) error {
	if !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}
	return nil
}
