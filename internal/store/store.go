// Package store persists cache artifacts addressed by a query.Key.
package store

import (
	"context"
	"errors"

	"metrix/internal/query"
)

// ErrNotFound is returned by Read when no artifact exists for the key.
var ErrNotFound = errors.New("artifact not found")

// Store is the capability set the history fetcher needs from durable storage.
// Artifacts are written once per key and never deleted by this module.
type Store interface {
	Exists(ctx context.Context, key query.Key) (bool, error)
	Read(ctx context.Context, key query.Key) ([]byte, error)
	Write(ctx context.Context, key query.Key, data []byte) error
	// Location returns a human readable address of the artifact for key.
	Location(key query.Key) string
}

// Lister is implemented by stores that can enumerate their artifacts.
type Lister interface {
	List() ([]query.Key, error)
}

// objectName is the artifact name shared by every backend: <key>.<ext>.
func objectName(key query.Key, ext string) string {
	if ext == "" {
		return key.String()
	}
	return key.String() + "." + ext
}
