package history

import (
	"fmt"

	"metrix/internal/query"
)

// ProviderError is returned when the remote provider fails on a cache miss
// or while the cache is bypassed. Nothing is written to the store.
type ProviderError struct {
	Key query.Key // empty when the cache was bypassed
	Err error
}

func (e *ProviderError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("provider fetch: %v", e.Err)
	}
	return fmt.Sprintf("provider fetch for key %s: %v", e.Key, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Cache operations reported by CacheIOError.
const (
	OpExists = "exists"
	OpRead   = "read"
	OpDecode = "decode"
	OpWrite  = "write"
	OpEncode = "encode"
)

// CacheIOError is a failure of the cache store or of the artifact encoding.
type CacheIOError struct {
	Op  string
	Key query.Key
	Err error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }
