package storage

import (
	"context"
	"time"
)

// SetCondition restricts when Set is allowed to write
type SetCondition int

const (
	// CondNone always writes
	CondNone SetCondition = iota
	// CondNX writes only if the key is absent or expired
	CondNX
	// CondXX writes only if the key is present and not expired
	CondXX
)

// String returns the Redis option name for the condition
func (c SetCondition) String() string {
	switch c {
	case CondNX:
		return "NX"
	case CondXX:
		return "XX"
	default:
		return ""
	}
}

// SetOptions controls expiration and conditional behavior of Set.
// A zero TTL means the key never expires.
type SetOptions struct {
	TTL       time.Duration
	Condition SetCondition
}

// Storage defines the interface for data storage operations
type Storage interface {
	// Scalar operations
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, opts SetOptions) (bool, error)

	// List operations
	Push(key string, values ...[]byte) (int, error)
	Pop(key string) ([]byte, bool, error)
	BlockingPop(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error)
	Len(key string) (int, error)

	// Key operations
	Delete(key string) bool
	Del(keys ...string) int64
	Exists(keys ...string) int64
	Type(key string) ValueType
	TTL(key string) time.Duration
	Keys(pattern string) []string
	KeyCount() int64
	FlushAll() error

	// Info and stats
	MemoryUsage() int64
	Info() map[string]interface{}

	// Shutdown
	Close() error
}

// StorageObserver provides hooks for storage events.
// Hooks may run while a shard lock is held and must not call back into
// the storage.
type StorageObserver interface {
	OnKeySet(key string)
	OnKeyDeleted(key string)
	OnKeyExpired(key string)
	OnKeyAccessed(key string, hit bool)
}

// TTL sentinels, in the Redis convention
const (
	TTLNoExpiry = -1 * time.Second
	TTLNotFound = -2 * time.Second
)
