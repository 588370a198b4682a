package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"
)

// shard represents a single shard of data with its own lock.
// Waiters parked on list keys of this shard live next to the data so that
// registering a waiter and observing an empty list happen under one lock.
type shard struct {
	mu      sync.RWMutex
	data    map[string]*Value
	waiters map[string][]*waiter
}

// MemoryStorage implements an in-memory storage engine
type MemoryStorage struct {
	shards    []shard
	shardMask uint64

	// Single time source for every expiration decision and wait timer
	clock clockwork.Clock

	// Guards observers
	mu        sync.RWMutex
	observers []StorageObserver

	closing   chan struct{}
	closeOnce sync.Once
}

// MemoryOption is a function that configures a MemoryStorage instance
type MemoryOption func(*MemoryStorage)

// WithShardCount sets the number of shards for the storage
// The number is automatically rounded up to the next power of 2
func WithShardCount(count int) MemoryOption {
	return func(s *MemoryStorage) {
		if count > 0 {
			n := nextPowerOf2(count)
			s.shards = make([]shard, n)
			s.shardMask = uint64(n - 1)
		}
	}
}

// WithClock sets the clock used for expiration and blocking-pop timeouts
func WithClock(clock clockwork.Clock) MemoryOption {
	return func(s *MemoryStorage) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemory creates a new in-memory storage instance with default number of shards (64)
func NewMemory(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		shards:    make([]shard, 64),
		shardMask: 63,
		clock:     clockwork.NewRealClock(),
		closing:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	for i := range s.shards {
		s.shards[i].data = make(map[string]*Value)
		s.shards[i].waiters = make(map[string][]*waiter)
	}

	return s
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// shardFor returns the shard owning key
func (s *MemoryStorage) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)&s.shardMask]
}

// ShardCount returns the number of shards
func (s *MemoryStorage) ShardCount() int {
	return len(s.shards)
}

func (s *MemoryStorage) closed() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	return nil
}

// liveLocked returns the live value for key, removing it if it has expired.
// The caller must hold the shard write lock.
func (s *MemoryStorage) liveLocked(sh *shard, key string, now time.Time) *Value {
	value, exists := sh.data[key]
	if !exists {
		return nil
	}
	if value.expiredAt(now) {
		delete(sh.data, key)
		s.notify(func(o StorageObserver) { o.OnKeyExpired(key) })
		return nil
	}
	return value
}

// Get retrieves a scalar value by key
func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	if s.closed() {
		return nil, false, ErrClosed
	}

	sh := s.shardFor(key)
	now := s.clock.Now()

	sh.mu.RLock()
	value, exists := sh.data[key]
	if !exists {
		sh.mu.RUnlock()
		s.notify(func(o StorageObserver) { o.OnKeyAccessed(key, false) })
		return nil, false, nil
	}

	if value.expiredAt(now) {
		sh.mu.RUnlock()
		s.deleteExpiredKey(key, now)
		s.notify(func(o StorageObserver) { o.OnKeyAccessed(key, false) })
		return nil, false, nil
	}

	str := value.str()
	if str == nil {
		sh.mu.RUnlock()
		return nil, false, ErrWrongType
	}

	// Copy the data while holding the read lock
	result := cloneBytes(str.Data)
	sh.mu.RUnlock()

	s.notify(func(o StorageObserver) { o.OnKeyAccessed(key, true) })
	return result, true, nil
}

// Set stores a scalar value, replacing whatever the key held before.
// It returns false without writing when opts.Condition is not satisfied.
func (s *MemoryStorage) Set(key string, value []byte, opts SetOptions) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if opts.TTL < 0 {
		return false, fmt.Errorf("%w: negative TTL %s", ErrInvalidArgument, opts.TTL)
	}
	if opts.Condition < CondNone || opts.Condition > CondXX {
		return false, fmt.Errorf("%w: unknown condition %d", ErrInvalidArgument, opts.Condition)
	}
	if s.closed() {
		return false, ErrClosed
	}

	sh := s.shardFor(key)
	now := s.clock.Now()

	var expiry *time.Time
	if opts.TTL > 0 {
		t := now.Add(opts.TTL)
		expiry = &t
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	current := s.liveLocked(sh, key, now)
	switch opts.Condition {
	case CondNX:
		if current != nil {
			return false, nil
		}
	case CondXX:
		if current == nil {
			return false, nil
		}
	}

	sh.data[key] = newStringValue(value, expiry)
	s.notify(func(o StorageObserver) { o.OnKeySet(key) })
	return true, nil
}

// Push appends values to the tail of the list at key, creating the list if
// needed, and wakes blocking pops parked on key. It returns the new length.
func (s *MemoryStorage) Push(key string, values ...[]byte) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: push requires at least one value", ErrInvalidArgument)
	}
	if s.closed() {
		return 0, ErrClosed
	}

	sh := s.shardFor(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	current := s.liveLocked(sh, key, now)
	if current == nil {
		current = newListValue()
		sh.data[key] = current
	}

	list := current.list()
	if list == nil {
		return 0, ErrWrongType
	}

	for _, v := range values {
		list.Elements = append(list.Elements, cloneBytes(v))
	}

	sh.wakeLocked(key)
	s.notify(func(o StorageObserver) { o.OnKeySet(key) })
	return len(list.Elements), nil
}

// Pop removes and returns the tail element of the list at key.
// The key is removed once its list is empty.
func (s *MemoryStorage) Pop(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	if s.closed() {
		return nil, false, ErrClosed
	}

	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	return s.popLocked(sh, key, s.clock.Now())
}

// popLocked pops the tail of key's list. The caller must hold the shard write lock.
func (s *MemoryStorage) popLocked(sh *shard, key string, now time.Time) ([]byte, bool, error) {
	current := s.liveLocked(sh, key, now)
	if current == nil {
		return nil, false, nil
	}

	list := current.list()
	if list == nil {
		return nil, false, ErrWrongType
	}

	n := len(list.Elements)
	if n == 0 {
		delete(sh.data, key)
		return nil, false, nil
	}

	last := list.Elements[n-1]
	list.Elements[n-1] = nil
	list.Elements = list.Elements[:n-1]

	if len(list.Elements) == 0 {
		delete(sh.data, key)
		s.notify(func(o StorageObserver) { o.OnKeyDeleted(key) })
	}

	return last, true, nil
}

// Len returns the length of the list at key, 0 if the key is absent
func (s *MemoryStorage) Len(key string) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if s.closed() {
		return 0, ErrClosed
	}

	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	current := s.liveLocked(sh, key, s.clock.Now())
	if current == nil {
		return 0, nil
	}

	list := current.list()
	if list == nil {
		return 0, ErrWrongType
	}
	return len(list.Elements), nil
}

// Delete removes key if it is stored, whether or not it has expired.
// An empty key or a closed storage deletes nothing and returns false.
func (s *MemoryStorage) Delete(key string) bool {
	if validateKey(key) != nil || s.closed() {
		return false
	}

	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.data[key]; !exists {
		return false
	}

	delete(sh.data, key)
	s.notify(func(o StorageObserver) { o.OnKeyDeleted(key) })
	return true
}

// Del deletes one or more keys and returns how many were removed.
// Each key is removed independently; there is no atomicity across keys.
func (s *MemoryStorage) Del(keys ...string) int64 {
	deleted := int64(0)
	for _, key := range keys {
		if s.Delete(key) {
			deleted++
		}
	}
	return deleted
}

// Exists counts how many of the given keys are live. Expired keys it
// observes are removed.
func (s *MemoryStorage) Exists(keys ...string) int64 {
	now := s.clock.Now()
	count := int64(0)

	for _, key := range keys {
		sh := s.shardFor(key)
		sh.mu.Lock()
		if s.liveLocked(sh, key, now) != nil {
			count++
		}
		sh.mu.Unlock()
	}

	return count
}

// Type returns the type of a key, ValueTypeNone if it is absent
func (s *MemoryStorage) Type(key string) ValueType {
	sh := s.shardFor(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value := s.liveLocked(sh, key, now)
	if value == nil {
		return ValueTypeNone
	}
	return value.Type
}

// TTL returns the time to live for a key, TTLNotFound for absent keys and
// TTLNoExpiry for keys without expiration
func (s *MemoryStorage) TTL(key string) time.Duration {
	sh := s.shardFor(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value := s.liveLocked(sh, key, now)
	if value == nil {
		return TTLNotFound
	}

	if value.Expiry == nil {
		return TTLNoExpiry
	}

	return value.Expiry.Sub(now)
}

// Keys returns all live keys matching a glob-style pattern. Expired keys
// found during the scan are removed afterwards.
func (s *MemoryStorage) Keys(pattern string) []string {
	now := s.clock.Now()
	keys := make([]string, 0)
	var expired []string

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for key, value := range sh.data {
			if value.expiredAt(now) {
				expired = append(expired, key)
				continue
			}
			if pattern == "*" || matchPattern(key, pattern) {
				keys = append(keys, key)
			}
		}
		sh.mu.RUnlock()
	}

	for _, key := range expired {
		s.deleteExpiredKey(key, now)
	}

	return keys
}

// KeyCount returns the number of stored keys, including expired keys
// that have not been accessed since they expired
func (s *MemoryStorage) KeyCount() int64 {
	count := int64(0)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		count += int64(len(sh.data))
		sh.mu.RUnlock()
	}
	return count
}

// FlushAll removes all keys. Parked blocking pops stay parked.
func (s *MemoryStorage) FlushAll() error {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.data = make(map[string]*Value)
		sh.mu.Unlock()
	}
	return nil
}

// MemoryUsage returns an estimate of stored key and payload bytes
func (s *MemoryStorage) MemoryUsage() int64 {
	usage := int64(0)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for key, value := range sh.data {
			usage += int64(len(key)) + value.size()
		}
		sh.mu.RUnlock()
	}
	return usage
}

// Info returns storage information
func (s *MemoryStorage) Info() map[string]interface{} {
	now := s.clock.Now()

	keys, expires, expired, lists, waiters := int64(0), int64(0), int64(0), int64(0), int64(0)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, value := range sh.data {
			keys++
			if value.Expiry != nil {
				expires++
				if value.expiredAt(now) {
					expired++
				}
			}
			if value.Type == ValueTypeList {
				lists++
			}
		}
		for _, ws := range sh.waiters {
			waiters += int64(len(ws))
		}
		sh.mu.RUnlock()
	}

	return map[string]interface{}{
		"keys":            keys,
		"expires":         expires,
		"expired_pending": expired,
		"lists":           lists,
		"blocked_clients": waiters,
		"memory_usage":    s.MemoryUsage(),
		"shards":          len(s.shards),
	}
}

// AddObserver adds a storage observer
func (s *MemoryStorage) AddObserver(observer StorageObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

func (s *MemoryStorage) notify(fn func(StorageObserver)) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()

	for _, observer := range observers {
		fn(observer)
	}
}

// Close shuts down the storage and releases every parked blocking pop with
// ErrClosed. Close is safe to call multiple times.
func (s *MemoryStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	return nil
}

// deleteExpiredKey deletes key if it is still expired under the write lock
func (s *MemoryStorage) deleteExpiredKey(key string, now time.Time) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if value, exists := sh.data[key]; exists && value.expiredAt(now) {
		delete(sh.data, key)
		s.notify(func(o StorageObserver) { o.OnKeyExpired(key) })
	}
}

var _ Storage = (*MemoryStorage)(nil)
