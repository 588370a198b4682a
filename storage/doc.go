// Package storage provides the in-memory key/value store behind rediskv.
//
// The store holds two kinds of values, scalars and lists, each with an
// optional absolute expiration. Expiration is lazy: an expired key is removed
// by the first operation that observes it, and there is no background sweep.
//
// Basic usage:
//
//	s := storage.NewMemory()
//	defer s.Close()
//
//	ok, err := s.Set("key", []byte("value"), storage.SetOptions{
//		TTL:       time.Minute,
//		Condition: storage.CondNX,
//	})
//
//	n, err := s.Push("queue", []byte("a"), []byte("b"))
//	v, ok, err := s.BlockingPop(ctx, "queue", 5*time.Second)
//
// Keys are spread over a power-of-two number of shards, each guarded by its
// own lock. Every read-then-write sequence on one key runs under that key's
// shard lock; nothing is atomic across keys.
//
// BlockingPop parks on a per-key waiter registered under the shard lock and
// released before waiting. A Push wakes only the waiters of its key; a woken
// waiter that loses the race for the element parks again until its timeout.
package storage
