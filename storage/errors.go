package storage

import "errors"

var (
	// ErrWrongType is returned when an operation expects a scalar but finds a
	// list, or the other way round. The message matches the Redis reply.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrInvalidArgument is returned for input rejected before the store is
	// touched: empty key, negative TTL or timeout, push without values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by operations on a closed storage, including
	// blocking pops that were parked when Close was called.
	ErrClosed = errors.New("storage is closed")
)
