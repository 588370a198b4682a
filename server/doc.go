// Package server exposes a storage.Storage over the Redis protocol.
//
// It accepts RESP2 and inline commands from any Redis client. Besides the
// string and key commands it serves the list commands RPUSH, RPOP, LLEN and
// BRPOP, also reachable as QPUSH, QPOP and BQPOP, and Lua scripting through
// EVAL and EVALSHA.
//
// A client parked in BRPOP is released when its timeout elapses, when a push
// lands on its key, when it disconnects, or when the server stops.
package server
