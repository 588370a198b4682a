// Package httpapi serves a storage.Storage over HTTP with JSON payloads.
//
// Endpoints:
//
//	GET  /get?key=k                 {"result": "value"}
//	POST /set                       {"key": "k", "value": "v", "expiry": 1.5, "condition": "NX"}
//	POST /qpush                     {"key": "q", "values": ["a", "b"]}
//	GET  /qpop?key=q                {"result": "b"}
//	GET  /bqpop?key=q&timeout=2.5   {"result": "a"}
//
// Errors are reported as {"error": "..."} with 400 for bad input, 404 for
// absent keys, failed XX sets and timed out pops, and 409 for failed NX sets
// and type mismatches.
package httpapi
