// Package rediskv provides an in-memory, Redis-compatible key-value store
// with string values, list queues, per-key expiration and blocking pops.
//
// A Node owns the storage and serves it over the Redis protocol and,
// optionally, an HTTP/JSON API:
//
//	node, err := rediskv.New(
//		rediskv.WithAddr(":6379"),
//		rediskv.WithHTTPAddr(":8080"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer node.Close()
//
//	if err := node.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// The storage can also be used directly:
//
//	s := node.Storage()
//	s.Set("greeting", []byte("hello"), storage.SetOptions{TTL: time.Minute})
//	s.Push("jobs", []byte("job-1"))
//	value, ok, err := s.BlockingPop(ctx, "jobs", 5*time.Second)
//
// The library supports:
//
//   - SET with EX/PX expiration and NX/XX conditions
//   - Lists with RPUSH, RPOP and blocking BRPOP
//   - Lua scripting through EVAL and EVALSHA
//   - Prometheus metrics through the prometheus subpackage
package rediskv
