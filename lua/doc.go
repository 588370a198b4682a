// Package lua runs Redis-compatible Lua scripts for EVAL and EVALSHA.
//
// Scripts see KEYS and ARGV tables and a redis table with call, pcall,
// status_reply and error_reply. redis.call reaches the same storage the RESP
// server uses, so a script can mix scalar and list commands:
//
//	engine := lua.NewEngine(store)
//	n, err := engine.Eval(ctx, "return redis.call('RPUSH', KEYS[1], ARGV[1])",
//		[]string{"queue"}, []string{"job"})
//
// Blocking commands are rejected inside scripts. Each call runs in its own
// interpreter with the base, table, string and math libraries; file and
// module loading are removed.
package lua
