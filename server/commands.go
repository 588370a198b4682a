package server

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/raniellyferreira/redis-inmemory-kv/internal/cmdargs"
	"github.com/raniellyferreira/redis-inmemory-kv/lua"
	"github.com/raniellyferreira/redis-inmemory-kv/protocol"
)

// blockForever stands in for a zero BRPOP timeout, which Redis treats as
// "wait until served or disconnected". HTTP bqpop keeps the storage meaning
// of zero, a single attempt.
const blockForever = time.Duration(math.MaxInt64)

// executeCommand runs one command and buffers its reply.
// It returns true when the connection must be closed.
func (c *Client) executeCommand(cmd *protocol.Command) bool {
	c.server.commandCount.Add(1)
	name := cmd.Name
	start := time.Now()
	defer func() {
		if m := c.server.metrics; m != nil {
			m.RecordCommandProcessed(name, time.Since(start))
		}
	}()

	if !c.authenticated && cmd.Name != "AUTH" && cmd.Name != "QUIT" {
		name = "UNAUTHENTICATED"
		c.writeError("NOAUTH Authentication required.")
		return false
	}

	switch cmd.Name {
	case "AUTH":
		c.handleAuth(cmd)
	case "PING":
		c.handlePing(cmd)
	case "ECHO":
		c.handleEcho(cmd)
	case "QUIT":
		_ = c.writer.WriteOK()
		_ = c.writer.Flush()
		return true
	case "GET":
		c.handleGet(cmd)
	case "SET":
		c.handleSet(cmd)
	case "DEL":
		c.handleDel(cmd)
	case "EXISTS":
		c.handleExists(cmd)
	case "TYPE":
		c.handleType(cmd)
	case "TTL", "PTTL":
		c.handleTTL(cmd)
	case "RPUSH", "QPUSH":
		c.handlePush(cmd)
	case "RPOP", "QPOP":
		c.handlePop(cmd)
	case "BRPOP", "BQPOP":
		c.handleBlockingPop(cmd)
	case "LLEN":
		c.handleLen(cmd)
	case "KEYS":
		c.handleKeys(cmd)
	case "DBSIZE":
		c.handleDBSize(cmd)
	case "FLUSHALL", "FLUSHDB":
		c.handleFlushAll(cmd)
	case "INFO":
		c.handleInfo(cmd)
	case "EVAL":
		c.handleEval(cmd, false)
	case "EVALSHA":
		c.handleEval(cmd, true)
	case "SCRIPT":
		c.handleScript(cmd)
	default:
		// Keep arbitrary client input out of metric labels.
		name = "UNKNOWN"
		c.writeError("ERR unknown command '" + strings.ToLower(cmd.Name) + "'")
	}
	return false
}

// checkArity writes an arity error unless the argument count is within
// [lo, hi]. A negative hi means no upper bound.
func (c *Client) checkArity(cmd *protocol.Command, lo, hi int) bool {
	n := len(cmd.Args)
	if n < lo || (hi >= 0 && n > hi) {
		c.writeError("ERR wrong number of arguments for '" + strings.ToLower(cmd.Name) + "' command")
		return false
	}
	return true
}

func argStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = string(arg)
	}
	return out
}

func (c *Client) handleAuth(cmd *protocol.Command) {
	if !c.checkArity(cmd, 1, 1) {
		return
	}

	if c.server.password == "" {
		c.writeError("ERR Client sent AUTH, but no password is set")
		return
	}

	if cmd.ArgString(0) != c.server.password {
		c.writeError("WRONGPASS invalid username-password pair")
		return
	}

	c.authenticated = true
	_ = c.writer.WriteOK()
}

func (c *Client) handlePing(cmd *protocol.Command) {
	if !c.checkArity(cmd, 0, 1) {
		return
	}
	if len(cmd.Args) == 1 {
		_ = c.writer.WriteBulkString(cmd.Args[0])
		return
	}
	_ = c.writer.WriteSimpleString("PONG")
}

func (c *Client) handleEcho(cmd *protocol.Command) {
	if c.checkArity(cmd, 1, 1) {
		_ = c.writer.WriteBulkString(cmd.Args[0])
	}
}

func (c *Client) handleGet(cmd *protocol.Command) {
	if !c.checkArity(cmd, 1, 1) {
		return
	}

	value, ok, err := c.server.storage.Get(cmd.ArgString(0))
	switch {
	case err != nil:
		c.writeStorageError(err)
	case !ok:
		_ = c.writer.WriteNullBulkString()
	default:
		_ = c.writer.WriteBulkString(value)
	}
}

func (c *Client) handleSet(cmd *protocol.Command) {
	if !c.checkArity(cmd, 2, -1) {
		return
	}

	opts, err := cmdargs.ParseSetOptions(argStrings(cmd.Args[2:]))
	if err != nil {
		c.writeError("ERR " + err.Error())
		return
	}

	ok, err := c.server.storage.Set(cmd.ArgString(0), cmd.Args[1], opts)
	switch {
	case err != nil:
		c.writeStorageError(err)
	case !ok:
		_ = c.writer.WriteNullBulkString()
	default:
		_ = c.writer.WriteOK()
	}
}

func (c *Client) handleDel(cmd *protocol.Command) {
	if c.checkArity(cmd, 1, -1) {
		_ = c.writer.WriteInteger(c.server.storage.Del(argStrings(cmd.Args)...))
	}
}

func (c *Client) handleExists(cmd *protocol.Command) {
	if c.checkArity(cmd, 1, -1) {
		_ = c.writer.WriteInteger(c.server.storage.Exists(argStrings(cmd.Args)...))
	}
}

func (c *Client) handleType(cmd *protocol.Command) {
	if c.checkArity(cmd, 1, 1) {
		_ = c.writer.WriteSimpleString(c.server.storage.Type(cmd.ArgString(0)).String())
	}
}

func (c *Client) handleTTL(cmd *protocol.Command) {
	if c.checkArity(cmd, 1, 1) {
		ttl := c.server.storage.TTL(cmd.ArgString(0))
		_ = c.writer.WriteInteger(cmdargs.TTLReply(ttl, cmd.Name == "PTTL"))
	}
}

func (c *Client) handlePush(cmd *protocol.Command) {
	if !c.checkArity(cmd, 2, -1) {
		return
	}

	n, err := c.server.storage.Push(cmd.ArgString(0), cmd.Args[1:]...)
	if err != nil {
		c.writeStorageError(err)
		return
	}
	_ = c.writer.WriteInteger(int64(n))
}

func (c *Client) handlePop(cmd *protocol.Command) {
	if !c.checkArity(cmd, 1, 1) {
		return
	}

	value, ok, err := c.server.storage.Pop(cmd.ArgString(0))
	switch {
	case err != nil:
		c.writeStorageError(err)
	case !ok:
		_ = c.writer.WriteNullBulkString()
	default:
		_ = c.writer.WriteBulkString(value)
	}
}

// handleBlockingPop implements BRPOP key [key ...] timeout. Every key is
// tried once in order; if all are empty the client parks on the first key.
func (c *Client) handleBlockingPop(cmd *protocol.Command) {
	if !c.checkArity(cmd, 2, -1) {
		return
	}

	timeout, err := cmdargs.ParseTimeout(cmd.ArgString(len(cmd.Args) - 1))
	if err != nil {
		c.writeError("ERR " + err.Error())
		return
	}
	keys := argStrings(cmd.Args[:len(cmd.Args)-1])

	for _, key := range keys {
		value, ok, err := c.server.storage.Pop(key)
		if err != nil {
			c.writeStorageError(err)
			return
		}
		if ok {
			c.writeKeyValue(key, value)
			return
		}
	}

	if timeout == 0 {
		timeout = blockForever
	}

	c.server.blocked.Add(1)
	ctx, stop := c.watchDisconnect()
	start := time.Now()
	value, ok, err := c.server.storage.BlockingPop(ctx, keys[0], timeout)
	stop()
	c.server.blocked.Add(-1)

	if m := c.server.metrics; m != nil {
		m.RecordBlockingWait(time.Since(start), ok)
	}

	switch {
	case ok:
		c.writeKeyValue(keys[0], value)
	case errors.Is(err, context.Canceled):
		// The client is gone or the server is stopping; nobody reads a reply.
	case err != nil:
		c.writeStorageError(err)
	default:
		_ = c.writer.WriteNullArray()
	}
}

func (c *Client) handleLen(cmd *protocol.Command) {
	if !c.checkArity(cmd, 1, 1) {
		return
	}

	n, err := c.server.storage.Len(cmd.ArgString(0))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	_ = c.writer.WriteInteger(int64(n))
}

func (c *Client) handleKeys(cmd *protocol.Command) {
	if c.checkArity(cmd, 1, 1) {
		_ = c.writer.WriteStringArray(c.server.storage.Keys(cmd.ArgString(0)))
	}
}

func (c *Client) handleDBSize(cmd *protocol.Command) {
	if c.checkArity(cmd, 0, 0) {
		_ = c.writer.WriteInteger(c.server.storage.KeyCount())
	}
}

func (c *Client) handleFlushAll(cmd *protocol.Command) {
	if !c.checkArity(cmd, 0, 1) {
		return
	}
	if err := c.server.storage.FlushAll(); err != nil {
		c.writeStorageError(err)
		return
	}
	_ = c.writer.WriteOK()
}

func (c *Client) handleInfo(cmd *protocol.Command) {
	if !c.checkArity(cmd, 0, 1) {
		return
	}
	_ = c.writer.WriteBulkString([]byte(c.server.info(cmd.ArgString(0))))
}

func (c *Client) handleEval(cmd *protocol.Command, bySHA bool) {
	if !c.checkArity(cmd, 2, -1) {
		return
	}

	numKeys, err := cmdargs.ParseInt(cmd.ArgString(1))
	if err != nil {
		c.writeError("ERR " + err.Error())
		return
	}
	if numKeys < 0 || numKeys > int64(len(cmd.Args)-2) {
		c.writeError("ERR Number of keys can't be greater than number of args")
		return
	}

	keys := argStrings(cmd.Args[2 : 2+numKeys])
	args := argStrings(cmd.Args[2+numKeys:])

	var result interface{}
	if bySHA {
		result, err = c.server.lua.EvalSHA(c.ctx, cmd.ArgString(0), keys, args)
	} else {
		result, err = c.server.lua.Eval(c.ctx, cmd.ArgString(0), keys, args)
	}

	switch {
	case errors.Is(err, lua.ErrNoScript):
		c.writeError(err.Error())
	case err != nil:
		c.writeError("ERR " + err.Error())
	default:
		c.writeResult(result)
	}
}

func (c *Client) handleScript(cmd *protocol.Command) {
	if !c.checkArity(cmd, 1, -1) {
		return
	}

	sub := strings.ToUpper(cmd.ArgString(0))
	switch sub {
	case "LOAD":
		if len(cmd.Args) != 2 {
			c.writeError("ERR wrong number of arguments for 'script|load' command")
			return
		}
		_ = c.writer.WriteBulkString([]byte(c.server.lua.LoadScript(cmd.ArgString(1))))

	case "EXISTS":
		if len(cmd.Args) < 2 {
			c.writeError("ERR wrong number of arguments for 'script|exists' command")
			return
		}
		results := c.server.lua.ScriptExists(argStrings(cmd.Args[1:]))
		_ = c.writer.WriteArrayHeader(len(results))
		for _, exists := range results {
			n := int64(0)
			if exists {
				n = 1
			}
			_ = c.writer.WriteInteger(n)
		}

	case "FLUSH":
		c.server.lua.ScriptFlush()
		_ = c.writer.WriteOK()

	default:
		c.writeError("ERR unknown subcommand '" + strings.ToLower(sub) + "'")
	}
}
