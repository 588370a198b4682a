package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raniellyferreira/redis-inmemory-kv/lua"
	"github.com/raniellyferreira/redis-inmemory-kv/protocol"
	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

// writeError buffers an error reply. msg must start with the error code.
func (c *Client) writeError(msg string) {
	c.server.errorCount.Add(1)

	code := msg
	if i := strings.IndexByte(msg, ' '); i > 0 {
		code = msg[:i]
	}
	if m := c.server.metrics; m != nil {
		m.RecordError(code)
	}

	// Newlines would break the RESP framing.
	msg = strings.NewReplacer("\r", " ", "\n", " ").Replace(msg)
	_ = c.writer.WriteError(msg)
}

// writeStorageError maps storage errors to Redis error replies
func (c *Client) writeStorageError(err error) {
	switch {
	case errors.Is(err, storage.ErrWrongType):
		c.writeError(storage.ErrWrongType.Error())
	case errors.Is(err, storage.ErrClosed):
		c.writeError("ERR server is shutting down")
	default:
		c.writeError("ERR " + err.Error())
	}
}

// writeKeyValue writes the two element reply of BRPOP
func (c *Client) writeKeyValue(key string, value []byte) {
	_ = c.writer.WriteValue(protocol.Array(
		protocol.BulkString([]byte(key)),
		protocol.BulkString(value),
	))
}

// writeResult writes a Lua script result
func (c *Client) writeResult(result interface{}) {
	_ = c.writer.WriteValue(c.toValue(result))
}

func (c *Client) toValue(result interface{}) protocol.Value {
	switch v := result.(type) {
	case nil:
		return protocol.NullBulkString()
	case int64:
		return protocol.Integer(v)
	case string:
		return protocol.BulkString([]byte(v))
	case lua.StatusReply:
		return protocol.SimpleString(string(v))
	case lua.ErrorReply:
		c.server.errorCount.Add(1)
		return protocol.Error(string(v))
	case []interface{}:
		items := make([]protocol.Value, len(v))
		for i, item := range v {
			items[i] = c.toValue(item)
		}
		return protocol.Array(items...)
	default:
		return protocol.BulkString([]byte(fmt.Sprintf("%v", v)))
	}
}
