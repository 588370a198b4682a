package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a command result to the value a script sees.
// A nil reply becomes false, as in Redis.
func toLua(L *lua.LState, value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LFalse
	case string:
		return lua.LString(v)
	case []byte:
		return lua.LString(v)
	case int64:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case StatusReply:
		return replyTable(L, "ok", string(v))
	case ErrorReply:
		return replyTable(L, "err", string(v))
	case []interface{}:
		table := L.CreateTable(len(v), 0)
		for i, item := range v {
			table.RawSetInt(i+1, toLua(L, item))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// fromLua converts a script's return value using the Redis rules:
// numbers are truncated to integers, true becomes 1, false and nil become a
// nil reply, {ok=...} and {err=...} become status and error replies, and an
// array table stops at its first nil.
func fromLua(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		if v {
			return int64(1)
		}
		return nil
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return int64(v)
	case *lua.LTable:
		if msg, ok := v.RawGetString("err").(lua.LString); ok {
			return ErrorReply(msg)
		}
		if msg, ok := v.RawGetString("ok").(lua.LString); ok {
			return StatusReply(msg)
		}
		result := make([]interface{}, 0, v.Len())
		for i := 1; ; i++ {
			item := v.RawGetInt(i)
			if item == lua.LNil {
				break
			}
			result = append(result, fromLua(item))
		}
		return result
	default:
		return nil
	}
}
