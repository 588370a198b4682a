package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrProtocol is wrapped by every error caused by malformed client input.
// Callers reply with an error and drop the connection when they see it.
var ErrProtocol = errors.New("protocol error")

// ValueType is the RESP type prefix of a value
type ValueType byte

const (
	TypeSimpleString ValueType = '+'
	TypeError        ValueType = '-'
	TypeInteger      ValueType = ':'
	TypeBulkString   ValueType = '$'
	TypeArray        ValueType = '*'
)

// Value is a single decoded RESP2 value.
// Null bulk strings and null arrays are represented with IsNull.
type Value struct {
	Type    ValueType
	Data    []byte
	Integer int64
	Array   []Value
	IsNull  bool
}

// String renders the value the way redis-cli prints it
func (v Value) String() string {
	switch v.Type {
	case TypeSimpleString, TypeError:
		return string(v.Data)
	case TypeInteger:
		return strconv.FormatInt(v.Integer, 10)
	case TypeBulkString:
		if v.IsNull {
			return "(nil)"
		}
		return string(v.Data)
	case TypeArray:
		if v.IsNull {
			return "(nil)"
		}
		parts := make([]string, len(v.Array))
		for i, item := range v.Array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("unknown type %c", v.Type)
	}
}

// IsError reports whether v is an error reply
func (v Value) IsError() bool {
	return v.Type == TypeError
}

// Simple value constructors used when building replies

func SimpleString(s string) Value { return Value{Type: TypeSimpleString, Data: []byte(s)} }
func Error(msg string) Value      { return Value{Type: TypeError, Data: []byte(msg)} }
func Integer(n int64) Value       { return Value{Type: TypeInteger, Integer: n} }
func BulkString(b []byte) Value   { return Value{Type: TypeBulkString, Data: b} }
func NullBulkString() Value       { return Value{Type: TypeBulkString, IsNull: true} }
func Array(values ...Value) Value { return Value{Type: TypeArray, Array: values} }

// Command is a client request: an upper-cased name plus raw arguments
type Command struct {
	Name string
	Args [][]byte
}

// ParseCommand converts a RESP array of bulk strings into a Command
func ParseCommand(v Value) (*Command, error) {
	if v.Type != TypeArray || v.IsNull || len(v.Array) == 0 {
		return nil, fmt.Errorf("%w: expected non-empty array", ErrProtocol)
	}

	cmd := &Command{Args: make([][]byte, 0, len(v.Array)-1)}
	for i, item := range v.Array {
		if item.Type != TypeBulkString || item.IsNull {
			return nil, fmt.Errorf("%w: expected bulk string at position %d", ErrProtocol, i)
		}
		if i == 0 {
			cmd.Name = strings.ToUpper(string(item.Data))
			continue
		}
		cmd.Args = append(cmd.Args, item.Data)
	}
	return cmd, nil
}

// ArgString returns argument i as a string, or "" if it is missing
func (c *Command) ArgString(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return string(c.Args[i])
}

// String returns a printable form of the command, for logging
func (c *Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = string(arg)
	}
	return c.Name + " " + strings.Join(args, " ")
}
