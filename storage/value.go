package storage

import "time"

// ValueType represents the kind of value held by a key
type ValueType int

const (
	ValueTypeNone ValueType = iota
	ValueTypeString
	ValueTypeList
)

// String returns the Redis-compatible type name
func (vt ValueType) String() string {
	switch vt {
	case ValueTypeString:
		return "string"
	case ValueTypeList:
		return "list"
	default:
		return "none"
	}
}

// Value is the entry stored under a key: a typed payload plus an optional
// absolute expiration. A nil Expiry means the key never expires.
type Value struct {
	Type   ValueType
	Data   interface{}
	Expiry *time.Time
}

// StringValue represents a scalar value
type StringValue struct {
	Data []byte
}

// ListValue represents a list value. The tail is the last element.
type ListValue struct {
	Elements [][]byte
}

// expiredAt reports whether the value is logically absent at now.
// A value whose expiry equals now is already expired.
func (v *Value) expiredAt(now time.Time) bool {
	return v.Expiry != nil && !v.Expiry.After(now)
}

func newStringValue(data []byte, expiry *time.Time) *Value {
	return &Value{
		Type:   ValueTypeString,
		Data:   &StringValue{Data: cloneBytes(data)},
		Expiry: expiry,
	}
}

func newListValue() *Value {
	return &Value{
		Type: ValueTypeList,
		Data: &ListValue{},
	}
}

// list returns the list payload, or nil if v is not a list
func (v *Value) list() *ListValue {
	if v.Type != ValueTypeList {
		return nil
	}
	l, _ := v.Data.(*ListValue)
	return l
}

// str returns the scalar payload, or nil if v is not a string
func (v *Value) str() *StringValue {
	if v.Type != ValueTypeString {
		return nil
	}
	s, _ := v.Data.(*StringValue)
	return s
}

// size estimates the payload size in bytes
func (v *Value) size() int64 {
	switch v.Type {
	case ValueTypeString:
		if s := v.str(); s != nil {
			return int64(len(s.Data))
		}
	case ValueTypeList:
		if l := v.list(); l != nil {
			var n int64
			for _, el := range l.Elements {
				n += int64(len(el))
			}
			return n
		}
	}
	return 0
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
