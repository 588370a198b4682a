// Package cmdargs parses Redis command arguments shared by the RESP server
// and the Lua scripting engine.
package cmdargs

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

// Errors carry the Redis reply text, so front ends can send them verbatim
// after the ERR prefix.
var (
	ErrSyntax        = errors.New("syntax error")
	ErrNotInteger    = errors.New("value is not an integer or out of range")
	ErrInvalidExpire = errors.New("invalid expire time in 'set' command")
	ErrTimeout       = errors.New("timeout is not a float or out of range")
	ErrNegTimeout    = errors.New("timeout is negative")
)

// ParseInt parses a base 10 integer argument
func ParseInt(arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

// ParseSetOptions parses the option tail of SET: [EX seconds|PX milliseconds] [NX|XX].
// Options are case insensitive and may appear in any order, each at most once.
func ParseSetOptions(args []string) (storage.SetOptions, error) {
	var opts storage.SetOptions
	expireSet := false

	for i := 0; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX", "XX":
			cond := storage.CondNX
			if strings.EqualFold(args[i], "XX") {
				cond = storage.CondXX
			}
			if opts.Condition != storage.CondNone {
				return opts, ErrSyntax
			}
			opts.Condition = cond
		case "EX", "PX":
			if expireSet || i+1 >= len(args) {
				return opts, ErrSyntax
			}
			unit := time.Second
			if strings.EqualFold(args[i], "PX") {
				unit = time.Millisecond
			}
			n, err := ParseInt(args[i+1])
			if err != nil {
				return opts, err
			}
			if n <= 0 || n > math.MaxInt64/int64(unit) {
				return opts, ErrInvalidExpire
			}
			opts.TTL = time.Duration(n) * unit
			expireSet = true
			i++
		default:
			return opts, ErrSyntax
		}
	}

	return opts, nil
}

// ParseTimeout parses a blocking timeout given in seconds, fractional values
// allowed. Zero means do not wait.
func ParseTimeout(arg string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(arg, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, ErrTimeout
	}
	if secs < 0 {
		return 0, ErrNegTimeout
	}
	if secs > float64(math.MaxInt64)/float64(time.Second) {
		return 0, ErrTimeout
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// TTLReply converts a storage TTL into the integer TTL or PTTL replies with.
// The negative sentinels map to -1 and -2; positive values are rounded.
func TTLReply(ttl time.Duration, millis bool) int64 {
	switch ttl {
	case storage.TTLNoExpiry:
		return -1
	case storage.TTLNotFound:
		return -2
	}
	if millis {
		return int64((ttl + time.Millisecond/2) / time.Millisecond)
	}
	return int64((ttl + time.Second/2) / time.Second)
}
