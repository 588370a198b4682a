package cmdargs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

func TestParseSetOptions(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected storage.SetOptions
		err      error
	}{
		{name: "none", args: nil},
		{name: "ex", args: []string{"EX", "10"}, expected: storage.SetOptions{TTL: 10 * time.Second}},
		{name: "px lower case", args: []string{"px", "1500"}, expected: storage.SetOptions{TTL: 1500 * time.Millisecond}},
		{name: "nx", args: []string{"NX"}, expected: storage.SetOptions{Condition: storage.CondNX}},
		{name: "xx with ex", args: []string{"xx", "EX", "1"}, expected: storage.SetOptions{TTL: time.Second, Condition: storage.CondXX}},
		{name: "nx and xx", args: []string{"NX", "XX"}, err: ErrSyntax},
		{name: "ex and px", args: []string{"EX", "1", "PX", "1"}, err: ErrSyntax},
		{name: "ex missing value", args: []string{"EX"}, err: ErrSyntax},
		{name: "ex not integer", args: []string{"EX", "soon"}, err: ErrNotInteger},
		{name: "ex zero", args: []string{"EX", "0"}, err: ErrInvalidExpire},
		{name: "px negative", args: []string{"PX", "-5"}, err: ErrInvalidExpire},
		{name: "unknown option", args: []string{"KEEPTTL"}, err: ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseSetOptions(tt.args)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, opts)
		})
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		arg      string
		expected time.Duration
		err      error
	}{
		{"0", 0, nil},
		{"5", 5 * time.Second, nil},
		{"0.2", 200 * time.Millisecond, nil},
		{"-1", 0, ErrNegTimeout},
		{"abc", 0, ErrTimeout},
		{"NaN", 0, ErrTimeout},
		{"1e300", 0, ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			d, err := ParseTimeout(tt.arg)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestParseInt(t *testing.T) {
	n, err := ParseInt("-42")
	require.NoError(t, err)
	assert.Equal(t, int64(-42), n)

	_, err = ParseInt("4.2")
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestTTLReply(t *testing.T) {
	assert.Equal(t, int64(-1), TTLReply(storage.TTLNoExpiry, false))
	assert.Equal(t, int64(-2), TTLReply(storage.TTLNotFound, true))
	assert.Equal(t, int64(100), TTLReply(99999*time.Millisecond, false))
	assert.Equal(t, int64(1500), TTLReply(1500*time.Millisecond, true))
}
