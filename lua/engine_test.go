package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *storage.MemoryStorage) {
	t.Helper()
	stor := storage.NewMemory()
	t.Cleanup(func() { _ = stor.Close() })
	return NewEngine(stor, opts...), stor
}

func TestLuaEngine_BasicExecution(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		name     string
		script   string
		keys     []string
		args     []string
		expected interface{}
	}{
		{"simple return", "return 'hello'", nil, nil, "hello"},
		{"return number", "return 42", nil, nil, int64(42)},
		{"float is truncated", "return 3.99", nil, nil, int64(3)},
		{"true is one", "return true", nil, nil, int64(1)},
		{"false is nil", "return false", nil, nil, nil},
		{"no return", "local x = 1", nil, nil, nil},
		{"access KEYS", "return KEYS[1]", []string{"mykey"}, nil, "mykey"},
		{"access ARGV", "return ARGV[1]", nil, []string{"myarg"}, "myarg"},
		{"concatenate", "return KEYS[1] .. ':' .. ARGV[1]", []string{"user"}, []string{"123"}, "user:123"},
		{"array stops at nil", "return {1, 'two', nil, 4}", nil, nil, []interface{}{int64(1), "two"}},
		{"status reply", "return redis.status_reply('FINE')", nil, nil, StatusReply("FINE")},
		{"error reply", "return redis.error_reply('ERR custom')", nil, nil, ErrorReply("ERR custom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(context.Background(), tt.script, tt.keys, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLuaEngine_RedisCommands(t *testing.T) {
	engine, stor := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		script   string
		keys     []string
		args     []string
		expected interface{}
	}{
		{
			name:     "SET and GET",
			script:   "redis.call('SET', KEYS[1], ARGV[1]); return redis.call('GET', KEYS[1])",
			keys:     []string{"testkey"},
			args:     []string{"testvalue"},
			expected: "testvalue",
		},
		{
			name:     "GET missing key is false",
			script:   "return redis.call('GET', 'nonexistent') == false",
			expected: int64(1),
		},
		{
			name:     "SET returns status",
			script:   "return redis.call('set', 'k', 'v')",
			expected: StatusReply("OK"),
		},
		{
			name:     "SET NX on existing key is nil",
			script:   "redis.call('SET', 'nx', '1'); return redis.call('SET', 'nx', '2', 'NX')",
			expected: nil,
		},
		{
			name:     "SET EX sets a ttl",
			script:   "redis.call('SET', 'ttl', 'v', 'EX', 100); return redis.call('TTL', 'ttl')",
			expected: int64(100),
		},
		{
			name:     "DEL",
			script:   "redis.call('SET', 'delkey', 'value'); return redis.call('DEL', 'delkey', 'missing')",
			expected: int64(1),
		},
		{
			name:     "EXISTS",
			script:   "redis.call('SET', 'existkey', 'value'); return redis.call('EXISTS', 'existkey', 'missing')",
			expected: int64(1),
		},
		{
			name:     "TYPE",
			script:   "redis.call('RPUSH', 'typelist', 'a'); return redis.call('TYPE', 'typelist')",
			expected: StatusReply("list"),
		},
		{
			name:     "RPUSH RPOP LLEN",
			script:   "redis.call('RPUSH', KEYS[1], 'a', 'b', 'c'); local v = redis.call('RPOP', KEYS[1]); return {v, redis.call('LLEN', KEYS[1])}",
			keys:     []string{"queue"},
			expected: []interface{}{"c", int64(2)},
		},
		{
			name:     "numbers are passed as strings",
			script:   "redis.call('RPUSH', 'nums', 7); return redis.call('RPOP', 'nums')",
			expected: "7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(ctx, tt.script, tt.keys, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}

	value, ok, err := stor.Get("testkey")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "testvalue", string(value), "script writes must reach the storage")
}

func TestLuaEngine_RedisCallErrors(t *testing.T) {
	engine, stor := newTestEngine(t)
	ctx := context.Background()

	_, err := stor.Set("scalar", []byte("x"), storage.SetOptions{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		script string
		substr string
	}{
		{"wrong type", "return redis.call('RPUSH', 'scalar', 'a')", "WRONGTYPE"},
		{"unknown command", "return redis.call('HSET', 'h', 'f', 'v')", "Unknown Redis command"},
		{"blocking command", "return redis.call('BRPOP', 'q', 0)", "not allowed from script"},
		{"arity", "return redis.call('GET')", "wrong number of arguments"},
		{"bad set option", "return redis.call('SET', 'k', 'v', 'EX', 'soon')", "not an integer"},
		{"table argument", "return redis.call('GET', {})", "must be strings or integers"},
		{"syntax error", "return (", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Eval(ctx, tt.script, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestLuaEngine_RedisPCall(t *testing.T) {
	engine, stor := newTestEngine(t)

	_, err := stor.Push("list", []byte("a"))
	require.NoError(t, err)

	result, err := engine.Eval(context.Background(), `
		local r = redis.pcall('GET', 'list')
		if type(r) == 'table' and r.err then
			return 'caught: ' .. r.err
		end
		return 'no error'
	`, nil, nil)
	require.NoError(t, err)

	s, ok := result.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(s, "caught: WRONGTYPE"), s)

	// Returning the pcall table unchanged yields an error reply.
	result, err = engine.Eval(context.Background(), "return redis.pcall('GET', 'list')", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, ErrorReply(""), result)
}

func TestLuaEngine_ScriptCaching(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	script := "return 'cached result'"
	sha := engine.LoadScript(script)
	assert.Len(t, sha, 40)

	result, err := engine.EvalSHA(ctx, sha, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "cached result", result)

	result, err = engine.EvalSHA(ctx, strings.ToUpper(sha), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "cached result", result)

	_, err = engine.EvalSHA(ctx, "0000000000000000000000000000000000000000", nil, nil)
	assert.ErrorIs(t, err, ErrNoScript)
}

func TestLuaEngine_EvalCachesScript(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Eval(context.Background(), "return 1", nil, nil)
	require.NoError(t, err)

	sha := engine.LoadScript("return 1")
	assert.Equal(t, []bool{true}, engine.ScriptExists([]string{sha}))
	assert.Equal(t, 1, engine.CachedScripts())
}

func TestLuaEngine_ScriptExistsAndFlush(t *testing.T) {
	engine, _ := newTestEngine(t)

	sha1 := engine.LoadScript("return 1")
	sha2 := engine.LoadScript("return 2")

	assert.Equal(t, []bool{true, true, false}, engine.ScriptExists([]string{sha1, sha2, "nonexistent"}))

	engine.ScriptFlush()
	assert.Equal(t, []bool{false, false}, engine.ScriptExists([]string{sha1, sha2}))
	assert.Equal(t, 0, engine.CachedScripts())
}

func TestLuaEngine_ScriptCacheEviction(t *testing.T) {
	engine, _ := newTestEngine(t, WithScriptCacheSize(2))

	first := engine.LoadScript("return 1")
	engine.LoadScript("return 2")
	engine.LoadScript("return 3")

	assert.Equal(t, 2, engine.CachedScripts())
	_, err := engine.EvalSHA(context.Background(), first, nil, nil)
	assert.ErrorIs(t, err, ErrNoScript, "least recently used script must be evicted")
}

func TestLuaEngine_Sandbox(t *testing.T) {
	engine, _ := newTestEngine(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "disk.lua"), []byte("return 'loaded-from-disk'"), 0o600))
	t.Chdir(dir)

	for _, script := range []string{
		"local f = package.loaders[2]('disk'); return f()",
		"return package.path",
		"return dofile('/etc/passwd')",
		"return loadfile('/etc/passwd')",
		"return require('os')",
		"return os.exit(1)",
		"return io.open('/etc/passwd')",
	} {
		t.Run(script, func(t *testing.T) {
			_, err := engine.Eval(context.Background(), script, nil, nil)
			assert.Error(t, err)
		})
	}

	result, err := engine.Eval(context.Background(), "return string.upper('ok') .. math.floor(2.5) .. table.concat({'a','b'})", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "OK2ab", result)
}

func TestLuaEngine_ContextCancel(t *testing.T) {
	engine, _ := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := engine.Eval(ctx, "while true do end", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
