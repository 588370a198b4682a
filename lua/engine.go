package lua

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redis-inmemory-kv/internal/cmdargs"
	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

// DefaultScriptCacheSize is the number of scripts kept for EVALSHA
const DefaultScriptCacheSize = 1024

// ErrNoScript is returned by EvalSHA for unknown or evicted scripts
var ErrNoScript = errors.New("NOSCRIPT No matching script. Please use EVAL")

// StatusReply is a script result that is sent as a RESP simple string
type StatusReply string

// ErrorReply is a script result that is sent as a RESP error
type ErrorReply string

// Engine runs Redis-compatible Lua scripts against a storage.Storage.
// Every call gets a fresh interpreter; only the script cache is shared.
type Engine struct {
	storage storage.Storage
	scripts *lru.Cache[string, string]
}

// Option configures an Engine
type Option func(*engineConfig)

type engineConfig struct {
	cacheSize int
}

// WithScriptCacheSize bounds the number of cached scripts.
// The least recently used script is evicted first.
func WithScriptCacheSize(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// NewEngine creates a new Lua execution engine
func NewEngine(s storage.Storage, opts ...Option) *Engine {
	cfg := engineConfig{cacheSize: DefaultScriptCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	// lru.New only fails for a non-positive size, which the option rules out.
	scripts, _ := lru.New[string, string](cfg.cacheSize)

	return &Engine{
		storage: s,
		scripts: scripts,
	}
}

// Eval runs script with the given KEYS and ARGV and caches it for EVALSHA.
// The script is aborted when ctx is done.
func (e *Engine) Eval(ctx context.Context, script string, keys, args []string) (interface{}, error) {
	e.LoadScript(script)
	return e.run(ctx, script, keys, args)
}

// EvalSHA runs a previously loaded script by its SHA1 hash
func (e *Engine) EvalSHA(ctx context.Context, sha string, keys, args []string) (interface{}, error) {
	script, ok := e.scripts.Get(strings.ToLower(sha))
	if !ok {
		return nil, ErrNoScript
	}
	return e.run(ctx, script, keys, args)
}

// LoadScript caches script and returns its SHA1 hash
func (e *Engine) LoadScript(script string) string {
	sum := sha1.Sum([]byte(script))
	hash := hex.EncodeToString(sum[:])
	e.scripts.Add(hash, script)
	return hash
}

// ScriptExists reports, for each hash, whether the script is cached
func (e *Engine) ScriptExists(hashes []string) []bool {
	results := make([]bool, len(hashes))
	for i, hash := range hashes {
		results[i] = e.scripts.Contains(strings.ToLower(hash))
	}
	return results
}

// ScriptFlush removes all cached scripts
func (e *Engine) ScriptFlush() {
	e.scripts.Purge()
}

// CachedScripts returns the number of cached scripts
func (e *Engine) CachedScripts() int {
	return e.scripts.Len()
}

func (e *Engine) run(ctx context.Context, script string, keys, args []string) (interface{}, error) {
	L, err := newState()
	if err != nil {
		return nil, err
	}
	defer L.Close()

	L.SetContext(ctx)
	e.setupRedisAPI(L, keys, args)

	if err := L.DoString(script); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	if L.GetTop() == 0 {
		return nil, nil
	}
	return fromLua(L.Get(-1)), nil
}

// newState opens an interpreter with only the libraries scripts need.
// The package library is never opened and file loading is removed.
func newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua library %s: %w", lib.name, err)
		}
	}

	for _, name := range []string{"dofile", "loadfile", "require", "module", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L, nil
}

// setupRedisAPI installs KEYS, ARGV and the redis table
func (e *Engine) setupRedisAPI(L *lua.LState, keys, args []string) {
	L.SetGlobal("KEYS", stringTable(L, keys))
	L.SetGlobal("ARGV", stringTable(L, args))

	redisTable := L.NewTable()
	L.SetFuncs(redisTable, map[string]lua.LGFunction{
		"call":         e.redisCall,
		"pcall":        e.redisPCall,
		"status_reply": statusReply,
		"error_reply":  errorReply,
	})
	L.SetGlobal("redis", redisTable)
}

func stringTable(L *lua.LState, items []string) *lua.LTable {
	table := L.CreateTable(len(items), 0)
	for i, item := range items {
		table.RawSetInt(i+1, lua.LString(item))
	}
	return table
}

// redisCall implements redis.call: command errors abort the script
func (e *Engine) redisCall(L *lua.LState) int {
	result, err := e.callFromLua(L)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(toLua(L, result))
	return 1
}

// redisPCall implements redis.pcall: command errors are returned as {err=...}
func (e *Engine) redisPCall(L *lua.LState) int {
	result, err := e.callFromLua(L)
	if err != nil {
		L.Push(replyTable(L, "err", err.Error()))
		return 1
	}
	L.Push(toLua(L, result))
	return 1
}

func statusReply(L *lua.LState) int {
	L.Push(replyTable(L, "ok", L.CheckString(1)))
	return 1
}

func errorReply(L *lua.LState) int {
	L.Push(replyTable(L, "err", L.CheckString(1)))
	return 1
}

func replyTable(L *lua.LState, field, msg string) *lua.LTable {
	table := L.NewTable()
	table.RawSetString(field, lua.LString(msg))
	return table
}

func (e *Engine) callFromLua(L *lua.LState) (interface{}, error) {
	argc := L.GetTop()
	if argc == 0 {
		return nil, errors.New("ERR Please specify at least one argument for this redis lib call")
	}

	argv := make([]string, argc)
	for i := 1; i <= argc; i++ {
		switch v := L.Get(i).(type) {
		case lua.LString, lua.LNumber:
			argv[i-1] = v.String()
		default:
			return nil, errors.New("ERR Lua redis lib command arguments must be strings or integers")
		}
	}

	return e.execute(strings.ToUpper(argv[0]), argv[1:])
}

// execute runs one command against the storage. Results use the Go types
// understood by toLua: nil, int64, string, StatusReply and []interface{}.
func (e *Engine) execute(cmd string, args []string) (interface{}, error) {
	switch cmd {
	case "GET":
		if len(args) != 1 {
			return nil, arityError(cmd)
		}
		value, ok, err := e.storage.Get(args[0])
		if err != nil || !ok {
			return nil, replyError(err)
		}
		return string(value), nil

	case "SET":
		if len(args) < 2 {
			return nil, arityError(cmd)
		}
		opts, err := cmdargs.ParseSetOptions(args[2:])
		if err != nil {
			return nil, replyError(err)
		}
		ok, err := e.storage.Set(args[0], []byte(args[1]), opts)
		if err != nil || !ok {
			return nil, replyError(err)
		}
		return StatusReply("OK"), nil

	case "DEL":
		if len(args) == 0 {
			return nil, arityError(cmd)
		}
		return e.storage.Del(args...), nil

	case "EXISTS":
		if len(args) == 0 {
			return nil, arityError(cmd)
		}
		return e.storage.Exists(args...), nil

	case "TYPE":
		if len(args) != 1 {
			return nil, arityError(cmd)
		}
		return StatusReply(e.storage.Type(args[0]).String()), nil

	case "TTL", "PTTL":
		if len(args) != 1 {
			return nil, arityError(cmd)
		}
		return cmdargs.TTLReply(e.storage.TTL(args[0]), cmd == "PTTL"), nil

	case "RPUSH":
		if len(args) < 2 {
			return nil, arityError(cmd)
		}
		values := make([][]byte, len(args)-1)
		for i, v := range args[1:] {
			values[i] = []byte(v)
		}
		n, err := e.storage.Push(args[0], values...)
		if err != nil {
			return nil, replyError(err)
		}
		return int64(n), nil

	case "RPOP":
		if len(args) != 1 {
			return nil, arityError(cmd)
		}
		value, ok, err := e.storage.Pop(args[0])
		if err != nil || !ok {
			return nil, replyError(err)
		}
		return string(value), nil

	case "LLEN":
		if len(args) != 1 {
			return nil, arityError(cmd)
		}
		n, err := e.storage.Len(args[0])
		if err != nil {
			return nil, replyError(err)
		}
		return int64(n), nil

	case "BRPOP", "BQPOP":
		return nil, errors.New("ERR This Redis command is not allowed from script")

	default:
		return nil, fmt.Errorf("ERR Unknown Redis command called from script '%s'", strings.ToLower(cmd))
	}
}

func arityError(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd))
}

// replyError turns a storage or parse error into Redis reply text.
// A nil err stays nil.
func replyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrWrongType):
		return storage.ErrWrongType
	default:
		return fmt.Errorf("ERR %w", err)
	}
}
