package rediskv

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/raniellyferreira/redis-inmemory-kv/httpapi"
	"github.com/raniellyferreira/redis-inmemory-kv/lua"
	"github.com/raniellyferreira/redis-inmemory-kv/server"
	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

// Node is an in-memory key-value store with its network front ends
type Node struct {
	config *config
	runID  string

	// Components
	storage *storage.MemoryStorage
	lua     *lua.Engine
	server  *server.Server  // nil when no RESP address is configured
	http    *httpapi.Server // nil when no HTTP address is configured

	// State
	mu      sync.Mutex
	started bool
	closed  bool

	// Stops the stats sampler
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Node with the given options
//
// The node is created but not started; its storage is usable right away.
// Use Start to open the network listeners.
//
// Example:
//
//	node, err := rediskv.New(
//		rediskv.WithAddr(":6379"),
//		rediskv.WithHTTPAddr(":8080"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer node.Close()
func New(opts ...Option) (*Node, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	stor := storage.NewMemory(
		storage.WithShardCount(cfg.shardCount),
		storage.WithClock(cfg.clock),
	)
	if cfg.metrics != nil {
		stor.AddObserver(&metricsObserver{metrics: cfg.metrics})
	}

	engine := lua.NewEngine(stor, lua.WithScriptCacheSize(cfg.scriptCacheSize))

	node := &Node{
		config:  cfg,
		runID:   strings.ReplaceAll(uuid.NewString(), "-", ""),
		storage: stor,
		lua:     engine,
	}

	if cfg.addr != "" {
		node.server = server.NewServer(cfg.addr, stor, engine)
		node.server.SetPassword(cfg.password)
		node.server.SetReadTimeout(cfg.readTimeout)
		node.server.SetLogger(&loggerAdapter{logger: cfg.logger})
		node.server.SetIdentity(Version, node.runID)
		if cfg.metrics != nil {
			node.server.SetMetrics(&metricsAdapter{metrics: cfg.metrics})
		}
	}

	if cfg.httpAddr != "" {
		node.http = httpapi.NewServer(cfg.httpAddr, stor)
		node.http.SetLogger(&loggerAdapter{logger: cfg.logger})
		if cfg.metrics != nil {
			node.http.SetMetrics(&metricsAdapter{metrics: cfg.metrics, prefix: "http_"})
		}
	}

	return node, nil
}

// Start opens the configured listeners and, when a metrics collector is set,
// starts sampling key count and memory usage. A listener that fails to open
// stops the ones already started.
//
// Starting a started node is a no-op.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if n.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.server != nil {
		if err := n.server.Start(); err != nil {
			n.config.logger.Error("Failed to start server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: n.config.addr})
			return &ListenError{Service: "resp", Addr: n.config.addr, Err: err}
		}
	}

	if n.http != nil {
		if err := n.http.Start(); err != nil {
			n.config.logger.Error("Failed to start HTTP server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: n.config.httpAddr})
			if n.server != nil {
				_ = n.server.Stop()
			}
			return &ListenError{Service: "http", Addr: n.config.httpAddr, Err: err}
		}
	}

	if n.config.metrics != nil {
		statsCtx, cancel := context.WithCancel(context.Background())
		n.cancel = cancel
		n.wg.Add(1)
		go n.sampleStats(statsCtx)
	}

	n.started = true
	n.config.logger.Info("Node started", Field{Key: "run_id", Value: n.runID}, Field{Key: "version", Value: Version})
	return nil
}

// sampleStats reports key count and memory usage every statsInterval
func (n *Node) sampleStats(ctx context.Context) {
	defer n.wg.Done()

	ticker := n.config.clock.NewTicker(n.config.statsInterval)
	defer ticker.Stop()

	n.recordStats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n.recordStats()
		}
	}
}

func (n *Node) recordStats() {
	n.config.metrics.RecordKeyCount(n.storage.KeyCount())
	n.config.metrics.RecordMemoryUsage(n.storage.MemoryUsage())
}

// Close stops the listeners, releases parked blocking pops and closes the
// storage. It is safe to call more than once.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if n.started {
		if n.server != nil {
			keep(n.server.Stop())
		}
		if n.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), n.config.shutdownTimeout)
			keep(n.http.Stop(ctx))
			cancel()
		}
		if n.cancel != nil {
			n.cancel()
			n.wg.Wait()
		}
	}

	keep(n.storage.Close())

	if firstErr != nil {
		n.config.logger.Error("Error closing node", Field{Key: "error", Value: firstErr})
	}
	return firstErr
}

// Storage returns the underlying storage for direct access
//
// Example:
//
//	value, ok, err := node.Storage().Get("mykey")
func (n *Node) Storage() storage.Storage {
	return n.storage
}

// Addr returns the Redis protocol listening address, or "" when disabled
func (n *Node) Addr() string {
	if n.server == nil {
		return ""
	}
	return n.server.Addr()
}

// HTTPAddr returns the HTTP listening address, or "" when disabled
func (n *Node) HTTPAddr() string {
	if n.http == nil {
		return ""
	}
	return n.http.Addr()
}

// RunID returns the random identifier of this node instance
func (n *Node) RunID() string {
	return n.runID
}

// GetInfo returns storage statistics, server counters and version details
//
// Example:
//
//	info := node.GetInfo()
//	fmt.Printf("Key count: %v\n", info["keys"])
func (n *Node) GetInfo() map[string]interface{} {
	info := n.storage.Info()

	info["run_id"] = n.runID
	info["version"] = VersionInfo()
	info["cached_scripts"] = n.lua.CachedScripts()
	if n.server != nil {
		info["server"] = n.server.Stats()
	}

	return info
}
