package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/redis-inmemory-kv/lua"
	"github.com/raniellyferreira/redis-inmemory-kv/protocol"
	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

// Logger is the structured logger used by the server.
// Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector receives per-command measurements
type MetricsCollector interface {
	RecordCommandProcessed(cmd string, duration time.Duration)
	RecordBlockingWait(duration time.Duration, served bool)
	RecordError(errorType string)
}

// Server serves the Redis protocol over a storage.Storage
type Server struct {
	storage storage.Storage
	lua     *lua.Engine

	// Server configuration
	addr        string
	password    string
	readTimeout time.Duration
	version     string
	runID       string
	startedAt   time.Time

	logger  Logger
	metrics MetricsCollector

	// Connection management
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client
	nextID   atomic.Int64

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	connCount    atomic.Int64
	commandCount atomic.Int64
	errorCount   atomic.Int64
	blocked      atomic.Int64
}

// Client represents a connected client
type Client struct {
	id     int64
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	server *Server

	authenticated bool
	lastCmd       time.Time

	// Canceled when the server stops or the connection is closed
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewServer creates a new server for storage. engine may be nil, in which
// case a default Lua engine over the same storage is created.
func NewServer(addr string, s storage.Storage, engine *lua.Engine) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	if engine == nil {
		engine = lua.NewEngine(s)
	}

	return &Server{
		storage: s,
		lua:     engine,
		addr:    addr,
		logger:  nopLogger{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetPassword enables AUTH with the given password
func (s *Server) SetPassword(password string) {
	s.password = password
}

// SetReadTimeout closes connections idle for longer than d. Zero disables it.
// A client parked in a blocking pop is never considered idle.
func (s *Server) SetReadTimeout(d time.Duration) {
	s.readTimeout = d
}

// SetLogger sets the logger
func (s *Server) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetMetrics sets the metrics collector
func (s *Server) SetMetrics(metrics MetricsCollector) {
	s.metrics = metrics
}

// SetIdentity sets the version and run id reported by INFO
func (s *Server) SetIdentity(version, runID string) {
	s.version = version
	s.runID = runID
}

// Start listens on the configured address and serves clients in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.startedAt = time.Now()

	s.wg.Add(1)
	go s.acceptConnections()

	s.logger.Info("RESP server listening", "addr", listener.Addr().String())
	return nil
}

// Stop closes the listener and every client connection, releasing parked
// blocking pops, and waits for all connection goroutines to exit.
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.clients.Range(func(_, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected_clients": s.clientCount(),
		"blocked_clients":   s.blocked.Load(),
		"total_commands":    s.commandCount.Load(),
		"total_errors":      s.errorCount.Load(),
		"total_connections": s.connCount.Load(),
	}
}

func (s *Server) clientCount() int {
	n := 0
	s.clients.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.logger.Error("Accept failed", "error", err)
			return
		}

		s.handleNewClient(conn)
	}
}

func (s *Server) handleNewClient(conn net.Conn) {
	s.connCount.Add(1)

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		id:            s.nextID.Add(1),
		conn:          conn,
		reader:        protocol.NewReader(conn),
		writer:        protocol.NewWriter(conn),
		server:        s,
		authenticated: s.password == "",
		lastCmd:       time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}

	s.clients.Store(conn, client)
	if s.ctx.Err() != nil {
		client.Close()
		return
	}
	s.logger.Debug("Client connected", "id", client.id, "remote", conn.RemoteAddr().String())

	s.wg.Add(1)
	go client.handle()
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
		c.server.clients.Delete(c.conn)
	})
}

func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	for {
		if c.server.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.server.readTimeout))
		}

		cmd, err := c.reader.ReadCommand()
		if err != nil {
			c.handleReadError(err)
			return
		}

		c.lastCmd = time.Now()
		if quit := c.executeCommand(cmd); quit {
			return
		}
		if err := c.writer.Flush(); err != nil {
			return
		}
	}
}

func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, io.EOF), c.ctx.Err() != nil:
	case errors.Is(err, protocol.ErrProtocol):
		c.writeError("ERR " + err.Error())
		_ = c.writer.Flush()
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.server.logger.Debug("Closing idle client", "id", c.id)
			return
		}
		c.server.logger.Debug("Client read failed", "id", c.id, "error", err)
	}
}

// watchDisconnect returns a context that is canceled if the peer hangs up
// while the client is parked in a blocking command. stop must be called
// before the connection is read again.
func (c *Client) watchDisconnect() (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(c.ctx)

	// A parked client is not idle.
	_ = c.conn.SetReadDeadline(time.Time{})

	var stopping atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.reader.Peek(); err != nil && !stopping.Load() {
			cancel()
		}
	}()

	return ctx, func() {
		stopping.Store(true)
		_ = c.conn.SetReadDeadline(time.Now())
		<-done
		_ = c.conn.SetReadDeadline(time.Time{})
		cancel()
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
