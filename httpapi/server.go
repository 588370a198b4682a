package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

// DefaultMaxBodySize bounds JSON request bodies
const DefaultMaxBodySize = 64 << 20

// Logger is the structured logger used by the HTTP front end.
// Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector receives per-request measurements
type MetricsCollector interface {
	RecordCommandProcessed(cmd string, duration time.Duration)
	RecordBlockingWait(duration time.Duration, served bool)
	RecordError(errorType string)
}

// Server exposes a storage.Storage over HTTP with JSON payloads
type Server struct {
	storage     storage.Storage
	addr        string
	maxBodySize int64

	logger  Logger
	metrics MetricsCollector

	httpServer *http.Server
	listener   net.Listener

	// Canceled by Stop so parked /bqpop requests return
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates an HTTP front end for s listening on addr
func NewServer(addr string, s storage.Storage) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		storage:     s,
		addr:        addr,
		maxBodySize: DefaultMaxBodySize,
		logger:      nopLogger{},
		ctx:         ctx,
		cancel:      cancel,
	}
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

// SetMaxBodySize limits the size of POST bodies. Non-positive values are ignored.
func (s *Server) SetMaxBodySize(n int64) {
	if n > 0 {
		s.maxBodySize = n
	}
}

// Handler returns the routing handler without starting a listener
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /get", s.handleGet)
	mux.HandleFunc("POST /set", s.handleSet)
	mux.HandleFunc("POST /qpush", s.handleQPush)
	mux.HandleFunc("GET /qpop", s.handleQPop)
	mux.HandleFunc("GET /bqpop", s.handleBQPop)
	return s.logRequests(mux)
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()

	s.logger.Info("HTTP server listening", "addr", listener.Addr().String())
	return nil
}

// Stop releases parked requests and shuts the server down, waiting for
// in-flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// statusRecorder captures the status code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
