package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/redis-inmemory-kv/internal/cmdargs"
	"github.com/raniellyferreira/redis-inmemory-kv/storage"
)

type setRequest struct {
	Key       string   `json:"key"`
	Value     *string  `json:"value"`
	Expiry    *float64 `json:"expiry,omitempty"`
	Condition string   `json:"condition,omitempty"`
}

type pushRequest struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

type resultResponse struct {
	Result interface{} `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	defer s.record("GET", time.Now())

	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	value, ok, err := s.storage.Get(key)
	switch {
	case err != nil:
		s.writeStorageError(w, err)
	case !ok:
		s.writeError(w, http.StatusNotFound, "Key not found")
	default:
		s.writeResult(w, string(value))
	}
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	defer s.record("SET", time.Now())

	var req setRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Key == "" || req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "Missing key or value")
		return
	}

	var opts storage.SetOptions
	if req.Expiry != nil {
		if *req.Expiry < 0 {
			s.writeError(w, http.StatusBadRequest, "Expiry must not be negative")
			return
		}
		ttl := *req.Expiry * float64(time.Second)
		if ttl >= math.MaxInt64 {
			s.writeError(w, http.StatusBadRequest, "Expiry is too large")
			return
		}
		opts.TTL = time.Duration(ttl)
		// A positive expiry must never round down to "no expiry".
		if *req.Expiry > 0 && opts.TTL == 0 {
			opts.TTL = time.Nanosecond
		}
	}

	switch strings.ToUpper(req.Condition) {
	case "":
	case "NX":
		opts.Condition = storage.CondNX
	case "XX":
		opts.Condition = storage.CondXX
	default:
		s.writeError(w, http.StatusBadRequest, "Condition must be NX or XX")
		return
	}

	ok, err := s.storage.Set(req.Key, []byte(*req.Value), opts)
	switch {
	case err != nil:
		s.writeStorageError(w, err)
	case !ok && opts.Condition == storage.CondNX:
		s.writeError(w, http.StatusConflict, "Key already exists")
	case !ok:
		s.writeError(w, http.StatusNotFound, "Key does not exist")
	default:
		s.writeResult(w, "OK")
	}
}

func (s *Server) handleQPush(w http.ResponseWriter, r *http.Request) {
	defer s.record("QPUSH", time.Now())

	var req pushRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Key == "" || len(req.Values) == 0 {
		s.writeError(w, http.StatusBadRequest, "Missing key or values")
		return
	}

	values := make([][]byte, len(req.Values))
	for i, v := range req.Values {
		values[i] = []byte(v)
	}

	n, err := s.storage.Push(req.Key, values...)
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeResult(w, n)
}

func (s *Server) handleQPop(w http.ResponseWriter, r *http.Request) {
	defer s.record("QPOP", time.Now())

	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	value, ok, err := s.storage.Pop(key)
	switch {
	case err != nil:
		s.writeStorageError(w, err)
	case !ok:
		s.writeError(w, http.StatusNotFound, "Key not found")
	default:
		s.writeResult(w, string(value))
	}
}

// handleBQPop waits up to timeout seconds for a value. A zero or missing
// timeout tries once. The wait ends early when the client goes away.
func (s *Server) handleBQPop(w http.ResponseWriter, r *http.Request) {
	defer s.record("BQPOP", time.Now())

	query := r.URL.Query()
	key := query.Get("key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "Missing key")
		return
	}

	timeout := time.Duration(0)
	if raw := query.Get("timeout"); raw != "" {
		var err error
		if timeout, err = cmdargs.ParseTimeout(raw); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid timeout: "+err.Error())
			return
		}
	}

	start := time.Now()
	value, ok, err := s.storage.BlockingPop(r.Context(), key, timeout)
	if s.metrics != nil {
		s.metrics.RecordBlockingWait(time.Since(start), ok)
	}

	switch {
	case ok:
		s.writeResult(w, string(value))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client gone or server stopping
		s.writeError(w, http.StatusServiceUnavailable, "Request canceled")
	case err != nil:
		s.writeStorageError(w, err)
	default:
		s.writeError(w, http.StatusNotFound, "Key not found or timed out")
	}
}

// decode reads a JSON body into v, writing a 400 reply on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) record(cmd string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordCommandProcessed(cmd, time.Since(start))
	}
}

func (s *Server) writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrWrongType):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("Storage operation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeResult(w http.ResponseWriter, result interface{}) {
	s.writeJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	if s.metrics != nil && status >= http.StatusBadRequest {
		s.metrics.RecordError(strconv.Itoa(status))
	}
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", "error", err)
	}
}
