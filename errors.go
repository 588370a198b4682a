package rediskv

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the node has been closed
	ErrClosed = errors.New("node is closed")
)

// ConfigError reports which option rejected its value
type ConfigError struct {
	Option string
	Value  interface{}
	Err    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("option %s: %v: %v", e.Option, e.Value, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ListenError represents a failure to start one of the node's listeners
type ListenError struct {
	Service string // "resp" or "http"
	Addr    string
	Err     error
}

// Error implements the error interface
func (e *ListenError) Error() string {
	return fmt.Sprintf("%s listener on %s: %v", e.Service, e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *ListenError) Unwrap() error {
	return e.Err
}
