// rediskv runs an in-memory Redis-compatible key-value node.
//
// Usage:
//
//	rediskv serve [--config file.yaml] [--addr :6379] [--http-addr :8080] [--metrics-addr :9121]
//	rediskv ping  [--addr localhost:6379] [--password secret]
//	rediskv diff  --ref localhost:6379 --sut localhost:6380
//
// Exit codes:
//
//	0: success
//	1: runtime failure, or differences found by diff
//	2: invalid arguments or configuration
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	rediskv "github.com/raniellyferreira/redis-inmemory-kv"
)

func main() {
	os.Exit(run(context.Background(), os.Args))
}

// exitError carries an exit code for a failure whose output was already written
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError reports invalid arguments or configuration
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func createApp() *cli.Command {
	version := rediskv.Version
	if rediskv.GitCommit != "" {
		version += " (commit: " + rediskv.GitCommit + ")"
	}

	return &cli.Command{
		Name:    "rediskv",
		Usage:   "in-memory Redis-compatible key-value store",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			pingCommand(),
			diffCommand(),
		},
		// Exit codes are mapped in run.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(ctx context.Context, args []string) int {
	app := createApp()

	if err := app.Run(ctx, args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) || errors.Is(err, rediskv.ErrInvalidConfig) {
			fmt.Fprintf(os.Stderr, "invalid arguments: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
