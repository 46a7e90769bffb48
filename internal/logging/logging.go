// Package logging provides per-module slog loggers for the engine.
//
// All output goes to stderr: the MCP server uses stdio transport, so
// stdout must carry nothing but protocol frames.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	output  io.Writer = os.Stderr
	level             = slog.LevelWarn
	handler slog.Handler
)

// SetLevel changes the minimum level for loggers created afterwards.
// Existing loggers are unaffected.
func SetLevel(l slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	handler = nil
}

// SetOutput redirects log output. Used by tests to capture logs.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	handler = nil
}

// NewModuleLogger returns a logger tagged with the originating module,
// e.g. NewModuleLogger("patterns") tags every record with module=patterns.
func NewModuleLogger(module string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if handler == nil {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("module", module)
}
