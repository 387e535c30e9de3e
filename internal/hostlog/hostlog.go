// Package hostlog provides the append-only debug log used by both pipeline
// phases. Every Python hook in the original system wrote its own
// timestamped debug_log() lines to a single file; this is that convention
// carried into Go.
package hostlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Logger writes "[ts] [component] message" lines to a file, matching the
// shape of debug_log() in the original Python hooks.
type Logger struct {
	component string
	out       io.WriteCloser
	l         *log.Logger
}

// Open opens (creating parent directories as needed) the debug log at path
// for a given component name.
func Open(path, component string) (*Logger, error) {
	if path == "" {
		return &Logger{component: component, l: log.New(io.Discard, "", 0)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	return &Logger{
		component: component,
		out:       f,
		l:         log.New(f, "", 0),
	}, nil
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l.out == nil {
		return nil
	}
	return l.out.Close()
}

// Printf writes a formatted, timestamped line.
func (l *Logger) Printf(format string, args ...interface{}) {
	ts := time.Now().UTC().Format(time.RFC3339)
	l.l.Printf("[%s] [%s] %s", ts, l.component, fmt.Sprintf(format, args...))
}

// Warn is Printf with a WARN marker, for non-fatal per-chunk failures (§7).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.Printf("WARN "+format, args...)
}

// Error is Printf with an ERROR marker.
func (l *Logger) Error(format string, args ...interface{}) {
	l.Printf("ERROR "+format, args...)
}
