// Package logging provides categorized, structured logging for evocore,
// built on top of zap. Each subsystem gets a named sub-logger so log lines
// can be filtered by component without threading a logger through every
// call site by hand.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names the subsystem emitting a log line.
type Category string

const (
	CategoryCache       Category = "cache"
	CategoryVectorIndex Category = "vectorindex"
	CategoryChunking    Category = "chunking"
	CategoryMemoryGraph Category = "memorygraph"
	CategoryReasoning   Category = "reasoning"
	CategoryEvolution   Category = "evolution"
	CategoryCLI         Category = "cli"
)

var (
	mu     sync.Mutex
	base   *zap.Logger
	named  = map[Category]*zap.SugaredLogger{}
	inited bool
)

// Init initializes the process-wide base logger. Level is one of
// "debug", "info", "warn", "error"; format is "json" or "console".
// Every call builds a new base logger, replacing the previous one and
// clearing memoized per-category loggers.
func Init(level, format string) error {
	mu.Lock()
	defer mu.Unlock()

	zapLevel := zapcore.InfoLevel
	if err := zapLevel.Set(level); err == nil {
		// accepted
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	base = l
	named = map[Category]*zap.SugaredLogger{}
	inited = true
	return nil
}

// For returns the sugared logger for a category, lazily initializing a
// no-op base logger if Init was never called (keeps libraries usable in
// tests without forcing every test to call Init first).
func For(cat Category) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if !inited {
		base = zap.NewNop()
		inited = true
	}
	if l, ok := named[cat]; ok {
		return l
	}
	l := base.Named(string(cat)).Sugar()
	named[cat] = l
	return l
}

// Sync flushes any buffered log entries. Call during shutdown.
func Sync() {
	mu.Lock()
	b := base
	mu.Unlock()
	if b != nil {
		_ = b.Sync()
	}
}
