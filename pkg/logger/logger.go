// Package logger wraps zerolog with the fields the report services attach
// to every line.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/facturo/facturo-backend/pkg/tenant"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New builds the service logger. Development gets coloured console output
// at debug level; every other environment gets JSON lines at info level.
func New(serviceName, environment string) *Logger {
	if strings.EqualFold(environment, "development") {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return newLogger(serviceName, console, zerolog.DebugLevel)
	}
	return newLogger(serviceName, os.Stdout, zerolog.InfoLevel)
}

// NewWithWriter creates a logger writing JSON lines to w. The CLI uses it to
// log to stderr so stdout stays clean for exported data.
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	return newLogger(serviceName, w, zerolog.DebugLevel)
}

func newLogger(serviceName string, w io.Writer, level zerolog.Level) *Logger {
	return &Logger{
		Logger: zerolog.New(w).Level(level).With().
			Timestamp().
			Str("service", serviceName).
			Logger(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// Ctx returns a logger carrying the tenant of ctx.
func (l *Logger) Ctx(ctx context.Context) *Logger {
	return l.with("tenant_id", tenant.TenantIDOrDefault(ctx))
}

// WithCollection returns a logger scoped to a document collection
func (l *Logger) WithCollection(collection string) *Logger {
	return l.with("collection", collection)
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}
