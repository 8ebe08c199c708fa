// Package logger provides docbase's structured logging, a thin wrapper
// around zerolog that keeps the component-scoped, level-gated vocabulary of
// a hand-rolled logger while emitting structured JSON or console output.
//
// Log output is component-scoped: a subsystem that logs (the watcher and
// the facade do) gets its own child logger via WithComponent, so a given
// line's origin is a field rather than something parsed out of a
// formatted string.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Configure it once via Init or
// Configure before any component logger is derived from it.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Level names accepted by SetLevel/the DOCBASE_LOG_LEVEL environment
// variable.
const (
	TraceLevel = "trace"
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Config configures the global logger.
type Config struct {
	Level      string // trace, debug, info, warn, error (default info)
	JSONOutput bool   // true for JSON lines, false for a human console format
	Output     io.Writer
}

// Init (re)configures the global logger. Safe to call multiple times; the
// last call wins.
func Init(cfg Config) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case InfoLevel, "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// Configure initializes the global logger from the environment:
// DOCBASE_LOG_LEVEL (trace|debug|info|warn|error) and DOCBASE_LOG_FORMAT
// (json|console, default console).
func Configure() {
	cfg := Config{
		Level:      os.Getenv("DOCBASE_LOG_LEVEL"),
		JSONOutput: strings.EqualFold(os.Getenv("DOCBASE_LOG_FORMAT"), "json"),
	}
	Init(cfg)
	if trace := os.Getenv("DOCBASE_TRACE_SUBSYSTEMS"); trace != "" {
		subsystems := strings.Split(trace, ",")
		for i := range subsystems {
			subsystems[i] = strings.TrimSpace(subsystems[i])
		}
		EnableTrace(subsystems...)
	}
}

// WithComponent returns a child logger carrying a "component" field, the
// structured replacement for a per-subsystem log prefix.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Trace-subsystem gating, preserved from entitydb's logger so callers can
// narrow very verbose tracing to named subsystems (e.g. "locks",
// "journal"). The events are still filtered by the global level, so they
// appear only when that level is trace.
var (
	traceMu         sync.RWMutex
	traceSubsystems = make(map[string]bool)
)

// EnableTrace turns on trace-level logging for the named subsystems.
func EnableTrace(subsystems ...string) {
	traceMu.Lock()
	defer traceMu.Unlock()
	for _, s := range subsystems {
		traceSubsystems[s] = true
	}
}

// DisableTrace turns off trace-level logging for the named subsystems.
func DisableTrace(subsystems ...string) {
	traceMu.Lock()
	defer traceMu.Unlock()
	for _, s := range subsystems {
		delete(traceSubsystems, s)
	}
}

func isTraceEnabled(subsystem string) bool {
	traceMu.RLock()
	defer traceMu.RUnlock()
	return traceSubsystems[subsystem]
}

// TraceIf logs at trace level, scoped to a component, only if the named
// subsystem has been enabled via EnableTrace and the global level is
// trace. Useful for noisy lock/journal
// tracing that would otherwise drown out normal debug output.
func TraceIf(component, subsystem, msg string, fields map[string]any) {
	if !isTraceEnabled(subsystem) {
		return
	}
	ev := WithComponent(component).Trace().Str("subsystem", subsystem)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
