// Package logging provides real-time log output for admission activity.
// The event stream is the forensic record. This package provides optional
// console output for monitoring, derived from admission events.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/gatekit/events"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
// This is for real-time monitoring only - accounting uses the usage store.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		traceID:   l.traceID,
	}
}

// WithTraceID returns a new logger with the given trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		traceID:   traceID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Admission logging methods ---
// These are called by the manager alongside event emission. They provide
// real-time console output without duplicating the event stream.

// Admitted logs a request that passed every admission check.
func (l *Logger) Admitted(providerID, agentID string, remainingRequests, remainingTokens int) {
	l.Debug("request_admitted", map[string]interface{}{
		"provider":           providerID,
		"agent":              agentID,
		"remaining_requests": remainingRequests,
		"remaining_tokens":   remainingTokens,
	})
}

// Refused logs a request that was refused or deferred.
func (l *Logger) Refused(providerID, agentID, reason string) {
	l.Info("request_refused", map[string]interface{}{
		"provider": providerID,
		"agent":    agentID,
		"reason":   reason,
	})
}

// Drained logs a queued request handed to the request handler.
func (l *Logger) Drained(providerID, requestID string, waited time.Duration) {
	l.Debug("request_drained", map[string]interface{}{
		"provider": providerID,
		"request":  requestID,
		"waited":   waited.String(),
	})
}

// HandlerPanic logs a request handler that panicked while draining.
func (l *Logger) HandlerPanic(providerID, requestID string, err error) {
	l.Error("handler_panic", map[string]interface{}{
		"provider": providerID,
		"request":  requestID,
		"error":    err.Error(),
	})
}

// BreakerTransition logs a circuit breaker state change.
func (l *Logger) BreakerTransition(providerID, oldState, newState string) {
	fields := map[string]interface{}{
		"provider":  providerID,
		"old_state": oldState,
		"new_state": newState,
	}
	if newState == "open" {
		l.Warn("circuit_transition", fields)
	} else {
		l.Info("circuit_transition", fields)
	}
}

// BudgetAlert logs a refusal on cost grounds.
func (l *Logger) BudgetAlert(neededUSD, remainingUSD float64) {
	l.Warn("budget_exceeded", map[string]interface{}{
		"needed_usd":    fmt.Sprintf("%.4f", neededUSD),
		"remaining_usd": fmt.Sprintf("%.4f", remainingUSD),
	})
}

// EventListener returns a listener that mirrors admission events to the
// logger. Severity follows the event type: breaker opens and budget
// refusals warn, other refusals inform, routine traffic stays at debug.
func EventListener(l *Logger) events.Listener {
	return func(e events.Event) {
		fields := make(map[string]interface{}, len(e.Data)+3)
		if e.ProviderID != "" {
			fields["provider"] = e.ProviderID
		}
		if e.AgentID != "" {
			fields["agent"] = e.AgentID
		}
		if e.RequestID != "" {
			fields["request"] = e.RequestID
		}
		for k, v := range e.Data {
			fields[k] = v
		}

		switch e.Type {
		case events.TypeCircuitOpened, events.TypeBudgetExceeded:
			l.Warn(string(e.Type), fields)
		case events.TypeCircuitClosed, events.TypeCircuitHalfOpen,
			events.TypeRateLimitHit, events.TypeRequestRejected:
			l.Info(string(e.Type), fields)
		default:
			l.Debug(string(e.Type), fields)
		}
	}
}
