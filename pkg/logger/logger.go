// Package logger provides component-tagged logging for chatsink.
//
// Every call names the component it speaks for ("session", "whatsapp",
// "bridge", ...) and may attach structured fields:
//
//	logger.InfoCF("session", "Reconnecting", map[string]any{"attempt": 2})
//
// Output goes to stderr through a zap console core; stdout is reserved
// for command output such as chat listings and QR codes.
package logger

import (
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu   sync.RWMutex
	base = build(os.Stderr)
)

func build(w io.Writer) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// SetLevel changes the minimum level for all components.
func SetLevel(l LogLevel) {
	level.SetLevel(toZap(l))
}

// GetLevel returns the current minimum level.
func GetLevel() LogLevel {
	switch level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	base = build(w)
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

func toZap(l LogLevel) zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func logC(l zapcore.Level, component, msg string, fields map[string]any) {
	mu.RLock()
	lg := base
	mu.RUnlock()

	ce := lg.Check(l, msg)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, len(fields)+1)
	zf = append(zf, zap.String("component", component))

	// Sorted so the same call always renders the same line.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	ce.Write(zf...)
}

func DebugC(component, msg string) { logC(zapcore.DebugLevel, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) {
	logC(zapcore.DebugLevel, component, msg, fields)
}

func InfoC(component, msg string) { logC(zapcore.InfoLevel, component, msg, nil) }

func InfoCF(component, msg string, fields map[string]any) {
	logC(zapcore.InfoLevel, component, msg, fields)
}

func WarnC(component, msg string) { logC(zapcore.WarnLevel, component, msg, nil) }

func WarnCF(component, msg string, fields map[string]any) {
	logC(zapcore.WarnLevel, component, msg, fields)
}

func ErrorC(component, msg string) { logC(zapcore.ErrorLevel, component, msg, nil) }

func ErrorCF(component, msg string, fields map[string]any) {
	logC(zapcore.ErrorLevel, component, msg, fields)
}
