// Package logger provides the leveled logging handle shared by the
// pipeline stages. The same handle is passed into pre-processors, the
// fetcher and the backup manager so per-source diagnostics end up in
// one place.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level controls which messages a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level's log tag.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var levelStyles = map[Level]lipgloss.Style{
	LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
}

var successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

// Logger writes tagged messages above a minimum level.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	min Level
}

// New creates a logger writing to out, dropping messages below min.
func New(out io.Writer, min Level) *Logger {
	return &Logger{out: out, min: min}
}

// Discard returns a logger that swallows everything. Useful in tests.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// Stderr returns a logger writing to standard error at the given level.
func Stderr(min Level) *Logger {
	return New(os.Stderr, min)
}

func (l *Logger) log(level Level, tag string, format string, args ...any) {
	if l == nil || level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s\n", tag, fmt.Sprintf(format, args...))
}

// Debug logs a message at debug level.
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, levelStyles[LevelDebug].Render("[DEBUG]"), format, args...)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, levelStyles[LevelInfo].Render("[INFO]"), format, args...)
}

// Warn logs a message at warning level.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, levelStyles[LevelWarn].Render("[WARN]"), format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, levelStyles[LevelError].Render("[ERROR]"), format, args...)
}

// Success logs an info-level message with a success tag.
func (l *Logger) Success(format string, args ...any) {
	l.log(LevelInfo, successStyle.Render("[OK]"), format, args...)
}
