package logger

import (
	"fmt"
	"log"
	"sync"
)

// Level gates which entries are written and kept in history.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Entry is one retained log line.
type Entry struct {
	Level   Level
	Message string
}

// Logger is a level-gated diagnostics channel with a bounded history.
// It is constructed once per process and passed explicitly; there is no
// package-level instance.
type Logger struct {
	mu      sync.Mutex
	min     Level
	history []Entry
	cap     int
	out     *log.Logger
}

// New creates a Logger that keeps at most historyCap entries.
// A historyCap of zero or less disables history.
func New(min Level, historyCap int) *Logger {
	return &Logger{
		min: min,
		cap: historyCap,
		out: log.Default(),
	}
}

func (l *Logger) logf(level Level, component, format string, args ...any) {
	if l == nil || level < l.min {
		return
	}

	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s: [%s] %s", component, level, msg)
	l.out.Print(line)

	if l.cap <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, Entry{Level: level, Message: line})
	if len(l.history) > l.cap {
		// Drop the oldest entries, keeping the tail.
		l.history = l.history[len(l.history)-l.cap:]
	}
}

func (l *Logger) Debugf(component, format string, args ...any) {
	l.logf(LevelDebug, component, format, args...)
}

func (l *Logger) Infof(component, format string, args ...any) {
	l.logf(LevelInfo, component, format, args...)
}

func (l *Logger) Warnf(component, format string, args ...any) {
	l.logf(LevelWarn, component, format, args...)
}

func (l *Logger) Errorf(component, format string, args ...any) {
	l.logf(LevelError, component, format, args...)
}

// History returns a copy of the retained entries, oldest first.
func (l *Logger) History() []Entry {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.history))
	copy(out, l.history)
	return out
}
