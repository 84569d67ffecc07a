// Package corelog wraps the standard library's log.Logger with a daily
// rotating file under the per-user config directory and a level filter,
// following the teacher's plain log.Printf idiom (see velocity.go)
// rather than reaching for a structured-logging library the teacher
// never imports.
package corelog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/qoredb/core/internal/corepath"
)

// Level is the ordered set of filter levels QOREDB_LOG selects between.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes leveled lines to a daily-rotating file, reopening the
// underlying file when the calendar day changes.
type Logger struct {
	mu       sync.Mutex
	dir      string
	minLevel Level
	day      string
	file     *os.File
	std      *log.Logger
}

// New opens (creating if needed) today's log file under logDir and
// returns a Logger filtered to the level named by the QOREDB_LOG
// environment variable (default "info").
func New(logDir string) (*Logger, error) {
	l := &Logger{dir: logDir, minLevel: parseLevel(os.Getenv("QOREDB_LOG"))}
	if err := l.rotateLocked(time.Now()); err != nil {
		return nil, err
	}
	return l, nil
}

// NewDefault resolves the standard per-user log directory via
// internal/corepath and opens a Logger there.
func NewDefault() (*Logger, error) {
	dir, err := corepath.LogDir()
	if err != nil {
		return nil, err
	}
	return New(dir)
}

func (l *Logger) rotateLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if day == l.day && l.file != nil {
		return nil
	}
	path := filepath.Join(l.dir, fmt.Sprintf("qoredb.%s.log", day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	l.day = day
	l.std = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	return nil
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.minLevel {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.rotateLocked(time.Now())
	l.std.Printf("qoredb: [%s] %s", level, fmt.Sprintf(format, args...))
}

func (l *Logger) Trace(format string, args ...any) { l.logf(LevelTrace, format, args...) }
func (l *Logger) Debug(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.logf(LevelError, format, args...) }

// Writer exposes the active file as an io.Writer, e.g. for wiring a
// third-party library that wants its own io.Writer sink.
func (l *Logger) Writer() io.Writer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
