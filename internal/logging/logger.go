// Package logging provides the file logger injected into agentgate components.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level controls which messages reach the log file.
type Level int

const (
	// LevelInfo records lifecycle messages only.
	LevelInfo Level = iota
	// LevelDebug also records raw planner and fuser exchanges.
	LevelDebug
)

// ParseLevel converts a config string into a Level. Unknown values map to info.
func ParseLevel(s string) Level {
	if strings.EqualFold(strings.TrimSpace(s), "debug") {
		return LevelDebug
	}
	return LevelInfo
}

// Logger writes timestamped lines to a file.
// A nil *Logger or one without a file discards everything.
type Logger struct {
	mu     *sync.Mutex
	file   *os.File
	level  Level
	prefix string
}

// New creates a logger writing to the specified path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func New(logPath string, level Level) (*Logger, error) {
	if logPath == "" {
		return &Logger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &Logger{mu: &sync.Mutex{}, file: f, level: level}
	logger.Infof("=== agentgate log started at %s ===", time.Now().Format(time.RFC3339))

	return logger, nil
}

// NewForDir creates a logger in dir/.agentgate/logs/agentgate.log.
// Returns a no-op logger if the file cannot be opened.
func NewForDir(dir string, level Level) *Logger {
	logger, err := New(filepath.Join(dir, ".agentgate", "logs", "agentgate.log"), level)
	if err != nil {
		return &Logger{}
	}
	return logger
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{}
}

// With returns a logger sharing the same file and lock that prefixes every line with
// "[component]".
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{mu: l.mu, file: l.file, level: l.level, prefix: l.prefix + "[" + component + "] "}
}

// Enabled reports whether messages at the given level are written.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && l.file != nil && level <= l.level
}

// Infof writes a lifecycle message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}

// Debugf writes a message only when the logger is at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.write(LevelDebug, fmt.Sprintf(format, args...))
}

// Block writes a titled multi-line payload between rulers at debug level.
func (l *Logger) Block(title, body string) {
	if !l.Enabled(LevelDebug) {
		return
	}
	rule := strings.Repeat("-", 60)
	l.write(LevelDebug, fmt.Sprintf("%s\n%s\n%s\n%s", rule, title, body, rule))
}

func (l *Logger) write(level Level, msg string) {
	if !l.Enabled(level) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %s%s\n", timestamp, l.prefix, msg)
	l.file.Sync()
}

// Close closes the log file.
// Safe to call on nil logger or logger without file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
