package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Logger struct {
	fileLogger    *log.Logger
	console       io.Writer
	consoleMu     *sync.Mutex
	level         Level
	includeStdout bool
	prefix        string
}

// New creates a logger writing to filePath (skipped when empty) and, when
// includeStdout is set, echoing Info and above to stdout.
func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	l := &Logger{
		console:       os.Stdout,
		consoleMu:     &sync.Mutex{},
		level:         level,
		includeStdout: includeStdout,
	}

	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.fileLogger = log.New(f, "", 0)
	}

	return l, nil
}

// NewWriter logs every level at or above level to w. Used by tests and
// embedding callers that own the output.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		console:       w,
		consoleMu:     &sync.Mutex{},
		level:         level,
		includeStdout: true,
	}
}

// Nop discards everything.
func Nop() *Logger {
	return NewWriter(io.Discard, LevelError+1)
}

// With returns a logger that prefixes every message with prefix.
func (l *Logger) With(prefix string) *Logger {
	cp := *l
	if cp.prefix != "" {
		cp.prefix = cp.prefix + " " + prefix
	} else {
		cp.prefix = prefix
	}
	return &cp
}

func (l *Logger) log(lvl Level, tag string, format string, v ...interface{}) {
	if l == nil || lvl < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		msg = l.prefix + " " + msg
	}
	fullMsg := fmt.Sprintf("%s [%s] %s", timestamp, tag, msg)

	if l.fileLogger != nil {
		l.fileLogger.Println(fullMsg)
	}

	// Debug stays out of the console unless the console is the only sink
	if l.includeStdout && (lvl >= LevelInfo || l.fileLogger == nil) {
		l.consoleMu.Lock()
		fmt.Fprintln(l.console, fullMsg)
		l.consoleMu.Unlock()
	}
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(f string, v ...any) { l.log(LevelDebug, "DEBUG", f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.log(LevelInfo, "INFO", f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.log(LevelWarn, "WARN", f, v...) }
func (l *Logger) Error(f string, v ...any) { l.log(LevelError, "ERROR", f, v...) }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}
