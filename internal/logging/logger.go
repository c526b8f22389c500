// Package logging implements Cardinal's level-filtered text sink (component C1).
//
// It generalizes the per-severity *log.Logger files the original engine core opened
// with os.OpenFile(os.O_APPEND|os.O_CREATE|os.O_WRONLY) into one rolling append file
// plus a console split, gated by a single process-wide minimum level.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level is one of the six severities trace < debug < info < warn < error < fatal.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "INFO"
	}
}

// ParseLevel parses a level name case-insensitively. Unknown input defaults to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return Trace
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	case "fatal":
		return Fatal
	default:
		return Info
	}
}

// Logger is the process-wide text sink. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	min      Level
	out      *log.Logger
	errOut   *log.Logger
	file     *os.File
	fileLog  *log.Logger
	debugAbort bool
}

const defaultLogPath = "cardinal_log.txt"

// New opens (appending) the rolling log file and writes the "Log Start" marker.
// debugAbort, when true, makes Fatalf panic after logging instead of only logging
// (matching a debug build's abort-on-fatal behavior).
func New(min Level, debugAbort bool) (*Logger, error) {
	path := defaultLogPath
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	l := &Logger{
		min:        min,
		out:        log.New(os.Stdout, "", 0),
		errOut:     log.New(os.Stderr, "", 0),
		file:       f,
		fileLog:    log.New(f, "", 0),
		debugAbort: debugAbort,
	}
	l.fileLog.Printf("==== Log Start level=%s ====", min)
	return l, nil
}

// Close writes the "Log End" marker and closes the backing file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fileLog.Printf("==== Log End ====")
	return l.file.Close()
}

func callSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "?:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (l *Logger) emit(level Level, format string, args ...interface{}) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	site := callSite(3)
	line := fmt.Sprintf("%s [%s] %s %s", ts, level, site, msg)

	l.mu.Lock()
	l.fileLog.Println(line)
	if level >= Warn {
		l.errOut.Println(line)
	} else {
		l.out.Println(line)
	}
	l.mu.Unlock()

	if level == Fatal && l.debugAbort {
		panic(msg)
	}
}

func (l *Logger) Tracef(format string, args ...interface{}) { l.emit(Trace, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.emit(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.emit(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.emit(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.emit(Error, format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.emit(Fatal, format, args...) }

// Writer exposes the underlying file as an io.Writer for third-party writers that
// want to multiplex into Cardinal's log file directly.
func (l *Logger) Writer() io.Writer { return l.file }

// nop is a Logger usable before Cardinal has opened its file sink (e.g. flag parse
// errors). It logs to stderr only.
var nop = &Logger{min: Info, out: log.New(os.Stderr, "", 0), errOut: log.New(os.Stderr, "", 0), fileLog: log.New(io.Discard, "", 0)}

// Nop returns a Logger that writes only to stderr and never touches the filesystem.
func Nop() *Logger { return nop }
