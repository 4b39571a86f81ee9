// logger.go: Levelled diagnostic logger with buffered, pluggable sinks
//
// Every primitive in talos reports contract violations through this logger:
// lock misuse, duplicate listener registration, unknown profile parameters.
// Entries carry the caller's file, line and function and are rendered as
//
//	DD 20250102 15:04:05 [PID 4242:TID 07] profile.go 88 talos.(*Profile).ReadString() LogFile=ivdcm.log
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/petermattis/goid"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelWarning
	LevelError
	LevelFatal
	LevelTrace
)

// String returns the two-letter tag used in text output.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DD"
	case LevelWarning:
		return "WW"
	case LevelError:
		return "EE"
	case LevelFatal:
		return "FF"
	case LevelTrace:
		return "TR"
	default:
		return "  "
	}
}

// Name returns the lower-case level name.
func (l Level) Name() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// MarshalText encodes the level as its two-letter tag.
func (l Level) MarshalText() ([]byte, error) {
	if !l.valid() {
		return nil, errors.New(ErrCodeInvalidLogConfig, fmt.Sprintf("unknown level %d", int(l)))
	}
	return []byte(l.String()), nil
}

// UnmarshalText accepts a tag ("EE") or a name ("error").
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a tag or a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dd", "debug":
		return LevelDebug, nil
	case "ww", "warn", "warning":
		return LevelWarning, nil
	case "ee", "error":
		return LevelError, nil
	case "ff", "fatal":
		return LevelFatal, nil
	case "tr", "trace":
		return LevelTrace, nil
	}
	return LevelDebug, errors.New(ErrCodeInvalidLogConfig, fmt.Sprintf("unknown log level %q", s))
}

func (l Level) valid() bool {
	return l >= LevelDebug && l <= LevelTrace
}

// severity orders levels for filtering; trace is the most verbose.
func (l Level) severity() int {
	if l == LevelTrace {
		return 0
	}
	return int(l) + 1
}

// Entry is a single diagnostic record.
type Entry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       Level                  `json:"level"`
	Component   string                 `json:"component"`
	PID         int                    `json:"pid"`
	GoroutineID int64                  `json:"goroutine_id"`
	File        string                 `json:"file"`
	Line        int                    `json:"line"`
	Function    string                 `json:"function"`
	Message     string                 `json:"message"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Format renders the entry as a single text line terminated by a newline.
func (e Entry) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [PID %d:TID %02X] %s %d %s() %s",
		e.Level, e.Timestamp.Format("20060102 15:04:05"), e.PID, e.GoroutineID,
		e.File, e.Line, e.Function, e.Message)
	if !strings.HasSuffix(e.Message, "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}

// Logger writes diagnostic entries to its sinks. Debug and trace entries are
// buffered, everything else is written through immediately.
type Logger struct {
	config      LoggerConfig
	sinks       []logSink
	trace       atomic.Pointer[textSink]
	buffer      []Entry
	bufferMu    sync.Mutex
	flushErr    error // first failure of an implicit flush, guarded by bufferMu
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      atomic.Bool
	pid         int
}

// NewLogger creates a logger and opens the sinks selected by config.
func NewLogger(config LoggerConfig) (*Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := config.WithDefaults()

	sinks, err := createLogSinks(*cfg)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeLogSinkError, "failed to initialize log sinks")
	}

	logger := &Logger{
		config: *cfg,
		sinks:  sinks,
		buffer: make([]Entry, 0, cfg.BufferSize),
		stopCh: make(chan struct{}),
		pid:    os.Getpid(),
	}

	if cfg.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(cfg.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Config returns the effective configuration.
func (l *Logger) Config() LoggerConfig {
	return l.config
}

// Enabled reports whether an entry at level would be recorded.
func (l *Logger) Enabled(level Level) bool {
	if l == nil || !l.config.Enabled || l.closed.Load() {
		return false
	}
	if level == LevelTrace {
		return l.config.TraceEnabled
	}
	return level.severity() >= l.config.MinLevel.severity()
}

// Debugf logs a DD entry.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(2, LevelDebug, nil, format, args...)
}

// Warningf logs a WW entry.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.logf(2, LevelWarning, nil, format, args...)
}

// Errorf logs an EE entry.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(2, LevelError, nil, format, args...)
}

// Fatalf logs an FF entry, flushes and hands the entry to OnFatal.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf(2, LevelFatal, nil, format, args...)
}

// Tracef logs a TR entry.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.logf(2, LevelTrace, nil, format, args...)
}

// Log records msg at level with optional structured context.
func (l *Logger) Log(level Level, msg string, context map[string]interface{}) {
	l.record(2, level, msg, context)
}

// LogError records err at level. Coded errors contribute their code to the
// entry context.
func (l *Logger) LogError(level Level, err error) {
	l.logErrorDepth(3, level, err)
}

func (l *Logger) logErrorDepth(skip int, level Level, err error) {
	if err == nil {
		return
	}
	var context map[string]interface{}
	if code := ErrorCode(err); code != "" {
		context = map[string]interface{}{"code": code}
	}
	l.record(skip, level, err.Error(), context)
}

// Trace logs an ENTER entry for name and returns a function that logs the
// matching EXIT entry:
//
//	defer logger.Trace("Profile.Reload")()
func (l *Logger) Trace(name string) func() {
	if !l.Enabled(LevelTrace) {
		return func() {}
	}
	l.record(2, LevelTrace, "ENTER "+name, nil)
	return func() {
		l.record(2, LevelTrace, "EXIT "+name, nil)
	}
}

// TraceOpen mirrors every later entry into path, truncating it first.
func (l *Logger) TraceOpen(path string) error {
	if err := ValidatePath(path); err != nil {
		return errors.Wrap(err, ErrCodeInvalidPath, "invalid trace file").
			WithContext("path", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to create trace directory").
			WithContext("path", path)
	}
	// #nosec G304 -- path validated above
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to create trace file").
			WithContext("path", path)
	}

	if old := l.trace.Swap(newTextFileSink(file)); old != nil {
		_ = old.Close()
	}
	return nil
}

// TraceClose flushes and closes the trace file opened by TraceOpen.
func (l *Logger) TraceClose() error {
	old := l.trace.Swap(nil)
	if old == nil {
		return nil
	}
	if err := old.Flush(); err != nil {
		_ = old.Close()
		return err
	}
	return old.Close()
}

func (l *Logger) logf(skip int, level Level, context map[string]interface{}, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	l.record(skip+1, level, fmt.Sprintf(format, args...), context)
}

// record builds the entry for the caller skip frames above it.
func (l *Logger) record(skip int, level Level, msg string, context map[string]interface{}) {
	if !l.Enabled(level) {
		return
	}

	file, line, function := callerInfo(skip)
	entry := Entry{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Component:   l.config.Component,
		PID:         l.pid,
		GoroutineID: goid.Get(),
		File:        file,
		Line:        line,
		Function:    function,
		Message:     msg,
		Context:     context,
	}

	if ts := l.trace.Load(); ts != nil {
		_ = ts.Write([]Entry{entry})
	}

	l.bufferMu.Lock()
	l.buffer = append(l.buffer, entry)
	if level == LevelDebug || level == LevelTrace {
		if len(l.buffer) >= l.config.BufferSize {
			l.keepFlushErrUnsafe(l.flushBufferUnsafe())
		}
	} else {
		l.keepFlushErrUnsafe(l.flushBufferUnsafe())
	}
	l.bufferMu.Unlock()

	if level == LevelFatal && l.config.OnFatal != nil {
		l.config.OnFatal(entry)
	}
}

// callerInfo resolves the base file name, line and short function name of
// the frame skip levels above its caller.
func callerInfo(skip int) (string, int, string) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "???", 0, "???"
	}
	function := "???"
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
		if i := strings.LastIndex(function, "/"); i >= 0 {
			function = function[i+1:]
		}
	}
	return filepath.Base(file), line, function
}

// Flush immediately writes all buffered entries. It also reports the first
// write failure of the implicit flushes done since the previous Flush.
func (l *Logger) Flush() error {
	if l.closed.Load() {
		return errors.New(ErrCodeLoggerClosed, "logger is closed")
	}
	return l.flush()
}

func (l *Logger) flush() error {
	l.bufferMu.Lock()
	defer l.bufferMu.Unlock()
	err := l.flushBufferUnsafe()
	if l.flushErr != nil {
		if err == nil {
			err = l.flushErr
		}
		l.flushErr = nil
	}
	return err
}

// keepFlushErrUnsafe remembers err for the next explicit Flush (caller must
// hold bufferMu).
func (l *Logger) keepFlushErrUnsafe(err error) {
	if err != nil && l.flushErr == nil {
		l.flushErr = err
	}
}

// Close flushes pending entries and releases every sink. Entries logged
// after Close are dropped.
func (l *Logger) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(l.stopCh)
	if l.flushTicker != nil {
		l.flushTicker.Stop()
	}

	if err := l.flush(); err != nil {
		return errors.Wrap(err, ErrCodeLogSinkError, "failed to flush logger during close")
	}
	if err := l.TraceClose(); err != nil {
		return errors.Wrap(err, ErrCodeLogSinkError, "failed to close trace file")
	}

	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil {
			return errors.Wrap(err, ErrCodeLogSinkError, "failed to close log sink")
		}
	}
	return nil
}

// Stats returns statistics from the first sink able to produce them.
func (l *Logger) Stats() (*LogStats, error) {
	for _, sink := range l.sinks {
		if s, ok := sink.(statsSink); ok {
			return s.Stats()
		}
	}
	return nil, errors.New(ErrCodeLogSinkError, "no log sink provides statistics")
}

// flushLoop runs the background flush process
func (l *Logger) flushLoop() {
	for {
		select {
		case <-l.flushTicker.C:
			l.bufferMu.Lock()
			l.keepFlushErrUnsafe(l.flushBufferUnsafe())
			l.bufferMu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to every sink (caller must hold bufferMu).
func (l *Logger) flushBufferUnsafe() error {
	if len(l.buffer) == 0 {
		return nil
	}

	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Write(l.buffer); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, ErrCodeLogSinkError, "failed to write log entries")
		}
	}

	clear(l.buffer)
	l.buffer = l.buffer[:0]
	return firstErr
}

var (
	defaultLogger     atomic.Pointer[Logger]
	defaultLoggerOnce sync.Once
)

// DefaultLogger returns the process-wide logger used by primitives that were
// not given one. Unless replaced with SetDefaultLogger it writes warnings
// and worse to stderr.
func DefaultLogger() *Logger {
	defaultLoggerOnce.Do(func() {
		if defaultLogger.Load() != nil {
			return
		}
		config := DefaultLoggerConfig()
		config.MinLevel = LevelWarning
		config.FlushInterval = 0
		logger, err := NewLogger(config)
		if err != nil {
			return
		}
		defaultLogger.CompareAndSwap(nil, logger)
	})
	return defaultLogger.Load()
}

// SetDefaultLogger replaces the process-wide logger and returns the previous
// one. The caller owns closing the returned logger.
func SetDefaultLogger(l *Logger) *Logger {
	defaultLoggerOnce.Do(func() {})
	return defaultLogger.Swap(l)
}
