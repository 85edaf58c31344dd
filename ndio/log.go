package ndio

import (
	"sync"
	"time"
)

// ModeFlag is the minimum severity a message needs to be logged.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var (
	mode = InfoMode

	logMu  sync.RWMutex
	logger Logger = newStdLogger(nil)
)

// Logger provides a way for the library to log messages at different severities.
// The default implementation writes through the standard log package or, once
// LogConfig.SetLogger has been called, to a rotating log file.
type Logger interface {
	// Debugf formats its arguments analogous to fmt.Printf and records the text as a log
	// message at Debug level.
	Debugf(format string, args ...interface{})

	// Infof is like Debugf, but at Info level.
	Infof(format string, args ...interface{})

	// Warningf is like Debugf, but at Warning level.
	Warningf(format string, args ...interface{})

	// Errorf is like Debugf, but at Error level.
	Errorf(format string, args ...interface{})

	// Criticalf is like Debugf, but at Critical level.
	Criticalf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// SetLogMode sets the severity required for a log message to be printed.
// For example, SetLogMode(ndio.WarningMode) will log any calls using
// Warningf, Errorf, or Criticalf.  To turn off all logging, use SilentMode.
func SetLogMode(newMode ModeFlag) {
	logMu.Lock()
	mode = newMode
	logMu.Unlock()
}

// SetLogger replaces the package logger, returning the previous one.
func SetLogger(l Logger) Logger {
	logMu.Lock()
	defer logMu.Unlock()
	old := logger
	logger = l
	return old
}

func current(level ModeFlag) (Logger, bool) {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger, mode <= level
}

func Debugf(format string, args ...interface{}) {
	if l, ok := current(DebugMode); ok {
		l.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if l, ok := current(InfoMode); ok {
		l.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if l, ok := current(WarningMode); ok {
		l.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if l, ok := current(ErrorMode); ok {
		l.Errorf(format, args...)
	}
}

func Criticalf(format string, args ...interface{}) {
	if l, ok := current(CriticalMode); ok {
		l.Criticalf(format, args...)
	}
}

// TimeLog adds elapsed time to logging.
// Example:
//
//	mylog := NewTimeLog()
//	...
//	mylog.Debugf("fetched block %s", b)  // Appends elapsed time since NewTimeLog().
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s\n", append(args, t.Elapsed())...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	Infof(format+": %s\n", append(args, t.Elapsed())...)
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	Warningf(format+": %s\n", append(args, t.Elapsed())...)
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	Errorf(format+": %s\n", append(args, t.Elapsed())...)
}
