package ndio

import (
	"fmt"
	"io"
	"log"

	"github.com/natefinch/lumberjack"
)

// stdLogger writes through a standard library logger.  When backed by a
// lumberjack.Logger the output file is rotated by size and age.
type stdLogger struct {
	out  *log.Logger
	file *lumberjack.Logger
}

func newStdLogger(file *lumberjack.Logger) stdLogger {
	if file == nil {
		return stdLogger{out: log.Default()}
	}
	return stdLogger{out: log.New(file, "", log.LstdFlags), file: file}
}

// LogConfig is the [logging] section of a configuration file.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"`
	MaxAge  int `toml:"max_log_age"`
}

// SetLogger creates a logger that saves to a rotating log file.
func (c *LogConfig) SetLogger() {
	if c == nil || c.Logfile == "" {
		Infof("Sending log messages to stdout since no log file specified.")
		return
	}
	fmt.Printf("Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  //days
	}
	old := SetLogger(newStdLogger(l))
	old.Shutdown()
}

// NewWriterLogger returns a Logger that writes to w, e.g., a bytes.Buffer in tests.
func NewWriterLogger(w io.Writer) Logger {
	return stdLogger{out: log.New(w, "", 0)}
}

// --- Logger implementation ----

func (slog stdLogger) Debugf(format string, args ...interface{}) {
	slog.out.Printf(" DEBUG "+format, args...)
}

func (slog stdLogger) Infof(format string, args ...interface{}) {
	slog.out.Printf(" INFO "+format, args...)
}

func (slog stdLogger) Warningf(format string, args ...interface{}) {
	slog.out.Printf(" WARNING "+format, args...)
}

func (slog stdLogger) Errorf(format string, args ...interface{}) {
	slog.out.Printf(" ERROR "+format, args...)
}

func (slog stdLogger) Criticalf(format string, args ...interface{}) {
	slog.out.Printf(" CRITICAL "+format, args...)
}

func (slog stdLogger) Shutdown() {
	if slog.file != nil {
		slog.out.Printf("Closing log file...\n")
		slog.file.Close()
	}
}
