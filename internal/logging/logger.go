// Package logging provides structured logging for the SEMS sync client.
//
// The package wraps logrus behind the small surface the rest of the client
// uses: package-level level functions taking a message and an optional
// context map. Output is JSON so the desktop shell can tail and filter the
// sync log.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the global logger.
type Options struct {
	Output   io.Writer // defaults to os.Stdout
	MinLevel string    // debug, info, warn, error; defaults to info
	FilePath string    // optional rotating log file, written in addition to Output
}

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Subsequent calls are no-ops.
func Init(opts Options) {
	once.Do(func() {
		global = newLogger(opts)
	})
}

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.FilePath != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		out = io.MultiWriter(out, rotating)
	}
	l.SetOutput(out)

	level, err := logrus.ParseLevel(opts.MinLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}

// Get returns the global logger instance, initializing defaults if needed.
func Get() *logrus.Logger {
	if global == nil {
		Init(Options{})
	}
	return global
}

func withContext(context ...map[string]interface{}) *logrus.Entry {
	entry := logrus.NewEntry(Get())
	for _, c := range context {
		entry = entry.WithFields(logrus.Fields(c))
	}
	return entry
}

// Debug logs a debug message.
func Debug(message string, context ...map[string]interface{}) {
	withContext(context...).Debug(message)
}

// Info logs an info message.
func Info(message string, context ...map[string]interface{}) {
	withContext(context...).Info(message)
}

// Warn logs a warning message.
func Warn(message string, context ...map[string]interface{}) {
	withContext(context...).Warn(message)
}

// Error logs an error message.
func Error(message string, err error, context ...map[string]interface{}) {
	entry := withContext(context...)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

// ErrorWithCode logs an error message tagged with an application error code.
func ErrorWithCode(message, code string, err error, context ...map[string]interface{}) {
	entry := withContext(context...).WithField("error_code", code)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}
