// Package log provides named, leveled loggers for the non-hot-path parts
// of the renderer (scene loading, viewer lifecycle). The per-frame
// pipeline never logs.
package log

import (
	"io"
	"os"

	"github.com/op/go-logging"
)

// Level controls logger verbosity.
type Level logging.Level

// The levels that can be passed to SetLevel.
const (
	Debug Level = iota
	Info
	Notice
	Warning
	Error
)

var format = logging.MustStringFormatter(
	`%{color}[%{time:15:04:05.000}] [%{module}] [%{level}]%{color:reset} %{message}`,
)

var leveledBackend logging.LeveledBackend

// Logger is the subset of logging operations the renderer uses.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warning(v ...interface{})
	Warningf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}

// New creates a named logger.
func New(name string) Logger {
	return logging.MustGetLogger(name)
}

// SetSink overrides the backend output sink.
func SetSink(sink io.Writer) {
	backend := logging.NewLogBackend(sink, "", 0)
	backendWithFormatter := logging.NewBackendFormatter(backend, format)
	leveledBackend = logging.AddModuleLevel(backendWithFormatter)
	leveledBackend.SetLevel(logging.INFO, "")
	logging.SetBackend(leveledBackend)
}

// SetLevel adjusts the level for a named logger, or for all loggers when
// name is empty.
func SetLevel(level Level, name string) {
	if leveledBackend == nil {
		SetSink(os.Stderr)
	}
	switch level {
	case Debug:
		leveledBackend.SetLevel(logging.DEBUG, name)
	case Info:
		leveledBackend.SetLevel(logging.INFO, name)
	case Notice:
		leveledBackend.SetLevel(logging.NOTICE, name)
	case Warning:
		leveledBackend.SetLevel(logging.WARNING, name)
	case Error:
		leveledBackend.SetLevel(logging.ERROR, name)
	}
}

func init() {
	SetSink(os.Stderr)
}
