// Package logging provides the structured logging surface used throughout
// the pipeline packages. It is a trimmed adaptation of the teacher's own
// logging package: the HTTP access-log and request-logging handler live
// there because skipper is an HTTP proxy; a frame-pipelining engine has no
// HTTP requests to log, so only the application-log half survives here.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal logging surface the pipeline, dispatch, and
// transport packages depend on. DefaultLog and any caller-supplied logger
// satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// DefaultLog is a Logger backed by logrus. The zero value logs to stderr at
// Info level in text format, matching logrus's own defaults.
type DefaultLog struct{}

func (DefaultLog) Debugf(format string, args ...interface{}) { logrus.Debugf(format, args...) }
func (DefaultLog) Infof(format string, args ...interface{})  { logrus.Infof(format, args...) }
func (DefaultLog) Warnf(format string, args ...interface{})  { logrus.Warnf(format, args...) }
func (DefaultLog) Errorf(format string, args ...interface{}) { logrus.Errorf(format, args...) }

func (DefaultLog) Error(args ...interface{}) { logrus.Error(args...) }
func (DefaultLog) Warn(args ...interface{})  { logrus.Warn(args...) }
func (DefaultLog) Info(args ...interface{})  { logrus.Info(args...) }

// SetOutput redirects every DefaultLog method to w.
func (DefaultLog) SetOutput(w io.Writer) { logrus.SetOutput(w) }

// SetLevel sets the minimum logged level.
func (DefaultLog) SetLevel(level logrus.Level) { logrus.SetLevel(level) }

// SetFormatter sets the logrus formatter used by DefaultLog.
func (DefaultLog) SetFormatter(f logrus.Formatter) { logrus.SetFormatter(f) }

// Options configures Init.
type Options struct {
	// ApplicationLogOutput, when non-nil, replaces the destination of the
	// package-level logrus logger.
	ApplicationLogOutput io.Writer

	// ApplicationLogPrefix is prepended to every log entry's message via a
	// custom formatter. Empty means no prefix.
	ApplicationLogPrefix string

	// Level sets the minimum logged level; the zero value keeps logrus's
	// default (Info).
	Level logrus.Level
}

type prefixFormatter struct {
	prefix string
	inner  logrus.Formatter
}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Message = f.prefix + e.Message
	return f.inner.Format(e)
}

// Init configures the package-level logrus logger used by DefaultLog.
// Grounded on the teacher's logging.Init(Options), trimmed to the
// application-log half.
func Init(o Options) {
	if o.ApplicationLogOutput != nil {
		logrus.SetOutput(o.ApplicationLogOutput)
	} else {
		logrus.SetOutput(os.Stderr)
	}

	if o.ApplicationLogPrefix != "" {
		logrus.SetFormatter(&prefixFormatter{prefix: o.ApplicationLogPrefix, inner: &logrus.TextFormatter{}})
	}

	if o.Level != 0 {
		logrus.SetLevel(o.Level)
	}
}
