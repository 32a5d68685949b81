package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Verbose enables debug output when true
var Verbose bool

// Log is the process-wide logger. Components derive entries from it with a
// "role" field.
var Log = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Setup applies the verbose flag and redirects output when out is non-nil.
func Setup(verbose bool, out io.Writer) {
	Verbose = verbose
	if out != nil {
		Log.SetOutput(out)
	}
	if verbose {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// Role returns a logger entry tagged with the given link role.
func Role(name string) *logrus.Entry {
	return Log.WithField("role", name)
}

// Debugf prints debug messages when Verbose is true
func Debugf(format string, args ...any) {
	if Verbose {
		Log.Debugf(format, args...)
	}
}
