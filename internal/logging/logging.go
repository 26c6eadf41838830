// Package logging adapts logrus to the Logger interfaces of the bootloader
// and host packages.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// BadKey names a value logged without a key.
const BadKey = "!BADKEY"

// Logger forwards key/value logging to a logrus entry. It satisfies both
// bootloader.Logger and host.Logger.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger writing text to out. Debug messages are only emitted
// when verbose is set.
//
// Example:
//
//	log := logging.New(os.Stderr, verbose)
//	prog := host.New(link, host.WithLogger(log.With("host")))
func New(out io.Writer, verbose bool) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !verbose,
		FullTimestamp:    true,
	})
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return Wrap(l)
}

// Wrap adapts an existing logrus logger.
func Wrap(l *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(l)}
}

// With returns a Logger tagging every message with component.
func (l *Logger) With(component string) *Logger {
	return &Logger{entry: l.entry.WithField("component", component)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(Fields(keysAndValues...)).Debug(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(Fields(keysAndValues...)).Info(msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(Fields(keysAndValues...)).Error(msg)
}

// Fields converts alternating keys and values to logrus fields. Non-string
// keys are formatted with %v; a trailing value without a key lands under
// BadKey. uint32 values are rendered as hex addresses.
func Fields(keysAndValues ...interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 == len(keysAndValues) {
			fields[BadKey] = keysAndValues[i]
			break
		}

		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields[key] = value(keysAndValues[i+1])
	}
	return fields
}

func value(v interface{}) interface{} {
	if addr, ok := v.(uint32); ok {
		return fmt.Sprintf("0x%08X", addr)
	}
	return v
}
