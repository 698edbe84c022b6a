// Package logx provides the broker's leveled logger: DEBUG/INFO/WARN/ERROR
// writes to a per-broker session file, tagged with structured fields
// (component, reason, signer chain) on top of logrus instead of a
// formatted string.
package logx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger scoped to one broker instance.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

// New opens (creating if needed) logPath and returns a Logger that writes
// structured entries to it, tagged with the given broker id.
func New(logPath, brokerID string) (*Logger, error) {
	if dir := filepath.Dir(logPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	base := logrus.New()
	base.SetOutput(f)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &Logger{
		entry: base.WithField("broker", brokerID),
		file:  f,
	}, nil
}

// NewDiscard returns a Logger that drops everything, for tests and for
// hosts that didn't configure a log_file.
func NewDiscard() *Logger {
	base := logrus.New()
	base.SetOutput(discardWriter{})
	return &Logger{entry: base.WithField("broker", "-")}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Close flushes and closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// With returns a child logger carrying additional structured fields, e.g.
// component and signer chain.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields), file: l.file}
}

func (l *Logger) Debug(msg string) { l.entry.Debug(msg) }
func (l *Logger) Info(msg string)  { l.entry.Info(msg) }
func (l *Logger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *Logger) Error(msg string) { l.entry.Error(msg) }
