// Package logging builds the sensor's logrus logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/config"
)

// LogFileName is the log file created inside the log directory.
const LogFileName = "keylogger_sensor.log"

// New creates a logger with the configured console and file sinks. A file
// sink that cannot be opened is reported on the console and skipped. The
// returned Closer releases the file sink.
func New(cfg config.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(formatter(cfg.JSON))
	if !cfg.ConsoleOutput {
		log.SetOutput(io.Discard)
	}

	if !cfg.FileOutput {
		return log, nopCloser{}, nil
	}

	hook, err := NewFileHook(filepath.Join(cfg.Directory, LogFileName), formatter(true))
	if err != nil {
		log.WithError(err).Warn("File logging disabled")
		return log, nopCloser{}, nil
	}
	log.AddHook(hook)
	return log, hook, nil
}

// ParseLevel accepts DEBUG, INFO, WARN/WARNING and ERROR in any case.
func ParseLevel(s string) (logrus.Level, error) {
	if strings.TrimSpace(s) == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func formatter(json bool) logrus.Formatter {
	if json {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

// FileHook writes every entry to a file, independent of the logger's
// console output.
type FileHook struct {
	mu        sync.Mutex
	file      *os.File
	formatter logrus.Formatter
}

// NewFileHook opens path for appending, creating its directory.
func NewFileHook(path string, f logrus.Formatter) (*FileHook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileHook{file: file, formatter: f}, nil
}

func (h *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *FileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.file.Write(line)
	return err
}

func (h *FileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file.Close()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
