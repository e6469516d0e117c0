package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// Alert log file names inside the alert directory.
const (
	SummaryLogName  = "alerts.log"
	DetailedLogName = "detailed_alerts.jsonl"
)

// FileHandler appends a one-line summary to alerts.log and the full event
// as a JSON line to detailed_alerts.jsonl.
type FileHandler struct {
	summaryPath  string
	detailedPath string
	mu           sync.Mutex
}

// NewFileHandler creates the alert directory if needed.
func NewFileHandler(dir string) (*FileHandler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create alert directory: %w", err)
	}
	return &FileHandler{
		summaryPath:  filepath.Join(dir, SummaryLogName),
		detailedPath: filepath.Join(dir, DetailedLogName),
	}, nil
}

func (f *FileHandler) HandleAlert(_ context.Context, event types.AlertEvent) error {
	detailed, err := json.Marshal(event.ToMap())
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := appendLine(f.summaryPath, FormatSummary(event)); err != nil {
		return err
	}
	return appendLine(f.detailedPath, string(detailed))
}

// FormatSummary renders the single-line form of an alert.
func FormatSummary(event types.AlertEvent) string {
	ts := event.Timestamp.Local().Format("2006-01-02 15:04:05")
	res := event.Result

	switch {
	case event.EventType == types.EventProcessDetection && event.Process != nil:
		return fmt.Sprintf("[%s] [ALERT-PROCESS] Process: %s (PID %d) | Path: %s | Confidence: %.2f | ID: %s",
			ts, event.Process.Name, event.Process.PID, event.Process.ExePath, res.Confidence, event.EventID)
	case event.EventType == types.EventFileDetection:
		return fmt.Sprintf("[%s] [ALERT-FILE] File: %s | Confidence: %.2f | Level: %s | ID: %s",
			ts, res.FilePath, res.Confidence, res.ThreatLevel, event.EventID)
	default:
		return fmt.Sprintf("[%s] [ALERT] %s - %s", ts, event.EventID, event.EventType)
	}
}

func appendLine(path, line string) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(fh, line); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
