package alert

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/pkg/procmon"
)

// LogHandler writes alerts to the structured log.
type LogHandler struct {
	log *logrus.Logger
}

func NewLogHandler(log *logrus.Logger) *LogHandler {
	return &LogHandler{log: log}
}

func (l *LogHandler) HandleAlert(_ context.Context, event types.AlertEvent) error {
	res := event.Result
	fields := logrus.Fields{
		"event_id":      event.EventID,
		"event_type":    event.EventType,
		"severity":      event.Severity,
		"file_path":     res.FilePath,
		"threat_level":  res.ThreatLevel.String(),
		"confidence":    res.Confidence,
		"model_version": res.ModelVersion,
	}
	if res.Features.ContentHash != "" {
		fields["content_hash"] = res.Features.ContentHash
	}
	if event.Process != nil {
		fields["process_name"] = event.Process.Name
		fields["process_pid"] = event.Process.PID
		fields["process_exe"] = event.Process.ExePath
		if event.Process.Cmdline != "" {
			fields["cmdline_hash"] = procmon.CmdlineHash(event.Process.Cmdline)
		}
	}

	// Log at appropriate level based on severity
	entry := l.log.WithFields(fields)
	switch event.Severity {
	case types.SeverityCritical:
		entry.Error("CRITICAL: Keylogger detected")
	case types.SeverityHigh:
		entry.Warn("HIGH: Suspicious file detected")
	case types.SeverityMedium:
		entry.Warn("MEDIUM: Suspicious file detected")
	default:
		entry.Info("LOW: Detection event")
	}
	return nil
}
