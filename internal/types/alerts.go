package types

import (
	"time"

	"github.com/google/uuid"
)

// EventType distinguishes alerts raised by directory and process sweeps.
type EventType string

const (
	EventFileDetection    EventType = "file_detection"
	EventProcessDetection EventType = "process_detection"
)

// Alert severities.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// ProcessInfo describes a running process. It is read fresh on every
// process sweep and never cached.
type ProcessInfo struct {
	PID     int    `json:"pid"`
	Name    string `json:"name"`
	ExePath string `json:"exe_path,omitempty"`
	Cmdline string `json:"cmdline,omitempty"`
}

// AlertEvent is one emitted notification for a verdict that cleared the
// alert threshold. It is never mutated after creation.
type AlertEvent struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType EventType       `json:"event_type"`
	Result    DetectionResult `json:"detection_result"`
	Process   *ProcessInfo    `json:"process_info,omitempty"`
	Severity  string          `json:"severity"`
}

// NewAlertEvent builds an alert with a fresh ID and a severity derived from
// the verdict.
func NewAlertEvent(eventType EventType, result DetectionResult, proc *ProcessInfo) AlertEvent {
	return AlertEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
		EventType: eventType,
		Result:    result,
		Process:   proc,
		Severity:  SeverityFor(result.ThreatLevel),
	}
}

// SeverityFor maps a threat level to an alert severity.
func SeverityFor(level ThreatLevel) string {
	switch level {
	case ThreatMalicious:
		return SeverityCritical
	case ThreatSuspicious:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// ToMap flattens the alert into the record written to the detailed alert log.
func (a AlertEvent) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"event_id":      a.EventID,
		"timestamp":     a.Timestamp.UTC().Format(time.RFC3339Nano),
		"event_type":    string(a.EventType),
		"severity":      a.Severity,
		"file_path":     a.Result.FilePath,
		"threat_level":  a.Result.ThreatLevel.String(),
		"confidence":    a.Result.Confidence,
		"model_version": a.Result.ModelVersion,
		"process_info":  nil,
	}
	if a.Process != nil {
		m["process_info"] = map[string]interface{}{
			"pid":      a.Process.PID,
			"name":     a.Process.Name,
			"exe_path": a.Process.ExePath,
		}
	}
	return m
}
