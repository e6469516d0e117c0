package detection

import (
	"time"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// Confidence bands used for report summaries.
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.6
)

// ThreatSummary aggregates the verdicts of a monitoring run.
type ThreatSummary struct {
	TotalThreats     int            `json:"total_threats"`
	HighConfidence   int            `json:"high_confidence"`
	MediumConfidence int            `json:"medium_confidence"`
	ByThreatLevel    map[string]int `json:"by_threat_level"`
}

// ReportEntry is the per-detection line of a report.
type ReportEntry struct {
	FilePath    string    `json:"file_path"`
	ThreatLevel string    `json:"threat_level"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// Report summarises a monitoring session.
type Report struct {
	Session    types.SessionStats `json:"session_stats"`
	Summary    ThreatSummary      `json:"threat_summary"`
	Detections []ReportEntry      `json:"detections"`
}

// Summarize builds a report from session counters and the results collected
// during the session. Threats are counted with the engine's threshold.
func (e *Engine) Summarize(stats types.SessionStats, results []types.DetectionResult) Report {
	summary := ThreatSummary{ByThreatLevel: make(map[string]int)}
	for _, level := range types.AllThreatLevels() {
		summary.ByThreatLevel[level.String()] = 0
	}

	entries := make([]ReportEntry, 0, len(results))
	for _, r := range results {
		if e.ShouldAlert(r) {
			summary.TotalThreats++
		}
		switch {
		case r.Confidence > HighConfidence:
			summary.HighConfidence++
		case r.Confidence >= MediumConfidence:
			summary.MediumConfidence++
		}
		summary.ByThreatLevel[r.ThreatLevel.String()]++
		entries = append(entries, ReportEntry{
			FilePath:    r.FilePath,
			ThreatLevel: r.ThreatLevel.String(),
			Confidence:  r.Confidence,
			Timestamp:   r.Timestamp,
		})
	}

	return Report{Session: stats, Summary: summary, Detections: entries}
}
