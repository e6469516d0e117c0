package types

import "time"

// SessionStats is a point-in-time copy of a monitoring session's counters.
type SessionStats struct {
	WatchDirectory  string        `json:"watch_directory"`
	StartTime       time.Time     `json:"start_time"`
	Duration        time.Duration `json:"duration"`
	FilesScanned    int64         `json:"files_scanned"`
	ThreatsDetected int64         `json:"threats_detected"`
	AlertsGenerated int64         `json:"alerts_generated"`
}
