package types

import (
	"fmt"
	"strings"
	"time"
)

// ThreatLevel is the discrete outcome of a detection decision.
type ThreatLevel int

const (
	ThreatBenign ThreatLevel = iota
	ThreatSuspicious
	ThreatMalicious
)

func (l ThreatLevel) String() string {
	switch l {
	case ThreatSuspicious:
		return "suspicious"
	case ThreatMalicious:
		return "malicious"
	default:
		return "benign"
	}
}

// MarshalText encodes the level as its lowercase name.
func (l ThreatLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a lowercase level name.
func (l *ThreatLevel) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "benign":
		*l = ThreatBenign
	case "suspicious":
		*l = ThreatSuspicious
	case "malicious":
		*l = ThreatMalicious
	default:
		return fmt.Errorf("unknown threat level %q", string(b))
	}
	return nil
}

// AllThreatLevels lists every level in ascending order.
func AllThreatLevels() []ThreatLevel {
	return []ThreatLevel{ThreatBenign, ThreatSuspicious, ThreatMalicious}
}

// ProbabilityVector holds per-class probabilities aligned to the model's
// label list. Values are expected in [0,1] and to sum to roughly 1, but
// consumers must tolerate drift.
type ProbabilityVector []float64

// DetectionResult is the output of analysing one file.
type DetectionResult struct {
	FilePath     string                 `json:"file_path"`
	ThreatLevel  ThreatLevel            `json:"threat_level"`
	Confidence   float64                `json:"confidence"`
	Features     FeatureRecord          `json:"features"`
	Timestamp    time.Time              `json:"timestamp"`
	ModelVersion string                 `json:"model_version"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// IsThreat reports whether the verdict is non-benign and its confidence
// reaches threshold.
func (r DetectionResult) IsThreat(threshold float64) bool {
	return r.Confidence >= threshold && r.ThreatLevel != ThreatBenign
}
