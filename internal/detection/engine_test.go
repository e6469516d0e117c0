package detection

import (
	"testing"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

func TestNewEngine(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.6, 0.6},
		{-1, 0},
		{2, 1},
	}
	for _, tt := range tests {
		if got := NewEngine(tt.in).Threshold(); got != tt.want {
			t.Errorf("NewEngine(%v).Threshold() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEngine_ShouldAlert(t *testing.T) {
	e := NewEngine(0.6)
	tests := []struct {
		name   string
		result types.DetectionResult
		want   bool
	}{
		{"malicious above threshold", types.DetectionResult{ThreatLevel: types.ThreatMalicious, Confidence: 0.9}, true},
		{"suspicious at threshold", types.DetectionResult{ThreatLevel: types.ThreatSuspicious, Confidence: 0.6}, true},
		{"suspicious below threshold", types.DetectionResult{ThreatLevel: types.ThreatSuspicious, Confidence: 0.59}, false},
		{"benign high confidence", types.DetectionResult{ThreatLevel: types.ThreatBenign, Confidence: 0.95}, false},
		{"neutral error result", types.DetectionResult{ThreatLevel: types.ThreatBenign, Confidence: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.ShouldAlert(tt.result); got != tt.want {
				t.Errorf("ShouldAlert = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_ThresholdIsInjected(t *testing.T) {
	r := types.DetectionResult{ThreatLevel: types.ThreatSuspicious, Confidence: 0.65}
	if !NewEngine(0.5).ShouldAlert(r) {
		t.Error("sensitive engine should alert at 0.65")
	}
	if NewEngine(0.7).ShouldAlert(r) {
		t.Error("strict engine should not alert at 0.65")
	}
}

func TestEngine_Summarize(t *testing.T) {
	e := NewEngine(0.6)
	results := []types.DetectionResult{
		{FilePath: "a.exe", ThreatLevel: types.ThreatMalicious, Confidence: 0.95},
		{FilePath: "b.exe", ThreatLevel: types.ThreatSuspicious, Confidence: 0.7},
		{FilePath: "c.txt", ThreatLevel: types.ThreatBenign, Confidence: 0.9},
		{FilePath: "d.csv", ThreatLevel: types.ThreatBenign, Confidence: 0.3},
	}
	stats := types.SessionStats{WatchDirectory: "/watch", FilesScanned: 4}
	rep := e.Summarize(stats, results)

	if rep.Summary.TotalThreats != 2 {
		t.Errorf("TotalThreats = %d, want 2", rep.Summary.TotalThreats)
	}
	if rep.Summary.HighConfidence != 2 {
		t.Errorf("HighConfidence = %d, want 2", rep.Summary.HighConfidence)
	}
	if rep.Summary.MediumConfidence != 1 {
		t.Errorf("MediumConfidence = %d, want 1", rep.Summary.MediumConfidence)
	}
	if rep.Summary.ByThreatLevel["benign"] != 2 || rep.Summary.ByThreatLevel["malicious"] != 1 || rep.Summary.ByThreatLevel["suspicious"] != 1 {
		t.Errorf("ByThreatLevel = %v", rep.Summary.ByThreatLevel)
	}
	if len(rep.Detections) != 4 || rep.Detections[0].FilePath != "a.exe" {
		t.Errorf("Detections = %+v", rep.Detections)
	}
	if rep.Session.FilesScanned != 4 {
		t.Errorf("Session = %+v", rep.Session)
	}
}

func TestEngine_SummarizeEmpty(t *testing.T) {
	rep := NewEngine(0.6).Summarize(types.SessionStats{}, nil)
	if rep.Summary.TotalThreats != 0 || len(rep.Detections) != 0 {
		t.Errorf("empty report = %+v", rep)
	}
	if _, ok := rep.Summary.ByThreatLevel["suspicious"]; !ok {
		t.Error("ByThreatLevel should list every level")
	}
}
