package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDetectionResult_IsThreat(t *testing.T) {
	tests := []struct {
		level      ThreatLevel
		confidence float64
		threshold  float64
		want       bool
	}{
		{ThreatMalicious, 0.9, 0.6, true},
		{ThreatMalicious, 0.6, 0.6, true},
		{ThreatSuspicious, 0.59, 0.6, false},
		{ThreatSuspicious, 0.7, 0.7, true},
		{ThreatBenign, 0.99, 0.5, false},
		{ThreatBenign, 0, 0, false},
		{ThreatMalicious, 0, 0, true},
		{ThreatMalicious, 0.95, 1, false},
	}
	for _, tt := range tests {
		r := DetectionResult{ThreatLevel: tt.level, Confidence: tt.confidence}
		if got := r.IsThreat(tt.threshold); got != tt.want {
			t.Errorf("IsThreat(level=%v, c=%v, t=%v) = %v, want %v", tt.level, tt.confidence, tt.threshold, got, tt.want)
		}
	}
}

func TestDetectionResult_IsThreatGrid(t *testing.T) {
	for _, level := range AllThreatLevels() {
		for c := 0; c <= 20; c++ {
			for th := 0; th <= 20; th++ {
				conf, thr := float64(c)/20, float64(th)/20
				r := DetectionResult{ThreatLevel: level, Confidence: conf}
				want := conf >= thr && level != ThreatBenign
				if got := r.IsThreat(thr); got != want {
					t.Fatalf("IsThreat(level=%v, c=%v, t=%v) = %v, want %v", level, conf, thr, got, want)
				}
			}
		}
	}
}

func TestFeatureRecord_ValuesDefaults(t *testing.T) {
	r := FeatureRecord{FileSize: 2048, FileType: FileTypeDocument}
	v := r.Values()
	if v["file_size"] != 2048 {
		t.Errorf("file_size = %v", v["file_size"])
	}
	if v["entropy"] != 0 || v["num_sections"] != 0 {
		t.Errorf("absent optional fields should be 0, got entropy=%v num_sections=%v", v["entropy"], v["num_sections"])
	}
	if v["is_document"] != 1 || v["is_image"] != 0 {
		t.Errorf("type flags: is_document=%v is_image=%v", v["is_document"], v["is_image"])
	}
}

func TestFeatureRecord_CustomOverrides(t *testing.T) {
	e := 7.2
	n := uint(5)
	r := FeatureRecord{
		FileType:     FileTypeExecutable,
		Entropy:      &e,
		SectionCount: &n,
		Custom:       map[string]float64{"num_sections": 6, "suspicious_api_count": 3},
	}
	v := r.Values()
	if v["entropy"] != 7.2 {
		t.Errorf("entropy = %v", v["entropy"])
	}
	if v["num_sections"] != 6 {
		t.Errorf("custom feature should win, num_sections = %v", v["num_sections"])
	}
	if got, ok := r.Value("suspicious_api_count"); !ok || got != 3 {
		t.Errorf("Value(suspicious_api_count) = %v, %v", got, ok)
	}
	if _, ok := r.Value("missing"); ok {
		t.Error("Value(missing) should report false")
	}

	cp := r.CustomFeatures()
	cp["num_sections"] = 100
	if r.Custom["num_sections"] != 6 {
		t.Error("CustomFeatures must return a copy")
	}
}

func TestThreatLevel_JSON(t *testing.T) {
	data, err := json.Marshal(DetectionResult{ThreatLevel: ThreatSuspicious, Features: FeatureRecord{FileType: FileTypeTabular}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got DetectionResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ThreatLevel != ThreatSuspicious || got.Features.FileType != FileTypeTabular {
		t.Errorf("decoded level=%v type=%v", got.ThreatLevel, got.Features.FileType)
	}
}

func TestNewAlertEvent(t *testing.T) {
	res := DetectionResult{FilePath: "/tmp/x.exe", ThreatLevel: ThreatMalicious, Confidence: 0.93, ModelVersion: "1.0.0"}
	a := NewAlertEvent(EventFileDetection, res, nil)
	b := NewAlertEvent(EventFileDetection, res, nil)
	if a.EventID == "" || a.EventID == b.EventID {
		t.Errorf("event IDs should be unique and non-empty: %q %q", a.EventID, b.EventID)
	}
	if a.Severity != SeverityCritical {
		t.Errorf("Severity = %q", a.Severity)
	}
	if time.Since(a.Timestamp) > time.Minute {
		t.Errorf("Timestamp too old: %v", a.Timestamp)
	}
	m := a.ToMap()
	if m["process_info"] != nil {
		t.Errorf("file alert process_info = %v", m["process_info"])
	}
	if m["threat_level"] != "malicious" || m["event_type"] != "file_detection" {
		t.Errorf("ToMap: %v", m)
	}

	p := NewAlertEvent(EventProcessDetection, DetectionResult{ThreatLevel: ThreatSuspicious}, &ProcessInfo{PID: 42, Name: "hook.exe", ExePath: "/opt/hook.exe"})
	if p.Severity != SeverityHigh {
		t.Errorf("suspicious severity = %q", p.Severity)
	}
	pi, ok := p.ToMap()["process_info"].(map[string]interface{})
	if !ok || pi["pid"] != 42 || pi["name"] != "hook.exe" {
		t.Errorf("process_info = %v", p.ToMap()["process_info"])
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		level ThreatLevel
		want  string
	}{
		{ThreatMalicious, SeverityCritical},
		{ThreatSuspicious, SeverityHigh},
		{ThreatBenign, SeverityLow},
	}
	for _, tt := range tests {
		if got := SeverityFor(tt.level); got != tt.want {
			t.Errorf("SeverityFor(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}
