// Package detection provides the verdict policy that decides which
// detection results become alerts.
package detection

import (
	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// Engine applies the alert threshold to detection results. It performs no
// I/O and is the only place the alerting threshold is evaluated.
type Engine struct {
	threshold float64
}

// NewEngine creates a detection engine with the given alert threshold.
// Values outside [0,1] are clamped.
func NewEngine(threshold float64) *Engine {
	switch {
	case threshold < 0:
		threshold = 0
	case threshold > 1:
		threshold = 1
	}
	return &Engine{threshold: threshold}
}

// Threshold returns the configured alert threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// ShouldAlert reports whether the result clears the alert threshold.
func (e *Engine) ShouldAlert(result types.DetectionResult) bool {
	return result.IsThreat(e.threshold)
}
