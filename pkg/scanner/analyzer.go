// Package scanner runs directory and process sweeps: it analyzes candidate
// files, applies the alert threshold and dispatches alerts.
package scanner

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/metrics"
	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/pkg/features"
	"github.com/invisible-tech/keylogger-sensor/pkg/model"
)

// ErrCannotProcess is returned for paths the extractor rejects.
var ErrCannotProcess = errors.New("file cannot be processed")

// FileAnalyzer extracts features from a file and classifies them.
type FileAnalyzer struct {
	extractor features.Extractor
	model     model.Adapter
	log       *logrus.Logger
}

// NewFileAnalyzer creates a FileAnalyzer.
func NewFileAnalyzer(extractor features.Extractor, m model.Adapter, log *logrus.Logger) *FileAnalyzer {
	return &FileAnalyzer{extractor: extractor, model: m, log: log}
}

// AnalyzeFile classifies a single file.
func (a *FileAnalyzer) AnalyzeFile(path string) (*types.DetectionResult, error) {
	if !a.extractor.CanProcess(path) {
		return nil, fmt.Errorf("%w: %s", ErrCannotProcess, path)
	}

	a.log.WithField("path", path).Debug("Analyzing file")
	rec, err := a.extractor.ExtractFeatures(path)
	if err != nil {
		return nil, err
	}

	if rec.Degraded() {
		a.log.WithField("path", path).WithField("errors", rec.Errors).Debug("Partial features extracted")
	}

	result := a.model.Predict(rec)
	result.FilePath = path
	if _, failed := result.Details["error"]; failed {
		metrics.PredictionErrors.Inc()
	}

	a.log.WithFields(logrus.Fields{
		"path":         path,
		"threat_level": result.ThreatLevel.String(),
		"confidence":   result.Confidence,
	}).Debug("Analysis complete")
	return &result, nil
}
