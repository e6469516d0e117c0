// Package model loads a trained classifier and turns feature records into
// detection results.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

var (
	// ErrNotLoaded is reported when Predict is called before a successful load.
	ErrNotLoaded = errors.New("model not loaded")
	// ErrUnsupportedModel is reported for model files no backend understands.
	ErrUnsupportedModel = errors.New("unsupported model format")
	// ErrShapeMismatch is reported when a model does not fit the feature list
	// or produces output of an unexpected shape.
	ErrShapeMismatch = errors.New("model shape mismatch")
)

// Adapter is the classifier used by the scanners.
type Adapter interface {
	LoadModel(path string) bool
	Predict(features types.FeatureRecord) types.DetectionResult
}

// Config holds the artifact locations for a model.
type Config struct {
	ModelPath      string
	FeaturesPath   string
	LabelsPath     string
	RuntimeLibrary string
	Version        string
}

// output is what a backend produces for one input vector.
type output struct {
	probabilities []float64
	hard          bool
	label         int64
}

type backend interface {
	name() string
	load(path string, numFeatures int) error
	run(vector []float32) (output, error)
	close() error
}

// newBackend selects a backend by model file extension.
func newBackend(path string, cfg Config) (backend, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gob", ".json":
		return &nativeBackend{}, nil
	case ".onnx":
		return newGraphBackend(cfg.RuntimeLibrary), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, filepath.Ext(path))
	}
}

// Classifier is the default Adapter.
type Classifier struct {
	cfg          Config
	log          *logrus.Logger
	backendFor   func(path string, cfg Config) (backend, error)
	backend      backend
	featureNames []string
	labels       []string
	loaded       bool
}

// NewAdapter creates a classifier for the artifacts in cfg. The model is
// not loaded until LoadModel is called.
func NewAdapter(cfg Config, log *logrus.Logger) *Classifier {
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	return &Classifier{cfg: cfg, log: log, backendFor: newBackend}
}

// LoadModel loads the feature list, labels and the model at path. It
// returns false and logs the cause on failure.
func (c *Classifier) LoadModel(path string) bool {
	if err := c.load(path); err != nil {
		c.log.WithError(err).WithField("model", path).Error("Failed to load model")
		return false
	}
	c.log.WithFields(logrus.Fields{
		"model":    path,
		"backend":  c.backend.name(),
		"features": len(c.featureNames),
		"labels":   c.labels,
	}).Info("Model loaded")
	c.log.WithField("feature_names", c.FeatureNames()).Debug("Model input order")
	return true
}

func (c *Classifier) load(path string) error {
	names, err := LoadFeatureNames(c.cfg.FeaturesPath)
	if err != nil {
		return err
	}
	labels := DefaultLabels()
	if c.cfg.LabelsPath != "" {
		if labels, err = LoadLabels(c.cfg.LabelsPath); err != nil {
			return err
		}
	}

	b, err := c.backendFor(path, c.cfg)
	if err != nil {
		return err
	}
	if err := b.load(path, len(names)); err != nil {
		b.close()
		return fmt.Errorf("failed to load %s model: %w", b.name(), err)
	}

	if c.backend != nil && c.backend != b {
		c.backend.close()
	}
	c.backend = b
	c.featureNames = names
	c.labels = labels
	c.loaded = true
	return nil
}

// FeatureNames returns the model's input feature names in order.
func (c *Classifier) FeatureNames() []string {
	return append([]string(nil), c.featureNames...)
}

// Close releases backend resources.
func (c *Classifier) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.close()
}

// Predict classifies a feature record. It never fails: any error yields a
// benign result with zero confidence and the cause in details["error"].
func (c *Classifier) Predict(features types.FeatureRecord) types.DetectionResult {
	result := types.DetectionResult{
		ThreatLevel:  types.ThreatBenign,
		Features:     features,
		Timestamp:    time.Now(),
		ModelVersion: c.cfg.Version,
		Details:      map[string]interface{}{},
	}

	probs, err := c.probabilities(features)
	if err != nil {
		c.log.WithError(err).Warn("Prediction failed, returning neutral result")
		result.Details["error"] = err.Error()
		return result
	}

	level, confidence, pBenign, pMalicious := Interpret(probs)
	result.ThreatLevel = level
	result.Confidence = confidence
	result.Details["probabilities"] = map[string]float64{
		"benign":    pBenign,
		"malicious": pMalicious,
	}
	result.Details["model_type"] = c.backend.name()
	result.Details["labels"] = append([]string(nil), c.labels...)
	return result
}

func (c *Classifier) probabilities(features types.FeatureRecord) (probs types.ProbabilityVector, err error) {
	if !c.loaded {
		return nil, ErrNotLoaded
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model backend panicked: %v", r)
		}
	}()

	out, err := c.backend.run(BuildVector(features, c.featureNames))
	if err != nil {
		return nil, err
	}
	if out.hard {
		return HardVector(out.label), nil
	}
	return out.probabilities, nil
}
