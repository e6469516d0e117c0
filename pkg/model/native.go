package model

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Native model kinds.
const (
	KindRandomForest       = "random_forest"
	KindLogisticRegression = "logistic_regression"
)

// Node is one node of a decision tree. A node with a non-empty Value is a
// leaf holding per-class weights; otherwise samples with
// x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flattened decision tree rooted at node 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// NativeModel is the serialized form read from .gob and .json model files.
type NativeModel struct {
	Kind      string    `json:"type"`
	NFeatures int       `json:"n_features"`
	NClasses  int       `json:"n_classes"`
	HardVote  bool      `json:"hard_vote,omitempty"`
	Trees     []Tree    `json:"trees,omitempty"`
	Weights   []float64 `json:"weights,omitempty"`
	Bias      float64   `json:"bias,omitempty"`
}

// ReadNativeModel decodes a model from a .gob or .json file.
func ReadNativeModel(path string) (*NativeModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m NativeModel
	if strings.ToLower(filepath.Ext(path)) == ".gob" {
		err = gob.NewDecoder(f).Decode(&m)
	} else {
		err = json.NewDecoder(f).Decode(&m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &m, nil
}

// WriteNativeModel encodes m to path; the format follows the extension.
func WriteNativeModel(path string, m *NativeModel) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.ToLower(filepath.Ext(path)) == ".gob" {
		err = gob.NewEncoder(f).Encode(m)
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(m)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate checks the model's structure against the input width.
func (m *NativeModel) Validate(numFeatures int) error {
	if m.NFeatures != 0 && numFeatures != 0 && m.NFeatures != numFeatures {
		return fmt.Errorf("%w: model expects %d features, feature list has %d", ErrShapeMismatch, m.NFeatures, numFeatures)
	}
	switch m.Kind {
	case KindRandomForest:
		if len(m.Trees) == 0 {
			return fmt.Errorf("%w: forest has no trees", ErrShapeMismatch)
		}
		for i, t := range m.Trees {
			if err := t.validate(); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
		}
	case KindLogisticRegression:
		if len(m.Weights) == 0 {
			return fmt.Errorf("%w: logistic regression has no weights", ErrShapeMismatch)
		}
		if numFeatures != 0 && len(m.Weights) != numFeatures {
			return fmt.Errorf("%w: %d weights for %d features", ErrShapeMismatch, len(m.Weights), numFeatures)
		}
	default:
		return fmt.Errorf("%w: model kind %q", ErrUnsupportedModel, m.Kind)
	}
	return nil
}

func (t Tree) validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: empty tree", ErrShapeMismatch)
	}
	for i, n := range t.Nodes {
		if len(n.Value) > 0 {
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("%w: node %d has invalid children", ErrShapeMismatch, i)
		}
		if n.Feature < 0 {
			return fmt.Errorf("%w: node %d has negative feature index", ErrShapeMismatch, i)
		}
	}
	return nil
}

func (t Tree) leaf(x []float32) ([]float64, error) {
	i := 0
	for {
		n := t.Nodes[i]
		if len(n.Value) > 0 {
			return n.Value, nil
		}
		if n.Feature >= len(x) {
			return nil, fmt.Errorf("%w: feature index %d out of range", ErrShapeMismatch, n.Feature)
		}
		if float64(x[n.Feature]) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// predict evaluates the model on one input vector.
func (m *NativeModel) predict(x []float32) (output, error) {
	switch m.Kind {
	case KindLogisticRegression:
		if len(x) != len(m.Weights) {
			return output{}, fmt.Errorf("%w: got %d inputs for %d weights", ErrShapeMismatch, len(x), len(m.Weights))
		}
		z := m.Bias
		for i, w := range m.Weights {
			z += w * float64(x[i])
		}
		p := 1 / (1 + math.Exp(-z))
		if m.HardVote {
			return output{hard: true, label: int64(math.Round(p))}, nil
		}
		return output{probabilities: []float64{1 - p, p}}, nil

	case KindRandomForest:
		var sum []float64
		for _, t := range m.Trees {
			v, err := t.leaf(x)
			if err != nil {
				return output{}, err
			}
			dist := normalize(v)
			if m.HardVote {
				dist = oneHot(argmax(v), len(v))
			}
			if sum == nil {
				sum = make([]float64, len(dist))
			}
			if len(dist) != len(sum) {
				return output{}, fmt.Errorf("%w: leaves disagree on class count", ErrShapeMismatch)
			}
			for c := range dist {
				sum[c] += dist[c]
			}
		}
		if m.HardVote {
			return output{hard: true, label: int64(argmax(sum))}, nil
		}
		for c := range sum {
			sum[c] /= float64(len(m.Trees))
		}
		return output{probabilities: sum}, nil
	}
	return output{}, fmt.Errorf("%w: model kind %q", ErrUnsupportedModel, m.Kind)
}

func normalize(v []float64) []float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	out := make([]float64, len(v))
	if total == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func oneHot(i, n int) []float64 {
	out := make([]float64, n)
	out[i] = 1
	return out
}

type nativeBackend struct {
	model *NativeModel
}

func (b *nativeBackend) name() string {
	return "native"
}

func (b *nativeBackend) load(path string, numFeatures int) error {
	m, err := ReadNativeModel(path)
	if err != nil {
		return err
	}
	if err := m.Validate(numFeatures); err != nil {
		return err
	}
	b.model = m
	return nil
}

func (b *nativeBackend) run(vector []float32) (output, error) {
	if b.model == nil {
		return output{}, ErrNotLoaded
	}
	return b.model.predict(vector)
}

func (b *nativeBackend) close() error {
	return nil
}
