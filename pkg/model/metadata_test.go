package model

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"  File Size ":      "file_size",
		"num-sections":      "num_sections",
		"pe.entropy":        "pe_entropy",
		"imports/count":     "imports_count",
		"has_keyboard_apis": "has_keyboard_apis",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

func TestLoadFeatureNames(t *testing.T) {
	dir := t.TempDir()

	names, err := LoadFeatureNames(writeJSON(t, dir, "a.json", `["File Size", "entropy", "num-sections"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"file_size", "entropy", "num_sections"}, names)

	names, err = LoadFeatureNames(writeJSON(t, dir, "o.json", `{"zeta": 0, "alpha": {"nested": true}, "Mid Name": 2}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid_name"}, names)

	_, err = LoadFeatureNames(writeJSON(t, dir, "bad.json", `[1, 2]`))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = LoadFeatureNames(writeJSON(t, dir, "broken.json", `[`))
	assert.Error(t, err)
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	labels, err := LoadLabels(writeJSON(t, dir, "a.json", `["clean", "keylogger"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "keylogger"}, labels)

	labels, err = LoadLabels(writeJSON(t, dir, "o.json", `{"1": "malicious", "0": "benign"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"benign", "malicious"}, labels)

	_, err = LoadLabels(writeJSON(t, dir, "bad.json", `{"first": "benign"}`))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLoadLabels_IndexGaps(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"huge index", `{"0": "benign", "9000000000000000000": "malicious"}`},
		{"large index", `{"0": "benign", "2000000000": "malicious"}`},
		{"gap", `{"0": "benign", "2": "malicious"}`},
		{"not zero based", `{"1": "benign", "2": "malicious"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLabels(writeJSON(t, dir, "labels.json", tt.content))
			assert.ErrorIs(t, err, ErrShapeMismatch)
		})
	}
}

func TestLoadModel_HugeLabelIndex(t *testing.T) {
	dir := t.TempDir()
	c := NewAdapter(Config{
		FeaturesPath: writeJSON(t, dir, "features.json", `["file_size"]`),
		LabelsPath:   writeJSON(t, dir, "labels.json", `{"0": "benign", "9000000000000000000": "malicious"}`),
	}, logrus.New())

	var ok bool
	require.NotPanics(t, func() {
		ok = c.LoadModel(writeJSON(t, dir, "m.json", `{"type":"logistic_regression","n_features":1,"weights":[1]}`))
	})
	assert.False(t, ok)
}
