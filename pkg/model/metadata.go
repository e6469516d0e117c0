package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const featureNamesSchema = `{
  "oneOf": [
    {"type": "array", "items": {"type": "string"}},
    {"type": "object"}
  ]
}`

const labelsSchema = `{
  "oneOf": [
    {"type": "array", "items": {"type": "string"}},
    {
      "type": "object",
      "patternProperties": {"^[0-9]+$": {"type": "string"}},
      "additionalProperties": false
    }
  ]
}`

var nameReplacer = strings.NewReplacer(" ", "_", "/", "_", ".", "_", "-", "_")

// NormalizeName canonicalizes a feature name: trimmed, lowercase, with
// spaces, slashes, dots and dashes replaced by underscores.
func NormalizeName(name string) string {
	return strings.ToLower(nameReplacer.Replace(strings.TrimSpace(name)))
}

// DefaultLabels is used when no label file is configured.
func DefaultLabels() []string {
	return []string{"benign", "malicious"}
}

// LoadFeatureNames reads the model's input feature list: a JSON array of
// names, or an object whose keys are the names in document order.
func LoadFeatureNames(path string) ([]string, error) {
	data, err := readValidated(path, featureNamesSchema)
	if err != nil {
		return nil, err
	}

	var names []string
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		if err := json.Unmarshal(data, &names); err != nil {
			return nil, fmt.Errorf("failed to decode feature names: %w", err)
		}
	} else if names, err = objectKeys(data); err != nil {
		return nil, fmt.Errorf("failed to decode feature names: %w", err)
	}

	for i := range names {
		names[i] = NormalizeName(names[i])
	}
	return names, nil
}

// LoadLabels reads the label list: a JSON array, or an object mapping
// class index to name.
func LoadLabels(path string) ([]string, error) {
	data, err := readValidated(path, labelsSchema)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		var labels []string
		if err := json.Unmarshal(data, &labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels: %w", err)
		}
		return labels, nil
	}

	var byIndex map[string]string
	if err := json.Unmarshal(data, &byIndex); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	indexes := make([]int, 0, len(byIndex))
	named := make(map[int]string, len(byIndex))
	for k, v := range byIndex {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, err)
		}
		indexes = append(indexes, i)
		named[i] = v
	}
	sort.Ints(indexes)

	// Indexes must be exactly 0..n-1.
	labels := make([]string, len(indexes))
	for pos, i := range indexes {
		if i != pos {
			return nil, fmt.Errorf("%w: label indexes must run from 0 to %d, got %d", ErrShapeMismatch, len(indexes)-1, i)
		}
		labels[pos] = named[i]
	}
	return labels, nil
}

func readValidated(path, schema string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrShapeMismatch, path, strings.Join(msgs, "; "))
	}
	return data, nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
