// Package types defines the shared data model for feature extraction,
// detection verdicts, and alerts.
package types

import (
	"fmt"
	"strings"
)

// FileType is the coarse category assigned to a file from its extension.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeExecutable
	FileTypeDocument
	FileTypeImage
	FileTypeArchive
	FileTypeMedia
	FileTypeTabular
)

var fileTypeNames = map[FileType]string{
	FileTypeUnknown:    "unknown",
	FileTypeExecutable: "executable",
	FileTypeDocument:   "document",
	FileTypeImage:      "image",
	FileTypeArchive:    "archive",
	FileTypeMedia:      "media",
	FileTypeTabular:    "tabular",
}

func (t FileType) String() string {
	if s, ok := fileTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalText encodes the file type as its lowercase name.
func (t FileType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a lowercase file type name.
func (t *FileType) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for ft, s := range fileTypeNames {
		if s == name {
			*t = ft
			return nil
		}
	}
	return fmt.Errorf("unknown file type %q", name)
}

// FeatureRecord is an immutable snapshot of a file's characteristics.
// It is built once per analysis by the feature extractor and must not be
// mutated afterwards; accessors return copies of the maps.
type FeatureRecord struct {
	FileSize      uint64             `json:"file_size"`
	FileType      FileType           `json:"file_type"`
	ContentHash   string             `json:"content_hash,omitempty"`
	HashAlgorithm string             `json:"hash_algorithm,omitempty"`
	Entropy       *float64           `json:"entropy,omitempty"`
	SectionCount  *uint              `json:"section_count,omitempty"`
	HasImports    bool               `json:"has_imports"`
	Custom        map[string]float64 `json:"custom_features,omitempty"`
	Errors        map[string]string  `json:"errors,omitempty"`
}

// Values flattens the well-known fields and the custom features into a
// single name->number map. Custom features override well-known names.
func (r FeatureRecord) Values() map[string]float64 {
	v := map[string]float64{
		"file_size":     float64(r.FileSize),
		"entropy":       0,
		"num_sections":  0,
		"has_imports":   boolToFloat(r.HasImports),
		"is_executable": boolToFloat(r.FileType == FileTypeExecutable),
		"is_document":   boolToFloat(r.FileType == FileTypeDocument),
		"is_image":      boolToFloat(r.FileType == FileTypeImage),
		"is_archive":    boolToFloat(r.FileType == FileTypeArchive),
		"is_media":      boolToFloat(r.FileType == FileTypeMedia),
		"is_tabular":    boolToFloat(r.FileType == FileTypeTabular),
	}
	if r.Entropy != nil {
		v["entropy"] = *r.Entropy
	}
	if r.SectionCount != nil {
		v["num_sections"] = float64(*r.SectionCount)
	}
	for k, val := range r.Custom {
		v[k] = val
	}
	return v
}

// Value returns a single named feature; missing names report 0, false.
func (r FeatureRecord) Value(name string) (float64, bool) {
	v, ok := r.Values()[name]
	return v, ok
}

// CustomFeatures returns a copy of the extractor-specific fields.
func (r FeatureRecord) CustomFeatures() map[string]float64 {
	out := make(map[string]float64, len(r.Custom))
	for k, v := range r.Custom {
		out[k] = v
	}
	return out
}

// Error returns the error marker text recorded under key, if any.
func (r FeatureRecord) Error(key string) string {
	return r.Errors[key]
}

// Degraded reports whether any sub-extractor recorded an error marker.
func (r FeatureRecord) Degraded() bool {
	return len(r.Errors) > 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
