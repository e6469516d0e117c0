// Package features turns files (or in-memory buffers) into feature records
// for the classifier. A base extractor computes size, type and content hash
// and dispatches to a type-specific extractor that fills custom features.
package features

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// ErrUnreadable is returned when the file cannot be stat'ed or opened.
var ErrUnreadable = errors.New("file is not readable")

// maxErrorLen caps the length of error marker text.
const maxErrorLen = 100

// Extractor converts a path into a feature record.
type Extractor interface {
	ExtractFeatures(path string) (types.FeatureRecord, error)
	CanProcess(path string) bool
}

// Options configures a FileExtractor.
type Options struct {
	// HashAlgorithm is "md5" (default) or "sha256".
	HashAlgorithm string
	// MaxHashSize skips hashing of files larger than this many bytes; 0 means no limit.
	MaxHashSize int64
	// CacheSize enables an LRU cache of records keyed by path, size and mtime.
	CacheSize int
}

// source is the input handed to sub-extractors: a path on disk, or an
// in-memory buffer when data is non-nil.
type source struct {
	name string
	path string
	data []byte
	size int64
}

func (s source) ext() string {
	return strings.ToLower(filepath.Ext(s.name))
}

// head returns up to n bytes from the start of the input.
func (s source) head(n int) ([]byte, error) {
	if s.data != nil {
		if len(s.data) < n {
			n = len(s.data)
		}
		return s.data[:n], nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

// reader opens the whole input for sequential reading.
func (s source) reader() (io.ReadCloser, error) {
	if s.data != nil {
		return io.NopCloser(bytes.NewReader(s.data)), nil
	}
	return os.Open(s.path)
}

// subExtractor computes type-specific features. Errors never abort the
// extraction; they are returned as marker text keyed by field name.
type subExtractor interface {
	extract(src source) (map[string]float64, map[string]string)
}

// FileExtractor is the default Extractor.
type FileExtractor struct {
	opts       Options
	log        *logrus.Logger
	extractors map[types.FileType]subExtractor
	cache      *lru.Cache[string, types.FeatureRecord]
}

// New creates a FileExtractor.
func New(opts Options, log *logrus.Logger) (*FileExtractor, error) {
	switch strings.ToLower(opts.HashAlgorithm) {
	case "", "md5":
		opts.HashAlgorithm = "md5"
	case "sha256":
		opts.HashAlgorithm = "sha256"
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", opts.HashAlgorithm)
	}

	fe := &FileExtractor{
		opts: opts,
		log:  log,
		extractors: map[types.FileType]subExtractor{
			types.FileTypeExecutable: executableExtractor{},
			types.FileTypeDocument:   documentExtractor{},
			types.FileTypeImage:      imageExtractor{},
			types.FileTypeArchive:    archiveExtractor{maxExpand: archiveExpandLimit(opts.MaxHashSize)},
			types.FileTypeMedia:      mediaExtractor{},
			types.FileTypeTabular:    tabularExtractor{},
		},
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, types.FeatureRecord](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create feature cache: %w", err)
		}
		fe.cache = cache
	}
	return fe, nil
}

// CanProcess reports whether path is a regular, non-empty, readable file.
func (fe *FileExtractor) CanProcess(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ExtractFeatures builds the feature record for a file on disk. It fails
// only when the file cannot be stat'ed; malformed content degrades to a
// partial record carrying error markers.
func (fe *FileExtractor) ExtractFeatures(path string) (types.FeatureRecord, error) {
	fileType := DetectFileType(path)

	info, err := os.Stat(path)
	if err != nil {
		return types.FeatureRecord{
			FileType: fileType,
			Errors:   map[string]string{"error": truncate(err.Error())},
		}, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}

	cacheKey := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if fe.cache != nil {
		if rec, ok := fe.cache.Get(cacheKey); ok {
			return rec, nil
		}
	}

	rec := types.FeatureRecord{
		FileSize:      uint64(info.Size()),
		FileType:      fileType,
		HashAlgorithm: fe.opts.HashAlgorithm,
		Custom:        make(map[string]float64),
		Errors:        make(map[string]string),
	}
	if fe.opts.MaxHashSize <= 0 || info.Size() <= fe.opts.MaxHashSize {
		sum, err := fe.hashFile(path)
		if err != nil {
			fe.log.WithError(err).WithField("path", path).Debug("Skipping content hash")
		} else {
			rec.ContentHash = sum
		}
	}

	fe.applySpecific(&rec, source{name: path, path: path, size: info.Size()})

	if fe.cache != nil {
		fe.cache.Add(cacheKey, rec)
	}
	return rec, nil
}

// ExtractBytes builds the feature record for an in-memory buffer. name is
// only used to classify the type by extension.
func (fe *FileExtractor) ExtractBytes(name string, data []byte) types.FeatureRecord {
	rec := types.FeatureRecord{
		FileSize:      uint64(len(data)),
		FileType:      DetectFileType(name),
		HashAlgorithm: fe.opts.HashAlgorithm,
		Custom:        make(map[string]float64),
		Errors:        make(map[string]string),
	}
	h := fe.newHash()
	h.Write(data)
	rec.ContentHash = fmt.Sprintf("%x", h.Sum(nil))

	if data == nil {
		data = []byte{}
	}
	fe.applySpecific(&rec, source{name: name, data: data, size: int64(len(data))})
	return rec
}

// applySpecific runs the type-specific extractor and promotes the
// well-known fields it reports.
func (fe *FileExtractor) applySpecific(rec *types.FeatureRecord, src source) {
	sub, ok := fe.extractors[rec.FileType]
	if !ok {
		return
	}
	custom, errs := sub.extract(src)
	for k, v := range custom {
		rec.Custom[k] = v
	}
	for k, msg := range errs {
		rec.Errors[k] = truncate(msg)
		rec.Custom[k] = 1
		fe.log.WithFields(logrus.Fields{"path": src.name, "field": k}).Debug("Partial feature extraction: " + rec.Errors[k])
	}

	if v, ok := custom["entropy"]; ok {
		e := v
		rec.Entropy = &e
	}
	if v, ok := custom["num_sections"]; ok {
		n := uint(v)
		rec.SectionCount = &n
	}
	if v, ok := custom["has_imports"]; ok {
		rec.HasImports = v != 0
	}
}

func (fe *FileExtractor) newHash() hash.Hash {
	if fe.opts.HashAlgorithm == "sha256" {
		return sha256.New()
	}
	return md5.New()
}

func (fe *FileExtractor) hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := fe.newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func truncate(s string) string {
	if len(s) > maxErrorLen {
		return s[:maxErrorLen]
	}
	return s
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
