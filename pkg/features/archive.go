package features

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// defaultExpandLimit bounds how many bytes are inflated to estimate a
// compression ratio.
const defaultExpandLimit = 64 << 20

func archiveExpandLimit(maxSize int64) int64 {
	if maxSize > 0 && maxSize < defaultExpandLimit {
		return maxSize
	}
	return defaultExpandLimit
}

type archiveExtractor struct {
	maxExpand int64
}

func (a archiveExtractor) extract(src source) (map[string]float64, map[string]string) {
	ext := src.ext()
	name := strings.ToLower(src.name)
	out := map[string]float64{
		"is_zip": flag(ext == ".zip"),
		"is_rar": flag(ext == ".rar"),
		"is_7z":  flag(ext == ".7z"),
		"is_tar": flag(strings.HasSuffix(name, ".tar") || strings.HasSuffix(name, ".tar.gz") ||
			strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".tar.bz2")),
	}

	var err error
	switch ext {
	case ".zip":
		err = a.inspectZip(src, out)
	case ".gz":
		err = a.inspectGzip(src, out)
	}
	if err != nil {
		return out, map[string]string{"archive_error": err.Error()}
	}
	return out, nil
}

func (a archiveExtractor) inspectZip(src source, out map[string]float64) error {
	var files []*zip.File
	if src.data != nil {
		zr, err := zip.NewReader(bytes.NewReader(src.data), int64(len(src.data)))
		if err != nil {
			return err
		}
		files = zr.File
	} else {
		zr, err := zip.OpenReader(src.path)
		if err != nil {
			return err
		}
		defer zr.Close()
		files = zr.File
	}

	var executables int
	var packed, unpacked uint64
	for _, zf := range files {
		if IsExecutableName(zf.Name) {
			executables++
		}
		packed += zf.CompressedSize64
		unpacked += zf.UncompressedSize64
	}
	out["archive_entries"] = float64(len(files))
	out["archive_executables"] = float64(executables)
	if packed > 0 {
		out["compression_ratio"] = float64(unpacked) / float64(packed)
	}
	return nil
}

func (a archiveExtractor) inspectGzip(src source, out map[string]float64) error {
	rc, err := src.reader()
	if err != nil {
		return err
	}
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return err
	}
	defer gz.Close()

	n, err := io.Copy(io.Discard, io.LimitReader(gz, a.maxExpand))
	if err != nil {
		return err
	}
	out["archive_entries"] = 1
	out["archive_executables"] = flag(IsExecutableName(strings.TrimSuffix(strings.ToLower(src.name), ".gz")))
	if src.size > 0 {
		out["compression_ratio"] = float64(n) / float64(src.size)
	}
	return nil
}
