package features

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// textSampleSize bounds how much of a .txt file is inspected.
const textSampleSize = 10 * 1024

type documentExtractor struct{}

func (documentExtractor) extract(src source) (map[string]float64, map[string]string) {
	ext := src.ext()
	out := map[string]float64{
		"is_pdf":    flag(ext == ".pdf"),
		"is_office": flag(officeExts.Has(ext)),
		"is_text":   flag(ext == ".txt"),
	}
	if ext != ".txt" {
		return out, nil
	}

	sample, err := src.head(textSampleSize)
	if err != nil {
		return out, map[string]string{"text_error": err.Error()}
	}
	out["line_count"] = float64(bytes.Count(sample, []byte("\n")))
	out["char_count"] = float64(utf8.RuneCount(sample))
	out["has_urls"] = flag(strings.Contains(strings.ToLower(string(sample)), "http"))
	return out, nil
}

type imageExtractor struct{}

func (imageExtractor) extract(src source) (map[string]float64, map[string]string) {
	ext := src.ext()
	return map[string]float64{
		"is_jpeg": flag(ext == ".jpg" || ext == ".jpeg"),
		"is_png":  flag(ext == ".png"),
		"is_gif":  flag(ext == ".gif"),
		"is_bmp":  flag(ext == ".bmp"),
	}, nil
}

type mediaExtractor struct{}

func (mediaExtractor) extract(src source) (map[string]float64, map[string]string) {
	ext := src.ext()
	return map[string]float64{
		"is_audio": flag(audioExts.Has(ext)),
		"is_video": flag(videoExts.Has(ext)),
	}, nil
}
