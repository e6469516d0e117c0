package features

import (
	"path/filepath"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

var (
	executableExts = sets.New[string](".exe", ".dll", ".com", ".scr", ".bat", ".cmd")
	documentExts   = sets.New[string](".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt")
	imageExts      = sets.New[string](".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp")
	archiveExts    = sets.New[string](".zip", ".rar", ".7z", ".tar", ".gz", ".bz2")
	mediaExts      = sets.New[string](".mp3", ".wav", ".mp4", ".avi", ".mkv", ".mov", ".wmv")

	officeExts = sets.New[string](".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx")
	audioExts  = sets.New[string](".mp3", ".wav", ".aac", ".flac")
	videoExts  = sets.New[string](".mp4", ".avi", ".mkv", ".mov", ".wmv")
)

// DetectFileType classifies a file by its extension.
func DetectFileType(path string) types.FileType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case executableExts.Has(ext):
		return types.FileTypeExecutable
	case documentExts.Has(ext):
		return types.FileTypeDocument
	case imageExts.Has(ext):
		return types.FileTypeImage
	case archiveExts.Has(ext):
		return types.FileTypeArchive
	case mediaExts.Has(ext):
		return types.FileTypeMedia
	case ext == ".csv":
		return types.FileTypeTabular
	default:
		return types.FileTypeUnknown
	}
}

// IsExecutableName reports whether name carries an executable extension.
func IsExecutableName(name string) bool {
	return executableExts.Has(strings.ToLower(filepath.Ext(name)))
}
