package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/invisible-tech/keylogger-sensor/internal/detection"
	"github.com/invisible-tech/keylogger-sensor/internal/metrics"
	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/pkg/alert"
	"github.com/invisible-tech/keylogger-sensor/pkg/session"
)

// DirectoryConfig filters the files a directory sweep considers.
type DirectoryConfig struct {
	// MaxFileSize skips larger files; 0 means no limit.
	MaxFileSize int64
	// ExcludedExtensions are skipped, compared case-insensitively.
	ExcludedExtensions []string
}

// DirectoryMonitor sweeps the session's watch directory.
type DirectoryMonitor struct {
	analyzer *FileAnalyzer
	engine   *detection.Engine
	handler  alert.Handler
	log      *logrus.Logger

	maxSize  int64
	excluded sets.Set[string]
}

// NewDirectoryMonitor creates a DirectoryMonitor.
func NewDirectoryMonitor(cfg DirectoryConfig, analyzer *FileAnalyzer, engine *detection.Engine, handler alert.Handler, log *logrus.Logger) *DirectoryMonitor {
	excluded := sets.New[string]()
	for _, ext := range cfg.ExcludedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		excluded.Insert(ext)
	}
	return &DirectoryMonitor{
		analyzer: analyzer,
		engine:   engine,
		handler:  handler,
		log:      log,
		maxSize:  cfg.MaxFileSize,
		excluded: excluded,
	}
}

// ScanDirectoryOnce analyzes every new or modified file directly inside
// the watch directory and returns the results. A file that fails does not
// stop the sweep.
func (d *DirectoryMonitor) ScanDirectoryOnce(ctx context.Context, sess *session.Session) []types.DetectionResult {
	dir := sess.WatchDirectory()
	entries, err := os.ReadDir(dir)
	if err != nil {
		d.log.WithError(err).WithField("directory", dir).Warn("Watch directory unavailable")
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues(metrics.KindDirectory).Observe(time.Since(start).Seconds())
	}()

	var results []types.DetectionResult
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if result, ok := d.scanPath(ctx, sess, path, entry); ok {
			results = append(results, result)
		}
	}
	return results
}

func (d *DirectoryMonitor) scanPath(ctx context.Context, sess *session.Session, path string, entry os.DirEntry) (result types.DetectionResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("path", path).Errorf("Panic while scanning file: %v", r)
			ok = false
		}
	}()

	if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
		return result, false
	}
	info, err := entry.Info()
	if err != nil {
		d.log.WithError(err).WithField("path", path).Debug("File vanished before scan")
		return result, false
	}
	if !d.candidate(info) {
		return result, false
	}
	if !sess.IsNewOrModified(path, info.ModTime()) {
		return result, false
	}

	sess.MarkSeen(path, info.ModTime())
	sess.IncScanned()
	metrics.FilesScanned.Inc()

	res, err := d.analyzer.AnalyzeFile(path)
	if err != nil {
		d.log.WithError(err).WithField("path", path).Error("Failed to analyze file")
		return result, false
	}

	if d.engine.ShouldAlert(*res) {
		sess.IncThreats()
		metrics.ThreatsDetected.WithLabelValues(metrics.SourceFile).Inc()
		if err := d.dispatch(ctx, types.NewAlertEvent(types.EventFileDetection, *res, nil)); err != nil {
			d.log.WithError(err).WithField("path", path).Error("Failed to generate alert")
		} else {
			sess.IncAlerts()
		}
	}
	return *res, true
}

func (d *DirectoryMonitor) candidate(info os.FileInfo) bool {
	if info.Size() == 0 {
		return false
	}
	if d.maxSize > 0 && info.Size() > d.maxSize {
		return false
	}
	return !d.excluded.Has(strings.ToLower(filepath.Ext(info.Name())))
}

func (d *DirectoryMonitor) dispatch(ctx context.Context, event types.AlertEvent) error {
	if d.handler == nil {
		return alert.ErrNoHandlers
	}
	if err := d.handler.HandleAlert(ctx, event); err != nil {
		return err
	}
	metrics.AlertsGenerated.WithLabelValues(string(event.EventType), event.Severity).Inc()
	d.log.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"path":     event.Result.FilePath,
	}).Info("Alert generated")
	return nil
}
