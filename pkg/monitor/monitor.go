// Package monitor runs the sweep loop: a directory sweep followed by a
// process sweep, repeated on an interval or when the watch directory
// changes.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/detection"
	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/pkg/dirwatch"
	"github.com/invisible-tech/keylogger-sensor/pkg/session"
)

// maxReportResults bounds the results kept for the session report.
const maxReportResults = 10000

// Config holds configuration for the sweep loop
type Config struct {
	ScanInterval     time.Duration
	MonitorFiles     bool
	MonitorProcesses bool
	// StopOnThreat ends the loop after a sweep that produced a threat.
	StopOnThreat bool
	// MaxSweeps ends the loop after this many sweeps; 0 means unlimited.
	MaxSweeps int
}

// DirectoryScanner performs one directory sweep.
type DirectoryScanner interface {
	ScanDirectoryOnce(ctx context.Context, sess *session.Session) []types.DetectionResult
}

// ProcessScanner performs one process sweep.
type ProcessScanner interface {
	ScanRunningProcesses(ctx context.Context) []types.DetectionResult
}

// Monitor runs sweeps sequentially on a single goroutine, so two sweeps
// never overlap.
type Monitor struct {
	cfg    Config
	log    *logrus.Logger
	sess   *session.Session
	engine *detection.Engine

	dirScan  DirectoryScanner
	procScan ProcessScanner
	watcher  *dirwatch.Watcher

	mu      sync.Mutex
	results []types.DetectionResult
	sweeps  int
}

// New creates a Monitor. Either scanner may be nil.
func New(cfg Config, sess *session.Session, dirScan DirectoryScanner, procScan ProcessScanner, engine *detection.Engine, log *logrus.Logger) *Monitor {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 10 * time.Second
	}
	return &Monitor{
		cfg:      cfg,
		log:      log,
		sess:     sess,
		engine:   engine,
		dirScan:  dirScan,
		procScan: procScan,
	}
}

// WithWatcher triggers an extra directory sweep whenever w fires.
func (m *Monitor) WithWatcher(w *dirwatch.Watcher) *Monitor {
	m.watcher = w
	return m
}

// Run sweeps until ctx is cancelled, a sweep limit is reached or, with
// StopOnThreat, a threat is found. Cancellation is observed between
// sweeps; a sweep in progress completes.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.WithFields(logrus.Fields{
		"directory":         m.sess.WatchDirectory(),
		"interval":          m.cfg.ScanInterval.String(),
		"monitor_files":     m.cfg.MonitorFiles,
		"monitor_processes": m.cfg.MonitorProcesses,
		"threshold":         m.engine.Threshold(),
	}).Info("Starting monitoring")

	var trigger <-chan struct{}
	var wg sync.WaitGroup
	watchCtx, stopWatch := context.WithCancel(ctx)
	if m.watcher != nil {
		trigger = m.watcher.C()
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.watcher.Start(watchCtx)
		}()
	}
	defer func() {
		stopWatch()
		wg.Wait()
		m.logStats()
	}()

	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if m.sweep(ctx) && m.cfg.StopOnThreat {
			m.log.Warn("Threat detected, stopping monitoring")
			return nil
		}
		if m.cfg.MaxSweeps > 0 && m.Sweeps() >= m.cfg.MaxSweeps {
			m.log.WithField("sweeps", m.Sweeps()).Info("Sweep limit reached")
			return nil
		}

		select {
		case <-ctx.Done():
			m.log.Info("Monitoring stopping")
			return nil
		case <-ticker.C:
		case <-trigger:
			m.log.Debug("Watch directory changed, sweeping early")
		}
	}
}

// sweep runs one directory sweep and one process sweep and reports
// whether either produced a threat.
func (m *Monitor) sweep(ctx context.Context) bool {
	var results []types.DetectionResult
	if m.cfg.MonitorFiles && m.dirScan != nil {
		results = append(results, m.dirScan.ScanDirectoryOnce(ctx, m.sess)...)
	}
	if m.cfg.MonitorProcesses && m.procScan != nil {
		results = append(results, m.procScan.ScanRunningProcesses(ctx)...)
	}

	threat := false
	for _, r := range results {
		if m.engine.ShouldAlert(r) {
			threat = true
			break
		}
	}

	m.mu.Lock()
	m.sweeps++
	m.results = append(m.results, results...)
	if over := len(m.results) - maxReportResults; over > 0 {
		m.results = append([]types.DetectionResult(nil), m.results[over:]...)
	}
	m.mu.Unlock()
	return threat
}

// Sweeps returns the number of completed sweeps.
func (m *Monitor) Sweeps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweeps
}

// Report summarizes the session so far.
func (m *Monitor) Report() detection.Report {
	m.mu.Lock()
	results := append([]types.DetectionResult(nil), m.results...)
	m.mu.Unlock()
	return m.engine.Summarize(m.sess.Stats(), results)
}

func (m *Monitor) logStats() {
	st := m.sess.Stats()
	m.log.WithFields(logrus.Fields{
		"files_scanned":    st.FilesScanned,
		"threats_detected": st.ThreatsDetected,
		"alerts_generated": st.AlertsGenerated,
		"duration":         st.Duration.Round(time.Second).String(),
		"sweeps":           m.Sweeps(),
	}).Info("Monitoring session finished")
}
