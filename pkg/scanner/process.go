package scanner

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/detection"
	"github.com/invisible-tech/keylogger-sensor/internal/metrics"
	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/pkg/alert"
	"github.com/invisible-tech/keylogger-sensor/pkg/procmon"
)

// ProcessMonitor analyzes the executables of running processes.
type ProcessMonitor struct {
	lister   procmon.Lister
	analyzer *FileAnalyzer
	engine   *detection.Engine
	handler  alert.Handler
	log      *logrus.Logger
}

// NewProcessMonitor creates a ProcessMonitor.
func NewProcessMonitor(lister procmon.Lister, analyzer *FileAnalyzer, engine *detection.Engine, handler alert.Handler, log *logrus.Logger) *ProcessMonitor {
	return &ProcessMonitor{
		lister:   lister,
		analyzer: analyzer,
		engine:   engine,
		handler:  handler,
		log:      log,
	}
}

// ScanRunningProcesses returns the threat results for running processes.
// Every sweep re-alerts on processes that are still running.
func (p *ProcessMonitor) ScanRunningProcesses(ctx context.Context) []types.DetectionResult {
	procs, err := p.lister.RunningProcesses()
	if err != nil {
		p.log.WithError(err).Error("Failed to list processes")
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues(metrics.KindProcess).Observe(time.Since(start).Seconds())
	}()
	p.log.WithField("processes", len(procs)).Debug("Scanning running processes")

	var results []types.DetectionResult
	for i := range procs {
		if res, ok := p.scanProcess(ctx, procs[i]); ok {
			results = append(results, res)
		}
	}
	return results
}

func (p *ProcessMonitor) scanProcess(ctx context.Context, proc types.ProcessInfo) (result types.DetectionResult, ok bool) {
	fields := logrus.Fields{"pid": proc.PID, "process": proc.Name}
	if proc.Cmdline != "" {
		fields["cmdline_hash"] = procmon.CmdlineHash(proc.Cmdline)
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(fields).Errorf("Panic while scanning process: %v", r)
			ok = false
		}
	}()

	if proc.ExePath == "" {
		return result, false
	}
	if _, err := os.Stat(proc.ExePath); err != nil {
		return result, false
	}

	metrics.ProcessesScanned.Inc()
	res, err := p.analyzer.AnalyzeFile(proc.ExePath)
	if err != nil {
		p.log.WithError(err).WithFields(fields).Debug("Failed to analyze process executable")
		return result, false
	}
	if !p.engine.ShouldAlert(*res) {
		return result, false
	}

	metrics.ThreatsDetected.WithLabelValues(metrics.SourceProcess).Inc()
	event := types.NewAlertEvent(types.EventProcessDetection, *res, &proc)
	if p.handler == nil {
		p.log.WithFields(fields).Error("No alert handler for process detection")
	} else if err := p.handler.HandleAlert(ctx, event); err != nil {
		p.log.WithError(err).WithFields(fields).Error("Failed to generate process alert")
	} else {
		metrics.AlertsGenerated.WithLabelValues(string(event.EventType), event.Severity).Inc()
		p.log.WithFields(fields).WithField("exe", proc.ExePath).Warn("Suspicious process detected")
	}
	return *res, true
}
