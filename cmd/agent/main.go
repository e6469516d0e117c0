package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/invisible-tech/keylogger-sensor/internal/config"
	"github.com/invisible-tech/keylogger-sensor/internal/detection"
	"github.com/invisible-tech/keylogger-sensor/internal/logging"
	"github.com/invisible-tech/keylogger-sensor/internal/server"
	"github.com/invisible-tech/keylogger-sensor/internal/version"
	"github.com/invisible-tech/keylogger-sensor/pkg/alert"
	"github.com/invisible-tech/keylogger-sensor/pkg/dirwatch"
	"github.com/invisible-tech/keylogger-sensor/pkg/features"
	"github.com/invisible-tech/keylogger-sensor/pkg/model"
	"github.com/invisible-tech/keylogger-sensor/pkg/monitor"
	"github.com/invisible-tech/keylogger-sensor/pkg/procmon"
	"github.com/invisible-tech/keylogger-sensor/pkg/scanner"
	"github.com/invisible-tech/keylogger-sensor/pkg/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Err(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	log, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}
	defer logCloser.Close()

	log.WithFields(logrus.Fields{
		"version":   version.String(),
		"profile":   cfg.Profile,
		"directory": cfg.Monitoring.WatchDirectory,
	}).Info("Starting keylogger sensor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	classifier := model.NewAdapter(model.Config{
		ModelPath:      cfg.Model.ModelPath,
		FeaturesPath:   cfg.Model.FeaturesPath,
		LabelsPath:     cfg.Model.LabelsPath,
		RuntimeLibrary: cfg.Model.RuntimeLibrary,
		Version:        cfg.Model.Version,
	}, log)
	if !classifier.LoadModel(cfg.Model.ModelPath) {
		log.Fatal("Failed to load model")
	}
	defer classifier.Close()

	extractor, err := features.New(features.Options{
		HashAlgorithm: cfg.Monitoring.HashAlgorithm,
		MaxHashSize:   cfg.Monitoring.MaxFileSize,
		CacheSize:     cfg.Monitoring.FeatureCacheSize,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create feature extractor")
	}
	engine := detection.NewEngine(cfg.DetectionThreshold())

	var store session.StateStore
	if cfg.Monitoring.StateDB != "" {
		sqliteStore, err := session.OpenSQLiteStore(cfg.Monitoring.StateDB)
		if err != nil {
			log.WithError(err).Fatal("Failed to open state database")
		}
		store = sqliteStore
	}
	sess := session.New(cfg.Monitoring.WatchDirectory, store, log)
	defer sess.Close()

	recorder := alert.NewRecorder(cfg.Alerts.RecentAlerts)
	handlers := alert.NewComposite(log).
		Add("log", alert.NewLogHandler(log)).
		Add("recorder", recorder)
	if cfg.Alerts.ConsoleAlerts {
		handlers.Add("console", alert.NewConsoleHandler(os.Stdout))
	}
	if cfg.Alerts.FileAlerts {
		fh, err := alert.NewFileHandler(cfg.Alerts.Directory)
		if err != nil {
			log.WithError(err).Warn("File alerts disabled")
		} else {
			handlers.Add("file", fh)
		}
	}

	analyzer := scanner.NewFileAnalyzer(extractor, classifier, log)
	monCfg := monitor.Config{
		ScanInterval:     cfg.Monitoring.ScanInterval,
		MonitorFiles:     cfg.Monitoring.MonitorFiles,
		MonitorProcesses: cfg.Monitoring.MonitorProcesses,
		StopOnThreat:     cfg.Alerts.StopOnThreat,
		MaxSweeps:        cfg.Monitoring.MaxSweeps,
	}

	var dirScan monitor.DirectoryScanner
	if cfg.Monitoring.MonitorFiles {
		dirScan = scanner.NewDirectoryMonitor(scanner.DirectoryConfig{
			MaxFileSize:        cfg.Monitoring.MaxFileSize,
			ExcludedExtensions: cfg.Monitoring.ExcludedExtensions,
		}, analyzer, engine, handlers, log)
	}

	var procScan monitor.ProcessScanner
	if cfg.Monitoring.MonitorProcesses {
		lister, err := procmon.New(procmon.Config{}, log)
		if err != nil {
			log.WithError(err).Warn("Process monitoring disabled")
			monCfg.MonitorProcesses = false
		} else {
			procScan = scanner.NewProcessMonitor(lister, analyzer, engine, handlers, log)
		}
	}

	mon := monitor.New(monCfg, sess, dirScan, procScan, engine, log)
	if cfg.Monitoring.MonitorFiles && cfg.Monitoring.WatchEvents {
		w, err := dirwatch.New(dirwatch.Config{Directory: cfg.Monitoring.WatchDirectory}, log)
		if err != nil {
			log.WithError(err).Warn("Directory events unavailable, relying on the scan interval")
		} else {
			defer w.Close()
			mon = mon.WithWatcher(w)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	monCtx, monCancel := context.WithCancel(gctx)
	defer monCancel()

	g.Go(func() error {
		// The status server stops once the monitor is done.
		defer monCancel()
		return mon.Run(monCtx)
	})
	if cfg.StatusAddr != "" {
		srv := server.New(cfg.StatusAddr, sess, recorder, log)
		g.Go(func() error {
			return srv.Run(monCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Sensor stopped with error")
	}

	writeReport(log, cfg.Logging.Directory, mon.Report())
	log.Info("Sensor shutdown complete")
}

func writeReport(log *logrus.Logger, dir string, report detection.Report) {
	log.WithFields(logrus.Fields{
		"files_scanned":    report.Session.FilesScanned,
		"threats_detected": report.Session.ThreatsDetected,
		"alerts_generated": report.Session.AlertsGenerated,
		"total_threats":    report.Summary.TotalThreats,
	}).Info("Session report")

	if dir == "" {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.WithError(err).Warn("Failed to encode session report")
		return
	}
	path := filepath.Join(dir, "session_report.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.WithError(err).Warn("Failed to write session report")
	}
}
