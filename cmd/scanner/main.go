// Command scanner analyzes the files named on the command line once and
// exits non-zero when any of them is a threat.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/config"
	"github.com/invisible-tech/keylogger-sensor/internal/detection"
	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/pkg/alert"
	"github.com/invisible-tech/keylogger-sensor/pkg/features"
	"github.com/invisible-tech/keylogger-sensor/pkg/model"
	"github.com/invisible-tech/keylogger-sensor/pkg/scanner"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s FILE...\n", os.Args[0])
		os.Exit(2)
	}
	os.Exit(run(os.Args[1:]))
}

func run(paths []string) int {

	log := logrus.New()
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

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
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create feature extractor")
	}

	engine := detection.NewEngine(cfg.DetectionThreshold())
	analyzer := scanner.NewFileAnalyzer(extractor, classifier, log)
	console := alert.NewConsoleHandler(os.Stdout)

	threats := 0
	for _, path := range paths {
		result, err := analyzer.AnalyzeFile(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Warn("Skipping file")
			continue
		}
		fmt.Printf("%s\t%s\t%.1f%%\n", path, result.ThreatLevel, result.Confidence*100)
		if !engine.ShouldAlert(*result) {
			continue
		}
		threats++
		event := types.NewAlertEvent(types.EventFileDetection, *result, nil)
		if err := console.HandleAlert(context.Background(), event); err != nil {
			log.WithError(err).Warn("Failed to print alert")
		}
	}

	if threats > 0 {
		return 1
	}
	return 0
}
