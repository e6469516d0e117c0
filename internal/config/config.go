// Package config provides configuration loading from profile defaults, an
// optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Deployment profiles.
const (
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
// A bare integer is read as seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetEnvFloat returns the float for key, or defaultValue if unset/invalid.
func GetEnvFloat(key string, defaultValue float64) float64 {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// GetEnvInt64 returns the integer for key, or defaultValue if unset/invalid.
func GetEnvInt64(key string, defaultValue int64) int64 {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvBool returns the boolean for key, or defaultValue if unset/invalid.
func GetEnvBool(key string, defaultValue bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetEnvList returns the comma-separated list for key, or defaultValue if unset.
func GetEnvList(key string, defaultValue []string) []string {
	s := os.Getenv(key)
	if strings.TrimSpace(s) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ModelConfig locates the classifier artifacts.
type ModelConfig struct {
	ModelPath       string  `yaml:"model_path"`
	FeaturesPath    string  `yaml:"features_path"`
	LabelsPath      string  `yaml:"labels_path"`
	RuntimeLibrary  string  `yaml:"runtime_library"`
	ThreatThreshold float64 `yaml:"threat_threshold"`
	Version         string  `yaml:"version"`
}

// MonitoringConfig controls the sweep loop.
type MonitoringConfig struct {
	WatchDirectory     string        `yaml:"watch_directory"`
	ScanInterval       time.Duration `yaml:"scan_interval"`
	MonitorProcesses   bool          `yaml:"monitor_processes"`
	MonitorFiles       bool          `yaml:"monitor_files"`
	WatchEvents        bool          `yaml:"watch_events"`
	MaxFileSize        int64         `yaml:"max_file_size"`
	ExcludedExtensions []string      `yaml:"excluded_extensions"`
	HashAlgorithm      string        `yaml:"hash_algorithm"`
	FeatureCacheSize   int           `yaml:"feature_cache_size"`
	MaxSweeps          int           `yaml:"max_sweeps"`
	StateDB            string        `yaml:"state_db"`
}

// LoggingConfig controls the operational log sinks.
type LoggingConfig struct {
	Directory     string `yaml:"log_directory"`
	Level         string `yaml:"log_level"`
	ConsoleOutput bool   `yaml:"console_output"`
	FileOutput    bool   `yaml:"file_output"`
	JSON          bool   `yaml:"json"`
}

// AlertConfig controls the alert sinks.
type AlertConfig struct {
	Directory     string  `yaml:"alert_directory"`
	ConsoleAlerts bool    `yaml:"console_alerts"`
	FileAlerts    bool    `yaml:"file_alerts"`
	StopOnThreat  bool    `yaml:"stop_on_threat"`
	Threshold     float64 `yaml:"alert_threshold"`
	RecentAlerts  int     `yaml:"recent_alerts"`
}

// Config is the full agent configuration.
type Config struct {
	Profile    string           `yaml:"profile"`
	Model      ModelConfig      `yaml:"model"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Alerts     AlertConfig      `yaml:"alerts"`
	StatusAddr string           `yaml:"status_addr"`
}

// Default returns the base configuration rooted at baseDir.
func Default(baseDir string) Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	logs := filepath.Join(baseDir, "logs")
	return Config{
		Profile: ProfileProduction,
		Model: ModelConfig{
			ModelPath:       filepath.Join(baseDir, "models", "keylogger_model.onnx"),
			FeaturesPath:    filepath.Join(baseDir, "models", "keylogger_model_features.json"),
			LabelsPath:      filepath.Join(baseDir, "models", "label_classes.json"),
			ThreatThreshold: 0.6,
			Version:         "1.0.0",
		},
		Monitoring: MonitoringConfig{
			WatchDirectory:     filepath.Join(home, "Downloads"),
			ScanInterval:       10 * time.Second,
			MonitorProcesses:   true,
			MonitorFiles:       true,
			WatchEvents:        true,
			MaxFileSize:        100 * 1024 * 1024,
			ExcludedExtensions: []string{".log", ".tmp", ".temp", ".cache"},
			HashAlgorithm:      "md5",
			FeatureCacheSize:   512,
		},
		Logging: LoggingConfig{
			Directory:     logs,
			Level:         "INFO",
			ConsoleOutput: true,
			FileOutput:    true,
		},
		Alerts: AlertConfig{
			Directory:     logs,
			ConsoleAlerts: true,
			FileAlerts:    true,
			Threshold:     0.6,
			RecentAlerts:  1000,
		},
		StatusAddr: "127.0.0.1:9464",
	}
}

// ForProfile returns the defaults adjusted for a deployment profile.
func ForProfile(profile, baseDir string) Config {
	cfg := Default(baseDir)
	switch strings.ToLower(profile) {
	case ProfileDevelopment, "dev":
		cfg.Profile = ProfileDevelopment
		cfg.Logging.Level = "DEBUG"
		cfg.Logging.ConsoleOutput = true
		cfg.Alerts.ConsoleAlerts = true
		cfg.Alerts.StopOnThreat = true
		cfg.Model.ThreatThreshold = 0.5
		cfg.Alerts.Threshold = 0.5
	default:
		cfg.Profile = ProfileProduction
		cfg.Logging.Level = "INFO"
		cfg.Logging.ConsoleOutput = false
		cfg.Alerts.ConsoleAlerts = false
		cfg.Alerts.StopOnThreat = false
		cfg.Model.ThreatThreshold = 0.7
		cfg.Alerts.Threshold = 0.7
		cfg.Monitoring.ScanInterval = 30 * time.Second
	}
	return cfg
}

// Load builds the configuration: profile defaults, then the YAML file named
// by CONFIG_FILE, then the environment (after loading .env if present).
func Load() (Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := ForProfile(GetEnv("PROFILE", ProfileProduction), GetEnv("BASE_DIR", "."))
	if path := GetEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Model.ModelPath = GetEnv("MODEL_PATH", c.Model.ModelPath)
	c.Model.FeaturesPath = GetEnv("FEATURES_PATH", c.Model.FeaturesPath)
	c.Model.LabelsPath = GetEnv("LABELS_PATH", c.Model.LabelsPath)
	c.Model.RuntimeLibrary = GetEnv("ONNXRUNTIME_LIB", c.Model.RuntimeLibrary)
	c.Model.ThreatThreshold = GetEnvFloat("THREAT_THRESHOLD", c.Model.ThreatThreshold)
	c.Model.Version = GetEnv("MODEL_VERSION", c.Model.Version)

	c.Monitoring.WatchDirectory = GetEnv("WATCH_DIRECTORY", c.Monitoring.WatchDirectory)
	c.Monitoring.ScanInterval = GetEnvDuration("SCAN_INTERVAL", c.Monitoring.ScanInterval)
	c.Monitoring.MonitorProcesses = GetEnvBool("MONITOR_PROCESSES", c.Monitoring.MonitorProcesses)
	c.Monitoring.MonitorFiles = GetEnvBool("MONITOR_FILES", c.Monitoring.MonitorFiles)
	c.Monitoring.WatchEvents = GetEnvBool("WATCH_EVENTS", c.Monitoring.WatchEvents)
	c.Monitoring.MaxFileSize = GetEnvInt64("MAX_FILE_SIZE", c.Monitoring.MaxFileSize)
	c.Monitoring.ExcludedExtensions = GetEnvList("EXCLUDED_EXTENSIONS", c.Monitoring.ExcludedExtensions)
	c.Monitoring.HashAlgorithm = GetEnv("HASH_ALGORITHM", c.Monitoring.HashAlgorithm)
	c.Monitoring.FeatureCacheSize = int(GetEnvInt64("FEATURE_CACHE_SIZE", int64(c.Monitoring.FeatureCacheSize)))
	c.Monitoring.MaxSweeps = int(GetEnvInt64("MAX_SWEEPS", int64(c.Monitoring.MaxSweeps)))
	c.Monitoring.StateDB = GetEnv("STATE_DB", c.Monitoring.StateDB)

	c.Logging.Directory = GetEnv("LOG_DIRECTORY", c.Logging.Directory)
	c.Logging.Level = GetEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.ConsoleOutput = GetEnvBool("LOG_CONSOLE", c.Logging.ConsoleOutput)
	c.Logging.FileOutput = GetEnvBool("LOG_FILE", c.Logging.FileOutput)
	c.Logging.JSON = GetEnvBool("LOG_JSON", c.Logging.JSON)

	c.Alerts.Directory = GetEnv("ALERT_DIRECTORY", c.Alerts.Directory)
	c.Alerts.ConsoleAlerts = GetEnvBool("ALERT_CONSOLE", c.Alerts.ConsoleAlerts)
	c.Alerts.FileAlerts = GetEnvBool("ALERT_FILE", c.Alerts.FileAlerts)
	c.Alerts.StopOnThreat = GetEnvBool("STOP_ON_THREAT", c.Alerts.StopOnThreat)
	c.Alerts.Threshold = GetEnvFloat("ALERT_THRESHOLD", c.Alerts.Threshold)
	c.Alerts.RecentAlerts = int(GetEnvInt64("RECENT_ALERTS", int64(c.Alerts.RecentAlerts)))

	if v, ok := os.LookupEnv("STATUS_ADDR"); ok {
		c.StatusAddr = strings.TrimSpace(v)
	}
}

// normalize lowercases extensions and makes sure each has a leading dot.
func (c *Config) normalize() {
	exts := make([]string, 0, len(c.Monitoring.ExcludedExtensions))
	for _, e := range c.Monitoring.ExcludedExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	c.Monitoring.ExcludedExtensions = exts
	c.Monitoring.HashAlgorithm = strings.ToLower(c.Monitoring.HashAlgorithm)
}

// DetectionThreshold is the confidence cutoff handed to the detection engine.
// Raising either the threat or the alert threshold makes detection stricter.
func (c Config) DetectionThreshold() float64 {
	if c.Alerts.Threshold > c.Model.ThreatThreshold {
		return c.Alerts.Threshold
	}
	return c.Model.ThreatThreshold
}

// Validate checks the configuration and returns human-readable problems.
func (c Config) Validate() []string {
	var problems []string

	if !fileExists(c.Model.ModelPath) {
		problems = append(problems, fmt.Sprintf("model file does not exist: %s", c.Model.ModelPath))
	}
	if !fileExists(c.Model.FeaturesPath) {
		problems = append(problems, fmt.Sprintf("features file does not exist: %s", c.Model.FeaturesPath))
	}
	if c.Model.LabelsPath != "" && !fileExists(c.Model.LabelsPath) {
		problems = append(problems, fmt.Sprintf("labels file does not exist: %s", c.Model.LabelsPath))
	}
	if c.Model.ThreatThreshold < 0 || c.Model.ThreatThreshold > 1 {
		problems = append(problems, fmt.Sprintf("threat threshold must be between 0.0 and 1.0: %v", c.Model.ThreatThreshold))
	}

	if c.Monitoring.MonitorFiles {
		if info, err := os.Stat(c.Monitoring.WatchDirectory); err != nil || !info.IsDir() {
			problems = append(problems, fmt.Sprintf("watch directory does not exist: %s", c.Monitoring.WatchDirectory))
		}
	}
	if c.Monitoring.ScanInterval <= 0 {
		problems = append(problems, fmt.Sprintf("scan interval must be positive: %v", c.Monitoring.ScanInterval))
	}
	if c.Monitoring.MaxFileSize <= 0 {
		problems = append(problems, fmt.Sprintf("max file size must be positive: %d", c.Monitoring.MaxFileSize))
	}
	switch c.Monitoring.HashAlgorithm {
	case "md5", "sha256":
	default:
		problems = append(problems, fmt.Sprintf("hash algorithm must be md5 or sha256: %q", c.Monitoring.HashAlgorithm))
	}

	if c.Alerts.Threshold < 0 || c.Alerts.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("alert threshold must be between 0.0 and 1.0: %v", c.Alerts.Threshold))
	}
	return problems
}

// Err returns the validation problems as a single aggregate error, or nil.
func (c Config) Err() error {
	problems := c.Validate()
	errs := make([]error, 0, len(problems))
	for _, p := range problems {
		errs = append(errs, errors.New(p))
	}
	return utilerrors.NewAggregate(errs)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
