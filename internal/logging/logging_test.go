package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"DEBUG", logrus.DebugLevel, false},
		{"info", logrus.InfoLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"WARNING", logrus.WarnLevel, false},
		{"ERROR", logrus.ErrorLevel, false},
		{"", logrus.InfoLevel, false},
		{"LOUD", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_FileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, closer, err := New(config.LoggingConfig{
		Directory:     dir,
		Level:         "DEBUG",
		ConsoleOutput: false,
		FileOutput:    true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.WithField("path", "/tmp/a.exe").Debug("analyzed")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "analyzed" || entry["path"] != "/tmp/a.exe" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNew_FailingFileSinkKeepsConsole(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	log, closer, err := New(config.LoggingConfig{
		Directory:     filepath.Join(blocker, "logs"),
		Level:         "INFO",
		ConsoleOutput: true,
		FileOutput:    true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()
	if len(log.Hooks[logrus.InfoLevel]) != 0 {
		t.Error("file hook should not be installed")
	}
	if log.Out != os.Stderr {
		t.Error("console output should remain enabled")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, _, err := New(config.LoggingConfig{Level: "LOUD"}); err == nil {
		t.Error("expected error for invalid level")
	}
}
