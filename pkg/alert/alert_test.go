package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/pkg/procmon"
)

func fileEvent() types.AlertEvent {
	ev := types.NewAlertEvent(types.EventFileDetection, types.DetectionResult{
		FilePath:     "/home/u/Downloads/keylog.exe",
		ThreatLevel:  types.ThreatMalicious,
		Confidence:   0.93,
		ModelVersion: "1.0.0",
		Features:     types.FeatureRecord{FileSize: 2 << 20, ContentHash: "abc"},
	}, nil)
	ev.Timestamp = time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	return ev
}

func processEvent() types.AlertEvent {
	ev := types.NewAlertEvent(types.EventProcessDetection, types.DetectionResult{
		FilePath:    "/opt/hook/hook.exe",
		ThreatLevel: types.ThreatSuspicious,
		Confidence:  0.71,
	}, &types.ProcessInfo{PID: 4242, Name: "hook.exe", ExePath: "/opt/hook/hook.exe", Cmdline: "hook.exe --silent"})
	ev.Timestamp = time.Date(2024, 5, 1, 10, 31, 0, 0, time.Local)
	return ev
}

func failing(msg string) Handler {
	return HandlerFunc(func(context.Context, types.AlertEvent) error { return errors.New(msg) })
}

func TestComposite_ContinuesAfterFailure(t *testing.T) {
	rec := NewRecorder(10)
	c := NewComposite(logrus.New()).
		Add("broken", failing("disk full")).
		Add("recorder", rec)

	err := c.HandleAlert(context.Background(), fileEvent())
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.Len())
	assert.Equal(t, 2, c.Len())
}

func TestComposite_AllFail(t *testing.T) {
	c := NewComposite(logrus.New()).
		Add("a", failing("first")).
		Add("b", failing("second"))

	err := c.HandleAlert(context.Background(), fileEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: first")
	assert.Contains(t, err.Error(), "b: second")
}

func TestComposite_Empty(t *testing.T) {
	err := NewComposite(logrus.New()).HandleAlert(context.Background(), fileEvent())
	assert.ErrorIs(t, err, ErrNoHandlers)
}

func TestFormatSummary(t *testing.T) {
	ev := fileEvent()
	assert.Equal(t,
		"[2024-05-01 10:30:00] [ALERT-FILE] File: /home/u/Downloads/keylog.exe | Confidence: 0.93 | Level: malicious | ID: "+ev.EventID,
		FormatSummary(ev))

	pev := processEvent()
	assert.Equal(t,
		"[2024-05-01 10:31:00] [ALERT-PROCESS] Process: hook.exe (PID 4242) | Path: /opt/hook/hook.exe | Confidence: 0.71 | ID: "+pev.EventID,
		FormatSummary(pev))
}

func TestFileHandler(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "alerts")
	h, err := NewFileHandler(dir)
	require.NoError(t, err)

	ev := fileEvent()
	require.NoError(t, h.HandleAlert(context.Background(), ev))
	require.NoError(t, h.HandleAlert(context.Background(), processEvent()))

	summary, err := os.ReadFile(filepath.Join(dir, SummaryLogName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(summary)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[ALERT-FILE]")
	assert.Contains(t, lines[1], "[ALERT-PROCESS]")

	detailed, err := os.ReadFile(filepath.Join(dir, DetailedLogName))
	require.NoError(t, err)
	jsonLines := strings.Split(strings.TrimSpace(string(detailed)), "\n")
	require.Len(t, jsonLines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(jsonLines[0]), &first))
	assert.Equal(t, ev.EventID, first["event_id"])
	assert.Equal(t, "file_detection", first["event_type"])
	assert.Equal(t, "CRITICAL", first["severity"])
	assert.Equal(t, "malicious", first["threat_level"])
	assert.Nil(t, first["process_info"])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(jsonLines[1]), &second))
	proc, ok := second["process_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4242), proc["pid"])
}

func TestFileHandler_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	h, err := NewFileHandler(dir)
	require.NoError(t, err)
	// A directory where the log file should be makes the append fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, SummaryLogName), 0o755))

	assert.Error(t, h.HandleAlert(context.Background(), fileEvent()))
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf)

	require.NoError(t, h.HandleAlert(context.Background(), fileEvent()))
	out := buf.String()
	assert.Contains(t, out, "THREAT DETECTED [CRITICAL]")
	assert.Contains(t, out, "/home/u/Downloads/keylog.exe")
	assert.Contains(t, out, "93.0%")
	assert.Contains(t, out, "2.1 MB")

	buf.Reset()
	require.NoError(t, h.HandleAlert(context.Background(), processEvent()))
	assert.Contains(t, buf.String(), "hook.exe (PID 4242)")
}

func TestLogHandler_Levels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := NewLogHandler(logger)

	require.NoError(t, h.HandleAlert(context.Background(), fileEvent()))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "/home/u/Downloads/keylog.exe", hook.LastEntry().Data["file_path"])
	assert.Equal(t, "abc", hook.LastEntry().Data["content_hash"])

	require.NoError(t, h.HandleAlert(context.Background(), processEvent()))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, 4242, hook.LastEntry().Data["process_pid"])
	assert.Equal(t, procmon.CmdlineHash("hook.exe --silent"), hook.LastEntry().Data["cmdline_hash"])
	assert.NotContains(t, hook.AllEntries()[0].Data, "cmdline_hash")
	assert.Len(t, hook.AllEntries(), 2)
}

func TestRecorder_Retention(t *testing.T) {
	r := NewRecorder(3)
	var ids []string
	for i := 0; i < 5; i++ {
		ev := fileEvent()
		ids = append(ids, ev.EventID)
		require.NoError(t, r.HandleAlert(context.Background(), ev))
	}

	assert.Equal(t, 3, r.Len())
	all := r.Recent(0)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].EventID)
	assert.Equal(t, ids[4], all[2].EventID)

	last := r.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, ids[4], last[0].EventID)

	assert.Len(t, NewRecorder(0).Recent(10), 0)
}
