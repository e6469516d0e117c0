package alert

import (
	"context"
	"sync"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
)

// DefaultRetention is the number of alerts a Recorder keeps by default.
const DefaultRetention = 1000

// Recorder keeps the most recent alerts in memory for the status API.
type Recorder struct {
	mu        sync.RWMutex
	alerts    []types.AlertEvent
	retention int
}

func NewRecorder(retention int) *Recorder {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{retention: retention}
}

func (r *Recorder) HandleAlert(_ context.Context, event types.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, event)
	if len(r.alerts) > r.retention {
		r.alerts = append([]types.AlertEvent(nil), r.alerts[len(r.alerts)-r.retention:]...)
	}
	return nil
}

// Recent returns up to limit of the newest alerts, oldest first. A limit
// of 0 or less returns all retained alerts.
func (r *Recorder) Recent(limit int) []types.AlertEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.alerts)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.AlertEvent, limit)
	copy(out, r.alerts[n-limit:])
	return out
}

// Len returns the number of retained alerts.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}
