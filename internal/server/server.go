// Package server provides the local status endpoint of the sensor.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/keylogger-sensor/internal/types"
	"github.com/invisible-tech/keylogger-sensor/internal/version"
)

const (
	defaultAlertLimit = 100
	shutdownTimeout   = 5 * time.Second
)

// StatsSource provides the current session counters.
type StatsSource interface {
	Stats() types.SessionStats
}

// AlertSource provides the most recent alerts.
type AlertSource interface {
	Recent(limit int) []types.AlertEvent
}

// Server is the HTTP status server.
type Server struct {
	addr       string
	stats      StatsSource
	alerts     AlertSource
	log        *logrus.Logger
	httpServer *http.Server
}

// New creates a status server listening on addr.
func New(addr string, stats StatsSource, alerts AlertSource, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{addr: addr, stats: stats, alerts: alerts, log: log}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/alerts", s.handleAlerts)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("Status server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": version.String(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := s.stats.Stats()
	writeJSON(w, map[string]interface{}{
		"watch_directory":  st.WatchDirectory,
		"start_time":       st.StartTime.UTC().Format(time.RFC3339),
		"duration_seconds": st.Duration.Seconds(),
		"files_scanned":    st.FilesScanned,
		"threats_detected": st.ThreatsDetected,
		"alerts_generated": st.AlertsGenerated,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recent := s.alerts.Recent(limit)
	out := make([]map[string]interface{}, 0, len(recent))
	for _, a := range recent {
		out = append(out, a.ToMap())
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
