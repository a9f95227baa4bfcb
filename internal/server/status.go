package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type connectionStatus struct {
	ID          int       `json:"id"`
	Session     string    `json:"session"`
	Remote      string    `json:"remote"`
	Name        string    `json:"name,omitempty"`
	Approved    bool      `json:"approved"`
	Active      bool      `json:"active"`
	ConnectedAt time.Time `json:"connected_at"`
}

// StatusHandler serves read-only JSON status:
//
//	GET /healthz      network state
//	GET /metrics      counters
//	GET /connections  registered clients
func (s *Server) StatusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/connections", s.handleConnections)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.State()
	code := http.StatusOK
	if state != Running {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"state":       state.String(),
		"connections": s.registry.Len(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tick":    s.engine.CurrentTick(),
		"metrics": s.metrics.Snapshot(),
	})
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.registry.Snapshot()
	out := make([]connectionStatus, len(conns))
	for i, c := range conns {
		st := c.State()
		out[i] = connectionStatus{
			ID:          c.ID,
			Session:     c.Session.String(),
			Remote:      c.RemoteAddr.String(),
			Name:        st.Name,
			Approved:    st.Approved,
			Active:      st.Active,
			ConnectedAt: c.ConnectedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// serveStatus runs the status endpoint until ctx is done.
func (s *Server) serveStatus(ctx context.Context) error {
	log := s.log.Named("status")
	srv := &http.Server{
		Addr:              s.cfg.StatusAddr,
		Handler:           s.StatusHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("status endpoint listening", zap.String("addr", s.cfg.StatusAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("status endpoint failed", zap.Error(err))
		return err
	}
	return nil
}
