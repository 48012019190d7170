package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/ghdisco/pkg/buildinfo"
	"github.com/matzehuels/ghdisco/pkg/observability"
)

// statusServer exposes run counters over HTTP while a command runs.
type statusServer struct {
	srv *http.Server
	ln  net.Listener
}

// statusRouter serves GET /healthz and GET /stats.
func statusRouter(counters *observability.Counters, runID string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": buildinfo.Version})
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(struct {
			RunID string `json:"run_id"`
			observability.Snapshot
		}{runID, counters.Snapshot()})
	})
	return r
}

// startStatusServer listens on addr and serves until ctx ends or Stop.
func startStatusServer(ctx context.Context, addr string, counters *observability.Counters, runID string, logger *log.Logger) (*statusServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &statusServer{
		srv: &http.Server{Handler: statusRouter(counters, runID), ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("status server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return s, nil
}

// Addr returns the bound address.
func (s *statusServer) Addr() string { return s.ln.Addr().String() }

// Stop shuts the server down.
func (s *statusServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
