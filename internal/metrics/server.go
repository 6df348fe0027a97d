package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a run's registry for scraping while the run is in
// progress.
type Server struct {
	ln  net.Listener
	srv *http.Server
}

// Serve starts listening on addr ("127.0.0.1:0" picks a free port) and
// serves /metrics and /healthz in the background.
func (r *Run) Serve(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s := &Server{ln: ln, srv: &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
	go func() { _ = s.srv.Serve(ln) }()
	return s, nil
}

func (s *Server) Addr() string                       { return s.ln.Addr().String() }
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
