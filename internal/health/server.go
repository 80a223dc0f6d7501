// Package health serves the process liveness endpoint. It reports only that
// the process event loop is alive; session state, pause state, and group
// resolution are deliberately not reflected here.
package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"kelasbot/pkg/logx"
)

type Config struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type Server struct {
	cfg   Config
	log   logx.Logger
	bound atomic.Value // string
}

// BoundAddr reports the listening address once Start has bound, "" before.
func (s *Server) BoundAddr() string {
	v, _ := s.bound.Load().(string)
	return v
}

func New(cfg Config, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return &Server{cfg: cfg, log: log}
}

// Start blocks until ctx is cancelled. When the server is disabled it parks
// on ctx so callers can treat enabled and disabled uniformly.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		<-ctx.Done()
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.bound.Store(ln.Addr().String())
	s.log.Info("health server listening", logx.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
