// Package server wires the throttled data endpoint and the static fallback
// into one HTTP surface.
package server

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voluma/slowserve/internal/bandwidth"
	"github.com/voluma/slowserve/internal/config"
	"github.com/voluma/slowserve/internal/obs"
)

type Server struct {
	Server *http.Server

	bucket  *bandwidth.Bucket
	dataDir string
	log     zerolog.Logger
	metrics *obs.Metrics

	// open is the byte-source factory, replaceable in tests to exercise
	// storage failures.
	open func(path string) (io.ReadCloser, error)
}

// New assembles the full handler: the /data/ subtree streams through the
// shared bucket, /healthz and the prometheus path serve ops traffic, and
// every other path falls back to conventional static serving rooted at the
// data root.
func New(cfg *config.Root, bucket *bandwidth.Bucket, logger zerolog.Logger, reg *prometheus.Registry) *Server {
	s := &Server{
		bucket:  bucket,
		dataDir: filepath.Join(cfg.Data.Root, "data"),
		log:     logger,
		metrics: obs.NewMetrics(reg),
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}

	skip := map[string]struct{}{
		"/healthz":                       {},
		cfg.Observability.PrometheusPath: {},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/data/", s.handleData)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.Handle(cfg.Observability.PrometheusPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", http.FileServer(http.Dir(cfg.Data.Root)))

	handler := Chain(
		mux,
		obs.Logger(logger, skip),
		s.metrics.Middleware(skip),
	)

	s.Server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}
	return s
}

// Handler exposes the assembled handler for tests.
func (s *Server) Handler() http.Handler { return s.Server.Handler }
