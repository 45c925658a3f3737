package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voluma/slowserve/internal/bandwidth"
)

// handleData streams one file from the data directory through the shared
// bucket. It owns the whole /data/ subtree so no method or multi-segment
// path can fall through to the unthrottled static handler. Existence is
// checked before committing to a status; once the first chunk is written the
// status line is on the wire and failures can only be signalled by dropping
// the connection.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/data/")

	path, ok := s.resolve(name)
	if !ok {
		s.log.Warn().
			Str("name", name).
			Str("remote", r.RemoteAddr).
			Msg("rejected data path outside root")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("path", path).Msg("stat data file")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if fi.IsDir() {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))

	// HEAD gets the metadata without spending a second of bucket budget
	// per megabyte on bytes net/http would discard.
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	f, err := s.open(path)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("open data file")
		w.Header().Del("Content-Length")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	sid := uuid.NewString()
	log := s.log.With().
		Str("session", sid).
		Str("file", name).
		Int64("size", fi.Size()).
		Logger()
	log.Debug().Int64("cap_bps", s.bucket.Rate()).Msg("transfer start")

	s.metrics.ActiveTransfers.Inc()
	defer s.metrics.ActiveTransfers.Dec()

	start := time.Now()
	written, err := bandwidth.Pump(r.Context(), w, f, s.bucket)
	s.metrics.BytesSentTotal.Add(float64(written))

	switch {
	case err == nil:
		s.metrics.TransferDuration.Observe(time.Since(start).Seconds())
		log.Debug().
			Int64("bytes", written).
			Dur("dur", time.Since(start)).
			Msg("transfer complete")

	case isClientGone(err):
		// Expected client behavior, not a server fault.
		log.Info().Int64("bytes", written).Msg("client went away")

	default:
		// Source-side failure. Before the first byte the status can still
		// be corrected; mid-stream the only honest signal is dropping the
		// connection.
		log.Error().Err(err).Int64("bytes", written).Msg("transfer failed")
		if written == 0 {
			w.Header().Del("Content-Length")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		panic(http.ErrAbortHandler)
	}
}

// resolve maps a requested name to a path under the data directory. Names
// with separators or traversal segments are refused, and the joined path is
// re-checked for containment.
func (s *Server) resolve(name string) (string, bool) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	path := filepath.Join(s.dataDir, name)
	if filepath.Dir(path) != filepath.Clean(s.dataDir) {
		return "", false
	}
	return path, true
}

func isClientGone(err error) bool {
	var sink *bandwidth.SinkError
	return errors.As(err, &sink) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
