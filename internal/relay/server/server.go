package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/op/go-logging.v1"

	"paircrypt/internal/domain"
	"paircrypt/internal/relay"
)

const maxBodyBytes = 1 << 20

// Server serves the relay HTTP API over a Spool.
type Server struct {
	spool   *Spool
	log     *logging.Logger
	reg     *prometheus.Registry
	metrics *metrics
	mux     *http.ServeMux
}

// New returns a Server over spool. Metrics are kept in a registry private to
// the server and exposed at /metrics.
func New(spool *Spool, log *logging.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	s := &Server{
		spool:   spool,
		log:     log,
		reg:     reg,
		metrics: newMetrics(reg),
		mux:     http.NewServeMux(),
	}
	depth, err := spool.Depth()
	if err != nil {
		return nil, err
	}
	s.metrics.queued.Set(float64(depth))

	s.mux.HandleFunc("POST /bundle", s.handlePublishBundle)
	s.mux.HandleFunc("GET /bundle/{device}", s.handleFetchBundle)
	s.mux.HandleFunc("POST /msg/{device}", s.handleSend)
	s.mux.HandleFunc("GET /msg/{device}", s.handleFetch)
	s.mux.HandleFunc("POST /msg/{device}/ack", s.handleAck)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s, nil
}

// Handler returns the HTTP handler with access logging.
func (s *Server) Handler() http.Handler {
	return s.accessLog(s.mux)
}

// RunPurger drops expired envelopes every interval until ctx is done.
func (s *Server) RunPurger(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.purge()
		}
	}
}

func (s *Server) purge() {
	n, err := s.spool.Purge()
	if err != nil {
		s.log.Errorf("purge: %v", err)
		return
	}
	if n > 0 {
		s.log.Infof("purged %d expired envelopes", n)
		s.metrics.expired.Add(float64(n))
		s.metrics.queued.Sub(float64(n))
	}
}

func (s *Server) handlePublishBundle(w http.ResponseWriter, r *http.Request) {
	var b domain.PreKeyBundle
	if !decodeBody(w, r, &b) {
		return
	}
	if b.DeviceID == "" || b.IdentityKey.IsZero() || b.SignedPreKey.IsZero() {
		http.Error(w, "incomplete bundle", http.StatusBadRequest)
		return
	}
	if err := s.spool.PutBundle(b); err != nil {
		s.internalError(w, "store bundle", err)
		return
	}
	s.metrics.bundlesPublished.Inc()
	s.log.Infof("bundle published for %s with %d one-time pre-keys", b.DeviceID, len(b.OneTimePreKeys))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetchBundle(w http.ResponseWriter, r *http.Request) {
	device := domain.DeviceID(r.PathValue("device"))
	b, ok, err := s.spool.TakeBundle(device)
	if err != nil {
		s.internalError(w, "load bundle", err)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.metrics.bundlesServed.WithLabelValues(strconv.FormatBool(len(b.OneTimePreKeys) > 0)).Inc()
	if len(b.OneTimePreKeys) == 0 {
		s.log.Warningf("bundle for %s served without a one-time pre-key", device)
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	device := domain.DeviceID(r.PathValue("device"))
	var env domain.Envelope
	if !decodeBody(w, r, &env) {
		return
	}
	if env.To == "" {
		env.To = device
	}
	if env.To != device || env.From == "" {
		s.metrics.rejected.WithLabelValues("malformed").Inc()
		http.Error(w, "envelope addressing mismatch", http.StatusBadRequest)
		return
	}
	stored, err := s.spool.Enqueue(env)
	switch {
	case errors.Is(err, ErrQueueFull):
		s.metrics.rejected.WithLabelValues("queue_full").Inc()
		http.Error(w, err.Error(), http.StatusInsufficientStorage)
		return
	case err != nil:
		s.internalError(w, "enqueue", err)
		return
	}
	s.metrics.enqueued.Inc()
	s.metrics.queued.Inc()
	s.log.Debugf("queued %s from %s to %s", stored.ID, stored.From, stored.To)
	writeJSON(w, http.StatusAccepted, map[string]domain.EnvelopeID{"id": stored.ID})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	device := domain.DeviceID(r.PathValue("device"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	envs, expired, err := s.spool.Fetch(device, limit)
	if err != nil {
		s.internalError(w, "fetch", err)
		return
	}
	if expired > 0 {
		s.metrics.expired.Add(float64(expired))
		s.metrics.queued.Sub(float64(expired))
	}
	if envs == nil {
		envs = []domain.Envelope{}
	}
	writeJSON(w, http.StatusOK, envs)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	device := domain.DeviceID(r.PathValue("device"))
	var req relay.AckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Through == "" {
		http.Error(w, "missing envelope id", http.StatusBadRequest)
		return
	}
	n, err := s.spool.Ack(device, req.Through)
	if err != nil {
		s.internalError(w, "ack", err)
		return
	}
	s.metrics.acked.Add(float64(n))
	s.metrics.queued.Sub(float64(n))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.log.Errorf("%s: %v", what, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.log.Debugf("%s %s %s %d %dB %s", r.Method, r.URL.Path, r.RemoteAddr, rec.status, rec.bytes, time.Since(start))
	})
}
