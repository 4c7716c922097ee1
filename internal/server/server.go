// Package server exposes listing, preview, catalog lookup and merging over
// HTTP. Merges are serialized: one runs at a time and later requests wait.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/catalog"
	"github.com/backmassage/dramamerge/internal/config"
	"github.com/backmassage/dramamerge/internal/logging"
	"github.com/backmassage/dramamerge/internal/merge"
	"github.com/backmassage/dramamerge/internal/pipeline"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxBodyBytes      = 1 << 20
)

// Catalog is the lookup surface used by the API: search for name
// correction plus details for summaries.
type Catalog interface {
	pipeline.ShowFinder
	catalog.Source
}

// Server holds the router and the shared state of the API.
type Server struct {
	cfg     *config.Config
	log     zerolog.Logger
	deps    pipeline.Deps
	catalog Catalog
	mergeMu sync.Mutex
	router  chi.Router
}

// New builds a Server. cat may be nil when no catalog API key is
// configured; deps.Finder is then ignored too.
func New(cfg *config.Config, log zerolog.Logger, deps pipeline.Deps, cat Catalog) *Server {
	if cat != nil {
		deps.Finder = cat
	} else {
		deps.Finder = nil
	}
	s := &Server{
		cfg:     cfg,
		log:     log.With().Str(logging.FieldComponent, "server").Logger(),
		deps:    deps,
		catalog: cat,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.deps.Recorder != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Recorder.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if n := s.cfg.Server.RequestsPerMinute; n > 0 {
			r.Use(rateLimit(n, time.Minute))
		}
		r.Get("/files", s.handleFiles)
		r.Get("/preview", s.handlePreview)
		r.Get("/catalog", s.handleCatalog)
		r.Post("/merge", s.handleMerge)
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully. A merge in flight delays shutdown up to the timeout.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("HTTP server shutdown error")
		return err
	}
	return <-errCh
}

// runner builds a request-scoped runner so each API call gets its own run
// ID and its own copy of the thresholds.
func (s *Server) runner(r *http.Request) *pipeline.Runner {
	log := s.log.With().Str(logging.FieldRequestID, chimw.GetReqID(r.Context())).Logger()
	return pipeline.NewRunner(s.cfg, log, s.deps)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	l, err := s.runner(r).List(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := pipeline.Request{
		SourceDir: q.Get("dir"),
		OutputDir: q.Get("output"),
		ShowName:  q.Get("show"),
		Season:    q.Get("season"),
		Episode:   q.Get("episode"),
	}
	p, err := s.runner(r).Preview(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, catalog.ErrNoAPIKey)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, fmt.Errorf("%w: q is required", pipeline.ErrInvalidRequest))
		return
	}
	show, err := s.catalog.SearchTV(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if show == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Detail: "no show matches " + strconv.Quote(q)})
		return
	}
	sum, err := catalog.Summarize(r.Context(), s.catalog, show, s.log)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", pipeline.ErrInvalidRequest, err))
		return
	}

	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	started := time.Now()
	run := s.runner(r)
	o, err := run.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = run.Record("serve", started, []*pipeline.JobOutcome{o})

	status := http.StatusOK
	if o.Err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, o)
}

// requestID tags each request with the caller's X-Request-Id or a fresh
// UUID, stored where chi's GetReqID finds it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(chimw.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(chimw.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str(logging.FieldRequestID, chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str(logging.FieldPath, r.URL.Path).
			Int("status", ww.Status()).
			Dur(logging.FieldElapsed, time.Since(start)).
			Msg("request")
	})
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:  "rate_limit_exceeded",
				Detail: "Too many requests. Please try again later.",
			})
		}),
	)
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// writeError maps sentinel errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, merge.ErrDirectory):
		status, code = http.StatusNotFound, "directory"
	case errors.Is(err, catalog.ErrNoAPIKey):
		status, code = http.StatusServiceUnavailable, "catalog_disabled"
	case errors.Is(err, catalog.ErrUpstream):
		status, code = http.StatusBadGateway, "catalog_upstream"
	}
	writeJSON(w, status, errorBody{Error: code, Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
