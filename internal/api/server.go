package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecopulse/ecopulse/internal/advice"
	"github.com/ecopulse/ecopulse/internal/imagegen"
	"github.com/ecopulse/ecopulse/internal/metrics"
	"github.com/ecopulse/ecopulse/internal/scores"
	"github.com/ecopulse/ecopulse/internal/store"
)

type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	Advisor         *advice.Advisor
	CardCache       *imagegen.CardCache
	Logger          *slog.Logger
}

type Server struct {
	router          chi.Router
	store           *store.Store
	scores          *scores.Service
	advisor         *advice.Advisor
	cards           *imagegen.CardCache
	addr            string
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func NewServer(st *store.Store, svc *scores.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Advisor == nil {
		opts.Advisor = advice.NewAdvisor(nil, opts.Logger)
	}
	if opts.CardCache == nil {
		opts.CardCache = imagegen.NewCardCache(10*time.Minute, nil)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		router:          chi.NewRouter(),
		store:           st,
		scores:          svc,
		advisor:         opts.Advisor,
		cards:           opts.CardCache,
		addr:            opts.Addr,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          opts.Logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.instrument)

	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/cities", s.handleCities)
		r.Get("/scores/yearly", s.handleYearlyScores)
		r.Get("/scores/{year}", s.handleYearScores)
		r.Get("/daily/{city}", s.handleDailyToday)
		r.Get("/rankings/{year}", s.handleRankings)
		r.Get("/compare/{city}", s.handleCompare)
		r.Get("/analysis/{city}", s.handleAnalysis)
		r.Get("/cards/{city}", s.handleCard)
		r.Get("/ingest/runs", s.handleIngestRuns)
		r.Get("/ingest/runs/{id}/payload", s.handleIngestPayload)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", s.addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.APILatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "dur", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError logs err and answers with a fixed 500 message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}
