package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coldbell/mango-v4-go/internal/config"
	"github.com/coldbell/mango-v4-go/internal/logtrace"
	"github.com/coldbell/mango-v4-go/internal/mango"
	"github.com/coldbell/mango-v4-go/internal/metrics"
	"github.com/coldbell/mango-v4-go/internal/tracestore"
)

// TraceStore is the read side of tracestore.Store.
type TraceStore interface {
	ListTraces(ctx context.Context, filter tracestore.TraceFilter) ([]logtrace.Record, int, int, error)
	ErrorCounts(ctx context.Context) ([]tracestore.ErrorCount, error)
}

type Service struct {
	cfg              config.APIServerConfig
	logger           *slog.Logger
	traces           TraceStore
	accounts         mango.AccountSource
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	allowAllOrigins  bool
	allowedOriginSet map[string]struct{}
	closeFn          func() error
}

// New connects the trace store when a DSN is configured; without one the
// trace routes answer 503 and everything else still works.
func New(ctx context.Context, cfg config.APIServerConfig, logger *slog.Logger) (*Service, error) {
	var (
		traces  TraceStore
		closeFn func() error
	)
	if cfg.DBDSN != "" {
		store, err := tracestore.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		traces = store
		closeFn = store.Close
	}

	source := mango.NewRPCSource(rpc.New(cfg.RPC.URL), cfg.RPC.Commitment, cfg.RPC.BatchSize)
	svc := NewWithDeps(cfg, traces, source, logger)
	svc.closeFn = closeFn
	return svc, nil
}

func NewWithDeps(cfg config.APIServerConfig, traces TraceStore, accounts mango.AccountSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	allowAllOrigins := false
	allowedOriginSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAllOrigins = true
			continue
		}
		allowedOriginSet[trimmed] = struct{}{}
	}
	if len(allowedOriginSet) == 0 && !allowAllOrigins {
		allowAllOrigins = true
	}

	registry := metrics.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mango",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	registry.MustRegister(requests)

	return &Service{
		cfg:              cfg,
		logger:           logger,
		traces:           traces,
		accounts:         accounts,
		registry:         registry,
		requests:         requests,
		allowAllOrigins:  allowAllOrigins,
		allowedOriginSet: allowedOriginSet,
	}
}

// Handler returns the full route table wrapped in CORS handling.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "/healthz", s.handleHealth)
	s.route(mux, "/api/v1/traces", s.handleTraces)
	s.route(mux, "/api/v1/traces/errors", s.handleTraceErrorCounts)
	s.route(mux, "/api/v1/logs/trace", s.handleTraceLogs)
	s.route(mux, "/api/v1/errors", s.handleErrors)
	s.route(mux, "/api/v1/errors/{code}", s.handleError)
	s.route(mux, "/api/v1/instructions", s.handleInstructions)
	s.route(mux, "/api/v1/instructions/{name}", s.handleInstruction)
	s.route(mux, "/api/v1/accounts/decode", s.handleDecodeAccount)
	s.route(mux, "/api/v1/accounts/{address}", s.handleFetchAccount)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s.withCORS(mux)
}

func (s *Service) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		handler(rec, r)
		s.requests.WithLabelValues(pattern, strconv.Itoa(rec.code)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if s.closeFn == nil {
			return
		}
		if err := s.closeFn(); err != nil {
			s.logger.Error("failed to close store", "err", err)
		}
	}()

	server := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	s.logger.Info("api-server started",
		"listen_addr", s.cfg.ListenAddr,
		"trace_store", s.traces != nil,
		"allowed_origins", strings.Join(s.cfg.AllowedOrigins, ","),
	)

	select {
	case <-ctx.Done():
		s.logger.Info("api-server stopping")
		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown api-server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	}
}

func (s *Service) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			allowed := s.allowAllOrigins
			if !allowed {
				_, allowed = s.allowedOriginSet[origin]
			}

			if allowed {
				if s.allowAllOrigins {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "300")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func parseOptionalInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseOptionalBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func (s *Service) respondMethodNotAllowed(w http.ResponseWriter) {
	s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Service) respondError(w http.ResponseWriter, code int, message string) {
	s.respondJSON(w, code, errorResponse{Error: message})
}

func (s *Service) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to write JSON response", "err", err)
	}
}
