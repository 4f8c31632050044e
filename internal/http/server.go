// Package http serves the TaxLyzer JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tlog "taxlyzer/internal/log"
	"taxlyzer/internal/metrics"
	"taxlyzer/internal/middleware/ratelimit"
	"taxlyzer/internal/middleware/security"
	"taxlyzer/internal/middleware/trace"
	"taxlyzer/internal/services"
)

const defaultMaxUpload = 10 << 20

// Deps are the collaborators of the server. Invoices, Statistics and
// Reports are required.
type Deps struct {
	Invoices   *services.InvoiceService
	Statistics *services.StatisticsService
	Reports    *services.ReportService
	Metrics    *metrics.Metrics
	Logger     *tlog.Logger

	// Ready reports whether dependencies such as the database are usable.
	Ready func(context.Context) error

	MaxUploadBytes     int64
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	mux      *http.ServeMux
	invoices *services.InvoiceService
	stats    *services.StatisticsService
	reports  *services.ReportService
	metrics  *metrics.Metrics
	logger   *tlog.Logger
	log      *tlog.StructuredLogger
	ready    func(context.Context) error

	maxUpload   int64
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) (*Server, error) {
	detector, err := security.NewDetector(d.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	logger := d.Logger
	if logger == nil {
		logger = tlog.New(tlog.DefaultConfig()).WithComponent(tlog.ComponentHTTP)
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	s := &Server{
		mux:         http.NewServeMux(),
		invoices:    d.Invoices,
		stats:       d.Statistics,
		reports:     d.Reports,
		metrics:     d.Metrics,
		logger:      logger,
		log:         tlog.NewStructuredLogger(logger),
		ready:       d.Ready,
		maxUpload:   maxUpload,
		detector:    detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimitPerMinute}),
	}
	s.routes()

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.route("/api/invoices", methods{http.MethodGet: s.handleListInvoices})
	s.route("/api/invoice/{id}", methods{http.MethodGet: s.handleGetInvoice})
	s.route("/api/process-invoice", methods{http.MethodPost: s.handleProcessInvoice})
	s.route("/api/update-item", methods{http.MethodPost: s.handleUpdateItem})
	s.route("/api/gst-slabs", methods{http.MethodGet: s.handleListSlabs})

	s.route("/api/gst-statistics", methods{http.MethodGet: s.handleGSTStatistics})
	s.route("/api/trend-analysis", methods{http.MethodGet: s.handleTrendAnalysis})
	s.route("/api/top-hsn-codes", methods{http.MethodGet: s.handleTopHSNCodes})
	s.route("/api/slab-distribution", methods{http.MethodGet: s.handleSlabDistribution})

	s.route("/api/reports/pdf/{id}", methods{http.MethodGet: s.handleInvoicePDF})
	s.route("/api/reports/json/{id}", methods{http.MethodGet: s.handleInvoiceJSON})
	s.route("/api/reports/gstr1", methods{http.MethodPost: s.handleGSTR1})

	s.route("/healthz", methods{http.MethodGet: handleHealth})
	s.route("/readyz", methods{http.MethodGet: s.handleReady})
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

type methods map[string]http.HandlerFunc

// route registers pattern and answers other methods with a JSON 405.
func (s *Server) route(pattern string, m methods) {
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	allow := strings.Join(allowed, ", ")

	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		h, ok := m[r.Method]
		if !ok && r.Method == http.MethodHead {
			h, ok = m[http.MethodGet]
		}
		if !ok {
			w.Header().Set("Allow", allow)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	})
}

// middleware wraps next with tracing, request logging, security headers,
// scanner detection and POST rate limiting, outermost first.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit, http.MethodPost)(next)

	detect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			tlog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				tlog.FieldClientIP, s.detector.ExtractClientIP(r),
				tlog.FieldMethod, r.Method,
				tlog.FieldPath, r.URL.Path,
				tlog.FieldUserAgent, r.UserAgent())
		}
		limited.ServeHTTP(w, r)
	})

	h := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(detect)
	h = tlog.RequestIDMiddleware(trace.FromRequest)(h)
	h = tlog.Middleware(s.logger)(h)
	return trace.NewMiddleware(s.onRequestStart, s.onRequestDone).Middleware(h)
}

func (s *Server) onRequestStart(r *http.Request) {
	s.log.LogHTTPStart(r.Context(), r, s.detector.ExtractClientIP(r))
}

func (s *Server) onRequestDone(r *http.Request, c trace.Completed) {
	s.log.LogHTTPEnd(r.Context(), r, c.Status, c.Duration.Milliseconds(), s.detector.ExtractClientIP(r))
	if s.metrics != nil {
		_, pattern := s.mux.Handler(r)
		if pattern == "/" {
			pattern = "unmatched"
		}
		s.metrics.ObserveHTTP(pattern, r.Method, c.Status, c.Duration)
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
	tlog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		tlog.FieldClientIP, s.detector.ExtractClientIP(r),
		tlog.FieldMethod, r.Method,
		tlog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			tlog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", tlog.FieldError, err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
