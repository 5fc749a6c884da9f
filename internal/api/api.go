package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oklog/ulid/v2"

	"github.com/joescharf/crev/internal/config"
	"github.com/joescharf/crev/internal/health"
	"github.com/joescharf/crev/internal/review"
	"github.com/joescharf/crev/internal/ui"
)

const (
	// multipartOverhead is the allowance for multipart boundaries and headers
	// on top of the file size limit.
	multipartOverhead = 64 << 10

	// statusClientClosedRequest is logged when the client went away mid-review.
	statusClientClosedRequest = 499

	requestIDHeader = "X-Request-ID"
)

// Server provides the HTTP handlers.
type Server struct {
	reviewer *review.Reviewer
	cfg      config.Config
	log      *slog.Logger
	version  string
}

// NewServer creates a new API server.
// The reviewer may be nil if no API key is configured.
func NewServer(rv *review.Reviewer, cfg config.Config, log *slog.Logger, version string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		reviewer: rv,
		cfg:      cfg,
		log:      log,
		version:  version,
	}
}

// Router returns an http.Handler for all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", s.healthCheck)
	r.Post("/review", s.reviewFile)
	r.Post("/review/", s.reviewFile)

	if static, err := ui.Handler(); err == nil {
		r.Handle("/*", static)
	} else {
		s.log.Warn("static UI unavailable", "error", err)
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// statusFor maps a review failure kind to its HTTP status.
func statusFor(kind review.Kind) int {
	switch kind {
	case review.KindInvalidUpload, review.KindDecode:
		return http.StatusBadRequest
	case review.KindUploadTooLarge:
		return http.StatusRequestEntityTooLarge
	case review.KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case review.KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case review.KindUpstreamAuth, review.KindUpstreamUnavailable, review.KindMalformedOutput:
		return http.StatusBadGateway
	case review.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err with its internal detail and writes the client-safe message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var re *review.Error
	if !errors.As(err, &re) {
		re = &review.Error{Kind: review.KindInternal, Message: "internal error", Err: err}
	}
	status := statusFor(re.Kind)

	attrs := []any{
		"request_id", requestIDFrom(r.Context()),
		"kind", re.Kind,
		"stage", re.Stage,
		"status", status,
	}
	if re.Err != nil {
		attrs = append(attrs, "error", re.Err)
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("review failed", attrs...)
	} else {
		s.log.Warn("review rejected", attrs...)
	}

	if re.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(re.RetryAfter.Seconds()))))
	}
	writeError(w, status, re.Message)
}

// --- Review ---

func (s *Server) reviewFile(w http.ResponseWriter, r *http.Request) {
	if s.reviewer == nil {
		writeError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("LLM not configured: no API key for provider %q", s.cfg.Provider))
		return
	}

	limit := s.reviewer.Config().MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			s.fail(w, r, &review.Error{
				Kind:    review.KindUploadTooLarge,
				Stage:   review.StageReceived,
				Message: fmt.Sprintf("upload exceeds the maximum size of %d bytes", limit),
				Err:     err,
			})
			return
		}
		s.fail(w, r, &review.Error{
			Kind:    review.KindInvalidUpload,
			Stage:   review.StageReceived,
			Message: `multipart form field "file" is required`,
			Err:     err,
		})
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the reviewer to reject it.
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.fail(w, r, &review.Error{
			Kind:    review.KindInvalidUpload,
			Stage:   review.StageReceived,
			Message: fmt.Sprintf("could not read uploaded file %q", header.Filename),
			Err:     err,
		})
		return
	}

	resp, err := s.reviewer.Review(r.Context(), header.Filename, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// --- Health ---

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	rep := health.Check(s.cfg, s.version)
	if !rep.Healthy() || s.reviewer == nil {
		rep.Status = health.StatusUnhealthy
		writeJSON(w, http.StatusServiceUnavailable, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// --- Middleware ---

type ctxKey struct{}

// requestID tags every request with a ULID, honoring a sane inbound X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}
