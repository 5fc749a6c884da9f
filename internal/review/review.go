package review

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/models"
)

// Pipeline defaults.
const (
	DefaultMaxUploadBytes int64 = 1 << 20
	DefaultTimeout              = 60 * time.Second

	maxLoggedOutput = 2048
)

// Config holds the limits applied to every review.
type Config struct {
	MaxUploadBytes int64
	Timeout        time.Duration
	MaxSourceBytes int
	MaxTokens      int
	RedactSecrets  bool
}

// DefaultConfig returns the default pipeline limits.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes: DefaultMaxUploadBytes,
		Timeout:        DefaultTimeout,
		MaxSourceBytes: DefaultMaxSourceBytes,
		MaxTokens:      llm.DefaultMaxTokens,
	}
}

// Reviewer runs the upload → prompt → model → validation pipeline. It holds
// no per-request state and is safe for concurrent use.
type Reviewer struct {
	provider llm.Provider
	cfg      Config
	log      *slog.Logger
}

// NewReviewer creates a reviewer. Zero limits in cfg fall back to defaults.
func NewReviewer(p llm.Provider, cfg Config, log *slog.Logger) *Reviewer {
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = def.MaxSourceBytes
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reviewer{provider: p, cfg: cfg, log: log}
}

// Config returns the effective limits.
func (r *Reviewer) Config() Config { return r.cfg }

// Model returns the identifier of the upstream model.
func (r *Reviewer) Model() string { return r.provider.Model() }

// Review analyzes one uploaded file. Exactly one outbound model call is made
// when the upload is acceptable; it is bounded by the configured timeout and
// by ctx.
//
// Review is not idempotent: the model is non-deterministic, so identical
// uploads may produce different reports.
//
// Every failure is returned as an *Error; no partial report is ever returned.
func (r *Reviewer) Review(ctx context.Context, filename string, data []byte) (*models.ReviewResponse, error) {
	start := time.Now()
	log := r.log.With("filename", filename, "provider", r.provider.Name())

	if strings.TrimSpace(filename) == "" {
		return nil, newError(KindInvalidUpload, StageReceived, nil, "no filename provided")
	}
	if int64(len(data)) > r.cfg.MaxUploadBytes {
		return nil, newError(KindUploadTooLarge, StageReceived, nil,
			"file %q is %d bytes; the maximum upload size is %d bytes", filename, len(data), r.cfg.MaxUploadBytes)
	}

	source, err := DecodeSource(data)
	if err != nil {
		return nil, newError(KindDecode, StageDecoded, err, "file %q is not decodable as text", filename)
	}

	prompt := BuildPrompt(filename, source, PromptOptions{
		MaxSourceBytes: r.cfg.MaxSourceBytes,
		RedactSecrets:  r.cfg.RedactSecrets,
	})
	log.Info("review started",
		"bytes", len(data),
		"language_hint", DetectLanguage(filename),
		"truncated", prompt.Truncated,
		"redacted", prompt.Redacted,
	)

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	raw, err := r.provider.Generate(callCtx, prompt.Request(r.cfg.MaxTokens))
	if err != nil {
		rerr := r.upstreamError(ctx, callCtx, err)
		log.Error("model call failed", "kind", rerr.Kind, "error", err)
		return nil, rerr
	}

	report, err := ParseReport(raw)
	if err != nil {
		log.Warn("malformed model output", "error", err, "output", clip(raw, maxLoggedOutput))
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, newError(KindMalformedOutput, StageValidated, err,
				"model output failed validation: %s", strings.Join(problemStrings(ve), "; "))
		}
		return nil, newError(KindMalformedOutput, StageParsed, err,
			"model response did not contain a valid JSON report")
	}

	elapsed := time.Since(start).Milliseconds()
	log.Info("review completed",
		"duration_ms", elapsed,
		"score", report.OverallScore,
		"issues", len(report.Issues),
	)

	return &models.ReviewResponse{
		Filename:         filename,
		ProcessingTimeMs: elapsed,
		ModelUsed:        r.provider.Model(),
		ReviewReport:     report,
	}, nil
}

func (r *Reviewer) upstreamError(parent, call context.Context, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return newError(KindCanceled, StageAwaitingModel, err, "request canceled before the model responded")
	case errors.Is(call.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return newError(KindUpstreamTimeout, StageAwaitingModel, err,
			"the model did not respond within %s", r.cfg.Timeout)
	case llm.IsAuthError(err):
		return newError(KindUpstreamAuth, StageAwaitingModel, err,
			"the model service rejected the configured credential")
	}

	if after, ok := llm.IsRateLimit(err); ok {
		e := newError(KindUpstreamRateLimited, StageAwaitingModel, err,
			"the model service is rate limiting requests; try again later")
		e.RetryAfter = after
		return e
	}
	return newError(KindUpstreamUnavailable, StageAwaitingModel, err, "the model service request failed")
}

func problemStrings(ve *ValidationError) []string {
	out := make([]string, len(ve.Problems))
	for i, p := range ve.Problems {
		out[i] = p.String()
	}
	return out
}

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
