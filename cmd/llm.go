package cmd

import (
	"log/slog"

	"github.com/joescharf/crev/internal/config"
	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/review"
)

// newProvider builds the upstream model client; replaceable in tests.
var newProvider = func(cfg config.Config) (llm.Provider, error) {
	return cfg.NewProvider()
}

// newReviewer creates the review pipeline from config, or returns nil if no
// API key is configured.
func newReviewer(cfg config.Config, log *slog.Logger) (*review.Reviewer, error) {
	if !cfg.APIKeyConfigured() {
		return nil, nil
	}
	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return review.NewReviewer(p, cfg.Review, log), nil
}
