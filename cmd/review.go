package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/crev/internal/models"
	"github.com/joescharf/crev/internal/review"
)

var reviewFormat string

var reviewCmd = &cobra.Command{
	Use:   "review FILE",
	Short: "Review a single source file",
	Long: `Send FILE to the configured model and print the review.

Formats:
  text  colored summary, metrics table and issues by priority (default)
  json  the same envelope POST /review/ returns
  yaml  the envelope as YAML

Use -v with text output to include suggested fixes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context(), args[0], reviewFormat)
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewFormat, "format", "f", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(ctx context.Context, path, format string) error {
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (use text, json or yaml)", format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rv, err := newReviewer(cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("create reviewer: %w", err)
	}
	if rv == nil {
		return fmt.Errorf("no API key configured for %s (set ANTHROPIC_API_KEY, GEMINI_API_KEY or CREV_API_KEY)", cfg.Provider)
	}

	data, err := readSource(path, rv.Config().MaxUploadBytes)
	if err != nil {
		return err
	}

	ui.VerboseLog("Reviewing %s with %s", path, rv.Model())
	resp, err := rv.Review(ctx, filepath.Base(path), data)
	if err != nil {
		var re *review.Error
		if errors.As(err, &re) {
			return fmt.Errorf("%s: %s", re.Kind, re.Message)
		}
		return err
	}

	return writeReview(resp, format)
}

// readSource reads at most limit+1 bytes so oversized files are rejected by
// the reviewer without being loaded whole.
func readSource(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeReview(resp *models.ReviewResponse, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		enc := yaml.NewEncoder(ui.Out)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	default:
		return ui.Report(resp)
	}
}
