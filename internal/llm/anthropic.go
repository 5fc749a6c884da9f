package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// Anthropic wraps the Anthropic Messages API.
type Anthropic struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewAnthropic creates an Anthropic provider. The SDK's own retries are
// disabled; use WithRetry for the service's retry policy.
func NewAnthropic(opts Options) *Anthropic {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	model := opts.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	client := anthropic.NewClient(reqOpts...)
	return &Anthropic{
		api:   &client,
		model: anthropic.Model(model),
	}
}

func (a *Anthropic) Name() string  { return "anthropic" }
func (a *Anthropic) Model() string { return string(a.model) }

// Generate sends the prompt and returns the first text block of the reply.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(maxTokens(req.MaxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.api.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropic(err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic API call: %w", err)
	}
	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	typed := statusErr(apiErr.StatusCode, header, http.StatusText(apiErr.StatusCode))
	return fmt.Errorf("anthropic API call: %w", typed)
}
