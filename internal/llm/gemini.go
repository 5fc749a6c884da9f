package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Gemini implements Provider for Google's Gemini generateContent API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a Gemini provider.
func NewGemini(opts Options) *Gemini {
	base := opts.BaseURL
	if base == "" {
		base = geminiAPIURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		apiKey:  opts.APIKey,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	// The key travels in a header so it never shows up in URLs or logs.
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)

	body := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: req.User}},
			},
		},
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens:  maxTokens(req.MaxTokens),
			ResponseMimeType: "application/json",
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		if geminiAuthFailure(respBody) {
			return "", &AuthError{Status: httpResp.StatusCode}
		}
		return "", statusErr(httpResp.StatusCode, httpResp.Header, string(respBody))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

// geminiError is the google.rpc.Status envelope returned with non-200 replies.
type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

// geminiAuthFailure reports whether an error body describes a credential
// problem. A bad key comes back as 400 INVALID_ARGUMENT with reason
// API_KEY_INVALID rather than as 401.
func geminiAuthFailure(body []byte) bool {
	var env geminiError
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	switch env.Error.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	for _, d := range env.Error.Details {
		if d.Reason == "API_KEY_INVALID" {
			return true
		}
	}
	return false
}
