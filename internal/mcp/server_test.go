package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crev/internal/config"
	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/models"
	"github.com/joescharf/crev/internal/review"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const validReport = `{"language":"Go","overall_summary":"Fine.",
"execution_analysis":{"will_compile":true,"will_run":true,"expected_behavior":"Nothing."},
"has_critical_issues":false,"overall_score":88,
"quality_metrics":{"readability":9,"efficiency":9,"maintainability":8,"security":9},
"issues":[]}`

// mockProvider records the last prompt and returns a fixed answer.
type mockProvider struct {
	answer string
	err    error
	last   llm.Request
	calls  int
}

func (m *mockProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	m.calls++
	m.last = req
	return m.answer, m.err
}
func (m *mockProvider) Name() string  { return "mock" }
func (m *mockProvider) Model() string { return "mock-model" }

func testConfig() config.Config {
	return config.Config{
		Provider: "anthropic",
		Model:    "mock-model",
		APIKey:   "k",
		Review:   review.Config{MaxUploadBytes: 512, Timeout: time.Second},
	}
}

func newTestServer(t *testing.T, p *mockProvider) *Server {
	t.Helper()
	cfg := testConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(review.NewReviewer(p, cfg.Review, log), cfg, "test")
}

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Tests: MCPServer registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv := newTestServer(t, &mockProvider{answer: validReport})
	require.NotNil(t, srv.MCPServer())
}

// ---------------------------------------------------------------------------
// Tests: crev_review_file
// ---------------------------------------------------------------------------

func TestHandleReviewFile_Path(t *testing.T) {
	p := &mockProvider{answer: validReport}
	srv := newTestServer(t, p)

	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", map[string]any{"path": path}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp models.ReviewResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, "main.go", resp.Filename)
	assert.Equal(t, "mock-model", resp.ModelUsed)
	assert.Equal(t, 88, resp.ReviewReport.OverallScore)
	assert.Contains(t, p.last.User, "package main")
	assert.Contains(t, p.last.User, "Go")
}

func TestHandleReviewFile_Content(t *testing.T) {
	p := &mockProvider{answer: validReport}
	srv := newTestServer(t, p)

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", map[string]any{
		"content":  "print('hi')",
		"filename": "hi.py",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Contains(t, resultText(t, result), `"filename":"hi.py"`)
	assert.Equal(t, 1, p.calls)
}

func TestHandleReviewFile_ContentWithoutFilename(t *testing.T) {
	p := &mockProvider{answer: validReport}
	srv := newTestServer(t, p)

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", map[string]any{"content": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, p.calls)
}

func TestHandleReviewFile_NoArgs(t *testing.T) {
	srv := newTestServer(t, &mockProvider{answer: validReport})

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleReviewFile_MissingPath(t *testing.T) {
	srv := newTestServer(t, &mockProvider{answer: validReport})

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", map[string]any{
		"path": filepath.Join(t.TempDir(), "nope.go"),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleReviewFile_TooLarge(t *testing.T) {
	p := &mockProvider{answer: validReport}
	srv := newTestServer(t, p)

	path := filepath.Join(t.TempDir(), "big.go")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 2048)), 0o644))

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", map[string]any{"path": path}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(review.KindUploadTooLarge))
	assert.Zero(t, p.calls)
}

func TestHandleReviewFile_MalformedOutput(t *testing.T) {
	srv := newTestServer(t, &mockProvider{answer: "no json here"})

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", map[string]any{
		"content": "x = 1", "filename": "a.py",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), string(review.KindMalformedOutput))
}

func TestHandleReviewFile_NotConfigured(t *testing.T) {
	srv := NewServer(nil, config.Config{Provider: "gemini"}, "test")

	result, err := srv.handleReviewFile(context.Background(), callToolReq("crev_review_file", map[string]any{
		"content": "x = 1", "filename": "a.py",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "gemini")
}

// ---------------------------------------------------------------------------
// Tests: crev_health
// ---------------------------------------------------------------------------

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &mockProvider{answer: validReport})

	result, err := srv.handleHealth(context.Background(), callToolReq("crev_health", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &rep))
	assert.Equal(t, "healthy", rep["status"])
	assert.Equal(t, "anthropic", rep["provider"])
}
