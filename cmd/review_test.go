package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/crev/internal/config"
	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/models"
)

const testReport = `{"language":"Python","overall_summary":"Greets.",
"execution_analysis":{"will_compile":true,"will_run":true,"expected_behavior":"Prints hi."},
"has_critical_issues":false,"overall_score":90,
"quality_metrics":{"readability":9,"efficiency":9,"maintainability":9,"security":10},
"issues":[{"line":1,"priority":"Medium","category":"Style","tags":["naming"],"title":"Vague name",
"description":"x says nothing.","potential_impact":"Harder to read.","suggested_fix":"Rename it."}]}`

// stubProvider swaps the provider factory for one returning answer.
func stubProvider(t *testing.T, answer string, err error) *int {
	t.Helper()
	calls := 0
	orig := newProvider
	newProvider = func(config.Config) (llm.Provider, error) {
		return llm.ProviderFunc(func(context.Context, llm.Request) (string, error) {
			calls++
			return answer, err
		}), nil
	}
	t.Cleanup(func() { newProvider = orig })
	return &calls
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReviewRun_JSON(t *testing.T) {
	_, out := testEnv(t)
	t.Setenv("CREV_API_KEY", "test-key")
	calls := stubProvider(t, testReport, nil)

	path := writeSource(t, "hello.py", "x = 'hi'\nprint(x)\n")
	require.NoError(t, reviewRun(context.Background(), path, "json"))
	assert.Equal(t, 1, *calls)

	var resp models.ReviewResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "hello.py", resp.Filename)
	assert.Equal(t, 90, resp.ReviewReport.OverallScore)
	require.Len(t, resp.ReviewReport.Issues, 1)
	assert.Equal(t, models.PriorityMedium, resp.ReviewReport.Issues[0].Priority)
}

func TestReviewRun_YAML(t *testing.T) {
	_, out := testEnv(t)
	t.Setenv("CREV_API_KEY", "test-key")
	stubProvider(t, testReport, nil)

	path := writeSource(t, "hello.py", "print('hi')\n")
	require.NoError(t, reviewRun(context.Background(), path, "yaml"))

	var resp models.ReviewResponse
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "hello.py", resp.Filename)
	assert.Contains(t, out.String(), "overall_score: 90")
	assert.Contains(t, out.String(), "potential_impact:")
}

func TestReviewRun_Text(t *testing.T) {
	_, out := testEnv(t)
	t.Setenv("CREV_API_KEY", "test-key")
	stubProvider(t, testReport, nil)

	path := writeSource(t, "hello.py", "print('hi')\n")
	require.NoError(t, reviewRun(context.Background(), path, "text"))
	assert.Contains(t, out.String(), "hello.py")
	assert.Contains(t, out.String(), "Vague name")
}

func TestReviewRun_UnknownFormat(t *testing.T) {
	testEnv(t)
	calls := stubProvider(t, testReport, nil)

	err := reviewRun(context.Background(), "whatever.py", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
	assert.Zero(t, *calls)
}

func TestReviewRun_NoAPIKey(t *testing.T) {
	testEnv(t)
	calls := stubProvider(t, testReport, nil)

	path := writeSource(t, "a.py", "x = 1\n")
	err := reviewRun(context.Background(), path, "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key")
	assert.Zero(t, *calls)
}

func TestReviewRun_MissingFile(t *testing.T) {
	testEnv(t)
	t.Setenv("CREV_API_KEY", "test-key")
	stubProvider(t, testReport, nil)

	err := reviewRun(context.Background(), filepath.Join(t.TempDir(), "nope.py"), "json")
	assert.Error(t, err)
}

func TestReviewRun_TooLarge(t *testing.T) {
	testEnv(t)
	t.Setenv("CREV_API_KEY", "test-key")
	t.Setenv("CREV_REVIEW_MAX_UPLOAD_BYTES", "16")
	calls := stubProvider(t, testReport, nil)

	path := writeSource(t, "big.py", strings.Repeat("x", 64))
	err := reviewRun(context.Background(), path, "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UploadTooLarge")
	assert.Zero(t, *calls)
}

func TestReviewRun_MalformedOutput(t *testing.T) {
	testEnv(t)
	t.Setenv("CREV_API_KEY", "test-key")
	stubProvider(t, "Sorry, I can't help with that.", nil)

	path := writeSource(t, "a.py", "x = 1\n")
	err := reviewRun(context.Background(), path, "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MalformedModelOutput")
}

func TestReviewRun_UpstreamRateLimited(t *testing.T) {
	testEnv(t)
	t.Setenv("CREV_API_KEY", "test-key")
	stubProvider(t, "", &llm.RateLimitError{})

	path := writeSource(t, "a.py", "x = 1\n")
	err := reviewRun(context.Background(), path, "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UpstreamRateLimited")
}
