package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeminiTestServer(t *testing.T, status int, body string, check func(*http.Request)) *Gemini {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "7")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewGemini(Options{APIKey: "secret-key", Model: "gemini-test", BaseURL: srv.URL})
}

func TestGemini_Generate(t *testing.T) {
	var sent geminiRequest
	g := newGeminiTestServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]}}]}`,
		func(r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
			assert.Empty(t, r.URL.RawQuery, "key must not be sent in the URL")
			assert.Equal(t, "secret-key", r.Header.Get("x-goog-api-key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		})

	text, err := g.Generate(context.Background(), Request{System: "sys", User: "usr", MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)

	require.NotNil(t, sent.SystemInstruction)
	assert.Equal(t, "sys", sent.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "usr", sent.Contents[0].Parts[0].Text)
	assert.Equal(t, 100, sent.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, "application/json", sent.GenerationConfig.ResponseMimeType)
}

func TestGemini_Errors(t *testing.T) {
	t.Run("auth", func(t *testing.T) {
		g := newGeminiTestServer(t, http.StatusForbidden, `{"error":{"message":"API key not valid"}}`, nil)
		_, err := g.Generate(context.Background(), Request{User: "x"})
		assert.True(t, IsAuthError(err))
		assert.NotContains(t, err.Error(), "secret-key")
	})

	t.Run("invalid key", func(t *testing.T) {
		body := `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT",` +
			`"details":[{"@type":"type.googleapis.com/google.rpc.ErrorInfo","reason":"API_KEY_INVALID","domain":"googleapis.com"}]}}`
		g := newGeminiTestServer(t, http.StatusBadRequest, body, nil)
		_, err := g.Generate(context.Background(), Request{User: "x"})
		require.True(t, IsAuthError(err))
		var ae *AuthError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, http.StatusBadRequest, ae.Status)
	})

	t.Run("permission denied", func(t *testing.T) {
		body := `{"error":{"code":403,"message":"Method doesn't allow unregistered callers.","status":"PERMISSION_DENIED"}}`
		g := newGeminiTestServer(t, http.StatusForbidden, body, nil)
		_, err := g.Generate(context.Background(), Request{User: "x"})
		assert.True(t, IsAuthError(err))
	})

	t.Run("bad request", func(t *testing.T) {
		body := `{"error":{"code":400,"message":"Invalid JSON payload received.","status":"INVALID_ARGUMENT"}}`
		g := newGeminiTestServer(t, http.StatusBadRequest, body, nil)
		_, err := g.Generate(context.Background(), Request{User: "x"})
		assert.False(t, IsAuthError(err))
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadRequest, se.Status)
	})

	t.Run("rate limit", func(t *testing.T) {
		g := newGeminiTestServer(t, http.StatusTooManyRequests, `{}`, nil)
		_, err := g.Generate(context.Background(), Request{User: "x"})
		after, ok := IsRateLimit(err)
		assert.True(t, ok)
		assert.Equal(t, "7s", after.String())
	})

	t.Run("server error", func(t *testing.T) {
		g := newGeminiTestServer(t, http.StatusInternalServerError, `oops`, nil)
		_, err := g.Generate(context.Background(), Request{User: "x"})
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusInternalServerError, se.Status)
	})

	t.Run("no candidates", func(t *testing.T) {
		g := newGeminiTestServer(t, http.StatusOK, `{"candidates":[]}`, nil)
		_, err := g.Generate(context.Background(), Request{User: "x"})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}
