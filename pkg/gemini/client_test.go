package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sells-group/locus/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Config{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestGenerate_StructuredOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-pro:generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gen := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", gen["responseMimeType"])
		assert.Nil(t, body["tools"])
		assert.NotNil(t, body["systemInstruction"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"ok\": true}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4, "thoughtsTokenCount": 30}
		}`)
	})

	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model:          "gemini-2.5-pro",
		System:         "You are a strategist.",
		Prompt:         "Summarize.",
		ResponseSchema: &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{"ok": {Type: genai.TypeBoolean}}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, int64(12), resp.Usage.PromptTokens)
	assert.Equal(t, int64(4), resp.Usage.CandidatesTokens)
	assert.Equal(t, int64(30), resp.Usage.ThoughtsTokens)
}

func TestGenerate_GoogleSearchGrounding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tools := body["tools"].([]any)
		require.Len(t, tools, 1)
		assert.Contains(t, tools[0].(map[string]any), "googleSearch")

		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Demand is strong."}]},
				"groundingMetadata": {"groundingChunks": [{"web": {"title": "City stats", "uri": "https://example.com/stats"}}]}
			}]
		}`)
	})

	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-2.5-flash", Prompt: "Research.", GoogleSearch: true})
	require.NoError(t, err)
	assert.Equal(t, "Demand is strong.", resp.Text)
	assert.Equal(t, []Source{{Title: "City stats", URI: "https://example.com/stats"}}, resp.Sources)
}

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
		{"forbidden", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				_, _ = fmt.Fprintf(w, `{"error": {"code": %d, "message": "nope", "status": "X"}}`, tt.code)
			})

			_, err := c.Generate(context.Background(), GenerateRequest{Model: "gemini-2.5-flash", Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			if !tt.transient {
				var apiErr *APIError
				assert.True(t, errors.As(err, &apiErr))
			}
		})
	}
}
