package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/harunnryd/torque/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	out    string
	err    error
	prompt string
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "anything", Truncate("anything", 0))

	long := strings.Repeat("é", 100)
	got := Truncate(long, 40)
	assert.Equal(t, 40, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, truncationMarker))

	assert.Equal(t, "abcde", Truncate("abcdefghij", 5))
}

func TestModelSkipsShortInput(t *testing.T) {
	fc := &fakeCompleter{out: "unused"}
	got, err := NewModel(fc, 0).Summarize(context.Background(), "tiny", 100)
	require.NoError(t, err)
	assert.Equal(t, "tiny", got)
	assert.Empty(t, fc.prompt)
}

func TestModelSummarizes(t *testing.T) {
	fc := &fakeCompleter{out: "  3 invoices, newest INV-9 for $420  "}
	got, err := NewModel(fc, 0).Summarize(context.Background(), strings.Repeat("x", 500), 100)
	require.NoError(t, err)
	assert.Equal(t, "3 invoices, newest INV-9 for $420", got)
	assert.Contains(t, fc.prompt, "at most 100 characters")
}

func TestModelFallsBackToTruncation(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("rate limited")}
	got, err := NewModel(fc, 0).Summarize(context.Background(), strings.Repeat("x", 500), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, utf8.RuneCountInString(got))

	fc = &fakeCompleter{out: strings.Repeat("y", 300)}
	got, err = NewModel(fc, 0).Summarize(context.Background(), strings.Repeat("x", 500), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, utf8.RuneCountInString(got))
}

func TestNewSelectsProvider(t *testing.T) {
	s, err := New(config.SummarizerConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Equal(t, config.SummarizerNone, s.Name())

	s, err = New(config.SummarizerConfig{Provider: "openai", APIKey: "k", Timeout: "5s"})
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())

	s, err = New(config.SummarizerConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", s.Name())

	_, err = New(config.SummarizerConfig{Provider: "mystery"})
	assert.Error(t, err)

	_, err = New(config.SummarizerConfig{Provider: "openai", Timeout: "later"})
	assert.Error(t, err)
}

func TestOpenAICompleteAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"condensed"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	p := NewOpenAI("test-key", server.URL+"/v1/", "gpt-4o-mini")
	got, err := p.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "condensed", got)
}
