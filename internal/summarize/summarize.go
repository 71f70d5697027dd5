// Package summarize condenses oversized tool results before they are fed back into
// the conversation.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harunnryd/torque/internal/config"
)

const truncationMarker = " ...[truncated]"

const systemPrompt = "You condense tool results for a voice assistant in an automotive repair shop. Keep identifiers, names, amounts, dates and error reasons. Answer with plain text only."

type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, text string, maxChars int) (string, error)
}

// Completer is a single-turn text completion backed by an LLM provider.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Truncate cuts text to at most maxChars runes, marking the cut. maxChars <= 0 disables it.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	keep := maxChars - utf8.RuneCountInString(truncationMarker)
	if keep <= 0 {
		return string([]rune(text)[:maxChars])
	}
	return strings.TrimRightFunc(string([]rune(text)[:keep]), func(r rune) bool { return r == ' ' || r == '\n' }) + truncationMarker
}

type Truncator struct{}

func (Truncator) Name() string { return config.SummarizerNone }

func (Truncator) Summarize(_ context.Context, text string, maxChars int) (string, error) {
	return Truncate(text, maxChars), nil
}

// Model asks an LLM for a summary and falls back to truncation when the call fails
// or the answer is still too long.
type Model struct {
	completer Completer
	timeout   time.Duration
}

func NewModel(c Completer, timeout time.Duration) *Model {
	return &Model{completer: c, timeout: timeout}
}

func (m *Model) Name() string {
	return m.completer.Name()
}

func (m *Model) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	if maxChars > 0 && utf8.RuneCountInString(text) <= maxChars {
		return text, nil
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf("Summarize the following tool result in at most %d characters.\n\n%s", maxChars, text)
	start := time.Now()
	out, err := m.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		slog.Warn("Summarizer failed, truncating", "provider", m.completer.Name(), "error", err)
		return Truncate(text, maxChars), nil
	}
	slog.Debug("Summarized tool result", "provider", m.completer.Name(), "in_chars", len(text), "out_chars", len(out), "duration", time.Since(start))

	out = strings.TrimSpace(out)
	if out == "" {
		return Truncate(text, maxChars), nil
	}
	return Truncate(out, maxChars), nil
}

// New builds the summarizer selected by cfg.Provider.
func New(cfg config.SummarizerConfig) (Summarizer, error) {
	timeout, err := config.DurationOrDefault(cfg.Timeout, config.DefaultSummarizerTimeout)
	if err != nil {
		return nil, fmt.Errorf("summarizer timeout: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", config.SummarizerNone:
		return Truncator{}, nil
	case config.SummarizerOpenAI:
		return NewModel(NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), timeout), nil
	case config.SummarizerAnthropic:
		return NewModel(NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model), timeout), nil
	case config.SummarizerGemini:
		g, err := NewGemini(context.Background(), cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini summarizer: %w", err)
		}
		return NewModel(g, timeout), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}
