package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/harunnryd/torque/internal/logger"
	"github.com/harunnryd/torque/internal/summarize"
)

const (
	resultPrefix        = "\nResult: "
	resultSummaryPrefix = "\nResult summary: "
	minSummaryChars     = 64
)

// feedback builds the message injected into the conversation after a call. The
// result payload is attached verbatim when it fits maxFeedbackChars, otherwise it is
// condensed by the summarizer; the full result still travels as the function output.
func (d *Dispatcher) feedback(ctx context.Context, def Definition, res Result, attempts int) string {
	msg := strings.TrimRight(strings.TrimSpace(res.Message), ".")

	var b strings.Builder
	switch res.Status {
	case StatusSuccess:
		b.WriteString(def.Name + " succeeded")
	case StatusNoResults:
		fmt.Fprintf(&b, "%s returned no results (attempt %d)", def.Name, attempts)
	default:
		fmt.Fprintf(&b, "%s failed (attempt %d)", def.Name, attempts)
	}
	if msg != "" {
		b.WriteString(": " + msg)
	}
	b.WriteString(".")
	if hint := strings.TrimSpace(def.SuccessHint); hint != "" && res.Status == StatusSuccess {
		b.WriteString(" " + hint)
	}
	base := b.String()

	if res.Data == nil {
		return base
	}
	raw, err := json.Marshal(res.Data)
	if err != nil || string(raw) == "null" {
		return base
	}
	payload := string(raw)

	max := d.maxFeedbackChars
	if max <= 0 || utf8.RuneCountInString(base)+utf8.RuneCountInString(resultPrefix)+utf8.RuneCountInString(payload) <= max {
		return base + resultPrefix + payload
	}

	budget := max - utf8.RuneCountInString(base) - utf8.RuneCountInString(resultSummaryPrefix)
	if budget < minSummaryChars {
		return base
	}

	summary, err := d.summarizer.Summarize(ctx, payload, budget)
	if err != nil {
		logger.From(ctx).Warn("Feedback summary failed", "tool", def.Name, "error", err)
		summary = summarize.Truncate(payload, budget)
	}
	return base + resultSummaryPrefix + summary
}
