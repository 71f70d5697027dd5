package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/logger"
	"github.com/harunnryd/torque/internal/shop"
	"github.com/harunnryd/torque/internal/summarize"
)

// Invocation is one function call requested by the remote agent.
type Invocation struct {
	CallID    string
	Name      string
	Arguments string
}

// Outcome is what the dispatcher hands back to the session: the structured result,
// its JSON form for the function output item and the feedback message.
type Outcome struct {
	CallID   string
	Name     string
	Result   Result
	Output   string
	Feedback string
	Attempts int
	Duration time.Duration
}

// Attempt tracks retry state for one tool name. Attempts counts non-success
// outcomes since the last success.
type Attempt struct {
	Attempts   int
	LastResult Status
}

// Observer receives one call per finished dispatch.
type Observer interface {
	ObserveTool(name string, status Status, duration time.Duration)
}

type Dispatcher struct {
	registry         *Registry
	snapshot         func() shop.Snapshot
	summarizer       summarize.Summarizer
	maxFeedbackChars int
	observer         Observer

	mu       sync.Mutex
	attempts map[string]*Attempt
}

type Option func(*Dispatcher)

func WithSummarizer(s summarize.Summarizer) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.summarizer = s
		}
	}
}

// WithMaxFeedbackChars bounds the feedback message; zero disables the bound.
func WithMaxFeedbackChars(n int) Option {
	return func(d *Dispatcher) { d.maxFeedbackChars = n }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(registry *Registry, snapshot func() shop.Snapshot, opts ...Option) *Dispatcher {
	if snapshot == nil {
		snapshot = func() shop.Snapshot { return shop.Snapshot{} }
	}
	d := &Dispatcher{
		registry:   registry,
		snapshot:   snapshot,
		summarizer: summarize.Truncator{},
		attempts:   make(map[string]*Attempt),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the named handler and never returns an error: unknown tools,
// missing fields, handler errors and panics all become error results.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Outcome {
	start := time.Now()
	name := NormalizeToolName(inv.Name)
	ctx = logger.WithCallID(ctx, inv.CallID)
	log := logger.From(ctx)

	def, handler, ok := d.registry.Get(name)
	var res Result
	if !ok {
		log.Warn("Unhandled tool invocation", "tool", name)
		res = Failure("unhandled action: " + name)
		def = Definition{Name: name}
	} else {
		log.Info("Executing tool", "tool", name)
		res = d.execute(ctx, def, handler, inv.Arguments)
	}

	duration := time.Since(start)
	attempts := d.record(name, res.Status)

	if res.Status == StatusSuccess {
		log.Info("Tool execution success", "tool", name, "duration", duration)
	} else {
		log.Warn("Tool execution unsuccessful", "tool", name, "status", res.Status, "message", res.Message, "attempts", attempts, "duration", duration)
	}
	if d.observer != nil {
		d.observer.ObserveTool(name, res.Status, duration)
	}

	output, err := json.Marshal(res)
	if err != nil {
		res = Failure(fmt.Sprintf("result could not be encoded: %v", err))
		output, _ = json.Marshal(res)
	}

	return Outcome{
		CallID:   inv.CallID,
		Name:     name,
		Result:   res,
		Output:   string(output),
		Feedback: d.feedback(ctx, def, res, attempts),
		Attempts: attempts,
		Duration: duration,
	}
}

func (d *Dispatcher) execute(ctx context.Context, def Definition, handler Handler, arguments string) (res Result) {
	params := map[string]interface{}{}
	if raw := strings.TrimSpace(arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return Failure(fmt.Sprintf("invalid arguments: %v", err))
		}
		if params == nil {
			params = map[string]interface{}{}
		}
	}

	if err := ValidateRequired(def.Parameters, params); err != nil {
		return Failure(err.Error())
	}

	defer func() {
		if r := recover(); r != nil {
			logger.From(ctx).Error("Tool handler panicked", "tool", def.Name, "panic", r)
			res = Failure(fmt.Sprintf("%s crashed: %v", def.Name, r))
		}
	}()

	res, err := handler(ctx, params, d.snapshot())
	if err != nil {
		logger.From(ctx).Error("Tool execution failed", "tool", def.Name, "error", torqueErrors.WrapWithCategory(err, def.Name, torqueErrors.ErrToolExecution))
		return Failure(err.Error())
	}

	switch res.Status {
	case "":
		res.Status = StatusSuccess
	case StatusSuccess, StatusError, StatusNoResults:
	default:
		res = Failure(fmt.Sprintf("unknown result status %q: %s", res.Status, res.Message))
	}
	return res
}

func (d *Dispatcher) record(name string, status Status) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.attempts[name]
	if !ok {
		a = &Attempt{}
		d.attempts[name] = a
	}
	if status == StatusSuccess {
		a.Attempts = 0
	} else {
		a.Attempts++
	}
	a.LastResult = status
	return a.Attempts
}

// Attempt returns the retry state of a tool; false until it has been invoked once.
func (d *Dispatcher) Attempt(name string) (Attempt, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.attempts[NormalizeToolName(name)]
	if !ok {
		return Attempt{}, false
	}
	return *a, true
}

// Reset forgets all attempt state; called when a new session starts.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.attempts = make(map[string]*Attempt)
	d.mu.Unlock()
}
