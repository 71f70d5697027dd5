package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/torque/internal/shop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []Status
}

func (o *recordingObserver) ObserveTool(_ string, status Status, _ time.Duration) {
	o.mu.Lock()
	o.calls = append(o.calls, status)
	o.mu.Unlock()
}

type stubSummarizer struct {
	calls int
}

func (s *stubSummarizer) Name() string { return "stub" }

func (s *stubSummarizer) Summarize(_ context.Context, _ string, maxChars int) (string, error) {
	s.calls++
	return strings.Repeat("s", maxChars/2), nil
}

func echoDefinition(name string) Definition {
	return Definition{
		Name:        name,
		Description: "echo",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
			"required": []string{"text"},
		},
	}
}

func echoHandler(_ context.Context, params map[string]interface{}, _ shop.Snapshot) (Result, error) {
	return Success("echoed", map[string]interface{}{"text": params["text"]}), nil
}

func TestRegistryRegisterLastWriteWins(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoDefinition("echo"), echoHandler)
	registry.Register(Definition{Name: " echo ", Description: "second"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
		return Success("second", nil), nil
	})

	def, _, ok := registry.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "second", def.Description)
	assert.Equal(t, 1, registry.Len())
	assert.NotNil(t, def.Parameters)
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"manage_notes", "lookup_customer", "query_logs"} {
		registry.Register(echoDefinition(name), echoHandler)
	}

	var names []string
	for _, def := range registry.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"lookup_customer", "manage_notes", "query_logs"}, names)
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)

	out := d.Dispatch(context.Background(), Invocation{CallID: "call_1", Name: "foo", Arguments: `{}`})

	assert.Equal(t, StatusError, out.Result.Status)
	assert.Regexp(t, regexp.MustCompile(`(?i)unhandled`), out.Result.Message)
	assert.Equal(t, "call_1", out.CallID)
	assert.JSONEq(t, `{"status":"error","message":"unhandled action: foo"}`, out.Output)
	assert.Equal(t, 1, out.Attempts)
}

func TestDispatchSuccessResetsAttempts(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoDefinition("echo"), echoHandler)
	d := NewDispatcher(registry, nil)

	out := d.Dispatch(context.Background(), Invocation{Name: "echo", Arguments: `{}`})
	assert.Equal(t, StatusError, out.Result.Status)
	assert.Contains(t, out.Result.Message, "missing required field: text")

	out = d.Dispatch(context.Background(), Invocation{Name: "echo", Arguments: `not json`})
	assert.Equal(t, StatusError, out.Result.Status)
	assert.Equal(t, 2, out.Attempts)

	out = d.Dispatch(context.Background(), Invocation{Name: "echo", Arguments: `{"text":"hi"}`})
	assert.Equal(t, StatusSuccess, out.Result.Status)
	assert.Equal(t, 0, out.Attempts)

	a, ok := d.Attempt("echo")
	require.True(t, ok)
	assert.Equal(t, Attempt{Attempts: 0, LastResult: StatusSuccess}, a)
}

func TestDispatchConvertsErrorsAndPanics(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Definition{Name: "broken"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
		return Result{}, errors.New("backend unreachable")
	})
	registry.Register(Definition{Name: "panicky"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
		panic("nil vehicle")
	})
	registry.Register(Definition{Name: "implicit"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
		return Result{Message: "done"}, nil
	})
	obs := &recordingObserver{}
	d := NewDispatcher(registry, nil, WithObserver(obs))

	out := d.Dispatch(context.Background(), Invocation{Name: "broken"})
	assert.Equal(t, StatusError, out.Result.Status)
	assert.Equal(t, "backend unreachable", out.Result.Message)
	assert.Equal(t, "broken failed (attempt 1): backend unreachable.", out.Feedback)

	out = d.Dispatch(context.Background(), Invocation{Name: "panicky"})
	assert.Equal(t, StatusError, out.Result.Status)
	assert.Contains(t, out.Result.Message, "nil vehicle")

	out = d.Dispatch(context.Background(), Invocation{Name: "implicit"})
	assert.Equal(t, StatusSuccess, out.Result.Status)

	assert.Equal(t, []Status{StatusError, StatusError, StatusSuccess}, obs.calls)
}

func TestDispatchPassesSnapshot(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Definition{Name: "who"}, func(_ context.Context, _ map[string]interface{}, snap shop.Snapshot) (Result, error) {
		if snap.Customer == nil {
			return Failure("no customer"), nil
		}
		return Success(snap.Customer.FullName(), nil), nil
	})
	store := shop.NewContextStore()
	d := NewDispatcher(registry, store.Snapshot)

	assert.Equal(t, StatusError, d.Dispatch(context.Background(), Invocation{Name: "who"}).Result.Status)

	store.SetCustomer(&shop.Customer{FirstName: "Jane", LastName: "Doe"})
	out := d.Dispatch(context.Background(), Invocation{Name: "who"})
	assert.Equal(t, "Jane Doe", out.Result.Message)
}

func TestFeedbackMessages(t *testing.T) {
	registry := NewRegistry()
	def := echoDefinition("search_images")
	def.SuccessHint = "The images are already displayed."
	registry.Register(def, echoHandler)
	registry.Register(Definition{Name: "query_logs"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
		return NoResults("no matching log lines"), nil
	})
	d := NewDispatcher(registry, nil)

	out := d.Dispatch(context.Background(), Invocation{Name: "search_images", Arguments: `{"text":"brake pads"}`})
	assert.Equal(t, `search_images succeeded: echoed. The images are already displayed.`+"\n"+`Result: {"text":"brake pads"}`, out.Feedback)

	out = d.Dispatch(context.Background(), Invocation{Name: "query_logs"})
	assert.Equal(t, "query_logs returned no results (attempt 1): no matching log lines.", out.Feedback)
	out = d.Dispatch(context.Background(), Invocation{Name: "query_logs"})
	assert.Equal(t, "query_logs returned no results (attempt 2): no matching log lines.", out.Feedback)
}

func TestFeedbackBoundedBySummarizer(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Definition{Name: "big"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
		return Success("lots", map[string]string{"blob": strings.Repeat("x", 5000)}), nil
	})
	sum := &stubSummarizer{}
	d := NewDispatcher(registry, nil, WithSummarizer(sum), WithMaxFeedbackChars(300))

	out := d.Dispatch(context.Background(), Invocation{Name: "big"})
	assert.Equal(t, 1, sum.calls)
	assert.LessOrEqual(t, len(out.Feedback), 300)
	assert.Contains(t, out.Feedback, "Result summary: ")
	assert.Contains(t, out.Output, strings.Repeat("x", 5000), "function output keeps the full result")
}

func TestFeedbackDefaultTruncation(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Definition{Name: "big"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
		return Success("lots", strings.Repeat("y", 1000)), nil
	})
	d := NewDispatcher(registry, nil, WithMaxFeedbackChars(200))

	out := d.Dispatch(context.Background(), Invocation{Name: "big"})
	assert.LessOrEqual(t, len([]rune(out.Feedback)), 200)
	assert.Contains(t, out.Feedback, "[truncated]")
}

func TestConcurrentDispatchCountsEveryFailure(t *testing.T) {
	registry := NewRegistry()
	release := make(chan struct{})
	registry.Register(Definition{Name: "slow"}, func(ctx context.Context, _ map[string]interface{}, _ shop.Snapshot) (Result, error) {
		<-release
		return Failure("still failing"), nil
	})
	d := NewDispatcher(registry, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Dispatch(context.Background(), Invocation{CallID: fmt.Sprintf("call_%d", i), Name: "slow"})
		}(i)
	}
	close(release)
	wg.Wait()

	a, ok := d.Attempt("slow")
	require.True(t, ok)
	assert.Equal(t, 10, a.Attempts)
	assert.Equal(t, StatusError, a.LastResult)
}

func TestAttemptCounterProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcomes := rapid.SliceOfN(rapid.SampledFrom([]Status{StatusSuccess, StatusError, StatusNoResults}), 1, 50).Draw(t, "outcomes")

		registry := NewRegistry()
		i := 0
		registry.Register(Definition{Name: "flaky"}, func(context.Context, map[string]interface{}, shop.Snapshot) (Result, error) {
			status := outcomes[i]
			i++
			return Result{Status: status, Message: string(status)}, nil
		})
		d := NewDispatcher(registry, nil)

		want := 0
		for _, status := range outcomes {
			out := d.Dispatch(context.Background(), Invocation{Name: "flaky"})
			if status == StatusSuccess {
				want = 0
			} else {
				want++
			}
			if out.Attempts != want {
				t.Fatalf("attempts = %d, want %d", out.Attempts, want)
			}
		}

		a, _ := d.Attempt("flaky")
		if a.Attempts != want || a.LastResult != outcomes[len(outcomes)-1] {
			t.Fatalf("final attempt state %+v, want %d/%s", a, want, outcomes[len(outcomes)-1])
		}
	})
}

func TestReset(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)
	d.Dispatch(context.Background(), Invocation{Name: "foo"})
	d.Reset()
	_, ok := d.Attempt("foo")
	assert.False(t, ok)
}
