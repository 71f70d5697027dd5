package eventlog

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAppendCoalescesSameType(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		l.Append(Entry{Time: time.Duration(i) * time.Millisecond, Source: SourceServer, Type: "response.audio.delta", Payload: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))})
	}

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Count)
	assert.Equal(t, 4*time.Millisecond, entries[0].Time)
	assert.JSONEq(t, `{"n":4}`, string(entries[0].Payload))
}

func TestAppendKeepsOrderAcrossTypes(t *testing.T) {
	l := New()
	l.Append(Entry{Type: "a", Source: SourceClient})
	l.Append(Entry{Type: "b", Source: SourceServer})
	l.Append(Entry{Type: "b", Source: SourceServer})
	l.Append(Entry{Type: "a", Source: SourceClient})

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a", "b", "a"}, []string{entries[0].Type, entries[1].Type, entries[2].Type})
	assert.Equal(t, []int{1, 2, 1}, []int{entries[0].Count, entries[1].Count, entries[2].Count})
}

func TestClear(t *testing.T) {
	l := New()
	l.Append(Entry{Type: "a"})
	l.Clear()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Entries())
}

func TestEntriesReturnsCopy(t *testing.T) {
	l := New()
	l.Append(Entry{Type: "a"})
	got := l.Entries()
	got[0].Count = 99
	assert.Equal(t, 1, l.Entries()[0].Count)
}

func TestConcurrentAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Append(Entry{Type: "same"})
			}
		}()
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 800, entries[0].Count)
}

func TestCoalescingProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		types := rapid.SliceOf(rapid.SampledFrom([]string{"a", "b", "c"})).Draw(t, "types")

		l := New()
		for _, typ := range types {
			l.Append(Entry{Type: typ})
		}
		entries := l.Entries()

		total := 0
		for i, e := range entries {
			total += e.Count
			if e.Count < 1 {
				t.Fatalf("entry %d has count %d", i, e.Count)
			}
			if i > 0 && entries[i-1].Type == e.Type {
				t.Fatalf("adjacent entries %d and %d share type %q", i-1, i, e.Type)
			}
		}
		if total != len(types) {
			t.Fatalf("counts sum to %d, want %d", total, len(types))
		}
	})
}

func TestSameTypeRunsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n")
		alternate := rapid.Bool().Draw(t, "alternate")

		l := New()
		for i := 0; i < n; i++ {
			typ := "x"
			if alternate && i%2 == 1 {
				typ = "y"
			}
			l.Append(Entry{Type: typ})
		}

		entries := l.Entries()
		if alternate {
			if len(entries) != n {
				t.Fatalf("alternating: got %d entries, want %d", len(entries), n)
			}
			for _, e := range entries {
				if e.Count != 1 {
					t.Fatalf("alternating: count %d, want 1", e.Count)
				}
			}
			return
		}
		if len(entries) != 1 || entries[0].Count != n {
			t.Fatalf("same type: got %+v, want one entry with count %d", entries, n)
		}
	})
}
