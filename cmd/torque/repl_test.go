package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/torque/internal/audio"
	"github.com/harunnryd/torque/internal/backend"
	"github.com/harunnryd/torque/internal/config"
	"github.com/harunnryd/torque/internal/conversation"
	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/realtime"
	"github.com/harunnryd/torque/internal/shop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShopServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET /customers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") == "nobody" {
			writeJSON(w, []shop.Customer{})
			return
		}
		writeJSON(w, []shop.Customer{{ID: "c1", FirstName: "Ada", LastName: "Lovelace", Phone: "555-0100"}})
	})
	mux.HandleFunc("GET /customers/c1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, shop.Customer{ID: "c1", FirstName: "Ada", LastName: "Lovelace"})
	})
	mux.HandleFunc("GET /customers/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"message": "customer not found"})
	})
	mux.HandleFunc("GET /customers/c1/vehicles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []shop.Vehicle{{ID: "v1", CustomerID: "c1", Year: 2020, Make: "Honda", Model: "Civic", VIN: "1HGCM"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestREPL(t *testing.T, in string) (*REPL, *components, *bytes.Buffer) {
	t.Helper()
	srv := newShopServer(t)
	client, err := backend.NewClient(srv.URL, "", time.Second)
	require.NoError(t, err)

	shopCtx := shop.NewContextStore()
	pipeline := audio.NewPipeline(&audio.SilentCapture{}, audio.NewSilentPlayback(24000), audio.Options{FrameSize: 4, FFTSize: 64})
	ctrl, err := conversation.New(conversation.Options{
		Transport: realtime.NewWebsocketTransport(),
		Audio:     pipeline,
		Context:   shopCtx,
		Realtime:  config.RealtimeConfig{TurnDetection: config.TurnDetectionManual},
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	c := &components{
		cfg:        &config.Config{},
		backend:    client,
		shop:       shopCtx,
		pipeline:   pipeline,
		controller: ctrl,
	}
	out := &bytes.Buffer{}
	return NewREPL(context.Background(), c, strings.NewReader(in), out), c, out
}

func TestREPLCustomerSelection(t *testing.T) {
	r, c, out := newTestREPL(t, "")

	require.NoError(t, r.execute("/customer find ada"))
	assert.Contains(t, out.String(), "Ada Lovelace")
	assert.Contains(t, out.String(), "555-0100")

	out.Reset()
	require.NoError(t, r.execute("/customer find nobody"))
	assert.Contains(t, out.String(), "no customers found")

	require.NoError(t, r.execute("/customer use c1"))
	snap := c.shop.Snapshot()
	require.NotNil(t, snap.Customer)
	assert.Equal(t, "c1", snap.Customer.ID)

	err := r.execute("/customer use missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, torqueErrors.ErrNotFound)

	require.NoError(t, r.execute("/customer clear"))
	assert.Nil(t, c.shop.Snapshot().Customer)
}

func TestREPLVehicleSelection(t *testing.T) {
	r, c, out := newTestREPL(t, "")

	err := r.execute("/vehicle")
	assert.ErrorIs(t, err, torqueErrors.ErrInvalidInput)

	require.NoError(t, r.execute("/customer use c1"))
	require.NoError(t, r.execute("/vehicle"))
	assert.Contains(t, out.String(), "2020 Honda Civic")

	require.NoError(t, r.execute("/vehicle use v1"))
	snap := c.shop.Snapshot()
	require.NotNil(t, snap.Vehicle)
	assert.Equal(t, "v1", snap.Vehicle.ID)

	assert.ErrorIs(t, r.execute("/vehicle use v9"), torqueErrors.ErrNotFound)
}

func TestREPLResearchQuotedArguments(t *testing.T) {
	r, c, _ := newTestREPL(t, "")

	require.NoError(t, r.execute(`/research "rough idle when cold" "P0301 stored" "plug 1 fouled"`))
	snap := c.shop.Snapshot()
	require.NotNil(t, snap.Research)
	assert.Equal(t, "rough idle when cold", snap.Research.Problem)
	assert.Equal(t, []string{"P0301 stored", "plug 1 fouled"}, snap.Research.Findings)

	require.NoError(t, r.execute("/research clear"))
	assert.Nil(t, c.shop.Snapshot().Research)
}

func TestREPLRequiresConnection(t *testing.T) {
	r, _, _ := newTestREPL(t, "")

	assert.ErrorIs(t, r.execute("hello there"), torqueErrors.ErrConnection)
	assert.ErrorIs(t, r.execute("/say hello"), torqueErrors.ErrConnection)
	assert.ErrorIs(t, r.execute("/delete item_1"), torqueErrors.ErrConnection)
	assert.ErrorIs(t, r.execute("/delete"), torqueErrors.ErrInvalidInput)
}

func TestREPLInspection(t *testing.T) {
	r, _, out := newTestREPL(t, "")

	require.NoError(t, r.execute("/status"))
	assert.Contains(t, out.String(), "status:    disconnected")
	assert.Contains(t, out.String(), "items:     0")

	out.Reset()
	require.NoError(t, r.execute("/spectrum capture"))
	assert.True(t, strings.HasPrefix(out.String(), "capture"))

	require.NoError(t, r.execute("/help"))
	require.NoError(t, r.execute("   "))
	assert.ErrorIs(t, r.execute("/bogus"), torqueErrors.ErrInvalidInput)
	assert.ErrorIs(t, r.execute("/exit"), io.EOF)
}

// printed reads the buffer under the REPL's output lock; the event printer may
// still be writing.
func printed(r *REPL, out *bytes.Buffer) string {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	return out.String()
}

func TestREPLStartStopsOnExit(t *testing.T) {
	r, _, out := newTestREPL(t, "/status\n/exit\n/status\n")

	require.NoError(t, r.Start(false))
	text := printed(r, out)
	assert.Contains(t, text, "manual turns")
	assert.Equal(t, 1, strings.Count(text, "status:"))
}

func TestREPLStartReportsErrors(t *testing.T) {
	r, _, out := newTestREPL(t, "/talk\n")

	require.NoError(t, r.Start(false))
	assert.Contains(t, printed(r, out), "error:")
}

func TestReadLinesStopsWhenNobodyListens(t *testing.T) {
	r, _, _ := newTestREPL(t, "first\nsecond\n")

	lines := make(chan string)
	done := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		r.readLines(lines, make(chan error, 1), done)
		close(returned)
	}()

	assert.Equal(t, "first\n", <-lines)
	close(done)
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("reader kept blocking after the loop stopped")
	}
}

func TestReadLinesStopsOnCancel(t *testing.T) {
	r, _, _ := newTestREPL(t, "first\n")
	ctx, cancel := context.WithCancel(context.Background())
	r.ctx = ctx
	cancel()

	returned := make(chan struct{})
	go func() {
		r.readLines(make(chan string), make(chan error, 1), make(chan struct{}))
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("reader ignored the cancelled context")
	}
}

func TestSpectrumBar(t *testing.T) {
	assert.Equal(t, "", spectrumBar(nil, 8))

	bar := spectrumBar([]float64{0, 0, 1, 1, 2, 2, 4, 4}, 4)
	assert.Equal(t, 4, len([]rune(bar)))
	assert.Equal(t, '█', []rune(bar)[3])
	assert.Equal(t, ' ', []rune(bar)[0])

	assert.Equal(t, "    ", spectrumBar([]float64{0, 0, 0, 0}, 4))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t c", 80))
	assert.Equal(t, "abcdefg...", oneLine(strings.Repeat("abcdefghij", 3), 10))
}
