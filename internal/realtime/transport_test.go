package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
)

func newRealtimeTestServer(t *testing.T, handler func(r *http.Request, conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handler(r, conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestOpenSendsAuthAndDeliversEvents(t *testing.T) {
	received := make(chan map[string]interface{}, 1)
	url := newRealtimeTestServer(t, func(r *http.Request, conn *websocket.Conn) {
		defer conn.Close()
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "gpt-realtime", r.URL.Query().Get("model"))

		_ = conn.WriteJSON(map[string]interface{}{"type": EventSessionCreated, "event_id": "e1"})

		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		received <- msg
		_ = conn.WriteJSON(map[string]interface{}{"type": EventAudioDelta, "item_id": "t1", "delta": EncodePCM16([]int16{1, 2})})
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	})

	handle, err := NewWebsocketTransport().Open(context.Background(), SessionConfig{URL: url, Model: "gpt-realtime", APIKey: "sk-test"})
	require.NoError(t, err)
	defer handle.Close()

	first := <-handle.Events()
	assert.Equal(t, EventSessionCreated, first.Type)
	assert.NotEmpty(t, first.Raw)

	require.NoError(t, handle.Send(NewItemTruncate("t1", 200)))
	msg := <-received
	assert.Equal(t, "conversation.item.truncate", msg["type"])
	assert.Equal(t, "t1", msg["item_id"])
	assert.Equal(t, float64(0), msg["content_index"])
	assert.Equal(t, float64(200), msg["audio_end_ms"])

	delta := <-handle.Events()
	assert.Equal(t, EventAudioDelta, delta.Type)
	samples, err := DecodePCM16(delta.Delta)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2}, samples)

	_, open := <-handle.Events()
	assert.False(t, open)
	assert.NoError(t, handle.Err())
}

func TestOpenFailsOnErrorFrame(t *testing.T) {
	url := newRealtimeTestServer(t, func(_ *http.Request, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]interface{}{"type": EventError, "error": map[string]interface{}{"message": "invalid api key"}})
	})

	_, err := NewWebsocketTransport().Open(context.Background(), SessionConfig{URL: url})
	require.Error(t, err)
	assert.ErrorIs(t, err, torqueErrors.ErrConnection)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenFailsWhenUnreachable(t *testing.T) {
	_, err := NewWebsocketTransport().Open(context.Background(), SessionConfig{URL: "ws://127.0.0.1:1", ConnectTimeout: time.Second})
	require.Error(t, err)
	assert.ErrorIs(t, err, torqueErrors.ErrConnection)

	_, err = NewWebsocketTransport().Open(context.Background(), SessionConfig{URL: "ftp://example.com"})
	assert.ErrorIs(t, err, torqueErrors.ErrConnection)
}

func TestAbruptCloseReportsUnexpectedDisconnect(t *testing.T) {
	url := newRealtimeTestServer(t, func(_ *http.Request, conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]interface{}{"type": EventSessionCreated})
		_ = conn.Close()
	})

	handle, err := NewWebsocketTransport().Open(context.Background(), SessionConfig{URL: url})
	require.NoError(t, err)

	for range handle.Events() {
	}
	assert.ErrorIs(t, handle.Err(), torqueErrors.ErrUnexpectedDisconnect)
	assert.Error(t, handle.Send(NewResponseCreate()))
	assert.NoError(t, handle.Close())
}

func TestLocalCloseEndsEventsWithoutError(t *testing.T) {
	url := newRealtimeTestServer(t, func(_ *http.Request, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]interface{}{"type": EventSessionCreated})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	handle, err := NewWebsocketTransport().Open(context.Background(), SessionConfig{URL: url})
	require.NoError(t, err)
	<-handle.Events()

	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close())
	_, open := <-handle.Events()
	assert.False(t, open)
	assert.NoError(t, handle.Err())
}

func TestSessionUpdateEncoding(t *testing.T) {
	data, err := json.Marshal(NewSessionUpdate(SessionParams{
		Instructions: "be brief",
		Tools:        []ToolParam{{Type: "function", Name: "lookup_customer"}},
	}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "session.update", decoded["type"])
	session := decoded["session"].(map[string]interface{})
	assert.Nil(t, session["turn_detection"])
	assert.Contains(t, session, "turn_detection")
	assert.Equal(t, "be brief", session["instructions"])
}

func TestPCM16RoundTripAndOddBytes(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	out, err := DecodePCM16(EncodePCM16(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodePCM16("AQ==")
	assert.Error(t, err)
	_, err = DecodePCM16("!!")
	assert.Error(t, err)
}
