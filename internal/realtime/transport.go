package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
)

const (
	defaultConnectTimeout = 15 * time.Second
	eventBuffer           = 256
	closeGrace            = 2 * time.Second
)

// SessionConfig is what a transport needs to open one session.
type SessionConfig struct {
	URL            string
	Model          string
	APIKey         string
	ConnectTimeout time.Duration
}

// Handle is one open session. Events is closed when the session ends for any
// reason; Err then reports why (nil after a local Close or a clean remote close).
type Handle interface {
	Send(ev ClientEvent) error
	Events() <-chan ServerEvent
	Err() error
	Close() error
}

type Transport interface {
	Open(ctx context.Context, cfg SessionConfig) (Handle, error)
}

// WebsocketTransport dials the realtime endpoint with gorilla/websocket.
type WebsocketTransport struct {
	Dialer *websocket.Dialer
}

func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{Dialer: websocket.DefaultDialer}
}

// Open dials and waits for the first server frame. An error frame fails the open.
func (t *WebsocketTransport) Open(ctx context.Context, cfg SessionConfig) (Handle, error) {
	endpoint, err := sessionURL(cfg)
	if err != nil {
		return nil, torqueErrors.WrapWithCategory(err, "realtime url", torqueErrors.ErrConnection)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	headers := make(http.Header)
	if cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, torqueErrors.WrapWithCategory(err, "dial realtime", torqueErrors.ErrConnection)
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, torqueErrors.WrapWithCategory(err, "read first realtime frame", torqueErrors.ErrConnection)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if messageType != websocket.TextMessage {
		_ = conn.Close()
		return nil, torqueErrors.Connection(fmt.Sprintf("unexpected first frame type %d", messageType))
	}
	first, err := DecodeServerEvent(payload)
	if err != nil {
		_ = conn.Close()
		return nil, torqueErrors.WrapWithCategory(err, "decode first realtime frame", torqueErrors.ErrConnection)
	}
	if first.Type == EventError {
		_ = conn.Close()
		msg := "session rejected"
		if first.Error != nil && first.Error.Message != "" {
			msg = first.Error.Message
		}
		return nil, torqueErrors.Connection(msg)
	}

	s := &wsSession{
		conn:    conn,
		events:  make(chan ServerEvent, eventBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	s.events <- first
	go s.readLoop()
	return s, nil
}

func sessionURL(cfg SessionConfig) (string, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return "", errors.New("realtime url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported realtime url scheme %q", u.Scheme)
	}
	if cfg.Model != "" {
		q := u.Query()
		q.Set("model", cfg.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type wsSession struct {
	conn *websocket.Conn

	events  chan ServerEvent
	done    chan struct{}
	closing chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

func (s *wsSession) Events() <-chan ServerEvent {
	return s.events
}

func (s *wsSession) Send(ev ClientEvent) error {
	select {
	case <-s.closing:
		return torqueErrors.Connection("realtime session is closed")
	case <-s.done:
		return torqueErrors.Connection("realtime session has ended")
	default:
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGrace))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *wsSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *wsSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *wsSession) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.setErr(torqueErrors.WrapWithCategory(err, "realtime read", torqueErrors.ErrUnexpectedDisconnect))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		ev, err := DecodeServerEvent(data)
		if err != nil {
			slog.Warn("Skipping undecodable realtime frame", "error", err, "bytes", len(data))
			continue
		}
		select {
		case s.events <- ev:
		case <-s.closing:
			return
		}
	}
}
