// Package conversation owns one realtime session: its lifecycle, the audio
// pipeline feeding it, the tools it may call and the items it produced.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/torque/internal/audio"
	"github.com/harunnryd/torque/internal/composer"
	"github.com/harunnryd/torque/internal/concurrency"
	"github.com/harunnryd/torque/internal/config"
	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/eventlog"
	"github.com/harunnryd/torque/internal/logger"
	"github.com/harunnryd/torque/internal/realtime"
	"github.com/harunnryd/torque/internal/shop"
	"github.com/harunnryd/torque/internal/store"
	"github.com/harunnryd/torque/internal/tool"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

const (
	reasonLocal  = "local"
	reasonRemote = "remote"

	contextBuffer = 8
)

// Audio is the part of audio.Pipeline the controller drives.
type Audio interface {
	SampleRate() int
	BeginCapture(ctx context.Context) error
	EndCapture() error
	Record(onFrame func([]int16), onError func(error)) error
	Pause()
	ConnectPlayback(ctx context.Context) error
	ClosePlayback() error
	PushPlaybackSamples(samples []int16, trackID string)
	InterruptPlayback() (audio.Interruption, bool)
	SampleFrequencies(which audio.Source) []float64
}

// Metrics receives lifecycle counters. metrics.Metrics satisfies it.
type Metrics interface {
	SessionConnected()
	ConnectFailed(category string)
	SessionDisconnected(reason string, lifetime time.Duration)
	Reconnected(ok bool)
	FrameSent()
}

// Archiver stores a transcript when a session ends.
type Archiver interface {
	Save(ctx context.Context, t *store.Transcript) (string, error)
}

// ToolSetup re-arms the registry at the start of every session. memory is the
// controller's scratchpad for the set_memory tool.
type ToolSetup func(registry *tool.Registry, memory tool.Memory) error

type Options struct {
	Transport  realtime.Transport
	Audio      Audio
	Registry   *tool.Registry
	Dispatcher *tool.Dispatcher
	Context    *shop.ContextStore
	Realtime   config.RealtimeConfig
	Prompts    composer.Prompts
	SetupTools ToolSetup
	Metrics    Metrics
	Archive    Archiver
}

type Controller struct {
	transport  realtime.Transport
	audio      Audio
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	shop       *shop.ContextStore
	prompts    composer.Prompts
	setupTools ToolSetup
	metrics    Metrics
	archive    Archiver
	mapper     *torqueErrors.DefaultErrorMapper

	rtCfg         config.RealtimeConfig
	sessionCfg    realtime.SessionConfig
	vad           bool
	autoReconnect bool

	// life serializes Connect, Disconnect and the talk operations.
	life sync.Mutex

	mu        sync.Mutex
	status    Status
	gen       uint64
	handle    realtime.Handle
	sessionID string
	startedAt time.Time
	items     itemList
	memory    map[string]string
	recording bool
	// talkGen is the generation a push-to-talk turn started in; zero when idle.
	talkGen uint64

	log *eventlog.Log

	subMu   sync.Mutex
	subs    map[int]*subscriber
	nextSub int

	stopContext func()
	closeOnce   sync.Once
}

func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, torqueErrors.InvalidInput("conversation: transport is required")
	}
	if opts.Audio == nil {
		return nil, torqueErrors.InvalidInput("conversation: audio pipeline is required")
	}
	if opts.Registry == nil {
		opts.Registry = tool.NewRegistry()
	}
	if opts.Context == nil {
		opts.Context = shop.NewContextStore()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = tool.NewDispatcher(opts.Registry, opts.Context.Snapshot)
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	timeout, err := config.DurationOrDefault(opts.Realtime.ConnectTimeout, config.DefaultRealtimeConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("realtime.connect_timeout: %w", err)
	}

	c := &Controller{
		transport:  opts.Transport,
		audio:      opts.Audio,
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		shop:       opts.Context,
		prompts:    opts.Prompts,
		setupTools: opts.SetupTools,
		metrics:    opts.Metrics,
		archive:    opts.Archive,
		mapper:     torqueErrors.NewDefaultErrorMapper(),
		rtCfg:      opts.Realtime,
		sessionCfg: realtime.SessionConfig{
			URL:            opts.Realtime.URL,
			Model:          opts.Realtime.Model,
			APIKey:         opts.Realtime.APIKey,
			ConnectTimeout: timeout,
		},
		vad:           opts.Realtime.VADEnabled(),
		autoReconnect: opts.Realtime.AutoReconnect,
		status:        StatusDisconnected,
		items:         newItemList(),
		memory:        make(map[string]string),
		log:           eventlog.New(),
		subs:          make(map[int]*subscriber),
	}

	changes, cancel := c.shop.Subscribe(contextBuffer)
	c.stopContext = cancel
	concurrency.SafeGo(func() { c.watchContext(changes) }, nil)

	return c, nil
}

// Close disconnects and stops all background work. The controller is unusable
// afterwards.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.stopContext()
		c.Disconnect()
		c.closeSubscribers()
	})
}

// Connect opens audio and the realtime session. It is a no-op unless the
// controller is disconnected.
func (c *Controller) Connect(ctx context.Context) error {
	c.life.Lock()
	defer c.life.Unlock()
	return c.connectLocked(ctx)
}

func (c *Controller) connectLocked(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusConnecting
	c.mu.Unlock()
	c.emit(Event{Kind: EventStatus, Status: StatusConnecting})

	if err := c.audio.BeginCapture(ctx); err != nil {
		return c.abortConnect(torqueErrors.WrapWithCategory(err, "connect", torqueErrors.ErrConnection), false)
	}
	if err := c.audio.ConnectPlayback(ctx); err != nil {
		return c.abortConnect(torqueErrors.WrapWithCategory(err, "connect", torqueErrors.ErrConnection), true)
	}

	handle, err := c.transport.Open(ctx, c.sessionCfg)
	if err != nil {
		return c.abortConnect(torqueErrors.WrapWithCategory(err, "open realtime session", torqueErrors.ErrConnection), true)
	}

	if c.setupTools != nil {
		if err := c.setupTools(c.registry, c); err != nil {
			if closeErr := handle.Close(); closeErr != nil {
				slog.Warn("Failed to close realtime session after tool setup error", "error", closeErr)
			}
			return c.abortConnect(torqueErrors.WrapWithCategory(err, "set up tools", torqueErrors.ErrConnection), true)
		}
	}
	c.dispatcher.Reset()

	sessionID := ulid.Make().String()
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.handle = handle
	c.status = StatusConnected
	c.sessionID = sessionID
	c.startedAt = time.Now()
	c.items = newItemList()
	c.log.Clear()
	c.emit(Event{Kind: EventItemsCleared})
	c.emit(Event{Kind: EventStatus, Status: StatusConnected})
	c.mu.Unlock()

	logger.From(logger.WithSessionID(ctx, sessionID)).Info("Realtime session connected", "model", c.sessionCfg.Model, "vad", c.vad)
	c.metrics.SessionConnected()

	concurrency.SafeGo(func() { c.watch(gen, handle) }, nil)

	snap := c.shop.Snapshot()
	c.sendGen(gen, c.sessionUpdate(snap))
	c.sendGen(gen, realtime.NewUserText(composer.Greeting(snap)))
	c.sendGen(gen, realtime.NewResponseCreate())

	if c.vad {
		if err := c.startStreaming(gen); err != nil {
			c.emitError(torqueErrors.WrapWithCategory(err, "start streaming", torqueErrors.ErrRecording))
		}
	}
	return nil
}

func (c *Controller) abortConnect(err error, releasePlayback bool) error {
	var cleanup *multierror.Error
	if endErr := c.audio.EndCapture(); endErr != nil {
		cleanup = multierror.Append(cleanup, endErr)
	}
	if releasePlayback {
		if closeErr := c.audio.ClosePlayback(); closeErr != nil {
			cleanup = multierror.Append(cleanup, closeErr)
		}
	}
	if cleanupErr := cleanup.ErrorOrNil(); cleanupErr != nil {
		slog.Warn("Connect cleanup failed", "error", cleanupErr)
	}

	c.mu.Lock()
	c.status = StatusDisconnected
	c.mu.Unlock()

	category := c.mapper.Category(err)
	slog.Error("Realtime connect failed", "category", category, "error", err)
	c.metrics.ConnectFailed(category)
	c.emit(Event{Kind: EventStatus, Status: StatusDisconnected})
	return err
}

// Disconnect tears the session down. It is safe in any state and never fails;
// cleanup problems are logged.
func (c *Controller) Disconnect() {
	c.life.Lock()
	defer c.life.Unlock()
	c.disconnectLocked(reasonLocal)
}

func (c *Controller) disconnectLocked(reason string) {
	c.mu.Lock()
	prev := c.status
	handle := c.handle
	started := c.startedAt
	sessionID := c.sessionID
	var transcript *store.Transcript
	if prev == StatusConnected && c.archive != nil && c.items.len() > 0 {
		transcript = c.transcriptLocked(reason)
	}

	c.status = StatusDisconnected
	c.handle = nil
	c.gen++
	c.items = newItemList()
	c.memory = make(map[string]string)
	c.recording = false
	if reason == reasonLocal {
		c.talkGen = 0
	}
	c.log.Clear()
	if prev != StatusDisconnected {
		c.emit(Event{Kind: EventStatus, Status: StatusDisconnected})
		c.emit(Event{Kind: EventItemsCleared})
		c.emit(Event{Kind: EventRecording, Recording: false})
	}
	c.mu.Unlock()

	var result *multierror.Error
	if handle != nil {
		if err := handle.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close realtime session: %w", err))
		}
	}
	if err := c.audio.EndCapture(); err != nil {
		result = multierror.Append(result, fmt.Errorf("end capture: %w", err))
	}
	c.audio.InterruptPlayback()
	if err := c.audio.ClosePlayback(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close playback: %w", err))
	}

	log := logger.From(logger.WithSessionID(context.Background(), sessionID))
	if err := result.ErrorOrNil(); err != nil {
		log.Warn("Disconnect cleanup failed", "error", err)
	}
	if prev == StatusConnected {
		lifetime := time.Since(started)
		c.metrics.SessionDisconnected(reason, lifetime)
		log.Info("Realtime session disconnected", "reason", reason, "lifetime", lifetime)
	}

	if transcript != nil {
		if id, err := c.archive.Save(context.Background(), transcript); err != nil {
			log.Warn("Failed to archive transcript", "error", err)
		} else {
			log.Info("Transcript archived", "transcript_id", id, "items", len(transcript.Items))
		}
	}
}

// ToggleConnection disconnects a live or connecting session and connects otherwise.
func (c *Controller) ToggleConnection(ctx context.Context) error {
	c.life.Lock()
	defer c.life.Unlock()

	c.mu.Lock()
	status := c.status
	c.mu.Unlock()

	if status == StatusDisconnected {
		return c.connectLocked(ctx)
	}
	c.disconnectLocked(reasonLocal)
	return nil
}

// watch drains one handle. When the stream ends while the handle is still the
// current one, the remote side dropped the session.
func (c *Controller) watch(gen uint64, h realtime.Handle) {
	for ev := range h.Events() {
		c.handleServerEvent(gen, ev)
	}
	c.handleClosed(gen, h)
}

func (c *Controller) handleClosed(gen uint64, h realtime.Handle) {
	if !c.isCurrent(gen) {
		return
	}

	c.life.Lock()
	defer c.life.Unlock()
	if !c.isCurrent(gen) {
		return
	}

	cause := h.Err()
	err := torqueErrors.ErrUnexpectedDisconnect
	if cause != nil {
		err = torqueErrors.WrapWithCategory(cause, "realtime session closed", torqueErrors.ErrUnexpectedDisconnect)
	}
	slog.Warn("Realtime session dropped", "error", err, "auto_reconnect", c.autoReconnect)

	c.disconnectLocked(reasonRemote)
	c.emitError(err)

	if !c.autoReconnect {
		return
	}
	retryErr := c.connectLocked(context.Background())
	c.metrics.Reconnected(retryErr == nil)
	if retryErr != nil {
		c.emitError(fmt.Errorf("reconnect failed: %w", retryErr))
		return
	}
	slog.Info("Realtime session reconnected")
}

func (c *Controller) watchContext(changes <-chan shop.ChangeKind) {
	for kind := range changes {
		c.mu.Lock()
		gen, live := c.gen, c.status == StatusConnected
		c.mu.Unlock()
		if !live {
			continue
		}
		slog.Debug("Shop context changed, republishing instructions", "change", kind)
		c.sendGen(gen, c.sessionUpdate(c.shop.Snapshot()))
	}
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.status == StatusConnected
}

// sendGen sends ev if gen is still the live session. The state lock is held
// across the write so nothing reaches a handle Disconnect already detached.
func (c *Controller) sendGen(gen uint64, ev realtime.ClientEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(gen, ev)
}

func (c *Controller) sendLocked(gen uint64, ev realtime.ClientEvent) bool {
	if gen != c.gen || c.handle == nil {
		slog.Debug("Dropping client event for stale session", "type", ev.EventType())
		return false
	}
	if err := c.handle.Send(ev); err != nil {
		slog.Warn("Failed to send realtime event", "type", ev.EventType(), "error", err)
		return false
	}
	c.log.Append(eventlog.Entry{
		Time:    time.Since(c.startedAt),
		Source:  eventlog.SourceClient,
		Type:    ev.EventType(),
		Payload: clientPayload(ev),
	})
	return true
}

func clientPayload(ev realtime.ClientEvent) json.RawMessage {
	if _, ok := ev.(realtime.InputAudioAppend); ok {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	return data
}

func (c *Controller) sessionUpdate(snap shop.Snapshot) realtime.ClientEvent {
	defs := c.registry.Definitions()
	tools := make([]realtime.ToolParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, realtime.ToolParam{
			Type:        "function",
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}

	params := realtime.SessionParams{
		Modalities:        []string{"text", "audio"},
		Instructions:      composer.Compose(c.prompts, snap),
		Voice:             c.rtCfg.Voice,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		Tools:             tools,
		ToolChoice:        "auto",
	}
	if c.rtCfg.TranscriptionModel != "" {
		params.InputAudioTranscription = &realtime.Transcription{Model: c.rtCfg.TranscriptionModel}
	}
	if c.vad {
		params.TurnDetection = &realtime.TurnDetection{Type: config.TurnDetectionServerVAD}
	}
	return realtime.NewSessionUpdate(params)
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Items returns a copy of the conversation, audio included.
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.snapshot(true)
}

func (c *Controller) LogEntries() []eventlog.Entry {
	return c.log.Entries()
}

func (c *Controller) Frequencies(which audio.Source) []float64 {
	return c.audio.SampleFrequencies(which)
}

// SetMemory records a key/value pair in the session scratchpad. Writes while
// disconnected are dropped.
func (c *Controller) SetMemory(key, value string) {
	c.mu.Lock()
	if c.status != StatusConnected {
		c.mu.Unlock()
		return
	}
	c.memory[key] = value
	c.emit(Event{Kind: EventMemory, Key: key, Value: value})
	c.mu.Unlock()
}

func (c *Controller) Memory() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.memory))
	for k, v := range c.memory {
		out[k] = v
	}
	return out
}

type nopMetrics struct{}

func (nopMetrics) SessionConnected() {}
func (nopMetrics) ConnectFailed(string) {}
func (nopMetrics) SessionDisconnected(string, time.Duration) {}
func (nopMetrics) Reconnected(bool) {}
func (nopMetrics) FrameSent() {}
