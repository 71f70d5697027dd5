// Package realtime speaks the realtime conversation event protocol: JSON events
// over a websocket, with PCM16 audio carried as base64.
package realtime

import "encoding/json"

// Server event types the session runtime reacts to.
const (
	EventSessionCreated            = "session.created"
	EventSessionUpdated            = "session.updated"
	EventError                     = "error"
	EventItemCreated               = "conversation.item.created"
	EventItemDeleted               = "conversation.item.deleted"
	EventItemTruncated             = "conversation.item.truncated"
	EventInputTranscriptionDone    = "conversation.item.input_audio_transcription.completed"
	EventSpeechStarted             = "input_audio_buffer.speech_started"
	EventSpeechStopped             = "input_audio_buffer.speech_stopped"
	EventAudioDelta                = "response.audio.delta"
	EventAudioTranscriptDelta      = "response.audio_transcript.delta"
	EventTextDelta                 = "response.text.delta"
	EventOutputItemDone            = "response.output_item.done"
	EventFunctionCallArgumentsDone = "response.function_call_arguments.done"
	EventResponseDone              = "response.done"
)

// Item roles, types and statuses as they appear on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	ItemMessage            = "message"
	ItemFunctionCall       = "function_call"
	ItemFunctionCallOutput = "function_call_output"

	ItemStatusInProgress = "in_progress"
	ItemStatusCompleted  = "completed"
	ItemStatusIncomplete = "incomplete"
)

type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Audio      string `json:"audio,omitempty"`
}

type Item struct {
	ID        string        `json:"id,omitempty"`
	Type      string        `json:"type"`
	Role      string        `json:"role,omitempty"`
	Status    string        `json:"status,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    string        `json:"output,omitempty"`
}

type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// ServerEvent is one decoded server message. Raw keeps the original frame.
type ServerEvent struct {
	Type         string       `json:"type"`
	EventID      string       `json:"event_id,omitempty"`
	ResponseID   string       `json:"response_id,omitempty"`
	ItemID       string       `json:"item_id,omitempty"`
	OutputIndex  int          `json:"output_index,omitempty"`
	ContentIndex int          `json:"content_index,omitempty"`
	Delta        string       `json:"delta,omitempty"`
	Transcript   string       `json:"transcript,omitempty"`
	CallID       string       `json:"call_id,omitempty"`
	Name         string       `json:"name,omitempty"`
	Arguments    string       `json:"arguments,omitempty"`
	AudioStartMs int64        `json:"audio_start_ms,omitempty"`
	AudioEndMs   int64        `json:"audio_end_ms,omitempty"`
	Item         *Item        `json:"item,omitempty"`
	Error        *ErrorDetail `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, err
	}
	ev.Raw = append(json.RawMessage(nil), data...)
	return ev, nil
}

// ClientEvent is anything the client sends. Constructors below fill Type.
type ClientEvent interface {
	EventType() string
}

type envelope struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`
}

func (e envelope) EventType() string { return e.Type }

type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
}

type Transcription struct {
	Model string `json:"model"`
}

type ToolParam struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type SessionParams struct {
	Modalities              []string       `json:"modalities,omitempty"`
	Instructions            string         `json:"instructions"`
	Voice                   string         `json:"voice,omitempty"`
	InputAudioFormat        string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string         `json:"output_audio_format,omitempty"`
	InputAudioTranscription *Transcription `json:"input_audio_transcription,omitempty"`
	// TurnDetection is serialized as null for manual turns.
	TurnDetection *TurnDetection `json:"turn_detection"`
	Tools         []ToolParam    `json:"tools"`
	ToolChoice    string         `json:"tool_choice,omitempty"`
}

type SessionUpdate struct {
	envelope
	Session SessionParams `json:"session"`
}

func NewSessionUpdate(session SessionParams) SessionUpdate {
	return SessionUpdate{envelope: envelope{Type: "session.update"}, Session: session}
}

type InputAudioAppend struct {
	envelope
	Audio string `json:"audio"`
}

func NewInputAudioAppend(samples []int16) InputAudioAppend {
	return InputAudioAppend{envelope: envelope{Type: "input_audio_buffer.append"}, Audio: EncodePCM16(samples)}
}

func NewInputAudioCommit() ClientEvent {
	return envelope{Type: "input_audio_buffer.commit"}
}

func NewInputAudioClear() ClientEvent {
	return envelope{Type: "input_audio_buffer.clear"}
}

func NewResponseCreate() ClientEvent {
	return envelope{Type: "response.create"}
}

func NewResponseCancel() ClientEvent {
	return envelope{Type: "response.cancel"}
}

type ItemCreate struct {
	envelope
	PreviousItemID string `json:"previous_item_id,omitempty"`
	Item           Item   `json:"item"`
}

func NewItemCreate(item Item) ItemCreate {
	return ItemCreate{envelope: envelope{Type: "conversation.item.create"}, Item: item}
}

// NewUserText builds a user text message item.
func NewUserText(text string) ItemCreate {
	return NewItemCreate(Item{
		Type:    ItemMessage,
		Role:    RoleUser,
		Content: []ContentPart{{Type: "input_text", Text: text}},
	})
}

// NewSystemText builds a system message item, used for injected tool feedback.
func NewSystemText(text string) ItemCreate {
	return NewItemCreate(Item{
		Type:    ItemMessage,
		Role:    RoleSystem,
		Content: []ContentPart{{Type: "input_text", Text: text}},
	})
}

func NewFunctionCallOutput(callID, output string) ItemCreate {
	return NewItemCreate(Item{Type: ItemFunctionCallOutput, CallID: callID, Output: output})
}

type ItemTruncate struct {
	envelope
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int64  `json:"audio_end_ms"`
}

func NewItemTruncate(itemID string, audioEndMs int64) ItemTruncate {
	return ItemTruncate{envelope: envelope{Type: "conversation.item.truncate"}, ItemID: itemID, AudioEndMs: audioEndMs}
}

type ItemDelete struct {
	envelope
	ItemID string `json:"item_id"`
}

func NewItemDelete(itemID string) ItemDelete {
	return ItemDelete{envelope: envelope{Type: "conversation.item.delete"}, ItemID: itemID}
}
