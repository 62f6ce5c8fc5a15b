package realtime

import (
	"encoding/json"
	"strings"
)

// TransportEvent is a tagged variant delivered by the media session's event
// transport. The Controller consumes these on a single goroutine.
type TransportEvent interface {
	transportEvent()
}

// TransportOpened signals that the event transport is ready for use.
type TransportOpened struct{}

func (TransportOpened) transportEvent() {}

// TransportMessage carries one structured event payload from the remote
// agent.
type TransportMessage struct {
	Payload []byte
}

func (TransportMessage) transportEvent() {}

// TransportStateChanged reports a change in the underlying peer transport's
// connectivity state.
type TransportStateChanged struct {
	State string
	// Failed is set when the transport considers the connection
	// unrecoverable.
	Failed bool
}

func (TransportStateChanged) transportEvent() {}

// TransportClosed signals that the transport shut down. Err is nil for a
// locally requested close.
type TransportClosed struct {
	Err error
}

func (TransportClosed) transportEvent() {}

// Inbound event types handled by the Assembler. Everything else on the wire
// is ignored.
const (
	typeItemCreated          = "conversation.item.created"
	typeItemAdded            = "conversation.item.added"
	typeInputDelta           = "conversation.item.input_audio_transcription.delta"
	typeInputCompleted       = "conversation.item.input_audio_transcription.completed"
	typeInputDone            = "conversation.item.input_audio_transcription.done"
	typeInputSegment         = "conversation.item.input_audio_transcription.segment"
	typeOutputTextDelta      = "response.output_text.delta"
	typeOutputTextDone       = "response.output_text.done"
	typeAudioTranscriptDelta = "response.output_audio_transcript.delta"
	typeAudioTranscriptDone  = "response.output_audio_transcript.done"
)

// serverEvent is the superset wire shape of every inbound event we care
// about. Fields are populated per type; unknown types decode harmlessly.
type serverEvent struct {
	Type       string          `json:"type"`
	Item       *serverItem     `json:"item"`
	ItemID     string          `json:"item_id"`
	Delta      json.RawMessage `json:"delta"`
	Text       string          `json:"text"`
	Transcript string          `json:"transcript"`
}

type serverItem struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Role    string            `json:"role"`
	Content []json.RawMessage `json:"content"`
}

// contentText concatenates the string text of the item's content parts.
// Depending on endpoint revision the string lives under "text" or
// "content". Parts that are not objects, or whose fields are not strings,
// contribute nothing; the rest of the item is still processed.
func (it *serverItem) contentText() string {
	var b strings.Builder
	for _, raw := range it.Content {
		var part struct {
			Text    json.RawMessage `json:"text"`
			Content json.RawMessage `json:"content"`
		}
		if err := json.Unmarshal(raw, &part); err != nil {
			continue
		}
		if s, ok := rawString(part.Text); ok && s != "" {
			b.WriteString(s)
			continue
		}
		if s, ok := rawString(part.Content); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// deltaText extracts the delta string, which arrives either as a plain JSON
// string or as an object with a "text" field.
func deltaText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	return ""
}

// Outbound control messages sent once the event transport opens. The remote
// agent does not self-initiate, so the session is seeded with updated
// instructions, a synthetic user turn, and a response request.

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Instructions string `json:"instructions"`
}

type itemCreateMessage struct {
	Type string     `json:"type"`
	Item clientItem `json:"item"`
}

type clientItem struct {
	Type    string       `json:"type"`
	Role    string       `json:"role"`
	Content []clientPart `json:"content"`
}

type clientPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseCreateMessage struct {
	Type string `json:"type"`
}

func newSessionUpdate(instructions string) sessionUpdateMessage {
	return sessionUpdateMessage{
		Type:    "session.update",
		Session: sessionConfig{Instructions: instructions},
	}
}

func newUserMessage(text string) itemCreateMessage {
	return itemCreateMessage{
		Type: "conversation.item.create",
		Item: clientItem{
			Type:    "message",
			Role:    "user",
			Content: []clientPart{{Type: "input_text", Text: text}},
		},
	}
}

func newResponseCreate() responseCreateMessage {
	return responseCreateMessage{Type: "response.create"}
}
