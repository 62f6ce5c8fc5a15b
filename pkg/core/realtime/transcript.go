package realtime

import (
	"encoding/json"
	"strings"
)

// Role identifies the speaker of a conversation item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Item is one entry of the assembled transcript.
type Item struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Turn is the plain role/content view of an item, the shape consumed by the
// summarizer and persisted as interview history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// conversationItem is the mutable accumulator behind one item ID.
type conversationItem struct {
	id   string
	role Role
	text strings.Builder
}

// Assembler rebuilds an ordered, deduplicated conversation from an
// unordered stream of partial and complete message events. It is not safe
// for concurrent use; the Controller serializes Apply calls.
type Assembler struct {
	items map[string]*conversationItem
	order []string
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	a := &Assembler{}
	a.Reset()
	return a
}

// Reset discards all accumulated items.
func (a *Assembler) Reset() {
	a.items = make(map[string]*conversationItem)
	a.order = a.order[:0]
}

// Apply consumes one raw event payload and updates the transcript. It
// returns the ID of the item the event touched, or "" if the event was
// unrecognized, malformed, or carried nothing. Malformed payloads are
// skipped, never fatal.
func (a *Assembler) Apply(payload []byte) string {
	var ev serverEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ""
	}

	switch ev.Type {
	case typeItemCreated, typeItemAdded:
		if ev.Item == nil || ev.Item.Type != "message" || ev.Item.ID == "" {
			return ""
		}
		a.replace(ev.Item.ID, Role(ev.Item.Role), ev.Item.contentText())
		return ev.Item.ID

	case typeInputDelta:
		if ev.ItemID == "" {
			return ""
		}
		// Input transcription deltas carry no role; the item's role is
		// settled by whichever event first supplies one.
		a.append(ev.ItemID, "", deltaText(ev.Delta))
		return ev.ItemID

	case typeInputCompleted, typeInputDone, typeInputSegment:
		if ev.ItemID == "" {
			return ""
		}
		a.replace(ev.ItemID, RoleUser, ev.Text)
		return ev.ItemID

	case typeOutputTextDelta, typeAudioTranscriptDelta:
		if ev.ItemID == "" {
			return ""
		}
		a.append(ev.ItemID, RoleAssistant, deltaText(ev.Delta))
		return ev.ItemID

	case typeOutputTextDone:
		if ev.ItemID == "" {
			return ""
		}
		a.replace(ev.ItemID, RoleAssistant, ev.Text)
		return ev.ItemID

	case typeAudioTranscriptDone:
		if ev.ItemID == "" {
			return ""
		}
		a.replace(ev.ItemID, RoleAssistant, ev.Transcript)
		return ev.ItemID
	}

	return ""
}

// upsert returns the item for id, creating it in first-seen order if new.
// The first non-empty role wins; later events never overwrite it.
func (a *Assembler) upsert(id string, role Role) *conversationItem {
	item, ok := a.items[id]
	if !ok {
		item = &conversationItem{id: id}
		a.items[id] = item
		a.order = append(a.order, id)
	}
	if item.role == "" && role != "" {
		item.role = role
	}
	return item
}

// append concatenates delta text onto the item's accumulated text.
func (a *Assembler) append(id string, role Role, delta string) {
	item := a.upsert(id, role)
	item.text.WriteString(delta)
}

// replace overwrites the item's accumulated text with authoritative final
// text.
func (a *Assembler) replace(id string, role Role, text string) {
	item := a.upsert(id, role)
	item.text.Reset()
	item.text.WriteString(text)
}

// Item returns the current state of one item and whether it exists.
func (a *Assembler) Item(id string) (Item, bool) {
	item, ok := a.items[id]
	if !ok {
		return Item{}, false
	}
	return Item{ID: item.id, Role: item.role, Text: strings.TrimSpace(item.text.String())}, true
}

// Snapshot returns the transcript in first-seen item order, independent of
// which items received the most recent updates. Text is trimmed.
func (a *Assembler) Snapshot() []Item {
	out := make([]Item, 0, len(a.order))
	for _, id := range a.order {
		item := a.items[id]
		out = append(out, Item{
			ID:   item.id,
			Role: item.role,
			Text: strings.TrimSpace(item.text.String()),
		})
	}
	return out
}

// Turns returns the plain exchange view of the transcript, skipping items
// with no text.
func (a *Assembler) Turns() []Turn {
	out := make([]Turn, 0, len(a.order))
	for _, item := range a.Snapshot() {
		if item.Text == "" {
			continue
		}
		out = append(out, Turn{Role: string(item.Role), Content: item.Text})
	}
	return out
}
