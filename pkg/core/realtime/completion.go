package realtime

import (
	"strings"
)

// Sentinel is the literal marker the interviewer agent embeds in its final
// message to signal that the structured interview has ended.
const Sentinel = "INTERVIEW_COMPLETE"

// CompletionDetector latches exactly once when the sentinel appears in
// assembled assistant text. The latch survives subsequent deltas that
// still contain the marker and clears only on full session reset.
type CompletionDetector struct {
	fired bool
}

// NewCompletionDetector returns an unlatched detector.
func NewCompletionDetector() *CompletionDetector {
	return &CompletionDetector{}
}

// Reset clears the latch.
func (d *CompletionDetector) Reset() {
	d.fired = false
}

// Fired reports whether completion has already been detected.
func (d *CompletionDetector) Fired() bool {
	return d.fired
}

// Check inspects the most recently touched item and returns true exactly
// once: the first time an assistant item's accumulated text contains the
// sentinel.
func (d *CompletionDetector) Check(a *Assembler, touchedID string) bool {
	if d.fired || touchedID == "" {
		return false
	}
	item, ok := a.Item(touchedID)
	if !ok || item.Role != RoleAssistant {
		return false
	}
	if !strings.Contains(item.Text, Sentinel) {
		return false
	}
	d.fired = true
	return true
}
