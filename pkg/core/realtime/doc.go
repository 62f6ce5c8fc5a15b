// Package realtime implements the live interview session: a WebRTC
// media+data connection to a remote conversational agent, incremental
// reconstruction of the conversation transcript from the agent's event
// stream, end-of-interview detection, and session lifecycle management.
//
// The package is split into four cooperating pieces:
//
//   - Assembler rebuilds an ordered transcript from unordered delta and
//     completion events keyed by item ID.
//   - CompletionDetector watches assembled assistant text for the
//     end-of-interview sentinel and fires exactly once per session.
//   - Dial opens the media/signaling session (microphone out, interviewer
//     audio in, ordered reliable data channel for events).
//   - Controller owns the session state machine and wires the above
//     together, guaranteeing resource release on every exit path.
//
// The Controller serializes all event handling on a single goroutine, so
// transcript updates are applied strictly in transport-delivery order.
package realtime
