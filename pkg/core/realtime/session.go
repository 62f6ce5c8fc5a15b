package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle state of a Controller.
type State int

const (
	// StateIdle holds no resources.
	StateIdle State = iota
	// StateConnecting has the microphone acquired and signaling in flight.
	StateConnecting
	// StateInProgress has the event transport open and audio flowing.
	StateInProgress
	// StateComplete is terminal; entered exactly once per session when the
	// completion sentinel is observed.
	StateComplete
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Summarizer produces the post-interview coaching summary. The Controller
// dispatches it asynchronously at completion and never blocks on it.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (string, error)
}

// Callbacks is the observer surface a UI layer subscribes to. Nil fields
// are skipped. Callbacks are invoked outside the Controller's lock but on
// its event goroutine, so they must not block for long.
type Callbacks struct {
	// OnSnapshot fires after every transcript update with the full ordered
	// snapshot.
	OnSnapshot func(items []Item)

	// OnState fires on every state transition.
	OnState func(from, to State)

	// OnError fires when a fatal session error returns the Controller to
	// idle.
	OnError func(err *Error)

	// OnComplete fires exactly once per session with the final transcript.
	OnComplete func(turns []Turn)

	// OnSummary delivers the summarizer's result, or its error.
	OnSummary func(summary string, err error)
}

// Controller owns one logical interview session: it guards start/stop,
// routes transport events through the Assembler and CompletionDetector,
// and guarantees resource release on every exit path. All session state
// lives on the Controller so independent sessions never share anything.
type Controller struct {
	cfg        Config
	dial       MediaDialer
	summarizer Summarizer
	cb         Callbacks

	mu       sync.Mutex
	state    State
	epoch    uint64
	sess     MediaSession
	quit     chan struct{}
	cred     Credential
	asm      *Assembler
	detector *CompletionDetector
	lastErr  *Error
}

// NewController returns an idle Controller. dial is required; summarizer
// may be nil, in which case completion skips the summary request.
func NewController(cfg Config, dial MediaDialer, summarizer Summarizer, cb Callbacks) *Controller {
	return &Controller{
		cfg:        cfg.withDefaults(),
		dial:       dial,
		summarizer: summarizer,
		cb:         cb,
		asm:        NewAssembler(),
		detector:   NewCompletionDetector(),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the most recent fatal session error, cleared on Start and
// Reset.
func (c *Controller) Err() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns the current transcript in first-seen order.
func (c *Controller) Snapshot() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asm.Snapshot()
}

// Turns returns the plain exchange view of the transcript.
func (c *Controller) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asm.Turns()
}

// Start opens a new session with the given credential. A second Start while
// connecting or in progress is rejected, not queued. Connection setup runs
// asynchronously; failures surface through OnError.
func (c *Controller) Start(ctx context.Context, cred Credential) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateInProgress {
		c.mu.Unlock()
		return errors.New("session already active")
	}
	c.lastErr = nil
	c.asm.Reset()
	c.detector.Reset()
	c.cred = cred
	c.epoch++
	epoch := c.epoch
	notify := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	notify()

	go c.connect(ctx, epoch, cred)
	return nil
}

// Reset tears the session down from any state: closes the media session,
// clears all session-scoped state, and returns to idle. Safe to call
// mid-negotiation; any in-flight dial result arriving afterwards is closed
// and discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.epoch++
	c.teardownLocked()
	c.asm.Reset()
	c.detector.Reset()
	c.cred = Credential{}
	c.lastErr = nil
	notify := c.setStateLocked(StateIdle)
	c.mu.Unlock()
	notify()
}

// connect performs the asynchronous part of Start for one epoch.
func (c *Controller) connect(ctx context.Context, epoch uint64, cred Credential) {
	sess, err := c.dial(ctx, cred)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		// A reset happened mid-negotiation; the late result must not
		// reactivate a stale session.
		if sess != nil {
			_ = sess.Close()
		}
		return
	}
	if err != nil {
		c.failLocked(AsError(err, ErrSignaling))
		return
	}
	c.sess = sess
	c.quit = make(chan struct{})
	quit := c.quit
	c.mu.Unlock()

	go c.eventLoop(epoch, sess, quit)
}

// eventLoop dispatches transport events one at a time, which serializes all
// transcript mutation for this session.
func (c *Controller) eventLoop(epoch uint64, sess MediaSession, quit chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case ev := <-sess.Events():
			switch ev := ev.(type) {
			case TransportOpened:
				c.handleOpened(epoch, sess)
			case TransportMessage:
				c.handleMessage(epoch, ev.Payload)
			case TransportStateChanged:
				if ev.Failed {
					c.handleClosed(epoch, NewConnectivityLost(fmt.Errorf("peer transport %s", ev.State)))
					return
				}
				c.cfg.Logger.Debug("peer transport state", "state", ev.State)
			case TransportClosed:
				c.handleClosed(epoch, NewConnectivityLost(ev.Err))
				return
			}
		}
	}
}

// handleOpened transitions to in-progress and seeds the conversation: the
// remote agent does not self-initiate, so we push the interviewer script,
// a synthetic opening user turn, and a response request.
func (c *Controller) handleOpened(epoch uint64, sess MediaSession) {
	c.mu.Lock()
	if epoch != c.epoch || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	instructions := c.cred.Instructions
	notify := c.setStateLocked(StateInProgress)
	c.mu.Unlock()
	notify()

	for _, msg := range []any{
		newSessionUpdate(instructions),
		newUserMessage(c.cfg.OpeningPrompt),
		newResponseCreate(),
	} {
		if err := sess.Send(msg); err != nil {
			c.cfg.Logger.Warn("seeding conversation failed", "error", err)
			c.handleClosed(epoch, NewConnectivityLost(err))
			return
		}
	}
}

// handleMessage applies one event payload to the transcript and checks for
// completion.
func (c *Controller) handleMessage(epoch uint64, payload []byte) {
	c.mu.Lock()
	if epoch != c.epoch || (c.state != StateInProgress && c.state != StateConnecting) {
		c.mu.Unlock()
		return
	}

	touched := c.asm.Apply(payload)
	if touched == "" {
		c.mu.Unlock()
		return
	}

	snapshot := c.asm.Snapshot()
	fired := c.detector.Check(c.asm, touched)

	var turns []Turn
	var notify func()
	if fired {
		turns = c.asm.Turns()
		c.teardownLocked()
		notify = c.setStateLocked(StateComplete)
	}
	c.mu.Unlock()

	if c.cb.OnSnapshot != nil {
		c.cb.OnSnapshot(snapshot)
	}
	if !fired {
		return
	}
	notify()
	if c.cb.OnComplete != nil {
		c.cb.OnComplete(turns)
	}
	go c.summarize(epoch, turns)
}

// handleClosed handles an unexpected transport close or failure. If the
// session already completed, the close is the teardown we requested and is
// not an error.
func (c *Controller) handleClosed(epoch uint64, e *Error) {
	c.mu.Lock()
	if epoch != c.epoch || c.state == StateComplete || c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.failLocked(e)
}

// failLocked releases resources, records the error, and returns to idle.
// Called with the lock held; unlocks before invoking callbacks.
func (c *Controller) failLocked(e *Error) {
	c.teardownLocked()
	c.lastErr = e
	notify := c.setStateLocked(StateIdle)
	c.mu.Unlock()
	notify()
	if c.cb.OnError != nil {
		c.cb.OnError(e)
	}
}

// teardownLocked closes the media session and stops the event loop.
func (c *Controller) teardownLocked() {
	if c.sess != nil {
		_ = c.sess.Close()
		c.sess = nil
	}
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
}

// setStateLocked records a transition and returns the deferred OnState
// notification, to be invoked after the lock is released.
func (c *Controller) setStateLocked(to State) func() {
	from := c.state
	if from == to {
		return func() {}
	}
	c.state = to
	cb := c.cb.OnState
	c.cfg.Logger.Debug("session state", "from", from.String(), "to", to.String())
	return func() {
		if cb != nil {
			cb(from, to)
		}
	}
}

// summarize requests the coaching summary for a completed session. The
// result is discarded if the session was reset in the meantime.
func (c *Controller) summarize(epoch uint64, turns []Turn) {
	if c.summarizer == nil {
		return
	}
	summary, err := c.summarizer.Summarize(context.Background(), turns)

	c.mu.Lock()
	stale := epoch != c.epoch
	c.mu.Unlock()
	if stale {
		return
	}
	if c.cb.OnSummary != nil {
		c.cb.OnSummary(summary, err)
	}
}
