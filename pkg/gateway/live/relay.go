// Package live fans live interview transcripts out to observers. The CLI
// client publishes transcript snapshots over a websocket; any number of
// observers (e.g. a coach's dashboard) subscribe to the same session and
// receive the latest snapshot plus every subsequent update.
package live

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prepvoice/prepvoice/pkg/gateway/config"
	"github.com/prepvoice/prepvoice/pkg/gateway/metrics"
)

// Relay tracks live sessions and their observers.
type Relay struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session

	done      chan struct{}
	closeOnce sync.Once
}

type session struct {
	mu         sync.Mutex
	latest     []byte
	observers  map[*observer]struct{}
	publishers int
	// idleSince is when the last publisher or observer left; zero while
	// the session is occupied.
	idleSince time.Time
}

type observer struct {
	send chan []byte
	done chan struct{}
}

// NewRelay builds a Relay. metrics may be nil.
func NewRelay(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(cfg.CORSAllowedOrigins) == 0 {
					return true
				}
				_, ok := cfg.CORSAllowedOrigins[origin]
				return ok
			},
		},
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Close stops the eviction sweeper.
func (rl *Relay) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// sweepLoop evicts sessions that have sat with no publisher and no
// observers for longer than the configured TTL. The entry is kept for a
// while after everyone leaves so late observers still get the final
// transcript.
func (rl *Relay) sweepLoop() {
	interval := rl.cfg.LiveSessionTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func (rl *Relay) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, s := range rl.sessions {
		s.mu.Lock()
		expired := s.publishers == 0 && len(s.observers) == 0 &&
			!s.idleSince.IsZero() && now.Sub(s.idleSince) > rl.cfg.LiveSessionTTL
		s.mu.Unlock()
		if expired {
			delete(rl.sessions, id)
		}
	}
}

// ServeHTTP upgrades the connection and runs it as publisher or observer,
// per the role query value.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	role := r.URL.Query().Get("role")

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	switch role {
	case "publisher":
		rl.runPublisher(sessionID, conn)
	default:
		rl.runObserver(sessionID, conn)
	}
}

func (rl *Relay) getSession(id string) *session {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	s, ok := rl.sessions[id]
	if !ok {
		s = &session{observers: make(map[*observer]struct{}), idleSince: time.Now()}
		rl.sessions[id] = s
	}
	return s
}

// runPublisher consumes snapshots from the client session and broadcasts
// them. The session entry stays alive after the publisher leaves so late
// observers still see the final transcript.
func (rl *Relay) runPublisher(sessionID string, conn *websocket.Conn) {
	defer conn.Close()

	if rl.metrics != nil {
		rl.metrics.LiveSessions.Inc()
		defer rl.metrics.LiveSessions.Dec()
	}

	s := rl.getSession(sessionID)
	s.mu.Lock()
	s.publishers++
	s.idleSince = time.Time{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.publishers--
		if s.publishers == 0 && len(s.observers) == 0 {
			s.idleSince = time.Now()
		}
		s.mu.Unlock()
	}()

	conn.SetReadLimit(rl.cfg.LiveMaxSnapshotBytes)

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		s.broadcast(payload)
	}
}

// runObserver replays the latest snapshot and then streams updates.
func (rl *Relay) runObserver(sessionID string, conn *websocket.Conn) {
	defer conn.Close()

	if rl.metrics != nil {
		rl.metrics.LiveObservers.Inc()
		defer rl.metrics.LiveObservers.Dec()
	}

	s := rl.getSession(sessionID)
	obs := &observer{
		send: make(chan []byte, rl.cfg.LiveMaxObserverQueue),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.observers[obs] = struct{}{}
	s.idleSince = time.Time{}
	latest := s.latest
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.observers, obs)
		if s.publishers == 0 && len(s.observers) == 0 {
			s.idleSince = time.Now()
		}
		s.mu.Unlock()
	}()

	if latest != nil {
		if err := rl.writeMessage(conn, latest); err != nil {
			return
		}
	}

	// Drain inbound frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(obs.done)
				return
			}
		}
	}()

	ping := time.NewTicker(rl.cfg.LivePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-obs.done:
			return
		case payload := <-obs.send:
			if err := rl.writeMessage(conn, payload); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(rl.cfg.LiveWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (rl *Relay) writeMessage(conn *websocket.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(rl.cfg.LiveWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// broadcast stores the snapshot and fans it out. Observers that cannot
// keep up are skipped; they will catch up on the next snapshot.
func (s *session) broadcast(payload []byte) {
	s.mu.Lock()
	s.latest = payload
	for obs := range s.observers {
		select {
		case obs.send <- payload:
		default:
		}
	}
	s.mu.Unlock()
}
