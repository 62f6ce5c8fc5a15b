package live

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prepvoice/prepvoice/pkg/gateway/config"
)

func testRelayServer(t *testing.T) (*Relay, string) {
	t.Helper()

	cfg := config.Config{
		LiveWriteTimeout:     time.Second,
		LivePingInterval:     time.Minute,
		LiveMaxObserverQueue: 8,
		LiveMaxSnapshotBytes: 64 << 10,
		LiveSessionTTL:       time.Hour,
	}
	relay := NewRelay(cfg, slog.New(slog.DiscardHandler), nil)
	t.Cleanup(relay.Close)

	mux := http.NewServeMux()
	mux.Handle("GET /v1/live/{session}", relay)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return relay, wsURL
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(payload)
}

func TestRelay_BroadcastsToObserver(t *testing.T) {
	_, wsURL := testRelayServer(t)

	observer := dialWS(t, wsURL+"/v1/live/abc")
	publisher := dialWS(t, wsURL+"/v1/live/abc?role=publisher")

	snapshot := `[{"id":"a","role":"assistant","text":"Hello"}]`
	if err := publisher.WriteMessage(websocket.TextMessage, []byte(snapshot)); err != nil {
		t.Fatal(err)
	}

	if got := readText(t, observer); got != snapshot {
		t.Errorf("observer got %q, want %q", got, snapshot)
	}
}

func TestRelay_LateObserverGetsLatestSnapshot(t *testing.T) {
	_, wsURL := testRelayServer(t)

	publisher := dialWS(t, wsURL+"/v1/live/xyz?role=publisher")
	for _, snap := range []string{`["one"]`, `["one","two"]`} {
		if err := publisher.WriteMessage(websocket.TextMessage, []byte(snap)); err != nil {
			t.Fatal(err)
		}
	}

	// Give the relay a moment to store the second snapshot.
	time.Sleep(50 * time.Millisecond)

	late := dialWS(t, wsURL+"/v1/live/xyz")
	if got := readText(t, late); got != `["one","two"]` {
		t.Errorf("late observer got %q, want latest snapshot", got)
	}
}

func TestRelay_SessionsAreIsolated(t *testing.T) {
	_, wsURL := testRelayServer(t)

	observerA := dialWS(t, wsURL+"/v1/live/a")
	publisherB := dialWS(t, wsURL+"/v1/live/b?role=publisher")

	if err := publisherB.WriteMessage(websocket.TextMessage, []byte(`["b"]`)); err != nil {
		t.Fatal(err)
	}

	_ = observerA.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := observerA.ReadMessage(); err == nil {
		t.Error("observer of session a must not receive session b snapshots")
	}
}

func waitForSession(t *testing.T, relay *Relay, id string, cond func(*session) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		relay.mu.Lock()
		s, ok := relay.sessions[id]
		relay.mu.Unlock()
		if ok {
			s.mu.Lock()
			done := cond(s)
			s.mu.Unlock()
			if done {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s never reached expected state", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func sessionExists(relay *Relay, id string) bool {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	_, ok := relay.sessions[id]
	return ok
}

func TestRelay_EvictsIdleSessions(t *testing.T) {
	relay, wsURL := testRelayServer(t)

	publisher := dialWS(t, wsURL+"/v1/live/old?role=publisher")
	if err := publisher.WriteMessage(websocket.TextMessage, []byte(`["done"]`)); err != nil {
		t.Fatal(err)
	}
	publisher.Close()

	waitForSession(t, relay, "old", func(s *session) bool {
		return s.publishers == 0 && !s.idleSince.IsZero()
	})

	// Inside the TTL the entry stays so late observers get the final
	// snapshot.
	relay.sweep(time.Now())
	if !sessionExists(relay, "old") {
		t.Fatal("session evicted before its ttl")
	}

	// Past the TTL with nobody attached, it goes away.
	relay.sweep(time.Now().Add(2 * time.Hour))
	if sessionExists(relay, "old") {
		t.Error("idle session survived the ttl sweep")
	}
}

func TestRelay_SweepSkipsOccupiedSessions(t *testing.T) {
	relay, wsURL := testRelayServer(t)

	dialWS(t, wsURL+"/v1/live/busy")
	waitForSession(t, relay, "busy", func(s *session) bool {
		return len(s.observers) == 1
	})

	relay.sweep(time.Now().Add(2 * time.Hour))
	if !sessionExists(relay, "busy") {
		t.Error("occupied session must not be evicted")
	}
}
