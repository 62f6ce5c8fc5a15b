// Command prepvoice runs a spoken mock interview from the terminal: it
// mints a realtime credential through the gateway, opens microphone and
// speaker, dials the conversational endpoint over WebRTC, and renders
// the live transcript until the interviewer signals completion.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/prepvoice/prepvoice/pkg/core/audio"
	"github.com/prepvoice/prepvoice/pkg/core/realtime"
)

const (
	interviewSampleRate = 8000
	interviewChannels   = 1
)

type options struct {
	gateway  string
	apiKey   string
	category string
	resume   string
	live     string
	save     bool
	debug    bool
}

func main() {
	_ = godotenv.Load()

	var opt options
	flag.StringVar(&opt.gateway, "gateway", envOr("PREPVOICE_GATEWAY", "http://localhost:8080"), "Gateway base URL")
	flag.StringVar(&opt.apiKey, "api-key", strings.TrimSpace(os.Getenv("PREPVOICE_API_KEY")), "Gateway API key (optional; also reads PREPVOICE_API_KEY)")
	flag.StringVar(&opt.category, "category", "", "Question category to interview from (default: whole bank)")
	flag.StringVar(&opt.resume, "resume", "", "Path to a plain-text resume for tailored follow-ups")
	flag.StringVar(&opt.live, "live", "", "Publish the live transcript under this session name")
	flag.BoolVar(&opt.save, "save", true, "Save the finished interview to the gateway")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if err := run(opt); err != nil {
		fmt.Fprintln(os.Stderr, "prepvoice:", err)
		os.Exit(1)
	}
}

func run(opt options) error {
	level := slog.LevelWarn
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client := &gatewayClient{base: strings.TrimRight(opt.gateway, "/"), apiKey: opt.apiKey}

	var resume string
	if opt.resume != "" {
		raw, err := os.ReadFile(opt.resume)
		if err != nil {
			return fmt.Errorf("read resume: %w", err)
		}
		resume = string(raw)
	}

	fmt.Println("Requesting interview credential...")
	cred, err := client.mintToken(context.Background(), opt.category, resume)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	var publisher *livePublisher
	if opt.live != "" {
		publisher, err = dialLive(opt.gateway, opt.apiKey, opt.live)
		if err != nil {
			logger.Warn("live publishing disabled", "error", err)
		} else {
			defer publisher.Close()
			fmt.Printf("Publishing live transcript as %q\n", opt.live)
		}
	}

	cfg := realtime.DefaultConfig()
	cfg.Logger = logger

	dial := newMediaDialer(cfg, openMic, openSpeaker, realtime.Dial)

	printer := newPrinter(os.Stdout)
	done := make(chan struct{})
	summaryCh := make(chan string, 1)
	var finalTurns []realtime.Turn
	var finalMu sync.Mutex

	ctrl := realtime.NewController(cfg, dial, nil, realtime.Callbacks{
		OnSnapshot: func(items []realtime.Item) {
			printer.render(items)
			if publisher != nil {
				publisher.publish(items)
			}
		},
		OnState: func(from, to realtime.State) {
			switch to {
			case realtime.StateInProgress:
				fmt.Println("Interview started. Speak when the interviewer finishes.")
			case realtime.StateComplete:
				fmt.Println("\nInterview complete.")
			}
		},
		OnError: func(err *realtime.Error) {
			fmt.Fprintln(os.Stderr, "\nsession error:", err)
			close(done)
		},
		OnComplete: func(turns []realtime.Turn) {
			finalMu.Lock()
			finalTurns = turns
			finalMu.Unlock()
			go func() {
				summary, err := client.summarize(context.Background(), turns)
				if err != nil {
					logger.Warn("summary failed", "error", err)
					summary = ""
				}
				summaryCh <- summary
				close(done)
			}()
		},
	})

	if err := ctrl.Start(context.Background(), cred); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		fmt.Println("\nStopping...")
		ctrl.Reset()
		return nil
	case <-done:
	}

	if ctrl.State() != realtime.StateComplete {
		return fmt.Errorf("session ended: %v", ctrl.Err())
	}

	var summary string
	select {
	case summary = <-summaryCh:
	case <-time.After(2 * time.Minute):
		logger.Warn("summary timed out")
	}
	if summary != "" {
		fmt.Println("\n--- Coaching summary ---")
		fmt.Println(summary)
	}

	if opt.save {
		finalMu.Lock()
		turns := finalTurns
		finalMu.Unlock()
		saved, err := client.saveInterview(context.Background(), turns, summary)
		if err != nil {
			logger.Warn("saving interview failed", "error", err)
		} else {
			fmt.Printf("Saved as interview %d.\n", saved)
		}
	}
	return nil
}

// mediaDial matches realtime.Dial; injected so the dialer's cleanup paths
// are testable without audio devices.
type mediaDial func(ctx context.Context, cred realtime.Credential, mic io.ReadCloser, speaker io.Writer, cfg realtime.Config) (realtime.MediaSession, error)

func openMic() (io.ReadCloser, error) {
	return audio.OpenCapture(interviewSampleRate, interviewChannels)
}

func openSpeaker() (io.WriteCloser, error) {
	return audio.OpenSpeaker(interviewSampleRate, interviewChannels)
}

// newMediaDialer acquires the local audio devices and dials the session.
// Devices acquired before a failure are released: the mic when the speaker
// fails to open, the speaker when the dial fails (the session owns the mic
// from the moment it is passed in).
func newMediaDialer(cfg realtime.Config, openMic func() (io.ReadCloser, error), openSpeaker func() (io.WriteCloser, error), dial mediaDial) realtime.MediaDialer {
	return func(ctx context.Context, cred realtime.Credential) (realtime.MediaSession, error) {
		mic, err := openMic()
		if err != nil {
			return nil, realtime.NewMediaAccessError(err)
		}
		speaker, err := openSpeaker()
		if err != nil {
			mic.Close()
			return nil, realtime.NewMediaAccessError(err)
		}
		sess, err := dial(ctx, cred, mic, speaker, cfg)
		if err != nil {
			speaker.Close()
			return nil, err
		}
		return sess, nil
	}
}

// gatewayClient talks to the prepvoice gateway's JSON API.
type gatewayClient struct {
	base   string
	apiKey string
	http   http.Client
}

func (g *gatewayClient) mintToken(ctx context.Context, category, resume string) (realtime.Credential, error) {
	body, _ := json.Marshal(map[string]string{"category": category, "resume": resume})
	var cred realtime.Credential
	err := g.post(ctx, "/v1/realtime/token", body, &cred)
	return cred, err
}

func (g *gatewayClient) summarize(ctx context.Context, turns []realtime.Turn) (string, error) {
	body, _ := json.Marshal(map[string]any{"conversation": turns})
	var resp struct {
		Summary string `json:"summary"`
	}
	err := g.post(ctx, "/v1/summary", body, &resp)
	return resp.Summary, err
}

func (g *gatewayClient) saveInterview(ctx context.Context, turns []realtime.Turn, summary string) (int64, error) {
	body, _ := json.Marshal(map[string]any{"transcript": turns, "summary": summary})
	var resp struct {
		ID int64 `json:"id"`
	}
	err := g.post(ctx, "/v1/interviews", body, &resp)
	return resp.ID, err
}

func (g *gatewayClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s: %s", path, envelope.Error.Message)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

// livePublisher streams transcript snapshots to the gateway relay.
type livePublisher struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func dialLive(gateway, apiKey, session string) (*livePublisher, error) {
	u, err := url.Parse(gateway)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/v1/live/" + session
	u.RawQuery = "role=publisher"

	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return nil, err
	}
	return &livePublisher{conn: conn}, nil
}

func (p *livePublisher) publish(items []realtime.Item) {
	payload, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.WriteMessage(websocket.TextMessage, payload)
}

func (p *livePublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.Close()
}

// printer renders snapshot updates incrementally: each item gets a role
// label once, then its text streams in as it grows.
type printer struct {
	out     io.Writer
	current string
	shown   map[string]string
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, shown: make(map[string]string)}
}

func (p *printer) render(items []realtime.Item) {
	for _, item := range items {
		prev, seen := p.shown[item.ID]
		if item.Text == prev {
			continue
		}

		if p.current != item.ID {
			if p.current != "" {
				fmt.Fprintln(p.out)
			}
			fmt.Fprintf(p.out, "%s: ", label(item.Role))
			p.current = item.ID
			if seen {
				// Reprinting an item that changed after we moved on.
				fmt.Fprint(p.out, item.Text)
				p.shown[item.ID] = item.Text
				continue
			}
			prev = ""
		}

		if strings.HasPrefix(item.Text, prev) {
			fmt.Fprint(p.out, item.Text[len(prev):])
		} else {
			// A terminal transcript replaced the streamed deltas.
			fmt.Fprintf(p.out, "\n%s: %s", label(item.Role), item.Text)
		}
		p.shown[item.ID] = item.Text
	}
}

func label(role realtime.Role) string {
	switch role {
	case realtime.RoleAssistant:
		return "Interviewer"
	case realtime.RoleUser:
		return "You"
	default:
		return "..."
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
