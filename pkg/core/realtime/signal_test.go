package realtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testCredential(baseURL string) Credential {
	return Credential{
		ClientSecret: "ek_test_secret",
		Model:        "gpt-realtime",
		BaseURL:      baseURL,
		Instructions: "You are an interviewer.",
	}
}

func TestExchangeSDP_Success(t *testing.T) {
	const offer = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"
	const answer = "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.URL.Query().Get("model"); got != "gpt-realtime" {
			t.Errorf("expected model query param, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ek_test_secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/sdp" {
			t.Errorf("unexpected content type %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != offer {
			t.Errorf("request body must be the raw offer, got %q", body)
		}
		w.Header().Set("Content-Type", "application/sdp")
		_, _ = w.Write([]byte(answer))
	}))
	defer srv.Close()

	got, err := exchangeSDP(context.Background(), srv.Client(), testCredential(srv.URL), offer)
	if err != nil {
		t.Fatalf("exchangeSDP: %v", err)
	}
	if got != answer {
		t.Errorf("expected remote description %q, got %q", answer, got)
	}
}

func TestExchangeSDP_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid token"}}`))
	}))
	defer srv.Close()

	_, err := exchangeSDP(context.Background(), srv.Client(), testCredential(srv.URL), "offer")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Kind != ErrSignaling {
		t.Errorf("expected signaling error, got %s", e.Kind)
	}
	if e.Message != "invalid token" {
		t.Errorf("expected message surfaced verbatim, got %q", e.Message)
	}
}

func TestExchangeSDP_RawBodyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := exchangeSDP(context.Background(), srv.Client(), testCredential(srv.URL), "offer")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Message != "upstream exploded" {
		t.Errorf("expected raw body surfaced, got %q", e.Message)
	}
}

func TestExchangeSDP_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := exchangeSDP(ctx, srv.Client(), testCredential(srv.URL), "offer")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Kind != ErrNegotiationTimeout {
		t.Errorf("expected negotiation timeout, got %s", e.Kind)
	}
}
