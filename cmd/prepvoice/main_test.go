package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
)

type fakeDevice struct {
	closed int
}

func (d *fakeDevice) Read(p []byte) (int, error)  { return 0, io.EOF }
func (d *fakeDevice) Write(p []byte) (int, error) { return len(p), nil }
func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

func TestMediaDialerClosesSpeakerOnDialFailure(t *testing.T) {
	mic := &fakeDevice{}
	speaker := &fakeDevice{}

	dial := newMediaDialer(realtime.DefaultConfig(),
		func() (io.ReadCloser, error) { return mic, nil },
		func() (io.WriteCloser, error) { return speaker, nil },
		func(ctx context.Context, cred realtime.Credential, m io.ReadCloser, s io.Writer, cfg realtime.Config) (realtime.MediaSession, error) {
			// The session closes the mic it was handed, even on failure.
			m.Close()
			return nil, realtime.NewSignalingError("exchange rejected")
		},
	)

	if _, err := dial(context.Background(), realtime.Credential{}); err == nil {
		t.Fatal("expected dial error")
	}
	if speaker.closed != 1 {
		t.Errorf("speaker closed %d times, want 1", speaker.closed)
	}
	if mic.closed != 1 {
		t.Errorf("mic closed %d times, want 1", mic.closed)
	}
}

func TestMediaDialerClosesMicOnSpeakerFailure(t *testing.T) {
	mic := &fakeDevice{}

	dial := newMediaDialer(realtime.DefaultConfig(),
		func() (io.ReadCloser, error) { return mic, nil },
		func() (io.WriteCloser, error) { return nil, errors.New("no output device") },
		func(ctx context.Context, cred realtime.Credential, m io.ReadCloser, s io.Writer, cfg realtime.Config) (realtime.MediaSession, error) {
			t.Fatal("dial must not run when the speaker fails to open")
			return nil, nil
		},
	)

	_, err := dial(context.Background(), realtime.Credential{})
	var sessionErr *realtime.Error
	if !errors.As(err, &sessionErr) || sessionErr.Kind != realtime.ErrMediaAccess {
		t.Fatalf("expected media access error, got %v", err)
	}
	if mic.closed != 1 {
		t.Errorf("mic closed %d times, want 1", mic.closed)
	}
}
