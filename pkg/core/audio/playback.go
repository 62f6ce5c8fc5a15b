package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Speaker plays PCM16 audio through the default output device. Writes are
// buffered; oto pulls from the buffer via the io.Reader side.
type Speaker struct {
	otoCtx *oto.Context
	player *oto.Player

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	playing bool
	closed  bool
}

// OpenSpeaker initializes the output device at the given rate and channel
// count, S16LE.
func OpenSpeaker(sampleRate, channels int) (*Speaker, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms buffer keeps latency low without glitching.
		BufferSize: 100 * time.Millisecond,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s := &Speaker{
		otoCtx: otoCtx,
		buf:    make([]byte, 0, sampleRate*4),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write queues PCM16 audio for playback. Playback starts on first write.
func (s *Speaker) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("speaker closed")
	}
	s.buf = append(s.buf, data...)

	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}

	s.cond.Signal()
	return len(data), nil
}

// Read implements io.Reader for the oto player. Blocks until audio is
// queued; returns silence after Close so oto drains gracefully.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Close stops playback and releases the device. Idempotent.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()

	if s.player != nil {
		_ = s.player.Close()
	}
	return nil
}
