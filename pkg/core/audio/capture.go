// Package audio provides local audio device access (microphone capture and
// speaker playback) plus the G.711 transcoding used on the peer transport.
package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
)

// Capture is a blocking PCM16 microphone reader. It implements
// io.ReadCloser so the media session can consume it without knowing about
// the device layer.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// OpenCapture acquires the default microphone at the given rate and channel
// count, S16LE. Errors here map to the session's media-access failure.
func OpenCapture(sampleRate, channels int) (*Capture, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	c := &Capture{
		ctx: malgoCtx,
		buf: make([]byte, 0, sampleRate*2),
	}
	c.cond = sync.NewCond(&c.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.mu.Lock()
			if !c.closed {
				c.buf = append(c.buf, input...)
			}
			c.mu.Unlock()
			c.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	return c, nil
}

// Read blocks until captured audio is available. Returns io.EOF after
// Close.
func (c *Capture) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.buf) == 0 && !c.closed {
		c.cond.Wait()
	}
	if c.closed && len(c.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// Close stops and releases the device. Idempotent.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.cond.Broadcast()

	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
	}
	if c.ctx != nil {
		_ = c.ctx.Uninit()
	}
	return nil
}
