package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/prepvoice/prepvoice/pkg/core/audio"
)

const (
	// PCMU over the peer transport: 8 kHz mono, 20 ms frames.
	micSampleRate   = 8000
	micFrameSamples = 160
	micFrameBytes   = micFrameSamples * 2
	micFramePeriod  = 20 * time.Millisecond
)

// MediaSession is an open media+signaling session: microphone audio flowing
// out, interviewer audio flowing in, and an ordered reliable event
// transport. Close is idempotent and releases every acquired resource.
type MediaSession interface {
	// Events delivers transport events in arrival order. The channel is
	// closed when the session shuts down.
	Events() <-chan TransportEvent

	// Send marshals v as JSON and writes it over the event transport.
	Send(v any) error

	Close() error
}

// MediaDialer opens a MediaSession for a credential. The Controller calls
// it on every Start; tests substitute fakes.
type MediaDialer func(ctx context.Context, cred Credential) (MediaSession, error)

// peerSession is the production MediaSession on a WebRTC peer connection.
type peerSession struct {
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	mic     io.ReadCloser
	speaker io.Writer
	logger  *slog.Logger

	events chan TransportEvent
	done   chan struct{}

	closeOnce sync.Once
}

// Dial acquires the media transport: registers the microphone as the
// outbound PCMU audio track, prepares to receive the interviewer's audio
// into speaker, opens the event data channel, and completes the SDP
// offer/answer exchange with the signaling endpoint. On any failure the
// partially opened session is closed before returning.
func Dial(ctx context.Context, cred Credential, mic io.ReadCloser, speaker io.Writer, cfg Config) (MediaSession, error) {
	cfg = cfg.withDefaults()

	if mic == nil {
		return nil, NewMediaAccessError(errors.New("no microphone source"))
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		mic.Close()
		return nil, NewSignalingError(err.Error())
	}

	s := &peerSession{
		pc:      pc,
		mic:     mic,
		speaker: speaker,
		logger:  cfg.Logger,
		events:  make(chan TransportEvent, 256),
		done:    make(chan struct{}),
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: micSampleRate, Channels: 1},
		"audio", "prepvoice-mic",
	)
	if err != nil {
		s.Close()
		return nil, NewSignalingError(err.Error())
	}
	if _, err := pc.AddTrack(track); err != nil {
		s.Close()
		return nil, NewSignalingError(err.Error())
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go s.playRemote(remote)
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		failed := state == webrtc.ICEConnectionStateFailed || state == webrtc.ICEConnectionStateClosed
		s.emit(TransportStateChanged{State: state.String(), Failed: failed})
	})

	dc, err := pc.CreateDataChannel("oai-events", nil)
	if err != nil {
		s.Close()
		return nil, NewSignalingError(err.Error())
	}
	s.dc = dc
	dc.OnOpen(func() { s.emit(TransportOpened{}) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.emit(TransportMessage{Payload: msg.Data})
	})
	dc.OnClose(func() { s.emit(TransportClosed{}) })

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		s.Close()
		return nil, NewSignalingError(err.Error())
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		s.Close()
		return nil, NewSignalingError(err.Error())
	}

	select {
	case <-gathered:
	case <-time.After(cfg.GatherTimeout):
		s.Close()
		return nil, NewNegotiationTimeout("ice candidate gathering did not complete")
	case <-ctx.Done():
		s.Close()
		return nil, AsError(ctx.Err(), ErrSignaling)
	}

	signalCtx, cancel := context.WithTimeout(ctx, cfg.SignalTimeout)
	defer cancel()
	answer, err := exchangeSDP(signalCtx, &http.Client{}, cred, pc.LocalDescription().SDP)
	if err != nil {
		s.Close()
		return nil, AsError(err, ErrSignaling)
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		s.Close()
		return nil, NewSignalingError(err.Error())
	}

	go s.pumpMic(track)

	return s, nil
}

func (s *peerSession) Events() <-chan TransportEvent { return s.events }

func (s *peerSession) Send(v any) error {
	if s.dc == nil {
		return errors.New("event transport not open")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.dc.SendText(string(payload))
}

// Close releases the event transport, the peer transport, and the
// microphone. Safe to call multiple times and after partial setup failure.
func (s *peerSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.dc != nil {
			_ = s.dc.Close()
		}
		_ = s.pc.Close()
		_ = s.mic.Close()
	})
	return nil
}

// emit delivers ev in order, giving up once the session is closed.
func (s *peerSession) emit(ev TransportEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// pumpMic reads 20 ms PCM16 frames from the microphone, transcodes them to
// PCMU, and writes them onto the outbound track.
func (s *peerSession) pumpMic(track *webrtc.TrackLocalStaticSample) {
	frame := make([]byte, micFrameBytes)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if _, err := io.ReadFull(s.mic, frame); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("microphone read failed", "error", err)
				s.emit(TransportClosed{Err: err})
			}
			return
		}

		sample := pionmedia.Sample{
			Data:     audio.EncodeULaw(frame),
			Duration: micFramePeriod,
		}
		if err := track.WriteSample(sample); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("outbound track write failed", "error", err)
			}
			return
		}
	}
}

// playRemote decodes inbound PCMU packets and writes PCM16 to the speaker.
func (s *peerSession) playRemote(remote *webrtc.TrackRemote) {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if s.speaker == nil || len(pkt.Payload) == 0 {
			continue
		}
		if _, err := s.speaker.Write(audio.DecodeULaw(pkt.Payload)); err != nil {
			return
		}
	}
}
