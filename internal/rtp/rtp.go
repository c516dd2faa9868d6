// Package rtp implements RTP Control (spec §4.7, C11): 17 independent mono
// Opus RTP streams sharing one SSRC generation, with encoder reset and
// silent-frame priming between playback sessions. Grounded on the
// pion/rtp packet framing the teacher uses for its WebRTC audio path
// (github.com/pion/rtp), adapted from unmarshal-on-receive to
// marshal-on-send since this server originates the stream rather than
// relaying one.
package rtp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	pionrtp "github.com/pion/rtp"
	"gopkg.in/hraban/opus.v2"

	"github.com/opsnlops/creature-server/internal/audio/stream"
	"github.com/opsnlops/creature-server/internal/logging"
	cerrors "github.com/opsnlops/creature-server/pkg/errors"
)

const (
	// ChannelCount mirrors stream.ChannelCount — one RTP stream per audio
	// channel.
	ChannelCount = stream.ChannelCount
	// opusPayloadType is an arbitrary dynamic RTP payload type, consistent
	// across every channel's stream.
	opusPayloadType = 111
	// timestampStep is the RTP timestamp advance per 5ms slice at 48kHz.
	timestampStep = stream.SamplesPerSlice
	// initialSSRC is the first SSRC ever handed out; rotation counts up
	// from here monotonically for the life of the process.
	initialSSRC = 1000
)

// streamState is the per-channel mutable RTP state: sequence/timestamp
// counters and the live encoder used only to generate silent frames during
// a reset — steady-state playback audio comes pre-encoded from
// audio/stream.Buffer instead.
type streamState struct {
	mu       sync.Mutex
	seq      uint16
	timestamp uint32
	encoder  *opus.Encoder
	conn     net.Conn
}

// Server owns the 17 RTP streams and the current SSRC generation.
type Server struct {
	streams [ChannelCount]*streamState
	ssrc    atomic.Uint32
	log     logging.Logger
}

// NewServer dials one UDP destination per channel (dest[c]) and creates an
// Opus encoder per channel for silent-frame generation.
func NewServer(destinations [ChannelCount]string, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.NewNop()
	}

	s := &Server{log: log}
	s.ssrc.Store(initialSSRC)

	for c := 0; c < ChannelCount; c++ {
		conn, err := net.Dial("udp4", destinations[c])
		if err != nil {
			return nil, cerrors.Wrap(cerrors.InternalError, err, fmt.Sprintf("dialing rtp destination for channel %d", c))
		}

		enc, err := opus.NewEncoder(stream.SampleRate, 1, opus.AppAudio)
		if err != nil {
			return nil, cerrors.Wrap(cerrors.InternalError, err, fmt.Sprintf("creating opus encoder for channel %d", c))
		}
		_ = enc.SetBitrate(stream.BitrateBps)
		_ = enc.SetVBR(false)

		s.streams[c] = &streamState{encoder: enc, conn: conn}
	}

	return s, nil
}

// CurrentSSRC returns the SSRC every stream is currently using.
func (s *Server) CurrentSSRC() uint32 {
	return s.ssrc.Load()
}

// SendFrame transmits a pre-encoded Opus payload (from audio/stream.Buffer)
// on channel c's stream using the current SSRC generation.
func (s *Server) SendFrame(channel int, payload []byte) error {
	if channel < 0 || channel >= ChannelCount {
		return fmt.Errorf("rtp: channel %d out of range", channel)
	}
	return s.send(s.streams[channel], payload)
}

func (s *Server) send(st *streamState, payload []byte) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	pkt := pionrtp.Packet{
		Header: pionrtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: st.seq,
			Timestamp:      st.timestamp,
			SSRC:           s.ssrc.Load(),
		},
		Payload: payload,
	}
	st.seq++
	st.timestamp += timestampStep

	raw, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling rtp packet: %w", err)
	}

	if _, err := st.conn.Write(raw); err != nil {
		return fmt.Errorf("sending rtp packet: %w", err)
	}
	return nil
}

// RotateSSRC allocates a fresh SSRC and applies it to all 17 streams
// simultaneously (spec §4.7 step 1-2).
func (s *Server) RotateSSRC() uint32 {
	return s.ssrc.Add(1)
}

// ResetEncoders reinitializes every channel's silent-frame encoder to its
// initial state (spec §4.7 step 3).
func (s *Server) ResetEncoders() error {
	for c := 0; c < ChannelCount; c++ {
		enc, err := opus.NewEncoder(stream.SampleRate, 1, opus.AppAudio)
		if err != nil {
			return cerrors.Wrap(cerrors.InternalError, err, fmt.Sprintf("resetting opus encoder for channel %d", c))
		}
		_ = enc.SetBitrate(stream.BitrateBps)
		_ = enc.SetVBR(false)

		s.streams[c].mu.Lock()
		s.streams[c].encoder = enc
		s.streams[c].mu.Unlock()
	}
	return nil
}

// SendSilentFrameRound encodes and sends one silent 5ms slice on every
// channel, used by ResetEvent to prime downstream jitter buffers
// after a reset (spec §4.7 step 4).
func (s *Server) SendSilentFrameRound() error {
	silence := make([]int16, stream.SamplesPerSlice)
	opusBuf := make([]byte, 4000)

	for c := 0; c < ChannelCount; c++ {
		st := s.streams[c]

		st.mu.Lock()
		n, err := st.encoder.Encode(silence, opusBuf)
		st.mu.Unlock()
		if err != nil {
			return cerrors.Wrap(cerrors.InternalError, err, fmt.Sprintf("encoding silent frame for channel %d", c))
		}

		payload := make([]byte, n)
		copy(payload, opusBuf[:n])
		if err := s.send(st, payload); err != nil {
			return err
		}
	}
	return nil
}

// Close tears down every channel's UDP socket.
func (s *Server) Close() error {
	var firstErr error
	for _, st := range s.streams {
		if err := st.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
