// Package stream implements AudioStreamBuffer (spec §4.2, C6): loading a
// 17-channel 48kHz s16 PCM source and pre-encoding each 5ms slice per
// channel to Opus, indexable by (channel, frame_index), so the runner never
// touches an encoder on the hot path.
package stream

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/hraban/opus.v2"

	cerrors "github.com/opsnlops/creature-server/pkg/errors"
)

const (
	// SampleRate is the only sample rate the core accepts.
	SampleRate = 48000
	// ChannelCount is 16 creature channels plus one background-music channel.
	ChannelCount = 17
	// SliceMs is the duration of one encoded Opus frame.
	SliceMs = 5
	// SamplesPerSlice is the per-channel sample count of one 5ms slice.
	SamplesPerSlice = SampleRate * SliceMs / 1000
	// bytesPerSample is the width of one signed-16-bit PCM sample.
	bytesPerSample = 2
	// BitrateBps is the configured CBR bitrate per creature channel.
	BitrateBps = 24000
)

// Buffer is a fully pre-encoded multi-channel audio source: FrameCount
// 5ms slices for each of ChannelCount channels.
type Buffer struct {
	FrameCount int
	// slices[channel][frameIndex] is one Opus-encoded payload.
	slices [ChannelCount][][]byte
}

// Frame returns the pre-encoded Opus payload for channel c at frameIndex,
// or nil if out of range.
func (b *Buffer) Frame(channel int, frameIndex int) []byte {
	if channel < 0 || channel >= ChannelCount {
		return nil
	}
	if frameIndex < 0 || frameIndex >= len(b.slices[channel]) {
		return nil
	}
	return b.slices[channel][frameIndex]
}

// Options configures encoding behavior.
type Options struct {
	// FEC enables in-band forward error correction with a 10% loss hint.
	FEC bool
	// Cache, if non-nil, is consulted before encoding and populated after.
	Cache Cache
}

// Load reads a 17-channel interleaved s16 PCM file at 48kHz and encodes it
// into a Buffer. The file is assumed headerless raw PCM; format validation
// here covers what the core can check without a container parser (length is
// a multiple of the per-slice frame size, and the file is non-empty).
func Load(path string, opts Options) (*Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.Wrap(cerrors.NotFound, err, fmt.Sprintf("audio file not found: %s", path))
		}
		return nil, cerrors.Wrap(cerrors.InternalError, err, fmt.Sprintf("reading audio file: %s", path))
	}

	bytesPerFrame := ChannelCount * SamplesPerSlice * bytesPerSample
	if len(raw) < bytesPerFrame {
		return nil, cerrors.New(cerrors.InvalidData, "audio source shorter than one 5ms slice")
	}
	if len(raw)%bytesPerSample != 0 {
		return nil, cerrors.New(cerrors.InvalidData, "audio source length is not a whole number of s16 samples")
	}

	frameCount := len(raw) / bytesPerFrame
	usableBytes := frameCount * bytesPerFrame
	if usableBytes != len(raw) {
		return nil, cerrors.New(cerrors.InvalidData, "audio source length is not a multiple of one 17-channel 5ms slice")
	}

	var cacheKey string
	if opts.Cache != nil {
		cacheKey = contentCacheKey(path, raw, opts.FEC)
		if cached, ok := opts.Cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	buf, err := encode(raw, frameCount, opts.FEC)
	if err != nil {
		return nil, err
	}

	if opts.Cache != nil {
		opts.Cache.Put(cacheKey, buf)
	}

	return buf, nil
}

func encode(raw []byte, frameCount int, fec bool) (*Buffer, error) {
	encoders := make([]*opus.Encoder, ChannelCount)
	for c := 0; c < ChannelCount; c++ {
		enc, err := opus.NewEncoder(SampleRate, 1, opus.AppAudio)
		if err != nil {
			return nil, cerrors.Wrap(cerrors.InternalError, err, "creating opus encoder")
		}
		if err := enc.SetBitrate(BitrateBps); err != nil {
			return nil, cerrors.Wrap(cerrors.InternalError, err, "setting opus bitrate")
		}
		if err := enc.SetVBR(false); err != nil {
			return nil, cerrors.Wrap(cerrors.InternalError, err, "disabling opus VBR")
		}
		if err := enc.SetComplexity(10); err != nil {
			return nil, cerrors.Wrap(cerrors.InternalError, err, "setting opus complexity")
		}
		if fec {
			if err := enc.SetInBandFEC(true); err != nil {
				return nil, cerrors.Wrap(cerrors.InternalError, err, "enabling opus FEC")
			}
			if err := enc.SetPacketLossPerc(10); err != nil {
				return nil, cerrors.Wrap(cerrors.InternalError, err, "setting opus loss hint")
			}
		}
		encoders[c] = enc
	}

	buf := &Buffer{FrameCount: frameCount}
	for c := range buf.slices {
		buf.slices[c] = make([][]byte, frameCount)
	}

	pcm := make([]int16, SamplesPerSlice)
	opusBuf := make([]byte, 4000)

	for frame := 0; frame < frameCount; frame++ {
		base := frame * ChannelCount * SamplesPerSlice * bytesPerSample
		for c := 0; c < ChannelCount; c++ {
			deinterleave(raw, base, c, pcm)

			n, err := encoders[c].Encode(pcm, opusBuf)
			if err != nil {
				return nil, cerrors.Wrap(cerrors.InternalError, err, fmt.Sprintf("encoding channel %d frame %d", c, frame))
			}
			payload := make([]byte, n)
			copy(payload, opusBuf[:n])
			buf.slices[c][frame] = payload
		}
	}

	return buf, nil
}

// deinterleave pulls channel c's samples for one slice starting at byte
// offset base out of 17-channel interleaved s16 PCM into dst.
func deinterleave(raw []byte, base int, c int, dst []int16) {
	stride := ChannelCount * bytesPerSample
	off := base + c*bytesPerSample
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(raw[off : off+2]))
		off += stride
	}
}

func contentCacheKey(path string, raw []byte, fec bool) string {
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%s:fec=%t", filepath.Base(path), hex.EncodeToString(h[:]), fec)
}
