package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Transport audio parameters. The telephony transport streams 8 kHz mono
// mu-law and requires exact frame sizes; short frames are rejected.
const (
	TransportSampleRate  = 8000
	DefaultFrameDuration = 20 * time.Millisecond
)

var (
	ErrUnsupportedFormat = errors.New("audio: unsupported source format")
	ErrBadFrameDuration  = errors.New("audio: frame duration must be positive")
)

// TranscodeToFrames converts synthesized speech (WAV or MP3) into fixed-size
// mu-law frames ready for the transport: decode, downmix to mono, resample to
// 8 kHz, compand, and chunk. A trailing partial frame is discarded, never
// zero-padded; callers that need exact total duration must pad the source.
//
// The conversion is pure and deterministic. A malformed source fails this one
// call only; retry and fallback policy belongs to the caller.
func TranscodeToFrames(src []byte, frameDuration time.Duration) ([][]byte, error) {
	if frameDuration <= 0 {
		return nil, ErrBadFrameDuration
	}

	var (
		pcm  []int16
		rate int
		err  error
	)
	switch {
	case looksLikeWAV(src):
		pcm, rate, err = decodeWAV(src)
	case looksLikeMP3(src):
		pcm, rate, err = decodeMP3(src)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	pcm = Resample(pcm, rate, TransportSampleRate)

	frameBytes := TransportSampleRate * int(frameDuration.Milliseconds()) / 1000
	if frameBytes <= 0 {
		return nil, ErrBadFrameDuration
	}

	frames := make([][]byte, 0, len(pcm)/frameBytes)
	for off := 0; off+frameBytes <= len(pcm); off += frameBytes {
		frame := make([]byte, frameBytes)
		for i := 0; i < frameBytes; i++ {
			frame[i] = LinearToMulaw(pcm[off+i])
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// FramePCM16 chunks raw little-endian PCM16 of a known sample rate into
// mu-law transport frames. Used for engine audio deltas where the rate is
// negotiated up front. Trailing partial frames are discarded.
func FramePCM16(pcm []byte, sampleRate int, frameDuration time.Duration) ([][]byte, error) {
	if frameDuration <= 0 {
		return nil, ErrBadFrameDuration
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	samples = Resample(samples, sampleRate, TransportSampleRate)

	frameBytes := TransportSampleRate * int(frameDuration.Milliseconds()) / 1000
	if frameBytes <= 0 {
		return nil, ErrBadFrameDuration
	}
	frames := make([][]byte, 0, len(samples)/frameBytes)
	for off := 0; off+frameBytes <= len(samples); off += frameBytes {
		frame := make([]byte, frameBytes)
		for i := 0; i < frameBytes; i++ {
			frame[i] = LinearToMulaw(samples[off+i])
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// Resample converts between sample rates with linear interpolation.
// Good enough for narrowband speech; not a general-purpose resampler.
func Resample(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 {
		return append([]int16(nil), in...)
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen <= 1 {
		return []int16{}
	}
	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		i0 := int(math.Floor(srcPos))
		i1 := i0 + 1
		if i0 >= len(in) {
			i0 = len(in) - 1
		}
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		f := srcPos - float64(i0)
		v := float64(in[i0])*(1.0-f) + float64(in[i1])*f
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

func looksLikeWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

func looksLikeMP3(b []byte) bool {
	return (len(b) >= 3 && string(b[:3]) == "ID3") ||
		(len(b) >= 2 && b[0] == 0xFF && (b[1]&0xE0) == 0xE0)
}

// decodeWAV parses a RIFF/WAVE container and returns mono PCM16 plus the
// source sample rate. Supports 16-bit and 24-bit integer PCM, any channel
// count (downmixed by averaging).
func decodeWAV(data []byte) ([]int16, int, error) {
	if !looksLikeWAV(data) {
		return nil, 0, ErrUnsupportedFormat
	}
	pos := 12
	var (
		audioFormat   uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		pcmData       []byte
		gotFmt        bool
	)
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if pos+chunkSize > len(data) {
			return nil, 0, fmt.Errorf("audio: truncated WAV chunk %q", chunkID)
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, errors.New("audio: WAV fmt chunk too small")
			}
			audioFormat = binary.LittleEndian.Uint16(data[pos : pos+2])
			channels = binary.LittleEndian.Uint16(data[pos+2 : pos+4])
			sampleRate = binary.LittleEndian.Uint32(data[pos+4 : pos+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[pos+14 : pos+16])
			gotFmt = true
		case "data":
			if pcmData == nil {
				pcmData = data[pos : pos+chunkSize]
			}
		}
		pos += chunkSize
		if pos%2 == 1 {
			pos++
		}
	}
	if !gotFmt || pcmData == nil {
		return nil, 0, errors.New("audio: WAV missing fmt or data chunk")
	}
	if audioFormat != 1 {
		return nil, 0, fmt.Errorf("audio: unsupported WAV format %d (need PCM)", audioFormat)
	}
	if channels == 0 || sampleRate == 0 {
		return nil, 0, errors.New("audio: bad WAV header")
	}

	var samples []int16
	switch bitsPerSample {
	case 16:
		if len(pcmData)%2 != 0 {
			return nil, 0, errors.New("audio: odd 16-bit WAV data length")
		}
		samples = make([]int16, len(pcmData)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(pcmData[i*2:]))
		}
	case 24:
		if len(pcmData)%3 != 0 {
			return nil, 0, errors.New("audio: bad 24-bit WAV data length")
		}
		n := len(pcmData) / 3
		samples = make([]int16, n)
		for i := 0; i < n; i++ {
			v := int32(pcmData[i*3]) | int32(pcmData[i*3+1])<<8 | int32(pcmData[i*3+2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			samples[i] = int16(v >> 8)
		}
	default:
		return nil, 0, fmt.Errorf("audio: unsupported WAV bit depth %d", bitsPerSample)
	}

	return downmix(samples, int(channels)), int(sampleRate), nil
}

// decodeMP3 decodes an MP3 stream to mono PCM16. go-mp3 always emits
// 16-bit stereo at the source rate.
func decodeMP3(data []byte) ([]int16, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("audio: mp3 decode: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: mp3 read: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, 0, errors.New("audio: unexpected mp3 decoded length")
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return downmix(samples, 2), dec.SampleRate(), nil
}

func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		out[i] = int16(sum / channels)
	}
	return out
}
