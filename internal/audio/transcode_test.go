package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// buildWAV produces a minimal PCM16 RIFF/WAVE container for tests.
func buildWAV(t *testing.T, samples []int16, sampleRate, channels int) []byte {
	t.Helper()
	var buf bytes.Buffer
	dataSize := uint32(len(samples) * 2)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36)+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func sine(n, sampleRate int, freq float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestTranscodeToFrames_20msFramesAre160Bytes(t *testing.T) {
	// 1 second at 8 kHz: exactly 50 frames, no remainder.
	wav := buildWAV(t, sine(8000, 8000, 440), 8000, 1)

	frames, err := TranscodeToFrames(wav, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(frames) != 50 {
		t.Fatalf("expected 50 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if len(f) != 160 {
			t.Fatalf("frame %d has %d bytes, want 160", i, len(f))
		}
	}
}

func TestTranscodeToFrames_TrailingPartialDiscarded(t *testing.T) {
	// 399 samples at 8 kHz: two full 160-byte frames, 79 bytes discarded.
	wav := buildWAV(t, sine(399, 8000, 440), 8000, 1)

	frames, err := TranscodeToFrames(wav, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestTranscodeToFrames_ResamplesAndDownmixes(t *testing.T) {
	// 24 kHz stereo source: interleave identical channels, expect ~1s of 8 kHz output.
	mono := sine(24000, 24000, 300)
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}
	wav := buildWAV(t, stereo, 24000, 2)

	frames, err := TranscodeToFrames(wav, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(frames) != 50 {
		t.Fatalf("expected 50 frames from 1s of audio, got %d", len(frames))
	}
}

func TestTranscodeToFrames_RejectsGarbage(t *testing.T) {
	if _, err := TranscodeToFrames([]byte("definitely not audio"), 20*time.Millisecond); err == nil {
		t.Fatalf("expected error for unsupported input")
	}
	wav := buildWAV(t, sine(160, 8000, 440), 8000, 1)
	if _, err := TranscodeToFrames(wav, 0); err == nil {
		t.Fatalf("expected error for zero frame duration")
	}
}

func TestFramePCM16_KnownRate(t *testing.T) {
	// 480 samples of 24 kHz PCM -> 160 samples at 8 kHz -> one 160-byte frame.
	src := sine(480, 24000, 300)
	raw := make([]byte, len(src)*2)
	for i, s := range src {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	frames, err := FramePCM16(raw, 24000, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(frames) != 1 || len(frames[0]) != 160 {
		t.Fatalf("expected one 160-byte frame, got %d frames", len(frames))
	}
}

func TestResample_Identity(t *testing.T) {
	in := sine(100, 8000, 440)
	out := Resample(in, 8000, 8000)
	if len(out) != len(in) {
		t.Fatalf("identity resample changed length: %d -> %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("identity resample changed sample %d", i)
		}
	}
}
