package audio

import (
	"encoding/binary"
	"testing"
)

func TestDecodeMulaw_ReferenceValues(t *testing.T) {
	// Spot values from the G.711 reference expansion table.
	cases := []struct {
		in   byte
		want int16
	}{
		{0x00, -32124},
		{0x01, -31100},
		{0x80, 32124},
		{0x81, 31100},
		{0xFF, 0},
		{0x7F, 0}, // negative zero
	}
	for _, c := range cases {
		if got := MulawToLinear(c.in); got != c.want {
			t.Fatalf("decode(0x%02X) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDecodeMulaw_DeterministicForAllBytes(t *testing.T) {
	in := make([]byte, 256)
	for i := range in {
		in[i] = byte(i)
	}
	first := DecodeMulawToPCM16(in)
	second := DecodeMulawToPCM16(in)

	if len(first) != 2*len(in) {
		t.Fatalf("output length = %d, want %d", len(first), 2*len(in))
	}
	for i := 0; i < len(in); i++ {
		a := int16(binary.LittleEndian.Uint16(first[i*2:]))
		b := int16(binary.LittleEndian.Uint16(second[i*2:]))
		if a != b {
			t.Fatalf("byte 0x%02X decoded differently across calls: %d vs %d", in[i], a, b)
		}
		if a != MulawToLinear(in[i]) {
			t.Fatalf("byte 0x%02X: bulk decode %d != table decode %d", in[i], a, MulawToLinear(in[i]))
		}
	}
}

func TestMulaw_EncodeDecodeIsIdentityOnCodewords(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		if b == 0x7F {
			// negative zero collapses onto positive zero, which encodes to 0xFF
			continue
		}
		if got := LinearToMulaw(MulawToLinear(b)); got != b {
			t.Fatalf("encode(decode(0x%02X)) = 0x%02X", b, got)
		}
	}
}

// mulawStep returns the quantization step size of the segment a sample
// falls into (8 in the lowest segment, doubling per segment).
func mulawStep(s int16) int {
	v := int(s)
	if v < 0 {
		v = -v
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias
	exp := 7
	for mask := 0x4000; v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	return 8 << uint(exp)
}

func TestMulaw_RoundTripWithinOneQuantizationStep(t *testing.T) {
	// Sweep the full amplitude range.
	for s := -32768; s <= 32767; s += 37 {
		in := int16(s)
		out := MulawToLinear(LinearToMulaw(in))
		diff := int(out) - int(in)
		if diff < 0 {
			diff = -diff
		}
		// Values beyond the clip point collapse to the top codeword.
		limit := mulawStep(in)
		if int(in) > mulawClip || int(in) < -mulawClip-133 {
			continue
		}
		if diff >= limit {
			t.Fatalf("sample %d round-tripped to %d (diff %d, step %d)", in, out, diff, limit)
		}
	}
}
