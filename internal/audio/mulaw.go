package audio

import "encoding/binary"

// G.711 mu-law companding.
//
// The telephony transport delivers and accepts 8-bit mu-law samples at 8 kHz.
// Speech and conversation engines want 16-bit linear PCM. Both directions must
// match the reference tables bit-for-bit so that decode/encode round trips stay
// within one quantization step.

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// decodeTable maps every mu-law byte to its linear PCM16 value.
var decodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		decodeTable[i] = mulawToLinear(byte(i))
	}
}

func mulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant)<<3 + mulawBias) << exp
	value -= mulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// LinearToMulaw compresses one linear PCM16 sample to a mu-law byte.
func LinearToMulaw(sample int16) byte {
	sign := byte(0)
	v := int(sample)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	exp := byte(7)
	for mask := 0x4000; v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := byte((v >> (exp + 3)) & 0x0F)
	return ^(sign | exp<<4 | mant)
}

// MulawToLinear expands one mu-law byte to a linear PCM16 sample.
func MulawToLinear(u byte) int16 { return decodeTable[u] }

// DecodeMulawToPCM16 expands mu-law bytes to little-endian PCM16.
// Defined for all 256 input values; output is always 2x the input length.
func DecodeMulawToPCM16(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(decodeTable[b]))
	}
	return out
}

// EncodePCM16ToMulaw compresses little-endian PCM16 to mu-law bytes.
// A trailing odd byte is ignored.
func EncodePCM16ToMulaw(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = LinearToMulaw(s)
	}
	return out
}
