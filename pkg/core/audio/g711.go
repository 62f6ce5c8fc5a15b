package audio

// G.711 µ-law transcoding between the microphone/speaker PCM16 format and
// the PCMU payload negotiated on the peer transport.

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// EncodeULaw converts little-endian PCM16 samples to µ-law bytes.
func EncodeULaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		out[i/2] = encodeULawSample(sample)
	}
	return out
}

// DecodeULaw expands µ-law bytes to little-endian PCM16 samples.
func DecodeULaw(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		sample := uint16(decodeULawSample(b))
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

func encodeULawSample(s int16) byte {
	v := int32(s)
	var sign byte
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > ulawClip {
		v = ulawClip
	}
	v += ulawBias

	exponent := byte(7)
	for mask := int32(0x4000); exponent > 0 && v&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(v>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

func decodeULawSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	v := (int32(mantissa)<<3 + ulawBias) << exponent
	v -= ulawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}
