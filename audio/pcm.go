// Package audio converts captured float samples into the byte formats
// consumed by recognition providers.
package audio

import "encoding/binary"

// toInt16 clamps s to [-1, 1] and scales it to a signed 16-bit sample.
func toInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}

// EncodePCM16 encodes samples as interleaved 16-bit little-endian PCM.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}
