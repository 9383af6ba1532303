package audio

import "encoding/binary"

// SamplesToPCM encodes int16 samples as little-endian 16-bit PCM bytes.
func SamplesToPCM(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// PCMToSamples decodes little-endian 16-bit PCM bytes. A trailing odd byte is
// ignored.
func PCMToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}
