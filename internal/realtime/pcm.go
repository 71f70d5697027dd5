package realtime

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodePCM16 packs little-endian 16-bit mono samples as base64.
func EncodePCM16(samples []int16) string {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return base64.StdEncoding.EncodeToString(b)
}

func DecodePCM16(encoded string) ([]int16, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("decode audio: odd byte count %d", len(b))
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out, nil
}
