package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrShortPayload is returned when a write carries fewer than PayloadSize bytes.
var ErrShortPayload = errors.New("payload shorter than 4 bytes")

// EncodeCounter returns the wire form of a counter: 4 bytes, signed, little-endian.
func EncodeCounter(v int32) []byte {
	buf := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// DecodeCounter interprets the first 4 bytes of p as a little-endian int32.
// Trailing bytes are ignored.
func DecodeCounter(p []byte) (int32, error) {
	if len(p) < PayloadSize {
		return 0, errors.Wrapf(ErrShortPayload, "got %d bytes", len(p))
	}
	return int32(binary.LittleEndian.Uint32(p[:PayloadSize])), nil
}
