package protocol

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCounterLittleEndian(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, EncodeCounter(0))
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, EncodeCounter(1))
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, EncodeCounter(0x12345678))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, EncodeCounter(-1))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0x7f}, EncodeCounter(math.MaxInt32))
}

func TestDecodeCounterUsesFirstFourBytes(t *testing.T) {
	payloads := [][]byte{
		{0x02, 0x00, 0x00, 0x00},
		{0x02, 0x00, 0x00, 0x00, 0xde, 0xad},
		{0x00, 0x00, 0x00, 0x80},
		{0xfe, 0xff, 0xff, 0xff, 0x01},
	}
	for _, p := range payloads {
		got, err := DecodeCounter(p)
		require.NoError(t, err)
		assert.Equal(t, int32(binary.LittleEndian.Uint32(p[:4])), got, "payload %x", p)
	}
}

func TestDecodeCounterShortPayload(t *testing.T) {
	for n := 0; n < PayloadSize; n++ {
		_, err := DecodeCounter(make([]byte, n))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrShortPayload))
		assert.Contains(t, err.Error(), "got")
	}
}

func TestEncodeDecodeRoundTripsEdges(t *testing.T) {
	for _, v := range []int32{0, 1, -1, math.MaxInt32, math.MinInt32} {
		got, err := DecodeCounter(EncodeCounter(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
