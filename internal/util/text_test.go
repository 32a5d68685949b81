package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexDumpCounterPayload(t *testing.T) {
	got := HexDump([]byte{0x02, 0x00, 0x00, 0x00})
	assert.True(t, strings.HasPrefix(got, "0000  02 00 00 00 "))
	assert.True(t, strings.HasSuffix(got, " |....|"))
	assert.NotContains(t, got, "\n")
}

func TestHexDumpMultipleLines(t *testing.T) {
	data := []byte("0123456789abcdefXYZ")
	lines := strings.Split(HexDump(data), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "0010  58 59 5a "))
	assert.True(t, strings.HasSuffix(lines[0], "|0123456789abcdef|"))
}

func TestIsTextData(t *testing.T) {
	assert.True(t, IsTextData([]byte("hello\n")))
	assert.False(t, IsTextData([]byte{0x00, 0x01}))
}

func TestHexDumpEmpty(t *testing.T) {
	assert.Equal(t, "", HexDump(nil))
}
