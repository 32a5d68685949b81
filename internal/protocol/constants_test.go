package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDsMatchCanonicalForm(t *testing.T) {
	assert.True(t, strings.EqualFold(ServiceIDString, ServiceUUID.String()))
	assert.True(t, strings.EqualFold(CharacteristicIDString, CharacteristicUUID.String()))
	assert.NotEqual(t, ServiceUUID, CharacteristicUUID)
}

func TestToBluetooth(t *testing.T) {
	u, err := ToBluetooth(ServiceID)
	require.NoError(t, err)
	assert.Equal(t, ServiceUUID, u)
}
