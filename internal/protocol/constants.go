package protocol

import (
	"github.com/google/uuid"

	"tinygo.org/x/bluetooth"
)

const (
	// ServiceIDString is the primary counter service UUID
	ServiceIDString = "7D2E8F4A-3B61-4C9E-9A57-1F0C6B2D8E31"

	// CharacteristicIDString is the write-only characteristic the central pushes counters to
	CharacteristicIDString = "7D2E8F4B-3B61-4C9E-9A57-1F0C6B2D8E31"

	// DeviceName is the local name broadcast while advertising
	DeviceName = "BLE Dual Role"

	// PayloadSize is the exact length of a counter payload on the wire
	PayloadSize = 4
)

var (
	ServiceID        = uuid.MustParse(ServiceIDString)
	CharacteristicID = uuid.MustParse(CharacteristicIDString)

	// ServiceUUID and CharacteristicUUID are the same identifiers in the form
	// the BLE stack compares against.
	ServiceUUID        = mustBluetoothUUID(ServiceID)
	CharacteristicUUID = mustBluetoothUUID(CharacteristicID)
)

// ToBluetooth converts a canonical UUID into the stack's representation.
func ToBluetooth(id uuid.UUID) (bluetooth.UUID, error) {
	return bluetooth.ParseUUID(id.String())
}

func mustBluetoothUUID(id uuid.UUID) bluetooth.UUID {
	u, err := ToBluetooth(id)
	if err != nil {
		panic("protocol: invalid UUID " + id.String() + ": " + err.Error())
	}
	return u
}
