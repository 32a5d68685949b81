package ble

import "time"

const (
	// BluezBusName is the well-known bus name of the BlueZ daemon
	BluezBusName = "org.bluez"

	// D-Bus interfaces exported by BlueZ
	AdapterInterface        = "org.bluez.Adapter1"
	DeviceInterface         = "org.bluez.Device1"
	GattServiceInterface    = "org.bluez.GattService1"
	GattCharacteristicIface = "org.bluez.GattCharacteristic1"

	objectManagerGetManagedObjects = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	propertiesGet                  = "org.freedesktop.DBus.Properties.Get"

	// DefaultAdapterID is the adapter tinygo's DefaultAdapter binds to on Linux
	DefaultAdapterID = "hci0"
)

const (
	// servicesResolvedPoll is how often DiscoverServices re-reads ServicesResolved
	servicesResolvedPoll = 250 * time.Millisecond

	// DefaultAckTimeout bounds how long a GATT write callback waits for the
	// event loop to acknowledge it
	DefaultAckTimeout = 5 * time.Second
)
