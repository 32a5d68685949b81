package ble

import (
	"path"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"tinygo.org/x/bluetooth"
)

// managedObjects is the reply of ObjectManager.GetManagedObjects:
// object path -> interface -> property -> value.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

type deviceRecord struct {
	path dbus.ObjectPath
	mac  bluetooth.MAC
}

type characteristicRecord struct {
	path dbus.ObjectPath
	uuid bluetooth.UUID
}

// adapters returns adapter object paths in name order (hci0 before hci1).
func (m managedObjects) adapters() []dbus.ObjectPath {
	var paths []dbus.ObjectPath
	for p, ifaces := range m {
		if _, ok := ifaces[AdapterInterface]; ok {
			paths = append(paths, p)
		}
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths
}

// devices returns the devices BlueZ knows on the given adapter, including
// cached ones that are no longer in range.
func (m managedObjects) devices(adapter dbus.ObjectPath) []deviceRecord {
	var out []deviceRecord
	for p, ifaces := range m {
		props, ok := ifaces[DeviceInterface]
		if !ok {
			continue
		}
		if owner, _ := props["Adapter"].Value().(dbus.ObjectPath); owner != adapter {
			continue
		}
		addr, _ := props["Address"].Value().(string)
		mac, err := ParseAddress(addr)
		if err != nil {
			continue
		}
		out = append(out, deviceRecord{path: p, mac: mac})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// characteristics returns the GATT characteristics resolved under device.
func (m managedObjects) characteristics(device dbus.ObjectPath) []characteristicRecord {
	prefix := string(device) + "/"
	var out []characteristicRecord
	for p, ifaces := range m {
		if !strings.HasPrefix(string(p), prefix) {
			continue
		}
		props, ok := ifaces[GattCharacteristicIface]
		if !ok {
			continue
		}
		s, _ := props["UUID"].Value().(string)
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			continue
		}
		out = append(out, characteristicRecord{path: p, uuid: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// ParseAddress parses a colon-separated hardware address in either case.
func ParseAddress(s string) (bluetooth.MAC, error) {
	return bluetooth.ParseMAC(strings.ToUpper(strings.TrimSpace(s)))
}

func adapterID(p dbus.ObjectPath) string {
	return path.Base(string(p))
}
