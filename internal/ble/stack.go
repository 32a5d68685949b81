package ble

import (
	"context"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/blelink/internal/config"
	"github.com/vitaminmoo/blelink/internal/link"
)

// Stack is the process's handle on the local Bluetooth stack. The client
// role talks to BlueZ directly over the system bus; the server role goes
// through tinygo (see NewPeripheral). One Stack is shared by both roles.
type Stack struct {
	conn    *dbus.Conn
	adapter string
	log     *logrus.Entry
}

// NewStack opens a private system bus connection to BlueZ. If adapter is
// set (e.g. "hci1") the client role only considers that adapter.
func NewStack(adapter string, log *logrus.Entry) (*Stack, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "connect to system bus")
	}
	return &Stack{conn: conn, adapter: adapter, log: log}, nil
}

// Close releases the bus connection.
func (s *Stack) Close() error {
	return s.conn.Close()
}

func (s *Stack) objects(ctx context.Context) (managedObjects, error) {
	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := s.conn.Object(BluezBusName, "/").CallWithContext(ctx, objectManagerGetManagedObjects, 0).Store(&objs)
	if err != nil {
		return nil, errors.Wrap(err, "list BlueZ objects")
	}
	return managedObjects(objs), nil
}

func (s *Stack) property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := s.conn.Object(BluezBusName, path).CallWithContext(ctx, propertiesGet, 0, iface, name).Store(&v)
	return v, err
}

func (s *Stack) boolProperty(ctx context.Context, path dbus.ObjectPath, iface, name string) (bool, error) {
	v, err := s.property(ctx, path, iface, name)
	if err != nil {
		return false, errors.Wrapf(err, "read %s.%s", iface, name)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, errors.Errorf("%s.%s is %s, not a boolean", iface, name, v.Signature())
	}
	return b, nil
}

// Adapters lists the local adapters in name order.
func (s *Stack) Adapters(ctx context.Context) ([]link.CentralAdapter, error) {
	objs, err := s.objects(ctx)
	if err != nil {
		return nil, err
	}
	var out []link.CentralAdapter
	for _, p := range objs.adapters() {
		if s.adapter != "" && adapterID(p) != s.adapter {
			continue
		}
		s.log.WithField("adapter", adapterID(p)).Debug("found adapter")
		out = append(out, &Adapter{stack: s, path: p})
	}
	return out, nil
}

// Adapter is one local radio as seen by the client role.
type Adapter struct {
	stack *Stack
	path  dbus.ObjectPath
}

// ID returns the BlueZ adapter name, e.g. "hci0".
func (a *Adapter) ID() string { return adapterID(a.path) }

func (a *Adapter) Powered(ctx context.Context) (bool, error) {
	return a.stack.boolProperty(ctx, a.path, AdapterInterface, "Powered")
}

// StartScan sets an LE discovery filter for the given services and starts
// discovery. Discovery already running (for example for the server role) is
// not an error.
func (a *Adapter) StartScan(ctx context.Context, f link.ScanFilter) error {
	uuids := make([]string, len(f.Services))
	for i, u := range f.Services {
		uuids[i] = u.String()
	}
	filter := map[string]dbus.Variant{
		"UUIDs":     dbus.MakeVariant(uuids),
		"Transport": dbus.MakeVariant("le"),
	}
	obj := a.stack.conn.Object(BluezBusName, a.path)
	if err := obj.CallWithContext(ctx, AdapterInterface+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		return errors.Wrap(err, "set discovery filter")
	}
	if err := obj.CallWithContext(ctx, AdapterInterface+".StartDiscovery", 0).Err; err != nil {
		if isInProgress(err) {
			config.Debugf("Discovery already in progress on %s", a.ID())
			return nil
		}
		return errors.Wrap(err, "start discovery")
	}
	return nil
}

// Peers lists every device BlueZ currently holds for this adapter.
func (a *Adapter) Peers(ctx context.Context) ([]link.Peer, error) {
	objs, err := a.stack.objects(ctx)
	if err != nil {
		return nil, err
	}
	devices := objs.devices(a.path)
	out := make([]link.Peer, 0, len(devices))
	for _, d := range devices {
		out = append(out, &Peer{stack: a.stack, path: d.path, mac: d.mac})
	}
	return out, nil
}

// Peer is a remote device object under the adapter.
type Peer struct {
	stack *Stack
	path  dbus.ObjectPath
	mac   bluetooth.MAC
	chars []link.RemoteCharacteristic
}

func (p *Peer) Address() bluetooth.MAC { return p.mac }

func (p *Peer) Connect(ctx context.Context) error {
	err := p.stack.conn.Object(BluezBusName, p.path).CallWithContext(ctx, DeviceInterface+".Connect", 0).Err
	if err != nil && !isAlreadyConnected(err) {
		return errors.Wrap(err, "connect")
	}
	return nil
}

// DiscoverServices waits until BlueZ has resolved the peer's GATT database
// and then records its characteristics. It fails if the peer drops the
// connection while waiting.
func (p *Peer) DiscoverServices(ctx context.Context) error {
	err := pollUntil(ctx, servicesResolvedPoll, func(ctx context.Context) (bool, error) {
		connected, err := p.stack.boolProperty(ctx, p.path, DeviceInterface, "Connected")
		if err != nil {
			return false, err
		}
		if !connected {
			return false, errors.New("peer disconnected before services were resolved")
		}
		resolved, err := p.stack.boolProperty(ctx, p.path, DeviceInterface, "ServicesResolved")
		if err != nil || resolved {
			return resolved, err
		}
		config.Debugf("Waiting for services on %s...", p.mac)
		return false, nil
	})
	if err != nil {
		return err
	}

	objs, err := p.stack.objects(ctx)
	if err != nil {
		return err
	}
	p.chars = p.chars[:0]
	for _, c := range objs.characteristics(p.path) {
		config.Debugf("Found characteristic: %s", c.uuid)
		p.chars = append(p.chars, &Characteristic{stack: p.stack, path: c.path, uuid: c.uuid})
	}
	return nil
}

func (p *Peer) Characteristics() []link.RemoteCharacteristic { return p.chars }

// Characteristic is a resolved remote characteristic.
type Characteristic struct {
	stack *Stack
	path  dbus.ObjectPath
	uuid  bluetooth.UUID
}

func (c *Characteristic) UUID() bluetooth.UUID { return c.uuid }

// Write performs a GATT write request and returns once the peer has
// acknowledged it.
func (c *Characteristic) Write(ctx context.Context, p []byte) error {
	opts := map[string]dbus.Variant{"type": dbus.MakeVariant("request")}
	err := c.stack.conn.Object(BluezBusName, c.path).CallWithContext(ctx, GattCharacteristicIface+".WriteValue", 0, p, opts).Err
	return errors.Wrap(err, "write value")
}

// pollUntil calls check every interval until it reports done, fails, or
// ctx ends. The first check runs immediately.
func pollUntil(ctx context.Context, interval time.Duration, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := check(ctx)
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func isInProgress(err error) bool {
	return strings.Contains(err.Error(), "InProgress")
}

func isAlreadyConnected(err error) bool {
	return strings.Contains(err.Error(), "AlreadyConnected")
}
