package ble

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/blelink/internal/link"
)

// radio is the slice of tinygo's adapter the server role needs.
type radio interface {
	AddService(svc *bluetooth.Service) error
	Advertise(opts bluetooth.AdvertisementOptions) error
	StopAdvertising() error
}

type tinygoRadio struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
}

func (r *tinygoRadio) AddService(svc *bluetooth.Service) error {
	return r.adapter.AddService(svc)
}

func (r *tinygoRadio) Advertise(opts bluetooth.AdvertisementOptions) error {
	r.adv = r.adapter.DefaultAdvertisement()
	if err := r.adv.Configure(opts); err != nil {
		return errors.Wrap(err, "configure advertisement")
	}
	return errors.Wrap(r.adv.Start(), "start advertisement")
}

func (r *tinygoRadio) StopAdvertising() error {
	if r.adv == nil {
		return nil
	}
	return r.adv.Stop()
}

// Peripheral is the server role's binding to the local stack. GATT writes
// arrive on tinygo's callback goroutine; each one is turned into a
// link.WriteRequest and the callback blocks until the event loop answers,
// so BlueZ acknowledges the write only after it was handled.
type Peripheral struct {
	radio      radio
	powered    func(ctx context.Context) (bool, error)
	ackTimeout time.Duration
	log        *logrus.Entry

	events chan link.Event
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	client atomic.Value // string, last connected central
}

// NewPeripheral enables tinygo's default adapter and wires its connection
// callback to the event channel.
func NewPeripheral(stack *Stack, ackTimeout time.Duration, log *logrus.Entry) (*Peripheral, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, errors.Wrap(err, "enable adapter")
	}
	path := dbus.ObjectPath("/org/bluez/" + DefaultAdapterID)
	p := newPeripheral(&tinygoRadio{adapter: adapter}, func(ctx context.Context) (bool, error) {
		return stack.boolProperty(ctx, path, AdapterInterface, "Powered")
	}, ackTimeout, log)
	adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		p.onConnect(device.Address.String(), connected)
	})
	return p, nil
}

func newPeripheral(r radio, powered func(context.Context) (bool, error), ackTimeout time.Duration, log *logrus.Entry) *Peripheral {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	p := &Peripheral{
		radio:      r,
		powered:    powered,
		ackTimeout: ackTimeout,
		log:        log,
		events:     make(chan link.Event, link.EventBuffer),
		done:       make(chan struct{}),
	}
	p.client.Store("")
	return p
}

// Events is the channel the server role's event loop consumes. It is closed
// by Close.
func (p *Peripheral) Events() <-chan link.Event { return p.events }

func (p *Peripheral) Powered(ctx context.Context) (bool, error) {
	return p.powered(ctx)
}

// AddService registers svc with the local GATT server.
func (p *Peripheral) AddService(_ context.Context, svc link.LocalService) error {
	if !svc.Primary {
		return errors.New("secondary services are not supported")
	}
	out := &bluetooth.Service{UUID: svc.UUID}
	for _, c := range svc.Characteristics {
		cfg := bluetooth.CharacteristicConfig{
			UUID:  c.UUID,
			Flags: characteristicFlags(c),
		}
		if cfg.Flags&(bluetooth.CharacteristicWritePermission|bluetooth.CharacteristicWriteWithoutResponsePermission) != 0 {
			cfg.WriteEvent = p.onWrite
		}
		out.Characteristics = append(out.Characteristics, cfg)
	}
	return errors.Wrap(p.radio.AddService(out), "add service")
}

func (p *Peripheral) StartAdvertising(_ context.Context, name string, services []bluetooth.UUID) error {
	return p.radio.Advertise(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: services,
	})
}

// Close stops advertising and closes the event channel once no callback is
// still delivering into it. Callbacks arriving after Close are dropped.
func (p *Peripheral) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
	close(p.events)
	return p.radio.StopAdvertising()
}

// emit delivers ev unless the peripheral is closed. It blocks while the
// channel is full.
func (p *Peripheral) emit(ev link.Event) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	select {
	case p.events <- ev:
		return true
	case <-p.done:
		return false
	}
}

func (p *Peripheral) onConnect(addr string, connected bool) {
	if connected {
		p.client.Store(addr)
	}
	p.emit(link.ConnectionChanged{Client: addr, Connected: connected})
}

func (p *Peripheral) onWrite(_ bluetooth.Connection, offset int, value []byte) {
	r := link.NewResponder()
	req := link.WriteRequest{
		Client:    p.client.Load().(string),
		Offset:    offset,
		Value:     append([]byte(nil), value...),
		Responder: r,
	}
	if !p.emit(req) {
		r.Abandon()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.ackTimeout)
	defer cancel()
	resp, err := r.Wait(ctx)
	if err != nil {
		p.log.WithError(err).Warn("write was not acknowledged in time")
		return
	}
	p.log.WithField("response", resp.String()).Debug("write acknowledged")
}

// characteristicFlags maps declared properties onto tinygo flags. Write
// properties are dropped unless the characteristic is writeable.
func characteristicFlags(c link.LocalCharacteristic) bluetooth.CharacteristicPermissions {
	var f bluetooth.CharacteristicPermissions
	if c.Properties&link.PropertyRead != 0 && c.Permissions&link.PermissionReadable != 0 {
		f |= bluetooth.CharacteristicReadPermission
	}
	if c.Permissions&link.PermissionWriteable != 0 {
		if c.Properties&link.PropertyWrite != 0 {
			f |= bluetooth.CharacteristicWritePermission
		}
		if c.Properties&link.PropertyWriteWithoutResponse != 0 {
			f |= bluetooth.CharacteristicWriteWithoutResponsePermission
		}
	}
	if c.Properties&link.PropertyNotify != 0 {
		f |= bluetooth.CharacteristicNotifyPermission
	}
	return f
}
