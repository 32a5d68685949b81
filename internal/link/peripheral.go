package link

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/blelink/internal/protocol"
	"github.com/vitaminmoo/blelink/internal/util"
)

// Property is a declared characteristic property.
type Property uint8

const (
	PropertyRead Property = 1 << iota
	PropertyWrite
	PropertyWriteWithoutResponse
	PropertyNotify
)

// Permission is an attribute access permission.
type Permission uint8

const (
	PermissionReadable Permission = 1 << iota
	PermissionWriteable
)

// LocalCharacteristic is a characteristic served by this process. It holds
// no value; every write is handled transiently.
type LocalCharacteristic struct {
	UUID        bluetooth.UUID
	Properties  Property
	Permissions Permission
}

// LocalService is a GATT service registered with the local server.
type LocalService struct {
	UUID            bluetooth.UUID
	Primary         bool
	Characteristics []LocalCharacteristic
}

// CounterService is the one service this link serves: a primary service with
// a single write-only counter characteristic.
func CounterService() LocalService {
	return LocalService{
		UUID:    protocol.ServiceUUID,
		Primary: true,
		Characteristics: []LocalCharacteristic{{
			UUID:        protocol.CharacteristicUUID,
			Properties:  PropertyWrite,
			Permissions: PermissionWriteable,
		}},
	}
}

// PeripheralStack is the server-side view of the local adapter. Events are
// delivered on the channel the stack was constructed with.
type PeripheralStack interface {
	PowerState
	AddService(ctx context.Context, svc LocalService) error
	StartAdvertising(ctx context.Context, name string, services []bluetooth.UUID) error
}

// PeripheralConfig configures a Peripheral. Zero fields get defaults.
type PeripheralConfig struct {
	Timing Timing
	Log    *logrus.Entry
	Notify Notifier
}

// Peripheral drives the server role: register the counter service,
// advertise it and log every counter written to it.
type Peripheral struct {
	stack  PeripheralStack
	events <-chan Event
	timing Timing
	log    *logrus.Entry
	notify Notifier
}

func NewPeripheral(stack PeripheralStack, events <-chan Event, cfg PeripheralConfig) *Peripheral {
	p := &Peripheral{
		stack:  stack,
		events: events,
		timing: cfg.Timing,
		log:    cfg.Log,
		notify: cfg.Notify,
	}
	if p.timing == (Timing{}) {
		p.timing = DefaultTiming()
	}
	if p.log == nil {
		p.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return p
}

// Run executes the duty cycle. It returns nil once the event channel is
// closed, a FatalError if the service cannot be served, or ctx's error.
func (p *Peripheral) Run(ctx context.Context) error {
	p.enter(StateAwaitPowerOn)
	if err := awaitPowerOn(ctx, p.stack, p.timing.PowerPoll, p.log, logrus.InfoLevel); err != nil {
		return err
	}

	p.enter(StateRegisterService)
	if err := p.stack.AddService(ctx, CounterService()); err != nil {
		return fatal("register service", err)
	}

	p.enter(StateStartAdvertising)
	p.log.WithField("name", protocol.DeviceName).Info("starting advertisement")
	if err := p.stack.StartAdvertising(ctx, protocol.DeviceName, []bluetooth.UUID{protocol.ServiceUUID}); err != nil {
		return fatal("start advertising", err)
	}

	p.enter(StateEventLoop)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.events:
			if !ok {
				p.enter(StateStopped)
				p.log.Info("event channel closed")
				return nil
			}
			p.handle(ev)
		}
	}
}

func (p *Peripheral) handle(ev Event) {
	switch ev := ev.(type) {
	case WriteRequest:
		p.handleWrite(ev)
	case ConnectionChanged:
		p.log.WithFields(logrus.Fields{"client": ev.Client, "connected": ev.Connected}).Info("connection changed")
	case nil:
		p.log.Warn("received nil event")
	default:
		p.log.WithField("kind", ev.Kind()).Warn("unhandled event")
	}
}

// handleWrite logs the counter carried by req and always acknowledges it
// with success, whatever the payload looked like.
func (p *Peripheral) handleWrite(req WriteRequest) {
	log := p.log.WithField("len", len(req.Value))
	if req.Client != "" {
		log = log.WithField("client", req.Client)
	}

	if v, err := protocol.DecodeCounter(req.Value); err != nil {
		log.Warn("invalid payload length")
		if len(req.Value) > 0 && util.IsTextData(req.Value) {
			log.Debugf("payload text: %q", req.Value)
		}
		p.notify.publish(PayloadRejected{Len: len(req.Value), At: time.Now()})
	} else {
		log.WithField("counter", v).Info("received")
		p.notify.publish(CounterReceived{Value: v, Client: req.Client, At: time.Now()})
	}

	if req.Responder == nil {
		log.Warn("write request carries no responder")
		return
	}
	if err := req.Responder.Respond(ResponseSuccess); err != nil {
		log.WithError(err).Warn("could not acknowledge write")
	}
}

func (p *Peripheral) enter(s State) {
	p.log.WithField("state", s.String()).Debug("peripheral state")
	p.notify.publish(StateChanged{Role: RolePeripheral, State: s, At: time.Now()})
}
