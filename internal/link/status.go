package link

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Role names one side of the dual-role link.
type Role string

const (
	RoleCentral    Role = "central"
	RolePeripheral Role = "peripheral"
)

// State is a step of either duty cycle.
type State int

const (
	StateIdle State = iota
	StateAcquireAdapter
	StateAwaitPowerOn
	StateStartScan
	StateDiscoverPeer
	StateConnect
	StateResolveServices
	StateResolveCharacteristic
	StateWriteLoop
	StateRegisterService
	StateStartAdvertising
	StateEventLoop
	StateStopped
)

var stateNames = map[State]string{
	StateIdle:                  "idle",
	StateAcquireAdapter:        "acquire-adapter",
	StateAwaitPowerOn:          "await-power-on",
	StateStartScan:             "start-scan",
	StateDiscoverPeer:          "discover-peer",
	StateConnect:               "connect",
	StateResolveServices:       "resolve-services",
	StateResolveCharacteristic: "resolve-characteristic",
	StateWriteLoop:             "write-loop",
	StateRegisterService:       "register-service",
	StateStartAdvertising:      "start-advertising",
	StateEventLoop:             "event-loop",
	StateStopped:               "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Update is published to a Notifier as the duty cycles make progress.
type Update interface {
	isUpdate()
}

// StateChanged reports a duty cycle entering a new state.
type StateChanged struct {
	Role  Role
	State State
	At    time.Time
}

// CounterSent reports one write-loop iteration. Err is the write error, if any.
type CounterSent struct {
	Value int32
	Err   error
	At    time.Time
}

// CounterReceived reports a well-formed counter written by the remote central.
type CounterReceived struct {
	Value  int32
	Client string
	At     time.Time
}

// PayloadRejected reports a write too short to hold a counter.
type PayloadRejected struct {
	Len int
	At  time.Time
}

func (StateChanged) isUpdate()    {}
func (CounterSent) isUpdate()     {}
func (CounterReceived) isUpdate() {}
func (PayloadRejected) isUpdate() {}

// Notifier receives updates. It is called synchronously from the duty cycle
// goroutine and must not block.
type Notifier func(Update)

func (n Notifier) publish(u Update) {
	if n != nil {
		n(u)
	}
}

// PowerState is the power gate shared by both roles.
type PowerState interface {
	Powered(ctx context.Context) (bool, error)
}

// awaitPowerOn polls p until the adapter reports powered on. Query errors
// count as "not yet"; only ctx ends the wait early.
func awaitPowerOn(ctx context.Context, p PowerState, interval time.Duration, log *logrus.Entry, level logrus.Level) error {
	for {
		on, err := p.Powered(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Debug("power state query failed")
		}
		if on {
			return nil
		}
		log.Log(level, "waiting for the Bluetooth adapter to be powered on")
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}
