package link

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/blelink/internal/protocol"
	"github.com/vitaminmoo/blelink/internal/util"
)

// AdapterSource enumerates local adapters. The first one is used.
type AdapterSource interface {
	Adapters(ctx context.Context) ([]CentralAdapter, error)
}

// ScanFilter restricts scanning to peers advertising one of Services.
type ScanFilter struct {
	Services []bluetooth.UUID
}

// CentralAdapter is the client-side view of a local adapter.
type CentralAdapter interface {
	PowerState
	StartScan(ctx context.Context, filter ScanFilter) error
	// Peers lists the peers the stack currently knows about. Entries may be
	// stale; callers re-query after every failed connection.
	Peers(ctx context.Context) ([]Peer, error)
}

// Peer is a remote device. It is write-capable only after Connect,
// DiscoverServices and a successful characteristic lookup.
type Peer interface {
	Address() bluetooth.MAC
	Connect(ctx context.Context) error
	DiscoverServices(ctx context.Context) error
	Characteristics() []RemoteCharacteristic
}

// RemoteCharacteristic is a characteristic resolved on a connected peer.
type RemoteCharacteristic interface {
	UUID() bluetooth.UUID
	// Write sends p and waits for the peer's acknowledgement.
	Write(ctx context.Context, p []byte) error
}

var ErrNoAdapter = errors.New("no Bluetooth adapter found")

// CentralConfig configures a Central. Zero fields get defaults.
type CentralConfig struct {
	Target  bluetooth.MAC
	Timing  Timing
	Log     *logrus.Entry
	Notify  Notifier
	Rand    *rand.Rand
	Counter *protocol.Counter
}

// Central drives the client role: find the target peer, connect, resolve
// the counter characteristic and write an increasing counter to it forever.
type Central struct {
	source  AdapterSource
	target  bluetooth.MAC
	timing  Timing
	log     *logrus.Entry
	notify  Notifier
	rng     *rand.Rand
	counter *protocol.Counter
}

func NewCentral(source AdapterSource, cfg CentralConfig) *Central {
	c := &Central{
		source:  source,
		target:  cfg.Target,
		timing:  cfg.Timing,
		log:     cfg.Log,
		notify:  cfg.Notify,
		rng:     cfg.Rand,
		counter: cfg.Counter,
	}
	if c.timing == (Timing{}) {
		c.timing = DefaultTiming()
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if c.rng == nil {
		c.rng = newRand()
	}
	if c.counter == nil {
		c.counter = &protocol.Counter{}
	}
	return c
}

// Run executes the duty cycle. It returns only on a fatal error or when ctx
// ends.
func (c *Central) Run(ctx context.Context) error {
	c.enter(StateAcquireAdapter)
	adapter, err := c.acquireAdapter(ctx)
	if err != nil {
		return err
	}

	c.enter(StateAwaitPowerOn)
	if err := awaitPowerOn(ctx, adapter, c.timing.PowerPoll, c.log, logrus.DebugLevel); err != nil {
		return err
	}

	c.enter(StateStartScan)
	filter := ScanFilter{Services: []bluetooth.UUID{protocol.ServiceUUID}}
	if err := adapter.StartScan(ctx, filter); err != nil {
		return fatal("start scan", err)
	}
	c.log.WithField("target", c.target.String()).Info("scanning for peer")

	// A peer that was connected once can still report connected with no
	// characteristics after it went away, so every failure below restarts
	// from a fresh peer lookup.
	for {
		char, err := c.establish(ctx, adapter)
		if err != nil {
			return err
		}
		if char == nil {
			continue
		}
		return c.writeLoop(ctx, char)
	}
}

func (c *Central) acquireAdapter(ctx context.Context) (CentralAdapter, error) {
	adapters, err := c.source.Adapters(ctx)
	if err != nil {
		return nil, fatal("acquire adapter", err)
	}
	if len(adapters) == 0 {
		return nil, fatal("acquire adapter", ErrNoAdapter)
	}
	return adapters[0], nil
}

// establish walks DiscoverPeer through ResolveCharacteristic once. A nil
// characteristic with a nil error means "retry from peer discovery".
func (c *Central) establish(ctx context.Context, adapter CentralAdapter) (RemoteCharacteristic, error) {
	c.enter(StateDiscoverPeer)
	peer, err := c.discoverPeer(ctx, adapter)
	if err != nil {
		return nil, err
	}
	log := c.log.WithField("peer", peer.Address().String())

	c.enter(StateConnect)
	if err := call(ctx, c.timing.ConnectTimeout, peer.Connect); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Error("failed to connect to peer, retrying")
		return nil, c.backoff(ctx)
	}
	log.Info("connected")

	c.enter(StateResolveServices)
	if err := call(ctx, c.timing.DiscoverTimeout, peer.DiscoverServices); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fatal("discover services", err)
	}

	c.enter(StateResolveCharacteristic)
	for _, char := range peer.Characteristics() {
		if char.UUID() == protocol.CharacteristicUUID {
			return char, nil
		}
	}
	log.WithField("characteristic", protocol.CharacteristicUUID.String()).Warn("characteristic not found, retrying")
	return nil, c.backoff(ctx)
}

// discoverPeer re-lists peers until the target shows up. It never gives up.
func (c *Central) discoverPeer(ctx context.Context, adapter CentralAdapter) (Peer, error) {
	for attempt := 1; ; attempt++ {
		peers, err := adapter.Peers(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.WithError(err).Warn("failed to list peers")
		}
		for _, p := range peers {
			if p.Address() == c.target {
				return p, nil
			}
		}
		c.log.WithFields(logrus.Fields{"attempt": attempt, "visible": len(peers)}).Debug("peer not visible yet")
		if err := sleep(ctx, c.timing.DiscoverPoll+uniform(c.rng, c.timing.RetryJitter)); err != nil {
			return nil, err
		}
	}
}

// writeLoop pushes the counter forever. Write errors are logged and the
// counter still advances; only ctx ends the loop.
func (c *Central) writeLoop(ctx context.Context, char RemoteCharacteristic) error {
	c.enter(StateWriteLoop)
	for {
		n := c.counter.Next()
		payload := protocol.EncodeCounter(n)
		err := call(ctx, c.timing.WriteTimeout, func(ctx context.Context) error {
			return char.Write(ctx, payload)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.WithError(err).WithField("counter", n).Warn("write failed")
		} else {
			c.log.WithField("counter", n).Info("sent")
		}
		if c.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			c.log.Debug("payload\n" + util.HexDump(payload))
		}
		c.notify.publish(CounterSent{Value: n, Err: err, At: time.Now()})

		if err := sleep(ctx, uniform(c.rng, c.timing.MaxWriteDelay)); err != nil {
			return err
		}
	}
}

func (c *Central) backoff(ctx context.Context) error {
	return sleep(ctx, c.timing.RetryDelay+uniform(c.rng, c.timing.RetryJitter))
}

func (c *Central) enter(s State) {
	c.log.WithField("state", s.String()).Debug("central state")
	c.notify.publish(StateChanged{Role: RoleCentral, State: s, At: time.Now()})
}
