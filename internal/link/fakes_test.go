package link

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/blelink/internal/protocol"
)

var (
	targetMAC = mustMAC("AA:BB:CC:DD:EE:FF")
	otherMAC  = mustMAC("11:22:33:44:55:66")
)

func mustMAC(s string) bluetooth.MAC {
	mac, err := bluetooth.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

func fastTiming() Timing {
	return Timing{
		PowerPoll:     time.Millisecond,
		DiscoverPoll:  time.Millisecond,
		RetryDelay:    time.Millisecond,
		MaxWriteDelay: time.Millisecond,
	}
}

func nullLog(t *testing.T) (*logrus.Entry, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

// entriesWith returns the logged entries whose message is msg.
func entriesWith(hook *test.Hook, msg string) []logrus.Entry {
	var out []logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			out = append(out, *e)
		}
	}
	return out
}

type fakeSource struct {
	adapters []CentralAdapter
	err      error
}

func (s *fakeSource) Adapters(context.Context) ([]CentralAdapter, error) {
	return s.adapters, s.err
}

// fakeAdapter hands out peers from peersFn, called with the 0-based query
// number, so each query can return fresh records.
type fakeAdapter struct {
	mu          sync.Mutex
	power       []bool // consumed per query; last value sticks
	powerCalls  int
	scanErr     error
	scans       []ScanFilter
	peersFn     func(n int) []Peer
	peersCalls  int
	peersErrors map[int]error
}

func (a *fakeAdapter) Powered(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.powerCalls++
	if len(a.power) == 0 {
		return true, nil
	}
	on := a.power[0]
	if len(a.power) > 1 {
		a.power = a.power[1:]
	}
	return on, nil
}

func (a *fakeAdapter) StartScan(_ context.Context, f ScanFilter) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scans = append(a.scans, f)
	return a.scanErr
}

func (a *fakeAdapter) Peers(context.Context) ([]Peer, error) {
	a.mu.Lock()
	n := a.peersCalls
	a.peersCalls++
	err := a.peersErrors[n]
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return a.peersFn(n), nil
}

func (a *fakeAdapter) queries() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peersCalls
}

type fakePeer struct {
	addr        bluetooth.MAC
	connectErr  error
	discoverErr error
	chars       []RemoteCharacteristic

	mu        sync.Mutex
	connects  int
	discovers int
}

func (p *fakePeer) Address() bluetooth.MAC { return p.addr }

func (p *fakePeer) Connect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	return p.connectErr
}

func (p *fakePeer) DiscoverServices(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discovers++
	return p.discoverErr
}

func (p *fakePeer) Characteristics() []RemoteCharacteristic { return p.chars }

func (p *fakePeer) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects, p.discovers
}

// fakeChar records every attempted write. fail decides, per attempt index,
// whether the write errors.
type fakeChar struct {
	uuid    bluetooth.UUID
	fail    func(n int) error
	onWrite func(p []byte) error

	mu     sync.Mutex
	writes [][]byte
	wrote  chan struct{}
}

func newCounterChar() *fakeChar {
	return &fakeChar{uuid: protocol.CharacteristicUUID, wrote: make(chan struct{}, 1024)}
}

func (c *fakeChar) UUID() bluetooth.UUID { return c.uuid }

func (c *fakeChar) Write(_ context.Context, p []byte) error {
	c.mu.Lock()
	n := len(c.writes)
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.mu.Unlock()
	defer func() {
		select {
		case c.wrote <- struct{}{}:
		default:
		}
	}()
	if c.onWrite != nil {
		if err := c.onWrite(p); err != nil {
			return err
		}
	}
	if c.fail != nil {
		return c.fail(n)
	}
	return nil
}

func (c *fakeChar) attempts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// waitWrites blocks until at least n writes were attempted.
func (c *fakeChar) waitWrites(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for len(c.attempts()) < n {
		select {
		case <-c.wrote:
		case <-deadline:
			t.Fatalf("timed out waiting for %d writes, got %d", n, len(c.attempts()))
		}
	}
}

type fakePeripheralStack struct {
	mu        sync.Mutex
	power     []bool
	addErr    error
	advErr    error
	services  []LocalService
	advName   string
	advUUIDs  []bluetooth.UUID
	powerSeen int
}

func (s *fakePeripheralStack) Powered(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powerSeen++
	if len(s.power) == 0 {
		return true, nil
	}
	on := s.power[0]
	if len(s.power) > 1 {
		s.power = s.power[1:]
	}
	return on, nil
}

func (s *fakePeripheralStack) AddService(_ context.Context, svc LocalService) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.services = append(s.services, svc)
	return nil
}

func (s *fakePeripheralStack) StartAdvertising(_ context.Context, name string, uuids []bluetooth.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advName = name
	s.advUUIDs = uuids
	return s.advErr
}

// rssiEvent stands in for an event kind this package does not know.
type rssiEvent struct{ dBm int }

func (rssiEvent) Kind() string { return "rssi" }
