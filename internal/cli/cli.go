package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/vitaminmoo/blelink/internal/ble"
	"github.com/vitaminmoo/blelink/internal/config"
	"github.com/vitaminmoo/blelink/internal/link"
	"github.com/vitaminmoo/blelink/internal/tui"
)

// defaultTUILog is where logs go in --tui mode when --log-file is not given.
const defaultTUILog = "blelink.log"

// CLI is the root command: run both link roles against one peer.
type CLI struct {
	Address string `arg:"" help:"Hardware address of the peer to write to (AA:BB:CC:DD:EE:FF)"`

	Verbose bool   `short:"v" help:"Enable verbose debug output"`
	Tui     bool   `help:"Show a live dashboard instead of log output"`
	LogFile string `type:"path" help:"Write logs to this file (default with --tui: ${default_tui_log})"`
	Adapter string `help:"BlueZ adapter for the client role, e.g. hci1 (default: first adapter)"`

	ConnectTimeout  time.Duration `help:"Give up a connection attempt after this long (0: no limit)"`
	DiscoverTimeout time.Duration `help:"Give up service discovery after this long (0: no limit)"`
	WriteTimeout    time.Duration `help:"Give up an unacknowledged write after this long (0: no limit)"`
	RetryJitter     time.Duration `help:"Add up to this much random delay to every retry"`
	AckTimeout      time.Duration `default:"5s" help:"How long an incoming write waits to be acknowledged"`
}

// Vars are kong interpolation variables used by CLI's help text.
var Vars = map[string]string{
	"default_tui_log": defaultTUILog,
}

// Validate rejects a malformed address before any Bluetooth work starts.
func (c *CLI) Validate() error {
	if _, err := ble.ParseAddress(c.Address); err != nil {
		return errors.Errorf("invalid address %q", c.Address)
	}
	return nil
}

// Timing applies the flags on top of the default timings.
func (c *CLI) Timing() link.Timing {
	t := link.DefaultTiming()
	t.ConnectTimeout = c.ConnectTimeout
	t.DiscoverTimeout = c.DiscoverTimeout
	t.WriteTimeout = c.WriteTimeout
	t.RetryJitter = c.RetryJitter
	return t
}

func (c *CLI) logOutput() (io.Writer, func(), error) {
	path := c.LogFile
	if path == "" && c.Tui {
		path = defaultTUILog
	}
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open log file")
	}
	return f, func() { f.Close() }, nil
}

// Run starts both roles and blocks until shutdown. It returns nil on a
// graceful stop and the fatal error otherwise.
func (c *CLI) Run() error {
	target, err := ble.ParseAddress(c.Address)
	if err != nil {
		return errors.Wrapf(err, "parse address %q", c.Address)
	}

	out, closeLog, err := c.logOutput()
	if err != nil {
		return err
	}
	defer closeLog()
	config.Setup(c.Verbose, out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := ble.NewStack(c.Adapter, config.Role("stack"))
	if err != nil {
		return err
	}
	defer stack.Close()

	radio, err := ble.NewPeripheral(stack, c.AckTimeout, config.Role(string(link.RolePeripheral)))
	if err != nil {
		return err
	}
	defer radio.Close()

	var dash *tui.Program
	var notify link.Notifier
	if c.Tui {
		dash = tui.New(target.String(), stop)
		notify = dash.Notify
	}

	timing := c.Timing()
	central := link.NewCentral(stack, link.CentralConfig{
		Target: target,
		Timing: timing,
		Log:    config.Role(string(link.RoleCentral)),
		Notify: notify,
	})
	peripheral := link.NewPeripheral(radio, radio.Events(), link.PeripheralConfig{
		Timing: timing,
		Log:    config.Role(string(link.RolePeripheral)),
		Notify: notify,
	})

	// Closing the stack's event channel is what ends the server role.
	go func() {
		<-ctx.Done()
		radio.Close()
	}()

	config.Log.WithField("target", target.String()).Info("starting")
	if dash == nil {
		return link.Supervise(ctx, central, peripheral, config.Log.WithField("role", "supervisor"))
	}

	done := make(chan error, 1)
	go func() {
		err := link.Supervise(ctx, central, peripheral, config.Log.WithField("role", "supervisor"))
		dash.Done(err)
		done <- err
	}()
	if err := dash.Run(); err != nil {
		stop()
		<-done
		return errors.Wrap(err, "dashboard")
	}
	return <-done
}
