package link

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Runner is a duty cycle.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervise runs both roles concurrently and decides the process outcome:
//   - the peripheral finishing cleanly (event channel closed, or ctx ended)
//     returns nil;
//   - any non-context error from either role cancels the other and is
//     returned.
//
// The central ending because ctx ended is not an outcome by itself; the
// peripheral decides.
func Supervise(ctx context.Context, central, peripheral Runner, log *logrus.Entry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	centralDone := make(chan error, 1)
	peripheralDone := make(chan error, 1)
	go func() { centralDone <- central.Run(ctx) }()
	go func() { peripheralDone <- peripheral.Run(ctx) }()

	for {
		select {
		case err := <-centralDone:
			centralDone = nil
			if isFailure(err) {
				log.WithError(err).WithField("role", RoleCentral).Error("central stopped")
				return err
			}
		case err := <-peripheralDone:
			if isFailure(err) {
				log.WithError(err).WithField("role", RolePeripheral).Error("peripheral stopped")
				return err
			}
			log.Info("shutting down")
			return nil
		}
	}
}

// isFailure reports whether a role's return value ends the process with an
// error. A FatalError counts even when its cause is a context error, as when
// a per-call timeout expired.
func isFailure(err error) bool {
	return err != nil && (IsFatal(err) || !isContextErr(err))
}
