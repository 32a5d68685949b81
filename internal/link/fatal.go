package link

import (
	"context"

	"github.com/pkg/errors"
)

// FatalError is an environment failure that must end the process: no
// adapter, scan start, service discovery, service registration or
// advertising start.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(op string, err error) error {
	return errors.WithStack(&FatalError{Op: op, Err: err})
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
