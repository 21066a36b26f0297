// Package transport owns device sessions: connecting, pushing configuration
// commands, and reading running configuration. The rest of the system only
// sees the Session and Dialer interfaces, so tests and shim deployments can
// substitute the wire protocol.
package transport

import (
	"context"
	"errors"

	"github.com/netops-tools/aclpush/internal/domain"
)

// Session is an open connection to one device.
type Session interface {
	// Send pushes configuration commands in order.
	Send(ctx context.Context, commands []string) error
	// RunningConfig reads the device's current configuration.
	RunningConfig(ctx context.Context) (string, error)
	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Dialer opens sessions to devices.
type Dialer interface {
	Dial(ctx context.Context, device domain.Device) (Session, error)
}

// timedOut reports whether err was caused by the context's deadline.
func timedOut(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
