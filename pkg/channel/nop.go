package channel

import (
	"context"
)

// Nop is a channel that never connects. It lets the controller run on the
// snapshot and the shared slot alone.
type Nop struct {
	*base
}

var _ Channel = (*Nop)(nil)

// NewNop creates a channel that idles until closed.
func NewNop() *Nop {
	n := &Nop{}
	n.base = newBase(string(TransportNone), newConfig(nil), func(ctx context.Context, _ func()) error {
		<-ctx.Done()
		return nil
	})
	return n
}

// Status is StatusIdle until the channel is closed.
func (n *Nop) Status() Status {
	if s := n.base.Status(); s == StatusClosed {
		return s
	}
	return StatusIdle
}
