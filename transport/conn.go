// Package transport carries protocol messages between the host and the
// render surface. Every implementation serialises messages on the way
// through, so the two sides never share memory, and preserves per-sender
// order.
package transport

import (
	"context"
	"errors"

	"github.com/hazyhaar/pagesync/protocol"
)

// ErrClosed is returned by Send after the connection is closed.
var ErrClosed = errors.New("transport: closed")

// Conn is one end of a bidirectional message channel. Inbox is closed when
// the connection ends. Send is safe for concurrent use.
type Conn interface {
	Send(ctx context.Context, m protocol.Message) error
	Inbox() <-chan protocol.Message
	Close() error
}
