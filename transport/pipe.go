package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/pagesync/protocol"
)

// pipeEnd is one side of an in-process pair. Peers exchange encoded bytes;
// a pump goroutine decodes them and a fifo queues them for the receiving
// inbox.
type pipeEnd struct {
	raw     chan []byte
	decoded chan protocol.Message
	inbox   chan protocol.Message
	peer   *pipeEnd
	done   chan struct{}
	once   *sync.Once
	logger *slog.Logger
}

// Pipe returns two connected in-process ends. buffer sizes the raw
// channel of each direction; the backlog behind it is unbounded, so Send
// never waits for the receiving loop. Closing either end closes both.
func Pipe(buffer int, logger *slog.Logger) (Conn, Conn) {
	if buffer < 0 {
		buffer = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	once := &sync.Once{}
	a := newPipeEnd(buffer, done, once, logger)
	b := newPipeEnd(buffer, done, once, logger)
	a.peer, b.peer = b, a
	return a, b
}

func newPipeEnd(buffer int, done chan struct{}, once *sync.Once, logger *slog.Logger) *pipeEnd {
	e := &pipeEnd{
		raw:     make(chan []byte, buffer),
		decoded: make(chan protocol.Message),
		inbox:   make(chan protocol.Message),
		done:    done,
		once:    once,
		logger:  logger,
	}
	go e.pump()
	go fifo(e.decoded, e.inbox, done)
	return e
}

func (e *pipeEnd) pump() {
	defer close(e.decoded)
	for {
		select {
		case <-e.done:
			return
		case data := <-e.raw:
			m, err := protocol.Decode(data)
			if err != nil {
				e.logger.Warn("transport: pipe: drop message", "error", err)
				continue
			}
			select {
			case e.decoded <- m:
			case <-e.done:
				return
			}
		}
	}
}

func (e *pipeEnd) Send(ctx context.Context, m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case e.peer.raw <- data:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *pipeEnd) Inbox() <-chan protocol.Message { return e.inbox }

func (e *pipeEnd) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}
