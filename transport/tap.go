package transport

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/pagesync/protocol"
)

// Direction of a tapped message relative to the wrapped end.
const (
	DirIn  = "in"
	DirOut = "out"
)

// Record is one JSON line written by a tap.
type Record struct {
	Dir  string           `json:"dir"`
	At   time.Time        `json:"at"`
	Data protocol.Message `json:"data"`
}

type tap struct {
	Conn
	mu    sync.Mutex
	enc   *json.Encoder
	inbox chan protocol.Message
	done  chan struct{}
	once  sync.Once
}

// Tap wraps c and writes every message crossing it to w as JSON lines. If
// w is nil, os.Stdout is used.
func Tap(c Conn, w io.Writer) Conn {
	if w == nil {
		w = os.Stdout
	}
	t := &tap{Conn: c, enc: json.NewEncoder(w), inbox: make(chan protocol.Message), done: make(chan struct{})}
	go t.forward()
	return t
}

func (t *tap) record(dir string, m protocol.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.enc.Encode(Record{Dir: dir, At: time.Now().UTC(), Data: m})
}

func (t *tap) forward() {
	defer close(t.inbox)
	for m := range t.Conn.Inbox() {
		t.record(DirIn, m)
		select {
		case t.inbox <- m:
		case <-t.done:
			return
		}
	}
}

func (t *tap) Send(ctx context.Context, m protocol.Message) error {
	if err := t.Conn.Send(ctx, m); err != nil {
		return err
	}
	t.record(DirOut, m)
	return nil
}

func (t *tap) Inbox() <-chan protocol.Message { return t.inbox }

func (t *tap) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.Conn.Close()
}
