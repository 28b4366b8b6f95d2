package transport

import "github.com/hazyhaar/pagesync/protocol"

// fifo moves messages from in to out in order. The backlog is held in
// memory, so the goroutine feeding in never waits for the one reading
// out. out is closed once in is closed and the backlog delivered, or as
// soon as done fires.
func fifo(in <-chan protocol.Message, out chan<- protocol.Message, done <-chan struct{}) {
	defer close(out)
	var queue []protocol.Message
	for in != nil || len(queue) > 0 {
		var (
			next protocol.Message
			dst  chan<- protocol.Message
		)
		if len(queue) > 0 {
			next, dst = queue[0], out
		}
		select {
		case <-done:
			return
		case m, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			queue = append(queue, m)
		case dst <- next:
			queue[0] = protocol.Message{}
			queue = queue[1:]
		}
	}
}
