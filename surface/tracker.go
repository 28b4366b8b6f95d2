package surface

import (
	"time"

	"github.com/benbjohnson/clock"
)

// trackerConfig controls dirty-set flushing.
type trackerConfig struct {
	// Debounce is reset by every mark; when it expires the whole set is
	// flushed. Default: 700ms.
	Debounce time.Duration
	// Interval bounds staleness during continuous editing: every tick
	// flushes entries dirty for at least one full interval. Default: 1.2s.
	Interval time.Duration
}

func (tc *trackerConfig) defaults() {
	if tc.Debounce <= 0 {
		tc.Debounce = 700 * time.Millisecond
	}
	if tc.Interval <= 0 {
		tc.Interval = 1200 * time.Millisecond
	}
}

// tracker is the dirty set of section containers. It is owned by the
// surface loop and not safe for concurrent use; the loop selects on
// debounceC and tickC.
type tracker struct {
	cfg   trackerConfig
	clock clock.Clock

	order []string
	since map[string]time.Time

	timer   *clock.Timer
	timerCh <-chan time.Time
	ticker  *clock.Ticker
	tickCh  <-chan time.Time
}

func newTracker(cfg trackerConfig, clk clock.Clock) *tracker {
	cfg.defaults()
	return &tracker{cfg: cfg, clock: clk, since: make(map[string]time.Time)}
}

// mark flags id dirty and restarts the debounce window.
func (t *tracker) mark(id string) {
	if _, ok := t.since[id]; !ok {
		t.since[id] = t.clock.Now()
		t.order = append(t.order, id)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.Timer(t.cfg.Debounce)
	t.timerCh = t.timer.C
	if t.ticker == nil {
		t.ticker = t.clock.Ticker(t.cfg.Interval)
		t.tickCh = t.ticker.C
	}
}

func (t *tracker) debounceC() <-chan time.Time { return t.timerCh }

func (t *tracker) tickC() <-chan time.Time { return t.tickCh }

func (t *tracker) len() int { return len(t.order) }

func (t *tracker) dirty(id string) bool {
	_, ok := t.since[id]
	return ok
}

// takeAll empties the set and returns its entries in mark order.
func (t *tracker) takeAll() []string {
	out := t.order
	t.order = nil
	t.since = make(map[string]time.Time)
	t.idle()
	return out
}

// takeStale removes and returns entries dirty for at least one interval.
func (t *tracker) takeStale() []string {
	now := t.clock.Now()
	var out, kept []string
	for _, id := range t.order {
		if now.Sub(t.since[id]) >= t.cfg.Interval {
			out = append(out, id)
			delete(t.since, id)
		} else {
			kept = append(kept, id)
		}
	}
	t.order = kept
	if len(kept) == 0 {
		t.idle()
	}
	return out
}

// take removes one entry. Reports whether it was dirty.
func (t *tracker) take(id string) bool {
	if _, ok := t.since[id]; !ok {
		return false
	}
	delete(t.since, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	if len(t.order) == 0 {
		t.idle()
	}
	return true
}

// idle stops both timers once nothing is dirty.
func (t *tracker) idle() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer, t.timerCh = nil, nil
	}
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker, t.tickCh = nil, nil
	}
}

func (t *tracker) stop() { t.idle() }
