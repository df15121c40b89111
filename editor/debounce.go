package editor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// debouncer coalesces triggers received within delay into one call of fn.
type debouncer struct {
	delay time.Duration
	fn    func(n uint64)

	mu    sync.Mutex
	timer *time.Timer
	done  bool
	fired atomic.Uint64
}

func newDebouncer(delay time.Duration, fn func(n uint64)) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	if d.done {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn(d.fired.Add(1))
}

func (d *debouncer) count() uint64 { return d.fired.Load() }

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.done = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
