package scanner

import (
	"sync"
	"time"
)

const DefaultDebounceWindow = 3 * time.Second

// Debouncer suppresses repeat verifications of the same payload. A payload
// equal to the last accepted one passes only once the window has elapsed.
type Debouncer struct {
	window time.Duration

	mu             sync.Mutex
	lastPayload    string
	lastAcceptedAt time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Accept reports whether payload should be verified and, if so, records it
// as the last accepted payload before returning.
func (d *Debouncer) Accept(payload string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if payload == d.lastPayload && now.Sub(d.lastAcceptedAt) <= d.window {
		return false
	}
	d.lastPayload = payload
	d.lastAcceptedAt = now
	return true
}

// Reset forgets the last payload. The acceptance time is kept.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.lastPayload = ""
	d.mu.Unlock()
}

func (d *Debouncer) Last() (string, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastPayload, d.lastAcceptedAt
}
