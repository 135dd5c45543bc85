package presenter

import (
	"errors"
	"sync"
	"time"

	"ticket-scanner/internal/domain/scan"
)

var ErrNoOverlay = errors.New("no overlay shown")

const (
	DismissClose    = "close"
	DismissBackdrop = "backdrop"
)

type Shown struct {
	Seq     uint64    `json:"seq"`
	View    View      `json:"view"`
	ShownAt time.Time `json:"shown_at"`
}

// MaxStacked bounds how many undismissed results the overlay keeps. Past
// it the oldest result is dropped.
const MaxStacked = 16

// Overlay stacks one entry per result until the operator dismisses it, so
// concurrent verifications never hide each other.
type Overlay struct {
	now func() time.Time

	mu    sync.Mutex
	seq   uint64
	stack []Shown
}

func NewOverlay() *Overlay {
	return &Overlay{now: time.Now}
}

func (o *Overlay) Present(r scan.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.stack = append(o.stack, Shown{Seq: o.seq, View: NewView(r), ShownAt: o.now()})
	if len(o.stack) > MaxStacked {
		o.stack = append([]Shown(nil), o.stack[len(o.stack)-MaxStacked:]...)
	}
}

// Current returns the newest undismissed result.
func (o *Overlay) Current() (Shown, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.stack) == 0 {
		return Shown{}, false
	}
	return o.stack[len(o.stack)-1], true
}

// Stack returns every undismissed result, oldest first.
func (o *Overlay) Stack() []Shown {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Shown{}, o.stack...)
}

// Dismiss closes the result with the given seq; zero closes the newest.
func (o *Overlay) Dismiss(seq uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.stack) == 0 {
		return ErrNoOverlay
	}
	idx := len(o.stack) - 1
	if seq != 0 {
		idx = -1
		for i, s := range o.stack {
			if s.Seq == seq {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNoOverlay
		}
	}
	o.stack = append(o.stack[:idx], o.stack[idx+1:]...)
	return nil
}
