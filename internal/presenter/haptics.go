package presenter

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ticket-scanner/internal/domain/scan"
)

var ErrHapticsUnsupported = errors.New("haptics not supported")

var (
	DefaultSuccessPattern = []time.Duration{100 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond}
	DefaultFailurePattern = []time.Duration{200 * time.Millisecond}
)

// Vibrator drives a haptic actuator. Patterns alternate on and off
// durations, starting with on.
type Vibrator interface {
	Vibrate(pattern []time.Duration) error
}

type NoVibrator struct{}

func (NoVibrator) Vibrate([]time.Duration) error {
	return ErrHapticsUnsupported
}

// LogVibrator records pulses in the log, for stations without an actuator
// that still want the feedback trail.
type LogVibrator struct {
	Log zerolog.Logger
}

func (v LogVibrator) Vibrate(pattern []time.Duration) error {
	arr := zerolog.Arr()
	for _, d := range pattern {
		arr.Int64(d.Milliseconds())
	}
	v.Log.Debug().Array("pattern_ms", arr).Msg("haptic pulse")
	return nil
}

// Haptic pulses on every result: the success pattern for a valid ticket,
// the failure pattern otherwise.
type Haptic struct {
	vibrator Vibrator
	success  []time.Duration
	failure  []time.Duration
	log      zerolog.Logger
}

func NewHaptic(v Vibrator, success, failure []time.Duration, log zerolog.Logger) *Haptic {
	if v == nil {
		v = NoVibrator{}
	}
	if len(success) == 0 {
		success = DefaultSuccessPattern
	}
	if len(failure) == 0 {
		failure = DefaultFailurePattern
	}
	return &Haptic{vibrator: v, success: success, failure: failure, log: log}
}

func (h *Haptic) Present(r scan.Result) {
	pattern := h.failure
	if r.Outcome() == scan.OutcomeValid {
		pattern = h.success
	}
	err := h.vibrator.Vibrate(pattern)
	if err != nil && !errors.Is(err, ErrHapticsUnsupported) {
		h.log.Warn().Err(err).Msg("haptic feedback failed")
	}
}
