package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrUnsupported     = errors.New("camera capture not supported")
	ErrNoDevices       = errors.New("no camera devices found")
	ErrDeviceNotFound  = errors.New("camera device not found")
	ErrFlipUnavailable = errors.New("flip requires at least two cameras")
	ErrStreamEnded     = errors.New("camera stream ended")
)

const (
	KindVideo = "video"
	KindAudio = "audio"

	FacingEnvironment = "environment"
	FacingUser        = "user"
)

type Device struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Kind   string `json:"kind"`
	Facing string `json:"facing,omitempty"`
}

// Constraints selects a device either exactly by id or by facing mode.
type Constraints struct {
	DeviceID   string
	FacingMode string
}

// Stream is a live capture session. Frame reports false until the stream
// has buffered a complete frame, and again once the feed has ended. Err is
// non-nil after the feed ended on its own; a Close by the caller is not an
// error.
type Stream interface {
	DeviceID() string
	Frame() (image.Image, bool)
	Err() error
	Close() error
}

type Driver interface {
	Enumerate(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Source owns device enumeration, the current selection and the single
// live stream.
type Source struct {
	driver        Driver
	defaultFacing string
	log           zerolog.Logger

	mu      sync.Mutex
	devices []Device
	current int
	stream  Stream
}

// NewSource returns a source backed by driver. A nil driver means the host
// cannot capture at all.
func NewSource(driver Driver, defaultFacing string, log zerolog.Logger) *Source {
	if defaultFacing == "" {
		defaultFacing = FacingEnvironment
	}
	return &Source{
		driver:        driver,
		defaultFacing: defaultFacing,
		log:           log.With().Str("component", "camera").Logger(),
		current:       -1,
	}
}

func (s *Source) Supported() bool {
	return s.driver != nil
}

// ListDevices enumerates video inputs and selects the first one.
func (s *Source) ListDevices(ctx context.Context) ([]Device, error) {
	if s.driver == nil {
		return nil, ErrUnsupported
	}

	all, err := s.driver.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	videos := make([]Device, 0, len(all))
	for _, d := range all {
		if d.Kind != KindVideo {
			continue
		}
		if d.Label == "" {
			d.Label = fmt.Sprintf("Camera %d", len(videos)+1)
		}
		videos = append(videos, d)
	}

	s.mu.Lock()
	s.devices = videos
	s.current = -1
	if len(videos) > 0 {
		s.current = 0
	}
	s.mu.Unlock()

	if len(videos) == 0 {
		return nil, ErrNoDevices
	}

	s.log.Info().Int("devices", len(videos)).Msg("enumerated cameras")
	return append([]Device(nil), videos...), nil
}

func (s *Source) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Device(nil), s.devices...)
}

func (s *Source) Current() (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 || s.current >= len(s.devices) {
		return Device{}, false
	}
	return s.devices[s.current], true
}

func (s *Source) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	s.current = idx
	return nil
}

func (s *Source) CanFlip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices) >= 2
}

// Next advances the selection cyclically and returns the new device.
func (s *Source) Next() (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.devices) < 2 {
		return Device{}, ErrFlipUnavailable
	}
	s.current = (s.current + 1) % len(s.devices)
	return s.devices[s.current], nil
}

// Start opens a stream for deviceID, or for the default facing mode when
// deviceID is empty. Any live stream is released first, so at most one
// stream exists at a time. On failure no stream is held.
func (s *Source) Start(ctx context.Context, deviceID string) (Stream, error) {
	if s.driver == nil {
		return nil, ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()

	c := Constraints{DeviceID: deviceID}
	if deviceID == "" {
		c.FacingMode = s.defaultFacing
	}

	stream, err := s.driver.Open(ctx, c)
	if err != nil {
		s.log.Warn().Err(err).Str("device_id", deviceID).Msg("failed to open camera")
		return nil, err
	}

	s.stream = stream
	if idx := s.indexOf(stream.DeviceID()); idx >= 0 {
		s.current = idx
	}

	s.log.Info().Str("device_id", stream.DeviceID()).Msg("camera stream started")
	return stream, nil
}

// Stop releases the live stream. It reports whether a stream was held.
func (s *Source) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *Source) Stream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *Source) releaseLocked() bool {
	if s.stream == nil {
		return false
	}
	id := s.stream.DeviceID()
	if err := s.stream.Close(); err != nil {
		s.log.Warn().Err(err).Str("device_id", id).Msg("error closing camera stream")
	}
	s.stream = nil
	s.log.Info().Str("device_id", id).Msg("camera stream released")
	return true
}

func (s *Source) indexOf(id string) int {
	for i, d := range s.devices {
		if d.ID == id {
			return i
		}
	}
	return -1
}
