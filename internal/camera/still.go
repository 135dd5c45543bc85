package camera

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// stillStream replays one image file as every frame. Useful for kiosk
// demos and for exercising the scan loop without hardware.
type stillStream struct {
	id string

	mu     sync.RWMutex
	img    image.Image
	closed bool
}

func openStill(id, path string) (*stillStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("camera %s: %w", id, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("camera %s: decode %s: %w", id, path, err)
	}
	return &stillStream{id: id, img: img}, nil
}

func (s *stillStream) DeviceID() string {
	return s.id
}

func (s *stillStream) Frame() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}
	return s.img, true
}

// Err is always nil: a still image never runs dry.
func (s *stillStream) Err() error {
	return nil
}

func (s *stillStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
