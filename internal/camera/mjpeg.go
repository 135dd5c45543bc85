package camera

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

const (
	readChunkSize = 64 * 1024
	maxFrameSize  = 10 * 1024 * 1024
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// mjpegStream pulls a motion-JPEG feed over HTTP and keeps the most recent
// decoded frame. Both multipart/x-mixed-replace and bare concatenated JPEG
// bodies work, since frames are cut on SOI/EOI markers.
type mjpegStream struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger

	mu    sync.RWMutex
	frame image.Image
	err   error
}

func openMJPEG(ctx context.Context, client *http.Client, id, rawURL string, log zerolog.Logger) (*mjpegStream, error) {
	// The stream outlives the Open call, so it gets its own context.
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("camera %s: %w", id, err)
	}

	stop := context.AfterFunc(ctx, cancel)
	resp, err := client.Do(req)
	if !stop() {
		if err == nil {
			resp.Body.Close()
		}
		cancel()
		return nil, fmt.Errorf("camera %s: %w", id, ctx.Err())
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("camera %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("camera %s: unexpected status %d", id, resp.StatusCode)
	}

	s := &mjpegStream{
		id:     id,
		ctx:    streamCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log.With().Str("device_id", id).Logger(),
	}

	go func() {
		defer close(s.done)
		defer resp.Body.Close()
		s.pump(bufio.NewScanner(resp.Body))
	}()

	return s, nil
}

func (s *mjpegStream) pump(sc *bufio.Scanner) {
	sc.Buffer(make([]byte, readChunkSize), maxFrameSize)
	sc.Split(splitJPEG)

	for sc.Scan() {
		img, err := jpeg.Decode(bytes.NewReader(sc.Bytes()))
		if err != nil {
			s.log.Debug().Err(err).Msg("skipping undecodable frame")
			continue
		}
		s.mu.Lock()
		s.frame = img
		s.mu.Unlock()
	}

	if s.ctx.Err() != nil {
		return
	}

	err := sc.Err()
	if err == nil {
		err = ErrStreamEnded
	} else {
		err = fmt.Errorf("%w: %w", ErrStreamEnded, err)
	}
	s.log.Warn().Err(err).Msg("mjpeg stream ended")

	s.mu.Lock()
	s.frame = nil
	s.err = err
	s.mu.Unlock()
}

func (s *mjpegStream) DeviceID() string {
	return s.id
}

func (s *mjpegStream) Frame() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.frame != nil
}

func (s *mjpegStream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close stops the feed and waits for the reader goroutine to exit.
func (s *mjpegStream) Close() error {
	s.cancel()
	<-s.done
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
	return nil
}

// splitJPEG is a bufio.SplitFunc yielding whole JPEG images. Bytes before
// a start-of-image marker are discarded.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep the last byte in case it is the first half of a marker.
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}
