package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ticket-scanner/internal/camera"
	"ticket-scanner/internal/decoder"
	"ticket-scanner/internal/domain/scan"
	"ticket-scanner/internal/utils"
)

const DefaultTickInterval = 16 * time.Millisecond

// Status lines shown to the operator.
const (
	StatusIdle        = "Camera idle"
	StatusUnsupported = "Camera capture not supported on this host"
	StatusNoDevices   = "No camera devices found"
	StatusListFailed  = "Unable to list devices"
	StatusStarted     = "Camera started - Ready to scan QR codes"
	StatusStartFailed = "Failed to start camera. Check permissions."
	StatusStopped     = "Camera stopped"
	StatusStreamEnded = "Camera stream ended. Start the camera again."
	StatusSelected    = "Selected camera changed"
	StatusVerifying   = "Verifying ticket..."
	StatusInvalid     = "Invalid: Ticket verification failed"
)

type Verifier interface {
	Verify(ctx context.Context, payload string) (*scan.VerifyResponse, error)
}

type Presenter interface {
	Present(result scan.Result)
}

type Journal interface {
	Record(ctx context.Context, rec scan.Record) error
}

// Scheduler arms next to run once, like a display refresh callback.
type Scheduler func(next func())

type Options struct {
	ID             string
	Source         *camera.Source
	Decoder        decoder.Decoder
	Verifier       Verifier
	Presenter      Presenter
	Journal        Journal
	DebounceWindow time.Duration
	TickInterval   time.Duration
	Schedule       Scheduler
	Now            func() time.Time
	Log            zerolog.Logger
}

type Controls struct {
	StartEnabled bool `json:"start_enabled"`
	StopEnabled  bool `json:"stop_enabled"`
	FlipEnabled  bool `json:"flip_enabled"`
}

type Snapshot struct {
	ID            string          `json:"id"`
	State         State           `json:"state"`
	Message       string          `json:"message"`
	Controls      Controls        `json:"controls"`
	Devices       []camera.Device `json:"devices"`
	CurrentDevice string          `json:"current_device,omitempty"`
}

// Controller runs the scan loop for one camera source. Each tick samples a
// frame, decodes it, debounces the payload and dispatches verification
// without waiting for it.
type Controller struct {
	id        string
	source    *camera.Source
	decoder   decoder.Decoder
	verifier  Verifier
	presenter Presenter
	journal   Journal
	debouncer *Debouncer
	schedule  Scheduler
	now       func() time.Time
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// lifecycle serializes operator actions (start, stop, flip).
	lifecycle sync.Mutex

	mu          sync.Mutex
	state       State
	run         uint64
	stream      camera.Stream
	status      string
	unsupported bool

	// tickMu keeps a tick of a superseded run from overlapping the first
	// tick of its replacement.
	tickMu  sync.Mutex
	sampler Sampler

	inflight sync.WaitGroup
}

func New(opts Options) (*Controller, error) {
	if opts.Source == nil {
		return nil, errors.New("scanner: camera source is required")
	}
	if opts.Decoder == nil {
		return nil, errors.New("scanner: decoder is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("scanner: verifier is required")
	}
	if opts.Presenter == nil {
		return nil, errors.New("scanner: presenter is required")
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Schedule == nil {
		interval := opts.TickInterval
		opts.Schedule = func(next func()) { time.AfterFunc(interval, next) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:        opts.ID,
		source:    opts.Source,
		decoder:   opts.Decoder,
		verifier:  opts.Verifier,
		presenter: opts.Presenter,
		journal:   opts.Journal,
		debouncer: NewDebouncer(opts.DebounceWindow),
		schedule:  opts.Schedule,
		now:       opts.Now,
		log:       opts.Log.With().Str("component", "scanner").Str("scanner_id", opts.ID).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		status:    StatusIdle,
	}, nil
}

func (c *Controller) ID() string {
	return c.id
}

// Init checks for capture support and enumerates devices. An unsupported
// host disables start for the lifetime of the controller.
func (c *Controller) Init(ctx context.Context) error {
	if !c.source.Supported() {
		c.mu.Lock()
		c.unsupported = true
		c.setStatusLocked(StatusUnsupported)
		c.mu.Unlock()
		return camera.ErrUnsupported
	}
	return c.RefreshDevices(ctx)
}

func (c *Controller) RefreshDevices(ctx context.Context) error {
	if !c.source.Supported() {
		return camera.ErrUnsupported
	}
	_, err := c.source.ListDevices(ctx)
	switch {
	case errors.Is(err, camera.ErrNoDevices):
		c.setStatus(StatusNoDevices)
	case err != nil:
		c.log.Error().Err(err).Msg("failed to list devices")
		c.setStatus(StatusListFailed)
	}
	return err
}

// Start acquires a stream for deviceID (the selected device when empty) and
// arms the tick loop. A live stream is released first.
func (c *Controller) Start(ctx context.Context, deviceID string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	unsupported := c.unsupported
	c.mu.Unlock()
	if unsupported {
		return camera.ErrUnsupported
	}

	if deviceID == "" {
		if cur, ok := c.source.Current(); ok {
			deviceID = cur.ID
		}
	}

	c.stopLocked()

	stream, err := c.source.Start(ctx, deviceID)
	if err != nil {
		c.setStatus(StatusStartFailed)
		return fmt.Errorf("failed to start camera: %w", err)
	}

	c.mu.Lock()
	c.run++
	run := c.run
	c.stream = stream
	c.state = StateRunning
	c.setStatusLocked(StatusStarted)
	c.mu.Unlock()

	c.log.Info().Str("device_id", stream.DeviceID()).Uint64("run", run).Msg("scan loop started")
	c.schedule(func() { c.tick(run) })
	return nil
}

// Stop releases the stream and ends the loop. Calling it while stopped is
// a no-op apart from clearing the debounce payload.
func (c *Controller) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.mu.Lock()
	if c.state == StateRunning {
		c.state = StateStopped
	}
	c.run++
	c.stream = nil
	c.mu.Unlock()

	if c.source.Stop() {
		c.setStatus(StatusStopped)
	}

	// A tick already past its active check finishes before the reset.
	c.tickMu.Lock()
	c.debouncer.Reset()
	c.tickMu.Unlock()
}

// Flip starts the next enumerated device in cyclic order.
func (c *Controller) Flip(ctx context.Context) error {
	dev, err := c.source.Next()
	if err != nil {
		return err
	}
	return c.Start(ctx, dev.ID)
}

// SelectDevice changes the current device without restarting the stream.
func (c *Controller) SelectDevice(id string) error {
	if err := c.source.Select(id); err != nil {
		return err
	}
	c.setStatus(StatusSelected)
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Status() Snapshot {
	devices := c.source.Devices()
	cur, hasCur := c.source.Current()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ID:      c.id,
		State:   c.state,
		Message: c.status,
		Devices: devices,
		Controls: Controls{
			StartEnabled: !c.unsupported && len(devices) > 0 && c.state != StateRunning,
			StopEnabled:  c.state == StateRunning,
			FlipEnabled:  len(devices) >= 2,
		},
	}
	if hasCur {
		snap.CurrentDevice = cur.ID
	}
	return snap
}

// Wait blocks until every dispatched verification has been presented.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close stops scanning, cancels in-flight verifications and waits for them.
func (c *Controller) Close() {
	c.Stop()
	c.cancel()
	c.inflight.Wait()
}

func (c *Controller) tick(run uint64) {
	c.tickMu.Lock()
	stream, active := c.activeStream(run)
	if !active {
		c.tickMu.Unlock()
		return
	}
	if err := stream.Err(); err != nil {
		c.tickMu.Unlock()
		c.endRun(run, stream.DeviceID(), err)
		return
	}
	if frame, ok := stream.Frame(); ok {
		raster := c.sampler.Sample(frame)
		if payload, ok := c.decoder.Decode(raster); ok {
			c.accept(payload, stream.DeviceID())
		}
	}
	c.tickMu.Unlock()

	c.schedule(func() { c.tick(run) })
}

func (c *Controller) activeStream(run uint64) (camera.Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream, c.state == StateRunning && c.run == run
}

// endRun stops a run whose stream ended on its own, unless an operator
// action has already replaced it.
func (c *Controller) endRun(run uint64, deviceID string, cause error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if _, active := c.activeStream(run); !active {
		return
	}
	c.log.Warn().Err(cause).Str("device_id", deviceID).Uint64("run", run).Msg("camera stream ended")
	c.stopLocked()
	c.setStatus(StatusStreamEnded)
}

func (c *Controller) accept(payload, deviceID string) {
	if !c.debouncer.Accept(payload, c.now()) {
		return
	}

	c.setStatus(StatusVerifying)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.verify(payload, deviceID)
	}()
}

func (c *Controller) verify(payload, deviceID string) {
	resp, err := c.verifier.Verify(c.ctx, payload)
	result := toResult(resp, err)

	switch result.Outcome() {
	case scan.OutcomeValid:
		c.setStatus(fmt.Sprintf("Valid: Ticket #%d - Seat %s", result.Ticket.ID, result.Ticket.SeatLabel))
	case scan.OutcomeError:
		c.log.Warn().Str("error", result.ErrorMessage).Msg("verification error")
		c.setStatus("Error: " + result.ErrorMessage)
	default:
		c.setStatus(StatusInvalid)
	}

	c.presenter.Present(result)
	c.record(payload, deviceID, result, resp)
}

func (c *Controller) record(payload, deviceID string, result scan.Result, resp *scan.VerifyResponse) {
	if c.journal == nil {
		return
	}

	rec := scan.Record{
		ID:           uuid.NewString(),
		ScannerID:    c.id,
		DeviceID:     deviceID,
		Fingerprint:  utils.Fingerprint(payload),
		MaskedToken:  utils.MaskToken(payload),
		Valid:        result.Valid,
		Outcome:      result.Outcome(),
		ErrorMessage: result.ErrorMessage,
		ScannedAt:    c.now(),
	}
	if result.Ticket != nil {
		id := result.Ticket.ID
		rec.TicketID = &id
		rec.SeatLabel = result.Ticket.SeatLabel
	}
	if resp != nil {
		rec.Response = responseMap(resp)
	}

	if err := c.journal.Record(c.ctx, rec); err != nil {
		c.log.Error().Err(err).Str("fingerprint", rec.Fingerprint).Msg("failed to journal scan")
	}
}

func (c *Controller) setStatus(msg string) {
	c.mu.Lock()
	c.setStatusLocked(msg)
	c.mu.Unlock()
}

func (c *Controller) setStatusLocked(msg string) {
	c.status = msg
	c.log.Info().Str("status", msg).Msg("scanner status")
}

func toResult(resp *scan.VerifyResponse, err error) scan.Result {
	if err != nil {
		return scan.Result{Valid: false, ErrorMessage: err.Error()}
	}
	if resp == nil || !resp.Valid || resp.Ticket == nil {
		return scan.Result{Valid: false}
	}
	return scan.Result{Valid: true, Ticket: resp.Ticket}
}

func responseMap(resp *scan.VerifyResponse) map[string]any {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
