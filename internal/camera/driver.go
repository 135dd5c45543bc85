package camera

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"ticket-scanner/internal/config"
)

// ConfigDriver serves the cameras listed in configuration. The URL scheme
// of each device picks the capture backend.
type ConfigDriver struct {
	devices []config.CameraDevice
	client  *http.Client
	log     zerolog.Logger
}

// NewDriver returns nil when capture is disabled, which the Source treats
// as an unsupported host.
func NewDriver(cfg config.CameraConfig, client *http.Client, log zerolog.Logger) Driver {
	if !cfg.Enabled {
		return nil
	}
	if client == nil {
		client = &http.Client{}
	}
	return &ConfigDriver{
		devices: cfg.Devices,
		client:  client,
		log:     log.With().Str("component", "camera_driver").Logger(),
	}
}

func (d *ConfigDriver) Enumerate(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(d.devices))
	for _, dev := range d.devices {
		kind := dev.Kind
		if kind == "" {
			kind = KindVideo
		}
		out = append(out, Device{
			ID:     dev.ID,
			Label:  dev.Label,
			Kind:   kind,
			Facing: dev.Facing,
		})
	}
	return out, nil
}

func (d *ConfigDriver) Open(ctx context.Context, c Constraints) (Stream, error) {
	dev, err := d.resolve(c)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(dev.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url for camera %s: %w", dev.ID, err)
	}

	switch u.Scheme {
	case "http", "https":
		return openMJPEG(ctx, d.client, dev.ID, u.String(), d.log)
	case "file":
		return openStill(dev.ID, u.Path)
	default:
		return nil, fmt.Errorf("camera %s: unsupported url scheme %q", dev.ID, u.Scheme)
	}
}

func (d *ConfigDriver) resolve(c Constraints) (config.CameraDevice, error) {
	if c.DeviceID != "" {
		for _, dev := range d.devices {
			if dev.ID == c.DeviceID && isVideo(dev) {
				return dev, nil
			}
		}
		return config.CameraDevice{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, c.DeviceID)
	}

	var fallback *config.CameraDevice
	for i, dev := range d.devices {
		if !isVideo(dev) {
			continue
		}
		if dev.Facing == c.FacingMode {
			return dev, nil
		}
		if fallback == nil {
			fallback = &d.devices[i]
		}
	}
	if fallback == nil {
		return config.CameraDevice{}, ErrNoDevices
	}
	return *fallback, nil
}

func isVideo(dev config.CameraDevice) bool {
	return dev.Kind == "" || dev.Kind == KindVideo
}
