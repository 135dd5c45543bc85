package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Haptics HapticsConfig `mapstructure:"haptics"`
	Camera  CameraConfig  `mapstructure:"camera"`
	DB      DBConfig      `mapstructure:"db"`
	Journal JournalConfig `mapstructure:"journal"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// APIConfig points at the ticketing backend that verifies QR tokens.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	VerifyPath string        `mapstructure:"verify_path"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AuthConfig protects the control API. An empty secret disables the check.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type ScannerConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	TickInterval   time.Duration `mapstructure:"tick_interval"`
	Decoder        string        `mapstructure:"decoder"`
	TryHarder      bool          `mapstructure:"try_harder"`
	Autostart      bool          `mapstructure:"autostart"`
	DefaultFacing  string        `mapstructure:"default_facing"`
	Terminal       bool          `mapstructure:"terminal"`
}

type HapticsConfig struct {
	Enabled        bool            `mapstructure:"enabled"`
	SuccessPattern []time.Duration `mapstructure:"success_pattern"`
	FailurePattern []time.Duration `mapstructure:"failure_pattern"`
}

type CameraConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Devices []CameraDevice `mapstructure:"devices"`
}

// CameraDevice is one configured capture source. URL scheme selects the
// driver: http/https for MJPEG streams, file for still images.
type CameraDevice struct {
	ID     string `mapstructure:"id"`
	Label  string `mapstructure:"label"`
	Kind   string `mapstructure:"kind"`
	Facing string `mapstructure:"facing"`
	URL    string `mapstructure:"url"`
}

type DBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type JournalConfig struct {
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.verify_path", "/api/v1/tickets/qr/verify")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", time.Duration(0))
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("scanner.debounce_window", 3*time.Second)
	v.SetDefault("scanner.tick_interval", 16*time.Millisecond)
	v.SetDefault("scanner.decoder", "gozxing")
	v.SetDefault("scanner.try_harder", false)
	v.SetDefault("scanner.autostart", false)
	v.SetDefault("scanner.default_facing", "environment")
	v.SetDefault("scanner.terminal", true)
	v.SetDefault("haptics.enabled", false)
	v.SetDefault("haptics.success_pattern", []time.Duration{100 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond})
	v.SetDefault("haptics.failure_pattern", []time.Duration{200 * time.Millisecond})
	v.SetDefault("camera.enabled", true)
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("journal.retention_days", 30)
	v.SetDefault("journal.cleanup_interval", time.Hour)
}

// Load reads configuration from path (optional) and SCANNER_* environment
// variables. Pass a pre-populated viper instance to layer flags on top.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetEnvPrefix("SCANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	if c.Scanner.TickInterval <= 0 {
		return fmt.Errorf("%w: scanner.tick_interval must be positive", ErrInvalidConfig)
	}
	if c.Scanner.DebounceWindow < 0 {
		return fmt.Errorf("%w: scanner.debounce_window cannot be negative", ErrInvalidConfig)
	}
	switch c.Scanner.Decoder {
	case "gozxing", "goqr":
	default:
		return fmt.Errorf("%w: unknown scanner.decoder %q", ErrInvalidConfig, c.Scanner.Decoder)
	}

	seen := make(map[string]struct{}, len(c.Camera.Devices))
	for i, d := range c.Camera.Devices {
		if d.ID == "" {
			return fmt.Errorf("%w: camera.devices[%d].id is required", ErrInvalidConfig, i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate camera id %q", ErrInvalidConfig, d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.URL == "" {
			return fmt.Errorf("%w: camera.devices[%d].url is required", ErrInvalidConfig, i)
		}
		switch d.Kind {
		case "", "video", "audio":
		default:
			return fmt.Errorf("%w: camera.devices[%d].kind %q is not video or audio", ErrInvalidConfig, i, d.Kind)
		}
	}

	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("%w: db.dsn is required when db.enabled", ErrInvalidConfig)
	}
	return nil
}
