package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Mode selects whether the engine ingests a live upstream feed or replays
// a captured one.
type Mode string

const (
	ModeLive   Mode = "LIVE"
	ModeReplay Mode = "REPLAY"
)

type Config struct {
	Mode Mode `env:"MODE" envDefault:"LIVE"`

	UpstreamBase string `env:"UPSTREAM_BASE" envDefault:"livetiming.formula1.com/signalr"`
	UpstreamHub  string `env:"UPSTREAM_HUB" envDefault:"Streaming"`

	ReplayFilePath string  `env:"REPLAY_FILE_PATH"`
	ReplaySpeed    float64 `env:"REPLAY_SPEED" envDefault:"1.0"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthEnabled        bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthToken          string `env:"AUTH_TOKEN"`
	AuthTokenGenerated bool

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSOrigins    string  `env:"CORS_ORIGINS"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	SubscriberBufferSize int `env:"SUBSCRIBER_BUFFER_SIZE" envDefault:"64"`

	FinalStatePath string `env:"FINAL_STATE_PATH" envDefault:"final_structured_state.json"`

	ReconnectInitialInterval time.Duration `env:"RECONNECT_INITIAL_INTERVAL" envDefault:"5s"`
	ReconnectMaxInterval     time.Duration `env:"RECONNECT_MAX_INTERVAL" envDefault:"600s"`
	ReconnectMultiplier      float64       `env:"RECONNECT_MULTIPLIER" envDefault:"2.0"`
}

// Validate checks mode-dependent required fields.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLive, ModeReplay:
	default:
		return fmt.Errorf("MODE must be LIVE or REPLAY, got %q", c.Mode)
	}
	if c.Mode == ModeReplay && c.ReplayFilePath == "" {
		return fmt.Errorf("REPLAY_FILE_PATH is required when MODE=REPLAY")
	}
	if c.ReplaySpeed <= 0 {
		return fmt.Errorf("REPLAY_SPEED must be positive, got %v", c.ReplaySpeed)
	}
	return nil
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile        string
	Mode           string
	HTTPAddr       string
	LogLevel       string
	ReplayFilePath string
	ReplaySpeed    float64
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.Mode != "" {
		cfg.Mode = Mode(overrides.Mode)
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.ReplayFilePath != "" {
		cfg.ReplayFilePath = overrides.ReplayFilePath
	}
	if overrides.ReplaySpeed != 0 {
		cfg.ReplaySpeed = overrides.ReplaySpeed
	}

	if !cfg.AuthEnabled {
		cfg.AuthToken = ""
	} else if cfg.AuthToken == "" {
		// Auto-generate a token so the push/pull endpoints aren't wide open
		// when AUTH_ENABLED=true but no AUTH_TOKEN was supplied. Changes on
		// every restart; set AUTH_TOKEN in .env for a stable one.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err == nil {
			cfg.AuthToken = base64.URLEncoding.EncodeToString(b)
			cfg.AuthTokenGenerated = true
		}
	}

	return cfg, nil
}
