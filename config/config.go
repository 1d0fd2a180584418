package config

import (
	"fmt"
	"strings"
	"time"
)

// Server configures cmd/petserver.
type Server struct {
	HTTPAddr string `env:"PETSPRITE_HTTP_ADDR" envDefault:":4000"`
	// AssetsDir overrides the embedded atlas when set.
	AssetsDir    string `env:"PETSPRITE_ASSETS_DIR"`
	DefaultGroup string `env:"PETSPRITE_DEFAULT_GROUP" envDefault:"demo"`

	RedisAddr     string `env:"PETSPRITE_REDIS_ADDR"`
	RedisPassword string `env:"PETSPRITE_REDIS_PASSWORD"`
	RedisDB       int    `env:"PETSPRITE_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"PETSPRITE_REDIS_PREFIX" envDefault:"petsprite"`

	// MoodScript is an optional tengo rule script replacing the default
	// thresholds.
	MoodScript string `env:"PETSPRITE_MOOD_SCRIPT"`
	// ActivityHold is how long an activity clip plays before the derived
	// state replaces it. Zero publishes the derived state at once.
	ActivityHold time.Duration `env:"PETSPRITE_ACTIVITY_HOLD" envDefault:"3s"`

	ReadHeaderTimeout time.Duration `env:"PETSPRITE_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"PETSPRITE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadServer parses and validates Server settings.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("config: http addr is required")
	}
	if c.ActivityHold < 0 {
		return fmt.Errorf("config: activity hold %v must not be negative", c.ActivityHold)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("config: redis db %d must not be negative", c.RedisDB)
	}
	return nil
}

// Viewer holds the cmd/petview defaults; flags override each field.
type Viewer struct {
	ServerURL string  `env:"PETSPRITE_SERVER_URL"`
	RedisAddr string  `env:"PETSPRITE_REDIS_ADDR"`
	Group     string  `env:"PETSPRITE_GROUP" envDefault:"demo"`
	Atlas     string  `env:"PETSPRITE_ATLAS"`
	Sheet     string  `env:"PETSPRITE_SHEET"`
	Scale     float64 `env:"PETSPRITE_SCALE" envDefault:"4"`
}

// LoadViewer parses Viewer settings.
func LoadViewer() (Viewer, error) {
	var cfg Viewer
	if err := ParseEnv(&cfg); err != nil {
		return Viewer{}, err
	}
	return cfg, nil
}
