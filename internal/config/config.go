package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Camera     Camera     `mapstructure:"camera"`
	Paths      Paths      `mapstructure:"paths"`
	Web        Web        `mapstructure:"web"`
	Monitoring Monitoring `mapstructure:"monitoring"`
	History    History    `mapstructure:"history"`
	Logging    Logging    `mapstructure:"logging"`
}

// Camera holds device driver settings
type Camera struct {
	Bin             string        `mapstructure:"bin"`
	CaptureCooldown time.Duration `mapstructure:"capture_cooldown"`
	CaptureAttempts int           `mapstructure:"capture_attempts"`
	CaptureRetryGap time.Duration `mapstructure:"capture_retry_gap"`
	FetchAttempts   int           `mapstructure:"fetch_attempts"`
	FetchRetryGap   time.Duration `mapstructure:"fetch_retry_gap"`
	HoldWaitDefault int           `mapstructure:"hold_wait_default"`
}

// Paths holds the on-disk layout. Photos/Www/Tmp default to
// subdirectories of Base when left empty.
type Paths struct {
	Base   string `mapstructure:"base"`
	Photos string `mapstructure:"photos"`
	Www    string `mapstructure:"www"`
	Tmp    string `mapstructure:"tmp"`
}

// Web holds web server settings
type Web struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Monitoring holds host metrics settings
type Monitoring struct {
	UpdateInterval      time.Duration `mapstructure:"update_interval"`
	UIUpdateInterval    time.Duration `mapstructure:"ui_update_interval"`
	CPUSmoothingSamples int           `mapstructure:"cpu_smoothing_samples"`
}

// History holds event journal settings
type History struct {
	Path string `mapstructure:"path"`
}

// Logging holds logging settings
type Logging struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file or uses defaults
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.canon-remote")
		v.AddConfigPath("/etc/canon-remote")
	}

	v.SetEnvPrefix("CANONREMOTE")
	v.AutomaticEnv()

	// Config file is optional; defaults cover a stock Pi install.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("camera.bin", "gphoto2")
	v.SetDefault("camera.capture_cooldown", "1200ms")
	v.SetDefault("camera.capture_attempts", 2)
	v.SetDefault("camera.capture_retry_gap", "600ms")
	v.SetDefault("camera.fetch_attempts", 3)
	v.SetDefault("camera.fetch_retry_gap", "800ms")
	v.SetDefault("camera.hold_wait_default", 300)

	v.SetDefault("paths.base", "/home/pi/canon")

	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8090)

	v.SetDefault("monitoring.update_interval", "1s")
	v.SetDefault("monitoring.ui_update_interval", "2s")
	v.SetDefault("monitoring.cpu_smoothing_samples", 3)

	v.SetDefault("logging.level", "info")
}

func (c *Config) fillDerived() {
	if c.Paths.Photos == "" {
		c.Paths.Photos = filepath.Join(c.Paths.Base, "photos")
	}
	if c.Paths.Www == "" {
		c.Paths.Www = filepath.Join(c.Paths.Base, "www")
	}
	if c.Paths.Tmp == "" {
		c.Paths.Tmp = filepath.Join(c.Paths.Base, "tmp")
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.Paths.Base, "history.db")
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Camera.Bin == "" {
		return fmt.Errorf("camera.bin must not be empty")
	}

	if c.Camera.CaptureAttempts < 1 || c.Camera.FetchAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}

	if c.Camera.CaptureCooldown < 0 {
		return fmt.Errorf("capture_cooldown must not be negative")
	}

	if c.Paths.Base == "" {
		return fmt.Errorf("paths.base must not be empty")
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Web.Port)
	}

	return nil
}
