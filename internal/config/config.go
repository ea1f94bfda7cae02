// Package config loads runtime settings from an optional YAML file,
// SOSFINDER_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/sosfinder/internal/debounce"
	"github.com/ayusman/sosfinder/internal/detector"
)

// EnvPrefix is prepended to every environment override, e.g. SOSFINDER_DEBOUNCE_THRESHOLD.
const EnvPrefix = "SOSFINDER"

// FileName is the config file name looked up in the config directory.
const FileName = "sosfinder"

// Pose predicates.
const (
	PredicateThumbHidden  = "thumb_hidden"
	PredicateFistTemplate = "fist_template"
)

// Config is the complete runtime configuration.
type Config struct {
	Debounce struct {
		Threshold int           `mapstructure:"threshold"`
		Window    time.Duration `mapstructure:"window"`
	} `mapstructure:"debounce"`
	Camera struct {
		Device int `mapstructure:"device"`
		FPS    int `mapstructure:"fps"`
	} `mapstructure:"camera"`
	Detector struct {
		MaxHands              int     `mapstructure:"max_hands"`
		MinConfidence         float64 `mapstructure:"min_confidence"`
		MinTrackingConfidence float64 `mapstructure:"min_tracking_confidence"`
		Script                string  `mapstructure:"script"`
	} `mapstructure:"detector"`
	Pose struct {
		Predicate string  `mapstructure:"predicate"`
		Tolerance float64 `mapstructure:"tolerance"`
	} `mapstructure:"pose"`
	Alert struct {
		QueueSize int           `mapstructure:"queue_size"`
		Timeout   time.Duration `mapstructure:"timeout"`
		Message   string        `mapstructure:"message"`
	} `mapstructure:"alert"`
	Server struct {
		Addr      string `mapstructure:"addr"`
		StaticDir string `mapstructure:"static_dir"`
	} `mapstructure:"server"`
	Data struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"data"`
	Plugins struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"plugins"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Tray struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"tray"`
}

// Load reads dir/sosfinder.yaml when present, then applies env overrides.
// An empty dir skips the file lookup. A missing file is not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir != "" {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.Dir = expandHome(cfg.Data.Dir)
	if cfg.Plugins.Dir == "" {
		cfg.Plugins.Dir = filepath.Join(cfg.Data.Dir, "plugins")
	}
	cfg.Plugins.Dir = expandHome(cfg.Plugins.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with nothing but defaults applied.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults always validate.
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	dc := debounce.DefaultConfig()
	v.SetDefault("debounce.threshold", dc.Threshold)
	v.SetDefault("debounce.window", dc.Window)

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.fps", 15)

	det := detector.DefaultConfig()
	v.SetDefault("detector.max_hands", det.MaxHands)
	v.SetDefault("detector.min_confidence", det.MinConfidence)
	v.SetDefault("detector.min_tracking_confidence", det.MinTrackingConf)
	v.SetDefault("detector.script", "")

	v.SetDefault("pose.predicate", PredicateThumbHidden)
	v.SetDefault("pose.tolerance", 0.6)

	v.SetDefault("alert.queue_size", 8)
	v.SetDefault("alert.timeout", 10*time.Second)
	v.SetDefault("alert.message", "SOS detected!")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("data.dir", "~/.sosfinder")
	v.SetDefault("plugins.dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tray.enabled", false)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.DebounceConfig().Validate(); err != nil {
		return err
	}
	if c.Camera.FPS < 1 {
		return fmt.Errorf("camera.fps must be >= 1, got %d", c.Camera.FPS)
	}
	if c.Detector.MaxHands < 1 {
		return fmt.Errorf("detector.max_hands must be >= 1, got %d", c.Detector.MaxHands)
	}
	switch c.Pose.Predicate {
	case PredicateThumbHidden, PredicateFistTemplate:
	default:
		return fmt.Errorf("unknown pose.predicate %q", c.Pose.Predicate)
	}
	if c.Alert.QueueSize < 1 {
		return fmt.Errorf("alert.queue_size must be >= 1, got %d", c.Alert.QueueSize)
	}
	if c.Alert.Timeout <= 0 {
		return fmt.Errorf("alert.timeout must be positive, got %v", c.Alert.Timeout)
	}
	return nil
}

// DebounceConfig returns the debouncer section.
func (c *Config) DebounceConfig() debounce.Config {
	return debounce.Config{
		Threshold: c.Debounce.Threshold,
		Window:    c.Debounce.Window,
	}
}

// DetectorConfig returns the landmark detector section.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		MinConfidence:   c.Detector.MinConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
		ScriptPath:      c.Detector.Script,
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
