package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"camserver/internal/model"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all server configuration.
type Config struct {
	Port         int    `mapstructure:"port"`
	Debug        bool   `mapstructure:"debug"`
	LogDirectory string `mapstructure:"log-dir"`

	// Camera defaults
	Camera          string        `mapstructure:"camera"`
	HasFocus        bool          `mapstructure:"has-focus"`
	HasAperture     bool          `mapstructure:"has-aperture"`
	DefaultExposure int           `mapstructure:"default-exposure"`
	DefaultGain     int           `mapstructure:"default-gain"`
	DefaultFocus    int           `mapstructure:"default-focus"`
	DefaultAperture int           `mapstructure:"default-aperture"`
	DummyDelay      time.Duration `mapstructure:"dummy-delay"`

	// Image folder and thumbnails
	ImageDirectory  string `mapstructure:"image-dir"`
	ThumbnailWidth  int    `mapstructure:"thumbnail-width"`
	ThumbnailHeight int    `mapstructure:"thumbnail-height"`
	MaxResults      int    `mapstructure:"max-results"` // 0 keeps everything

	// Sequencer
	CaptureTimeout  time.Duration `mapstructure:"capture-timeout"` // 0 disables the deadline
	MaxQueuedSweeps int           `mapstructure:"max-queued-sweeps"`
	FocusScoring    bool          `mapstructure:"focus-scoring"`

	// Sweep history database
	DBPath string `mapstructure:"db-path"`

	// Optional S3 archival
	S3Bucket string `mapstructure:"s3-bucket"`
	S3Region string `mapstructure:"s3-region"`
	S3Prefix string `mapstructure:"s3-prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("debug", false)
	v.SetDefault("log-dir", filepath.Join(".", "logs"))

	v.SetDefault("camera", string(model.CameraDummy))
	v.SetDefault("has-focus", false)
	v.SetDefault("has-aperture", false)
	v.SetDefault("default-exposure", 0)
	v.SetDefault("default-gain", 0)
	v.SetDefault("default-focus", 0)
	v.SetDefault("default-aperture", 0)
	v.SetDefault("dummy-delay", 1500*time.Millisecond)

	v.SetDefault("image-dir", filepath.Join(os.TempDir(), "camera_captures"))
	v.SetDefault("thumbnail-width", 200)
	v.SetDefault("thumbnail-height", 200)
	v.SetDefault("max-results", 0)

	v.SetDefault("capture-timeout", time.Duration(0))
	v.SetDefault("max-queued-sweeps", 16)
	v.SetDefault("focus-scoring", true)

	v.SetDefault("db-path", filepath.Join(".", "data", "sweeps.db"))

	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("s3-prefix", "captures")
}

// Load reads configuration from command line flags, the environment (after
// loading the .env file), an optional config.yaml and defaults, in that order
// of precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := loadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	// PORT, CAMERA, IMAGE_DIR, ...
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs without overriding variables already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if _, err := model.ParseCameraType(c.Camera); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ImageDirectory == "" {
		return fmt.Errorf("image-dir cannot be empty")
	}
	if c.ThumbnailWidth <= 0 || c.ThumbnailHeight <= 0 {
		return fmt.Errorf("thumbnail size must be positive, got %dx%d", c.ThumbnailWidth, c.ThumbnailHeight)
	}
	if c.MaxResults < 0 {
		return fmt.Errorf("max-results must be non-negative")
	}
	if c.CaptureTimeout < 0 {
		return fmt.Errorf("capture-timeout must be non-negative")
	}
	if c.MaxQueuedSweeps < 0 {
		return fmt.Errorf("max-queued-sweeps must be non-negative")
	}
	if c.DummyDelay < 0 {
		return fmt.Errorf("dummy-delay must be non-negative")
	}
	return nil
}

// CameraType returns the parsed camera type. Call after Validate.
func (c *Config) CameraType() model.CameraType {
	t, _ := model.ParseCameraType(c.Camera)
	return t
}

// CameraConfig builds the default capture configuration. Focus and aperture
// are only set when the deployment declares a stage for them.
func (c *Config) CameraConfig() model.CameraConfig {
	cfg := model.CameraConfig{
		CameraType: c.CameraType(),
		Exposure:   c.DefaultExposure,
		Gain:       c.DefaultGain,
	}
	if c.HasFocus {
		cfg.Focus = model.IntPtr(c.DefaultFocus)
	}
	if c.HasAperture {
		cfg.Aperture = model.IntPtr(c.DefaultAperture)
	}
	return cfg
}

// ArchiveEnabled reports whether finished captures are mirrored to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}
