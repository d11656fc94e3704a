// Package config loads platecam settings with Viper.
//
// Precedence, lowest first: built-in defaults, an optional TOML file,
// PLATECAM_* environment variables, command-line flags bound by the caller.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"platecam/overlay"
)

// EnvPrefix is the prefix for environment overrides, e.g. PLATECAM_VIDEO_CODEC
const EnvPrefix = "PLATECAM"

// Config is the complete render configuration
type Config struct {
	Video    VideoConfig    `mapstructure:"video"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Overlay  OverlayConfig  `mapstructure:"overlay"`
	Reencode ReencodeConfig `mapstructure:"reencode"`
	Log      LogConfig      `mapstructure:"log"`
}

// VideoConfig names the source and destination videos
type VideoConfig struct {
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
	Codec  string `mapstructure:"codec"` // fourcc for the destination writer
}

// DatasetConfig locates the interpolated detection dataset
type DatasetConfig struct {
	Path        string        `mapstructure:"path"`
	Wait        bool          `mapstructure:"wait"`         // block until the file exists
	WaitTimeout time.Duration `mapstructure:"wait_timeout"` // 0 waits forever
}

// OverlayConfig mirrors overlay.Style with colors as hex strings
type OverlayConfig struct {
	CarColor         string  `mapstructure:"car_color"`
	PlateColor       string  `mapstructure:"plate_color"`
	PanelColor       string  `mapstructure:"panel_color"`
	TextColor        string  `mapstructure:"text_color"`
	CornerLength     int     `mapstructure:"corner_length"`
	CornerThickness  int     `mapstructure:"corner_thickness"`
	PlateThickness   int     `mapstructure:"plate_thickness"`
	ThumbnailRatio   float64 `mapstructure:"thumbnail_ratio"`
	ThumbnailGap     int     `mapstructure:"thumbnail_gap"`
	PanelRatio       float64 `mapstructure:"panel_ratio"`
	PanelGap         int     `mapstructure:"panel_gap"`
	TextBaseWidth    float64 `mapstructure:"text_base_width"`
	TextScaleFactor  float64 `mapstructure:"text_scale_factor"`
	MinTextThickness int     `mapstructure:"min_text_thickness"`
}

// ReencodeConfig controls the optional browser-compatible re-encode
type ReencodeConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	VideoCodec string `mapstructure:"video_codec"`
	AudioCodec string `mapstructure:"audio_codec"`
}

// LogConfig controls the tint handler
type LogConfig struct {
	Level   string `mapstructure:"level"`
	NoColor bool   `mapstructure:"no_color"`
}

// SetDefaults installs every default on v
func SetDefaults(v *viper.Viper) {
	style := overlay.DefaultStyle()

	v.SetDefault("video.input", "")
	v.SetDefault("video.output", "out.mp4")
	v.SetDefault("video.codec", "mp4v")

	v.SetDefault("dataset.path", "test_interpolated.csv")
	v.SetDefault("dataset.wait", false)
	v.SetDefault("dataset.wait_timeout", time.Duration(0))

	v.SetDefault("overlay.car_color", hexColor(style.CarColor.R, style.CarColor.G, style.CarColor.B))
	v.SetDefault("overlay.plate_color", hexColor(style.PlateColor.R, style.PlateColor.G, style.PlateColor.B))
	v.SetDefault("overlay.panel_color", hexColor(style.PanelColor.R, style.PanelColor.G, style.PanelColor.B))
	v.SetDefault("overlay.text_color", hexColor(style.TextColor.R, style.TextColor.G, style.TextColor.B))
	v.SetDefault("overlay.corner_length", style.CornerLength)
	v.SetDefault("overlay.corner_thickness", style.CornerThickness)
	v.SetDefault("overlay.plate_thickness", style.PlateThickness)
	v.SetDefault("overlay.thumbnail_ratio", style.ThumbnailRatio)
	v.SetDefault("overlay.thumbnail_gap", style.ThumbnailGap)
	v.SetDefault("overlay.panel_ratio", style.PanelRatio)
	v.SetDefault("overlay.panel_gap", style.PanelGap)
	v.SetDefault("overlay.text_base_width", style.TextBaseWidth)
	v.SetDefault("overlay.text_scale_factor", style.TextScaleFactor)
	v.SetDefault("overlay.min_text_thickness", style.MinTextThickness)

	v.SetDefault("reencode.enabled", false)
	v.SetDefault("reencode.ffmpeg_path", "ffmpeg")
	v.SetDefault("reencode.video_codec", "libx264")
	v.SetDefault("reencode.audio_codec", "aac")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.no_color", false)
}

// New returns a Viper instance with defaults and environment binding. When
// configPath is non-empty the TOML file is read as well.
func New(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	return v, nil
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make a render impossible
func (c *Config) Validate() error {
	if len(c.Video.Codec) != 4 {
		return fmt.Errorf("video.codec must be a four character code, got %q", c.Video.Codec)
	}
	if c.Dataset.WaitTimeout < 0 {
		return fmt.Errorf("dataset.wait_timeout must be >= 0, got %v", c.Dataset.WaitTimeout)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Reencode.Enabled && c.Reencode.FFmpegPath == "" {
		return fmt.Errorf("reencode.ffmpeg_path is required when reencode is enabled")
	}
	if _, err := c.Overlay.Style(); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	return nil
}

// Style converts the overlay section into an overlay.Style
func (o OverlayConfig) Style() (overlay.Style, error) {
	style := overlay.DefaultStyle()

	var err error
	if style.CarColor, err = overlay.ParseHexColor(o.CarColor); err != nil {
		return overlay.Style{}, fmt.Errorf("car_color: %w", err)
	}
	if style.PlateColor, err = overlay.ParseHexColor(o.PlateColor); err != nil {
		return overlay.Style{}, fmt.Errorf("plate_color: %w", err)
	}
	if style.PanelColor, err = overlay.ParseHexColor(o.PanelColor); err != nil {
		return overlay.Style{}, fmt.Errorf("panel_color: %w", err)
	}
	if style.TextColor, err = overlay.ParseHexColor(o.TextColor); err != nil {
		return overlay.Style{}, fmt.Errorf("text_color: %w", err)
	}

	style.CornerLength = o.CornerLength
	style.CornerThickness = o.CornerThickness
	style.PlateThickness = o.PlateThickness
	style.ThumbnailRatio = o.ThumbnailRatio
	style.ThumbnailGap = o.ThumbnailGap
	style.PanelRatio = o.PanelRatio
	style.PanelGap = o.PanelGap
	style.TextBaseWidth = o.TextBaseWidth
	style.TextScaleFactor = o.TextScaleFactor
	style.MinTextThickness = o.MinTextThickness

	if err := style.Validate(); err != nil {
		return overlay.Style{}, err
	}
	return style, nil
}

func hexColor(r, g, b uint8) string {
	return fmt.Sprintf("%02x%02x%02x", r, g, b)
}
