// Package config loads and validates the castd daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/ledcast/caster/internal/logging"
)

var log = logging.L("config")

// DeviceTarget is one entry of a cast's destination list, addressed by a
// stable index so tile-grid ordering survives config round-trips.
type DeviceTarget struct {
	Index int    `mapstructure:"index"`
	Addr  string `mapstructure:"addr"`
}

// FilterConfig holds the §4.4 image pipeline filter knobs. A zero value
// means "skipped" for every field except Gamma (1.0 is the identity gamma,
// not zero).
type FilterConfig struct {
	Gamma        float64 `mapstructure:"gamma"`
	AutoLevel    bool    `mapstructure:"auto_level"`
	AutoPercent  float64 `mapstructure:"auto_percent"`
	Saturation   int     `mapstructure:"saturation"` // 0..100
	Brightness   int     `mapstructure:"brightness"` // 0..100
	Contrast     int     `mapstructure:"contrast"`   // 0..100
	Sharpen      int     `mapstructure:"sharpen"`    // 0..100
	BalanceRed   int     `mapstructure:"balance_red"`   // 0..255
	BalanceGreen int     `mapstructure:"balance_green"` // 0..255
	BalanceBlue  int     `mapstructure:"balance_blue"`  // 0..255
	Flip         bool    `mapstructure:"flip"`
	FlipVH       int     `mapstructure:"flip_vh"` // 0=horizontal, 1=vertical
}

// RecordConfig is the SPEC_FULL §3 RecordSpec attribute.
type RecordConfig struct {
	Enabled bool   `mapstructure:"record_enabled"`
	Sink    string `mapstructure:"record_sink"` // none|local|s3|azureblob|gcs|b2|device
	Path    string `mapstructure:"record_path"`
	Bucket  string `mapstructure:"record_bucket"`
	// Region is consulted by the s3 sink only; the other cloud sinks take
	// their endpoint from the connection string/ADC credential chain.
	Region         string `mapstructure:"record_region"`
	Encode         string `mapstructure:"record_encode"` // raw|h264
	SegmentSeconds int    `mapstructure:"record_segment_seconds"`
}

// E131Config holds the E1.31/sACN-specific keys from spec.md §6.
type E131Config struct {
	Name             string `mapstructure:"e131_name"`
	Universe         int    `mapstructure:"universe"`
	PixelCount       int    `mapstructure:"pixel_count"`
	PacketPriority   int    `mapstructure:"packet_priority"`
	UniverseSize     int    `mapstructure:"universe_size"`
	ChannelOffset    int    `mapstructure:"channel_offset"`
	ChannelsPerPixel int    `mapstructure:"channels_per_pixel"` // 3 or 4
	Multicast        bool   `mapstructure:"e131_multicast"`
}

// PreviewConfig holds the §4.8/§6 preview-window sizing knobs.
type PreviewConfig struct {
	Enabled  bool `mapstructure:"preview"`
	Width    int  `mapstructure:"preview_w"`
	Height   int  `mapstructure:"preview_h"`
	PixelW   int  `mapstructure:"pixel_w"`
	PixelH   int  `mapstructure:"pixel_h"`
}

// CastConfig is the on-disk representation of the spec.md §3 Cast type.
type CastConfig struct {
	Name           string         `mapstructure:"name"`
	Kind           string         `mapstructure:"kind"` // desktop|media
	RateFPS        int            `mapstructure:"rate"`
	ScaleWidth     int            `mapstructure:"scale_width"`
	ScaleHeight    int            `mapstructure:"scale_height"`
	SourceSpec     string         `mapstructure:"source_spec"`
	Protocol       string         `mapstructure:"protocol"` // ddp|e131|artnet|other
	Host           string         `mapstructure:"host"`
	Devices        []DeviceTarget `mapstructure:"cast_devices"`
	Multicast      bool           `mapstructure:"multicast"`
	TileX          int            `mapstructure:"cast_x"`
	TileY          int            `mapstructure:"cast_y"`
	Retry          int            `mapstructure:"retry"`
	WLED           bool           `mapstructure:"wled"`
	Filters        FilterConfig   `mapstructure:",squash"`
	Preview        PreviewConfig  `mapstructure:",squash"`
	Record         RecordConfig   `mapstructure:",squash"`
	E131           E131Config     `mapstructure:",squash"`
	PutToBuffer    bool           `mapstructure:"put_to_buffer"`
	FrameMax       int            `mapstructure:"frame_max"`
}

// Config is the castd daemon's own operational configuration: ambient
// daemon settings plus the default values new Cast configs inherit.
type Config struct {
	// Ambient daemon settings.
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// C13 control surface.
	ControlListenAddr string `mapstructure:"control_listen_addr"`
	ControlCertFile   string `mapstructure:"control_cert_file"`
	ControlKeyFile    string `mapstructure:"control_key_file"`
	ControlClientCA   string `mapstructure:"control_client_ca"`

	// C2 send queue.
	QueueDepth int `mapstructure:"queue_depth"`

	// C10 shared frame bus, dialed by any cast whose source_spec is
	// "queue:<name>" and by the `mobile-server` subcommand's producer.
	FrameBusListenAddr string `mapstructure:"frame_bus_listen_addr"`

	// C12 discovery.
	DiscoverySubnets       []string `mapstructure:"discovery_subnets"`
	DiscoveryMDNSSeconds   int      `mapstructure:"discovery_mdns_seconds"`

	// Default per-cast values applied when a CastConfig omits them.
	DefaultRateFPS     int `mapstructure:"default_rate"`
	DefaultScaleWidth  int `mapstructure:"default_scale_width"`
	DefaultScaleHeight int `mapstructure:"default_scale_height"`

	Casts []CastConfig `mapstructure:"casts"`
}

// Default returns the built-in castd defaults.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,

		ControlListenAddr: "127.0.0.1:7535",

		QueueDepth: 500,

		FrameBusListenAddr: "127.0.0.1:7536",

		DiscoveryMDNSSeconds: 5,

		DefaultRateFPS:     30,
		DefaultScaleWidth:  64,
		DefaultScaleHeight: 32,
	}
}

// Load reads castd.yaml (or cfgFile) merged with CASTD_* environment
// overrides, in that order, falling back to Default() for anything unset.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("castd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CASTD")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// GetDataDir returns the platform-specific data directory for castd.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "castd", "data")
	case "darwin":
		return "/Library/Application Support/castd/data"
	default:
		return "/var/lib/castd"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "castd")
	case "darwin":
		return "/Library/Application Support/castd"
	default:
		return "/etc/castd"
	}
}
