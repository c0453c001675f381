package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	CDNBase               string `mapstructure:"cdn_base"`
	DefaultAvatarURL      string `mapstructure:"default_avatar_url"`
	DecorationPassthrough bool   `mapstructure:"decoration_passthrough"`

	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	MaxAssetBytes int64         `mapstructure:"max_asset_bytes"`
	UserAgent     string        `mapstructure:"user_agent"`

	CacheMaxAge       time.Duration `mapstructure:"cache_max_age"`
	DefaultFrameDelay time.Duration `mapstructure:"default_frame_delay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("cdn_base", "https://cdn.discordapp.com")
	v.SetDefault("default_avatar_url", "https://cdn.discordapp.com/embed/avatars/0.png")
	v.SetDefault("decoration_passthrough", false)

	v.SetDefault("fetch_timeout", "8s")
	v.SetDefault("max_asset_bytes", 8<<20)
	v.SetDefault("user_agent", "pfpapp/1.0")

	v.SetDefault("cache_max_age", "1h")
	v.SetDefault("default_frame_delay", "80ms")
}

// Load reads config/config.<CONFIG_ENV>.yaml when present and lets PFP_*
// environment variables override any key. PORT is honored for hosting
// platforms that inject it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("PFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("port", "PFP_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind port env: %w", err)
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	if _, err := os.Stat(fileName); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		v.SetConfigFile(fileName)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.MaxAssetBytes <= 0 {
		return fmt.Errorf("max_asset_bytes must be positive, got %d", c.MaxAssetBytes)
	}
	if c.DefaultFrameDelay <= 0 {
		return fmt.Errorf("default_frame_delay must be positive, got %s", c.DefaultFrameDelay)
	}
	return nil
}
