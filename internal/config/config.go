package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr     string         `mapstructure:"addr" yaml:"addr"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch"`
	Stream   StreamConfig   `mapstructure:"stream" yaml:"stream"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
}

type CacheConfig struct {
	Dir string        `mapstructure:"dir" yaml:"dir"`
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type ResolverConfig struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Quality     string        `mapstructure:"quality" yaml:"quality"`
	Codec       string        `mapstructure:"codec" yaml:"codec"`
	AudioFormat string        `mapstructure:"audio_format" yaml:"audio_format"`
	Attempts    int           `mapstructure:"attempts" yaml:"attempts"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
}

type FetchConfig struct {
	// Timeout caps one whole transfer attempt. 0 disables the cap and leaves
	// only the transport's connection timeouts in effect.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type StreamConfig struct {
	PrebufferBytes   int64         `mapstructure:"prebuffer_bytes" yaml:"prebuffer_bytes"`
	PrebufferTimeout time.Duration `mapstructure:"prebuffer_timeout" yaml:"prebuffer_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Path  string `mapstructure:"path" yaml:"path"`
}

type HistoryConfig struct {
	// Backend selects the fetch-history store: "memory" or "postgres".
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// Load reads YAML config from path (optional) with VODCACHE_* env overrides.
// Env keys use underscores for nesting, e.g. VODCACHE_RESOLVER_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VODCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("cache.dir", "/var/cache/vodcache")
	v.SetDefault("cache.ttl", "3h")
	// Empty defaults register the keys so AutomaticEnv can fill them.
	v.SetDefault("resolver.host", "")
	v.SetDefault("resolver.api_key", "")
	v.SetDefault("resolver.quality", "1080")
	v.SetDefault("resolver.codec", "h264")
	v.SetDefault("resolver.audio_format", "best")
	v.SetDefault("resolver.attempts", 15)
	v.SetDefault("resolver.delay", "1s")
	v.SetDefault("fetch.timeout", "0")
	v.SetDefault("stream.prebuffer_bytes", 30<<20)
	v.SetDefault("stream.prebuffer_timeout", "30s")
	v.SetDefault("stream.poll_interval", "200ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("history.backend", "memory")
}

// Validate checks settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Resolver.Host == "" {
		return errors.New("resolver.host is required")
	}
	if c.Resolver.APIKey == "" {
		return errors.New("resolver.api_key is required")
	}
	if c.Cache.Dir == "" {
		return errors.New("cache.dir is required")
	}
	if c.Resolver.Attempts < 1 {
		return errors.New("resolver.attempts must be at least 1")
	}
	switch c.History.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("history.backend must be memory or postgres, got %q", c.History.Backend)
	}
	return nil
}
