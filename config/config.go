// Package config loads querycache settings from YAML and QUERYCACHE_* environment
// variables and wires them into a ready-to-use Runtime (see Build).
//
// Example file:
//
//	cache:
//	  default_ttl: 5m
//	  max_size: 100
//	  cleanup_schedule: "@every 30s"
//	remote:
//	  kind: redis
//	  codec: msgpack
//	  redis:
//	    addr: localhost:6379
//	log:
//	  level: info
//	  format: json
//
// Every key can be overridden from the environment, e.g. QUERYCACHE_CACHE_MAX_SIZE=500.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
)

const EnvPrefix = "QUERYCACHE"

// Remote tier kinds.
const (
	RemoteNone      = "none"
	RemoteRedis     = "redis"
	RemoteBigCache  = "bigcache"
	RemoteRistretto = "ristretto"
)

type Config struct {
	Cache  CacheConfig  `mapstructure:"cache"`
	Remote RemoteConfig `mapstructure:"remote"`
	Log    LogConfig    `mapstructure:"log"`
}

type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	MaxSize         int           `mapstructure:"max_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// CleanupSchedule is a cron expression ("*/30 * * * * *", "@every 1m").
	// When set it replaces the interval-driven sweep loop.
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	CoalesceFetches bool   `mapstructure:"coalesce_fetches"`
}

type RemoteConfig struct {
	Kind      string          `mapstructure:"kind"`
	Codec     string          `mapstructure:"codec"`
	Redis     RedisConfig     `mapstructure:"redis"`
	BigCache  BigCacheConfig  `mapstructure:"bigcache"`
	Ristretto RistrettoConfig `mapstructure:"ristretto"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	GenKeyPrefix string        `mapstructure:"gen_key_prefix"`
	GenTTL       time.Duration `mapstructure:"gen_ttl"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `mapstructure:"life_window"`
	CleanWindow        time.Duration `mapstructure:"clean_window"`
	MaxEntriesInWindow int           `mapstructure:"max_entries_in_window"`
	MaxEntrySize       int           `mapstructure:"max_entry_size"`
	HardMaxCacheSizeMB int           `mapstructure:"hard_max_cache_size_mb"`
	Shards             int           `mapstructure:"shards"`
}

type RistrettoConfig struct {
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"`
	BufferItems int64 `mapstructure:"buffer_items"`
	SyncWrites  bool  `mapstructure:"sync_writes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.default_ttl", querycache.DefaultTTL)
	v.SetDefault("cache.max_size", querycache.DefaultMaxSize)
	v.SetDefault("cache.cleanup_interval", querycache.DefaultCleanupInterval)
	v.SetDefault("cache.cleanup_schedule", "")
	v.SetDefault("cache.coalesce_fetches", false)

	v.SetDefault("remote.kind", RemoteNone)
	v.SetDefault("remote.codec", "json")
	v.SetDefault("remote.redis.addr", "localhost:6379")
	v.SetDefault("remote.redis.password", "")
	v.SetDefault("remote.redis.db", 0)
	v.SetDefault("remote.redis.dial_timeout", 5*time.Second)
	v.SetDefault("remote.redis.gen_key_prefix", "gen:")
	v.SetDefault("remote.redis.gen_ttl", 24*time.Hour)
	v.SetDefault("remote.bigcache.life_window", 10*time.Minute)
	v.SetDefault("remote.bigcache.clean_window", 0)
	v.SetDefault("remote.bigcache.max_entries_in_window", 0)
	v.SetDefault("remote.bigcache.max_entry_size", 0)
	v.SetDefault("remote.bigcache.hard_max_cache_size_mb", 0)
	v.SetDefault("remote.bigcache.shards", 0)
	v.SetDefault("remote.ristretto.num_counters", 100_000)
	v.SetDefault("remote.ristretto.max_cost", 64<<20)
	v.SetDefault("remote.ristretto.buffer_items", 64)
	v.SetDefault("remote.ristretto.sync_writes", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path (any format viper understands) over the defaults, then applies
// QUERYCACHE_* environment overrides. With an empty path it looks for
// querycache.yaml in ./config and the working directory, and silently uses
// defaults when none exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("querycache")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// scheduleParser accepts 5- or 6-field specs and descriptors like "@every 30s".
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("cache.max_size must not be negative, got %d", c.Cache.MaxSize))
	}
	if c.Cache.DefaultTTL < 0 {
		errs = append(errs, fmt.Errorf("cache.default_ttl must not be negative, got %s", c.Cache.DefaultTTL))
	}
	if s := c.Cache.CleanupSchedule; s != "" {
		if _, err := scheduleParser.Parse(s); err != nil {
			errs = append(errs, fmt.Errorf("cache.cleanup_schedule %q: %w", s, err))
		}
	}

	switch c.Remote.Kind {
	case "", RemoteNone:
	case RemoteRedis:
		if c.Remote.Redis.Addr == "" {
			errs = append(errs, errors.New("remote.redis.addr is required"))
		}
	case RemoteBigCache:
	case RemoteRistretto:
		r := c.Remote.Ristretto
		if r.NumCounters <= 0 || r.MaxCost <= 0 || r.BufferItems <= 0 {
			errs = append(errs, errors.New("remote.ristretto: num_counters, max_cost and buffer_items must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.kind %q unknown (want none, redis, bigcache or ristretto)", c.Remote.Kind))
	}
	if _, err := codec.Named[any](c.Remote.Codec); err != nil {
		errs = append(errs, fmt.Errorf("remote.codec: %w", err))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q unknown (want text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
