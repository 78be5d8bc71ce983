// Package config loads and validates botworker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Channel      ChannelConfig      `mapstructure:"channel"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Participants ParticipantsConfig `mapstructure:"participants"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RedisConfig controls the Redis-backed message channel. With Enabled false
// the worker runs on the in-memory channel, which only makes sense when
// request handling lives in the same process.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ChannelConfig namespaces and shards the protocol's channel keys.
type ChannelConfig struct {
	Prefix  string `mapstructure:"prefix"`
	Charset string `mapstructure:"charset"`
}

// WorkerConfig governs the receive loop and session cache.
type WorkerConfig struct {
	PruneLimit            int `mapstructure:"prune_limit"`
	PopTimeoutSeconds     int `mapstructure:"pop_timeout_seconds"`
	PrepareTimeoutSeconds int `mapstructure:"prepare_timeout_seconds"`
	ConsumeTimeoutSeconds int `mapstructure:"consume_timeout_seconds"`
	PingTimeoutSeconds    int `mapstructure:"ping_timeout_seconds"`
}

// ParticipantsConfig selects and configures the participant store.
type ParticipantsConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig selects the optional page archive backend.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for the Pub/Sub completion notifier.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOTWORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("channel.prefix", "browser-bots")
	v.SetDefault("channel.charset", "0123456789abcdefghijklmnopqrstuvwxyz")
	v.SetDefault("worker.prune_limit", 50)
	v.SetDefault("worker.pop_timeout_seconds", 3)
	v.SetDefault("worker.prepare_timeout_seconds", 3)
	v.SetDefault("worker.consume_timeout_seconds", 1)
	v.SetDefault("worker.ping_timeout_seconds", 1)
	v.SetDefault("participants.provider", "memory")
	v.SetDefault("participants.table", "participants")
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set when redis is enabled")
	}
	if c.Channel.Prefix == "" {
		return fmt.Errorf("channel.prefix must be set")
	}
	if c.Channel.Charset == "" {
		return fmt.Errorf("channel.charset must be set")
	}
	if c.Worker.PruneLimit <= 0 {
		return fmt.Errorf("worker.prune_limit must be > 0")
	}
	if c.Worker.PopTimeoutSeconds <= 0 {
		return fmt.Errorf("worker.pop_timeout_seconds must be > 0")
	}
	switch c.Participants.Provider {
	case "memory":
	case "postgres":
		if c.Participants.DSN == "" {
			return fmt.Errorf("participants.dsn must be set when participants.provider is 'postgres'")
		}
	default:
		return fmt.Errorf("participants.provider must be 'memory' or 'postgres'")
	}
	switch c.Archive.Provider {
	case "", "none", "memory":
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set when archive.provider is 'local'")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is 'gcs'")
		}
	default:
		return fmt.Errorf("archive.provider must be one of none, memory, local, gcs")
	}
	return nil
}

// PopTimeout converts the receive-loop pop budget to a duration.
func (c Config) PopTimeout() time.Duration {
	return time.Duration(c.Worker.PopTimeoutSeconds) * time.Second
}

// PrepareTimeout converts the prepare response budget to a duration.
func (c Config) PrepareTimeout() time.Duration {
	return time.Duration(c.Worker.PrepareTimeoutSeconds) * time.Second
}

// ConsumeTimeout converts the consume response budget to a duration.
func (c Config) ConsumeTimeout() time.Duration {
	return time.Duration(c.Worker.ConsumeTimeoutSeconds) * time.Second
}

// PingTimeout converts the liveness probe budget to a duration.
func (c Config) PingTimeout() time.Duration {
	return time.Duration(c.Worker.PingTimeoutSeconds) * time.Second
}
