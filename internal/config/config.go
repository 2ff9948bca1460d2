package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Env            string `mapstructure:"env"`
	Port           string `mapstructure:"port"`
	ShutdownSecond int    `mapstructure:"shutdown_seconds"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers     []string `mapstructure:"brokers"`
	EventsTopic string   `mapstructure:"events_topic"`
	GroupID     string   `mapstructure:"group_id"`
}

type NATSCfg struct {
	URL string `mapstructure:"url"`
}

type AWSCfg struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	PublicRead bool   `mapstructure:"public_read"`
	PresignTTL int    `mapstructure:"presign_ttl_seconds"`
}

type UploadCfg struct {
	MaxBytes     int64 `mapstructure:"max_bytes"`
	MaxDimension int   `mapstructure:"max_dimension"`
	Retries      int   `mapstructure:"retries"`
	BackoffMs    int   `mapstructure:"backoff_ms"`
	TimeoutSec   int   `mapstructure:"timeout_seconds"`
}

type PresenceCfg struct {
	WindowSeconds    int `mapstructure:"window_seconds"`
	TypingTTLSeconds int `mapstructure:"typing_ttl_seconds"`
}

type JWTCfg struct {
	SigningMethod string `mapstructure:"signing_method"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	Secret        string `mapstructure:"secret"`
}

type BusCfg struct {
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

type Config struct {
	App      AppCfg      `mapstructure:"app"`
	Mongo    MongoCfg    `mapstructure:"mongodb"`
	Redis    RedisCfg    `mapstructure:"redis"`
	Kafka    KafkaCfg    `mapstructure:"kafka"`
	NATS     NATSCfg     `mapstructure:"nats"`
	AWS      AWSCfg      `mapstructure:"aws"`
	Upload   UploadCfg   `mapstructure:"upload"`
	Presence PresenceCfg `mapstructure:"presence"`
	JWT      JWTCfg      `mapstructure:"jwt"`
	Bus      BusCfg      `mapstructure:"bus"`

	// Derived
	ShutdownTimeout time.Duration
	PresenceWindow  time.Duration
	TypingTTL       time.Duration
	UploadBackoff   time.Duration
	UploadTimeout   time.Duration
	PresignTTL      time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("CHAT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == "" {
		cfg.App.Port = "8084"
	}
	if cfg.App.ShutdownSecond == 0 {
		cfg.App.ShutdownSecond = 10
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "chat"
	}
	if cfg.Presence.WindowSeconds == 0 {
		cfg.Presence.WindowSeconds = 60
	}
	if cfg.Presence.TypingTTLSeconds == 0 {
		cfg.Presence.TypingTTLSeconds = 3
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 25 * 1024 * 1024
	}
	if cfg.Upload.MaxDimension == 0 {
		cfg.Upload.MaxDimension = 2048
	}
	if cfg.Upload.Retries == 0 {
		cfg.Upload.Retries = 3
	}
	if cfg.Upload.BackoffMs == 0 {
		cfg.Upload.BackoffMs = 250
	}
	if cfg.Upload.TimeoutSec == 0 {
		cfg.Upload.TimeoutSec = 30
	}
	if cfg.AWS.PresignTTL == 0 {
		cfg.AWS.PresignTTL = 600
	}
	if cfg.Bus.SubscriberBuffer == 0 {
		cfg.Bus.SubscriberBuffer = 64
	}
	if cfg.JWT.SigningMethod == "" {
		cfg.JWT.SigningMethod = "HS256"
	}

	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSecond) * time.Second
	cfg.PresenceWindow = time.Duration(cfg.Presence.WindowSeconds) * time.Second
	cfg.TypingTTL = time.Duration(cfg.Presence.TypingTTLSeconds) * time.Second
	cfg.UploadBackoff = time.Duration(cfg.Upload.BackoffMs) * time.Millisecond
	cfg.UploadTimeout = time.Duration(cfg.Upload.TimeoutSec) * time.Second
	cfg.PresignTTL = time.Duration(cfg.AWS.PresignTTL) * time.Second
}
