package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"

	"github.com/pior/redis"
)

// fileConfig is the config file layout. YAML goes through JSON, hence the json tags.
type fileConfig struct {
	Host           string `toml:"host" json:"host"`
	Port           int    `toml:"port" json:"port"`
	Password       string `toml:"password" json:"password"`
	DB             int    `toml:"db" json:"db"`
	ConnectTimeout string `toml:"connect_timeout" json:"connect_timeout"`
	SendTimeout    string `toml:"send_timeout" json:"send_timeout"`
	ReceiveTimeout string `toml:"receive_timeout" json:"receive_timeout"`
	IdleTimeout    string `toml:"idle_timeout" json:"idle_timeout"`
	LegacyFlatten  bool   `toml:"legacy_flatten" json:"legacy_flatten"`
	StreamBuffer   int    `toml:"stream_buffer" json:"stream_buffer"`
	LogLevel       string `toml:"log_level" json:"log_level"`
}

// loadConfigFile applies the keys present in the file at path to cfg and level.
func loadConfigFile(path string, cfg *redis.Config, level *string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("load config: unknown keys %v", undecoded)
		}
		return raw.apply(func(key string) bool { return meta.IsDefined(key) }, cfg, level)

	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// keys missing from the file keep the current values
		raw := currentFileConfig(cfg, *level)
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return raw.apply(func(string) bool { return true }, cfg, level)

	default:
		return fmt.Errorf("load config: unsupported file type %q", filepath.Ext(path))
	}
}

func currentFileConfig(cfg *redis.Config, level string) fileConfig {
	return fileConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Password:       cfg.Password,
		DB:             cfg.DB,
		ConnectTimeout: cfg.ConnectTimeout.String(),
		SendTimeout:    cfg.SendTimeout.String(),
		ReceiveTimeout: cfg.ReceiveTimeout.String(),
		IdleTimeout:    cfg.IdleTimeout.String(),
		LegacyFlatten:  cfg.LegacyFlatten,
		StreamBuffer:   cfg.StreamBuffer,
		LogLevel:       level,
	}
}

func (raw fileConfig) apply(defined func(key string) bool, cfg *redis.Config, level *string) error {
	if defined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if defined("port") {
		cfg.Port = raw.Port
	}
	if defined("password") {
		cfg.Password = raw.Password
	}
	if defined("db") {
		cfg.DB = raw.DB
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"send_timeout", raw.SendTimeout, &cfg.SendTimeout},
		{"receive_timeout", raw.ReceiveTimeout, &cfg.ReceiveTimeout},
		{"idle_timeout", raw.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if !defined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if defined("legacy_flatten") {
		cfg.LegacyFlatten = raw.LegacyFlatten
	}
	if defined("stream_buffer") {
		cfg.StreamBuffer = raw.StreamBuffer
	}
	if defined("log_level") {
		*level = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}
