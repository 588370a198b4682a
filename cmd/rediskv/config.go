package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	rediskv "github.com/raniellyferreira/redis-inmemory-kv"
	"github.com/raniellyferreira/redis-inmemory-kv/lua"
)

// serveConfig is the daemon configuration. A config file provides the base
// values; flags set on the command line override them.
type serveConfig struct {
	Addr            string        `koanf:"addr"`
	HTTPAddr        string        `koanf:"http_addr"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	Password        string        `koanf:"password"`
	Shards          int           `koanf:"shards"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	ScriptCacheSize int           `koanf:"script_cache_size"`
	Log             logConfig     `koanf:"log"`
}

// logConfig selects the log level, format and destination.
// An empty File logs to stderr.
type logConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Addr:            ":6379",
		Shards:          64,
		ShutdownTimeout: 5 * time.Second,
		ScriptCacheSize: lua.DefaultScriptCacheSize,
		Log: logConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// loadConfig reads a YAML or JSON file over the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (serveConfig, error) {
	cfg := defaultServeConfig()
	if path == "" {
		return cfg, nil
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return cfg, &usageError{err: fmt.Errorf("config %s: unsupported format, use .yaml, .yml or .json", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &usageError{err: fmt.Errorf("read config: %w", err)}
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return cfg, &usageError{err: fmt.Errorf("parse config %s: %w", path, err)}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, &usageError{err: fmt.Errorf("decode config %s: %w", path, err)}
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags set explicitly on cmd
func applyFlags(cfg *serveConfig, cmd *cli.Command) {
	if cmd.IsSet("addr") {
		cfg.Addr = cmd.String("addr")
	}
	if cmd.IsSet("http-addr") {
		cfg.HTTPAddr = cmd.String("http-addr")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.MetricsAddr = cmd.String("metrics-addr")
	}
	if cmd.IsSet("password") {
		cfg.Password = cmd.String("password")
	}
	if cmd.IsSet("shards") {
		cfg.Shards = int(cmd.Int("shards"))
	}
	if cmd.IsSet("read-timeout") {
		cfg.ReadTimeout = cmd.Duration("read-timeout")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		cfg.Log.File = cmd.String("log-file")
	}
}

// nodeOptions translates the configuration into node options
func (c serveConfig) nodeOptions() []rediskv.Option {
	return []rediskv.Option{
		rediskv.WithAddr(c.Addr),
		rediskv.WithHTTPAddr(c.HTTPAddr),
		rediskv.WithPassword(c.Password),
		rediskv.WithShardCount(c.Shards),
		rediskv.WithReadTimeout(c.ReadTimeout),
		rediskv.WithShutdownTimeout(c.ShutdownTimeout),
		rediskv.WithScriptCacheSize(c.ScriptCacheSize),
	}
}
