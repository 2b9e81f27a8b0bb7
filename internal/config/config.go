// Package config loads server settings. Later sources override earlier ones:
// built-in defaults, the YAML file, the .env file, the process environment,
// and finally command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/teamdesk/internal/realtime"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TEAMDESK_"

// Config holds the server settings.
type Config struct {
	DBPath          string        `yaml:"db"`
	Addr            string        `yaml:"addr"`
	LogPath         string        `yaml:"log"`
	AdminUser       string        `yaml:"admin_user"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisChannel    string        `yaml:"redis_channel"`
	Metrics         bool          `yaml:"metrics"`
	HistoryLimit    int           `yaml:"history_limit"`
	RecoveryTTL     time.Duration `yaml:"recovery_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:          "teamdesk.sqlite3",
		Addr:            ":8080",
		AdminUser:       "Admin",
		RedisChannel:    realtime.DefaultChannel,
		Metrics:         true,
		HistoryLimit:    250,
		RecoveryTTL:     time.Hour,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Options selects the sources Load reads.
type Options struct {
	// File is a YAML config file. Empty skips it.
	File string
	// DotEnv is a .env file. A missing file is not an error.
	DotEnv string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds a Config from defaults, the YAML file, the .env file and the
// environment, in that order.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := loadFile(opts.File, &cfg); err != nil {
			return Config{}, err
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if opts.DotEnv != "" {
		vars, err := godotenv.Read(opts.DotEnv)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", opts.DotEnv, err)
		}
		// Real environment variables win over .env entries.
		envLookup := lookup
		lookup = func(key string) (string, bool) {
			if v, ok := envLookup(key); ok {
				return v, true
			}
			v, ok := vars[key]
			return v, ok
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("DB", &cfg.DBPath)
	str("ADDR", &cfg.Addr)
	str("LOG", &cfg.LogPath)
	str("ADMIN_USER", &cfg.AdminUser)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	str("REDIS_CHANNEL", &cfg.RedisChannel)

	if v, ok := lookup(EnvPrefix + "METRICS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %sMETRICS: %w", EnvPrefix, err)
		}
		cfg.Metrics = b
	}
	if v, ok := lookup(EnvPrefix + "HISTORY_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %sHISTORY_LIMIT: %w", EnvPrefix, err)
		}
		cfg.HistoryLimit = n
	}

	durations := map[string]*time.Duration{
		"RECOVERY_TTL":     &cfg.RecoveryTTL,
		"SHUTDOWN_TIMEOUT": &cfg.ShutdownTimeout,
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parsing %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("database path must not be empty")
	case c.Addr == "":
		return errors.New("listen address must not be empty")
	case c.AdminUser == "":
		return errors.New("admin username must not be empty")
	case c.HistoryLimit <= 0:
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	case c.RecoveryTTL <= 0:
		return fmt.Errorf("recovery ttl must be positive, got %s", c.RecoveryTTL)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
