// Package config loads bridge settings from a YAML file, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"method-bridge/benchmark"
	"method-bridge/bridge"
	"method-bridge/codec"
	"method-bridge/loadbalance"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. METHODBRIDGE_LISTEN.
const EnvPrefix = "METHODBRIDGE_"

type Config struct {
	Channel  string         `yaml:"channel"`
	Codec    string         `yaml:"codec"`
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Client   ClientConfig   `yaml:"client"`
	Registry RegistryConfig `yaml:"registry"`
}

type ServerConfig struct {
	Listen        string        `yaml:"listen"`
	Advertise     string        `yaml:"advertise"`
	UnknownMethod string        `yaml:"unknown_method"` // "not_implemented" or "ignore"
	Timeout       time.Duration `yaml:"timeout"`
	RateLimit     float64       `yaml:"rate_limit"` // calls per second, 0 disables
	Burst         int           `yaml:"burst"`
	Weight        int           `yaml:"weight"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

type ClientConfig struct {
	Balancer   string        `yaml:"balancer"`
	PoolSize   int           `yaml:"pool_size"`
	Heartbeat  time.Duration `yaml:"heartbeat"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RegistryConfig selects etcd when Endpoints is non-empty; otherwise a static
// in-process registry is used.
type RegistryConfig struct {
	Endpoints []string `yaml:"endpoints"`
	TTL       int64    `yaml:"ttl"`
}

func Default() *Config {
	return &Config{
		Channel:  benchmark.ChannelName,
		Codec:    "json",
		LogLevel: "info",
		Server: ServerConfig{
			Listen:        "127.0.0.1:7370",
			UnknownMethod: "not_implemented",
			Timeout:       5 * time.Second,
			Burst:         100,
			Weight:        1,
			ShutdownGrace: 5 * time.Second,
		},
		Client: ClientConfig{
			Balancer:   "round_robin",
			PoolSize:   4,
			Heartbeat:  30 * time.Second,
			Retries:    2,
			RetryDelay: 50 * time.Millisecond,
			Timeout:    5 * time.Second,
		},
		Registry: RegistryConfig{TTL: 10},
	}
}

// Load reads path (skipped when empty), then .env files, then the
// environment. Missing .env files are not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("CHANNEL", &c.Channel)
	str("CODEC", &c.Codec)
	str("LOG_LEVEL", &c.LogLevel)
	str("LISTEN", &c.Server.Listen)
	str("ADVERTISE", &c.Server.Advertise)
	str("UNKNOWN_METHOD", &c.Server.UnknownMethod)
	dur("TIMEOUT", &c.Server.Timeout)
	num("BURST", &c.Server.Burst)
	num("WEIGHT", &c.Server.Weight)
	dur("SHUTDOWN_GRACE", &c.Server.ShutdownGrace)
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err))
		} else {
			c.Server.RateLimit = f
		}
	}
	str("BALANCER", &c.Client.Balancer)
	num("POOL_SIZE", &c.Client.PoolSize)
	dur("HEARTBEAT", &c.Client.Heartbeat)
	num("RETRIES", &c.Client.Retries)
	dur("RETRY_DELAY", &c.Client.RetryDelay)
	dur("CLIENT_TIMEOUT", &c.Client.Timeout)
	if v, ok := lookup(EnvPrefix + "REGISTRY_TTL"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREGISTRY_TTL: %w", EnvPrefix, err))
		} else {
			c.Registry.TTL = n
		}
	}
	if v, ok := lookup(EnvPrefix + "ETCD_ENDPOINTS"); ok {
		c.Registry.Endpoints = nil
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				c.Registry.Endpoints = append(c.Registry.Endpoints, ep)
			}
		}
	}

	return errors.Join(errs...)
}

// Validate checks every field that has a closed set of values or a range.
func (c *Config) Validate() error {
	var errs []error
	if c.Channel == "" {
		errs = append(errs, errors.New("channel must not be empty"))
	}
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		errs = append(errs, err)
	}
	if _, err := bridge.ParseUnknownMethodPolicy(c.Server.UnknownMethod); err != nil {
		errs = append(errs, err)
	}
	if _, err := loadbalance.New(c.Client.Balancer); err != nil {
		errs = append(errs, err)
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must be >= 0"))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, errors.New("server.burst must be >= 1 when rate limiting"))
	}
	if c.Client.PoolSize < 1 {
		errs = append(errs, errors.New("client.pool_size must be >= 1"))
	}
	if c.Client.Retries < 0 {
		errs = append(errs, errors.New("client.retries must be >= 0"))
	}
	if c.Registry.TTL < 1 {
		errs = append(errs, errors.New("registry.ttl must be >= 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// UnknownMethodPolicy returns the parsed server.unknown_method.
func (c *Config) UnknownMethodPolicy() bridge.UnknownMethodPolicy {
	p, _ := bridge.ParseUnknownMethodPolicy(c.Server.UnknownMethod)
	return p
}

// CodecType returns the parsed codec.
func (c *Config) CodecType() codec.CodecType {
	ct, _ := codec.ParseCodecType(c.Codec)
	return ct
}
