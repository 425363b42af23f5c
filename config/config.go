// Package config loads the cart engine settings: defaults, then an optional
// YAML file named by CART_CONFIG, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the cart engine configuration.
type Config struct {
	ServiceName string `yaml:"service_name"`
	Port        string `yaml:"port"`
	GRPCPort    string `yaml:"grpc_port"`
	LogLevel    string `yaml:"log_level"`

	Redis     Redis     `yaml:"redis"`
	Inventory Inventory `yaml:"inventory"`
	Telemetry Telemetry `yaml:"telemetry"`

	NotificationFeedSize int `yaml:"notification_feed_size"`
}

// Redis selects the durable store. An empty Addr means the in-memory store.
type Redis struct {
	Addr         string `yaml:"addr"`
	Namespace    string `yaml:"namespace"`
	InitAttempts int    `yaml:"init_attempts"`
}

// Inventory locates the stock and product API.
type Inventory struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// Telemetry configures OpenTelemetry exporters.
type Telemetry struct {
	Endpoint        string `yaml:"endpoint"`
	TracesExporter  string `yaml:"traces_exporter"`
	MetricsExporter string `yaml:"metrics_exporter"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ServiceName: "cartengine",
		Port:        "8080",
		GRPCPort:    "7070",
		LogLevel:    "info",
		Redis: Redis{
			Namespace:    "rocketshoes",
			InitAttempts: 30,
		},
		Inventory: Inventory{
			Addr:    "http://localhost:3333",
			Timeout: 5 * time.Second,
		},
		Telemetry: Telemetry{
			Endpoint:        "localhost:4317",
			TracesExporter:  "otlp",
			MetricsExporter: "otlp",
		},
		NotificationFeedSize: 50,
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path, ok := lookup("CART_CONFIG"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SERVICE_NAME", &cfg.ServiceName)
	str("PORT", &cfg.Port)
	str("GRPC_PORT", &cfg.GRPCPort)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_NAMESPACE", &cfg.Redis.Namespace)
	str("INVENTORY_API_ADDR", &cfg.Inventory.Addr)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.Endpoint)
	str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TracesExporter)
	str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.MetricsExporter)

	if err := intVar(lookup, "REDIS_INIT_ATTEMPTS", &cfg.Redis.InitAttempts); err != nil {
		return Config{}, err
	}
	if err := intVar(lookup, "NOTIFICATION_FEED_SIZE", &cfg.NotificationFeedSize); err != nil {
		return Config{}, err
	}
	if v, ok := lookup("INVENTORY_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("INVENTORY_TIMEOUT: %w", err)
		}
		cfg.Inventory.Timeout = d
	}

	// Add the default port only when none is given, as REDIS_ADDR is often a
	// bare service name.
	if addr := cfg.Redis.Addr; addr != "" && !strings.Contains(addr, "://") && !strings.Contains(addr, ":") {
		cfg.Redis.Addr = addr + ":6379"
	}

	return cfg, cfg.validate()
}

func intVar(lookup func(string) (string, bool), key string, dst *int) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func (c Config) validate() error {
	if c.Inventory.Addr == "" {
		return fmt.Errorf("inventory address is required")
	}
	if c.Inventory.Timeout < 0 {
		return fmt.Errorf("inventory timeout must not be negative")
	}
	for _, exp := range []struct{ name, value string }{
		{"traces exporter", c.Telemetry.TracesExporter},
		{"metrics exporter", c.Telemetry.MetricsExporter},
	} {
		switch exp.value {
		case "otlp", "stdout", "none":
		default:
			return fmt.Errorf("unknown %s %q", exp.name, exp.value)
		}
	}
	if c.Telemetry.MetricsExporter == "stdout" {
		return fmt.Errorf("metrics exporter \"stdout\" is not supported")
	}
	return nil
}
