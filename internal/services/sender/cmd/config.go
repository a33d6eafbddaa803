package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ID          string        `yaml:"id"`
	BrokerHost  string        `yaml:"broker_host"`
	BrokerPort  int           `yaml:"broker_port"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Authorized  []string      `yaml:"authorized"`
	ResetWindow time.Duration `yaml:"reset_window"`
	Tick        time.Duration `yaml:"tick"`
	Codec       string        `yaml:"codec"`

	// Input is "stdin" or "random".
	Input     string        `yaml:"input"`
	PressRate float64       `yaml:"press_rate"`
	Seed      int64         `yaml:"seed"`
	DeadTime  time.Duration `yaml:"dead_time"`
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		ID:          envStr("SENDER_ID", "ESP32_Sender1"),
		BrokerHost:  envStr("MQTT_HOST", "localhost"),
		BrokerPort:  envInt("MQTT_PORT", 1883),
		User:        os.Getenv("MQTT_USER"),
		Password:    os.Getenv("MQTT_PASSWORD"),
		RetryDelay:  envDuration("MQTT_RETRY_DELAY", 5*time.Second),
		MaxAttempts: envInt("MQTT_MAX_ATTEMPTS", 5),
		TopicPrefix: envStr("TOPIC_PREFIX", "waitress"),
		Authorized:  splitCSV(envStr("AUTHORIZED_ORIGINS", "ESP32_Receiver,NodeRED")),
		ResetWindow: envDuration("RESET_WINDOW", time.Second),
		Tick:        envDuration("TICK", 50*time.Millisecond),
		Codec:       envStr("CODEC", "json"),
		Input:       envStr("INPUT", "stdin"),
		PressRate:   0.01,
		Seed:        time.Now().UnixNano(),
		DeadTime:    envDuration("DEAD_TIME", 200*time.Millisecond),
	}
}

// loadConfig layers env defaults, the YAML file named by WAITRESS_CONFIG (or
// --config) and finally explicit flags.
func loadConfig(args []string) (Config, error) {
	cfg := defaultConfig()

	fs := pflag.NewFlagSet("sender", pflag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("WAITRESS_CONFIG"), "YAML config file")
	id := fs.String("id", cfg.ID, "station identity")
	host := fs.String("broker", cfg.BrokerHost, "MQTT broker host")
	port := fs.Int("port", cfg.BrokerPort, "MQTT broker port")
	prefix := fs.String("prefix", cfg.TopicPrefix, "topic prefix")
	authorized := fs.StringSlice("authorized", cfg.Authorized, "origins allowed to reset this station")
	codecName := fs.String("codec", cfg.Codec, "wire format: json, msgpack or cbor")
	tick := fs.Duration("tick", cfg.Tick, "loop interval")
	input := fs.String("input", cfg.Input, "button source: stdin or random")
	rate := fs.Float64("rate", cfg.PressRate, "press probability per tick for random input")
	seed := fs.Int64("seed", cfg.Seed, "random input seed")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", *configPath, err)
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("id", func() { cfg.ID = *id })
	set("broker", func() { cfg.BrokerHost = *host })
	set("port", func() { cfg.BrokerPort = *port })
	set("prefix", func() { cfg.TopicPrefix = *prefix })
	set("authorized", func() { cfg.Authorized = *authorized })
	set("codec", func() { cfg.Codec = *codecName })
	set("tick", func() { cfg.Tick = *tick })
	set("input", func() { cfg.Input = *input })
	set("rate", func() { cfg.PressRate = *rate })
	set("seed", func() { cfg.Seed = *seed })

	switch {
	case cfg.ID == "":
		return cfg, fmt.Errorf("station id required")
	case cfg.Input != "stdin" && cfg.Input != "random":
		return cfg, fmt.Errorf("unknown input %q", cfg.Input)
	}
	return cfg, nil
}
