package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type BrokerConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	ClientID    string        `yaml:"client_id"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type DashboardConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type Config struct {
	Broker      BrokerConfig    `yaml:"broker"`
	TopicPrefix string          `yaml:"topic_prefix"`
	Stations    []string        `yaml:"stations"`
	ReceiverID  string          `yaml:"receiver_id"`
	Debounce    time.Duration   `yaml:"debounce"`
	Cooldown    time.Duration   `yaml:"cooldown"`
	Tick        time.Duration   `yaml:"tick"`
	Codec       string          `yaml:"codec"`
	HTTPPort    int             `yaml:"http_port"`
	BoardFile   string          `yaml:"board_file"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
	Influx      InfluxConfig    `yaml:"influx"`
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

// loadConfig reads the environment, then overlays the YAML file named by
// WAITRESS_CONFIG when set.
func loadConfig() (Config, error) {
	cfg := Config{
		Broker: BrokerConfig{
			Host:        envStr("MQTT_HOST", "localhost"),
			Port:        envInt("MQTT_PORT", 1883),
			User:        os.Getenv("MQTT_USER"),
			Password:    os.Getenv("MQTT_PASSWORD"),
			ClientID:    envStr("MQTT_CLIENT_ID", "ESP32_Receiver"),
			RetryDelay:  envDuration("MQTT_RETRY_DELAY", 5*time.Second),
			MaxAttempts: envInt("MQTT_MAX_ATTEMPTS", 5),
		},
		TopicPrefix: envStr("TOPIC_PREFIX", "waitress"),
		Stations:    splitCSV(envStr("STATION_IDS", "ESP32_Sender1,ESP32_Sender2,ESP32_Sender3")),
		ReceiverID:  envStr("RECEIVER_ID", "ESP32_Receiver"),
		Debounce:    envDuration("DEBOUNCE", time.Second),
		Cooldown:    envDuration("RESET_COOLDOWN", time.Second),
		Tick:        envDuration("TICK", 50*time.Millisecond),
		Codec:       envStr("CODEC", "json"),
		HTTPPort:    envInt("HTTP_PORT", 8080),
		BoardFile:   os.Getenv("BOARD_FILE"),
		Dashboard: DashboardConfig{
			URL:   os.Getenv("DASHBOARD_URL"),
			Token: os.Getenv("DASHBOARD_TOKEN"),
		},
		Influx: InfluxConfig{
			URL:    os.Getenv("INFLUX_URL"),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    envStr("INFLUX_ORG", "waitress"),
			Bucket: envStr("INFLUX_BUCKET", "stations"),
		},
	}

	if path := os.Getenv("WAITRESS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if cfg.ReceiverID == "" {
		return cfg, fmt.Errorf("receiver id required")
	}
	return cfg, nil
}
