package config

import (
	"encoding/json"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config is the top-level configuration loaded from file and environment.
// Environment variables win over the file, the file wins over defaults.
type Config struct {
	// HTTPAddr is the listen address of the relay API.
	HTTPAddr string `json:"httpAddr" env:"COURIER_HTTP_ADDR"`

	// DataDir holds the Pebble store. Empty means the OS default location.
	DataDir string `json:"dataDir" env:"COURIER_DATA_DIR"`

	// Fsync is one of "always", "interval", "never".
	Fsync string `json:"fsync" env:"COURIER_FSYNC"`

	LogLevel  string `json:"logLevel" env:"COURIER_LOG_LEVEL"`
	LogFormat string `json:"logFormat" env:"COURIER_LOG_FORMAT"`

	// PayloadMaxBytes caps enqueued payloads. Zero means no cap.
	PayloadMaxBytes int `json:"payloadMaxBytes" env:"COURIER_PAYLOAD_MAX_BYTES"`

	Worker WorkerConfig `json:"worker"`
}

// WorkerConfig tunes the dequeuer and reporter loops.
type WorkerConfig struct {
	// PollInterval is how long a worker sleeps after an empty claim, in
	// milliseconds.
	PollIntervalMs int `json:"pollIntervalMs" env:"COURIER_WORKER_POLL_INTERVAL_MS"`
	// DialTimeoutMs bounds the socket dial to a destination device.
	DialTimeoutMs int `json:"dialTimeoutMs" env:"COURIER_WORKER_DIAL_TIMEOUT_MS"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		Fsync:           "always",
		LogLevel:        "info",
		LogFormat:       "text",
		PayloadMaxBytes: 1 << 20,
		Worker: WorkerConfig{
			PollIntervalMs: 1000,
			DialTimeoutMs:  5000,
		},
	}
}

// Load reads configuration from a JSON file, then overlays COURIER_*
// environment variables. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
