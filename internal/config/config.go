package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Server configures the quote HTTP server.
type Server struct {
	Port string `yaml:"port"`
}

// HTTPSource configures the generic HTTP quote source.
type HTTPSource struct {
	Endpoint          string `yaml:"endpoint"`
	Path              string `yaml:"path"`
	SymbolParam       string `yaml:"symbol_param"`
	APIKey            string `yaml:"api_key"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

// Fetch configures per-call client behavior.
type Fetch struct {
	MaxRetries          int  `yaml:"max_retries"`
	BackoffBaseMs       int  `yaml:"backoff_base_ms"`
	MaxBackoffSec       int  `yaml:"max_backoff_sec"`
	FailFastOnRateLimit bool `yaml:"fail_fast_on_rate_limit"`
	RateLimitWaitSec    int  `yaml:"rate_limit_wait_sec"`
}

// Throttle configures client-side request pacing.
type Throttle struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type Config struct {
	// Source selects the quote transport: http, hyperliquid, binance, bybit.
	Source   string     `yaml:"source"`
	Symbols  []string   `yaml:"symbols"`
	Server   Server     `yaml:"server"`
	HTTP     HTTPSource `yaml:"http"`
	Fetch    Fetch      `yaml:"fetch"`
	Throttle Throttle   `yaml:"throttle"`
	Coalesce bool       `yaml:"coalesce"`
}

func Default() Config {
	return Config{
		Source:  "binance",
		Symbols: []string{"BTCUSDT"},
		Server:  Server{Port: "8080"},
		HTTP: HTTPSource{
			Path:              "/price",
			SymbolParam:       "symbol",
			RequestTimeoutSec: 10,
		},
		Fetch: Fetch{
			MaxRetries:       3,
			BackoffBaseMs:    300,
			MaxBackoffSec:    60,
			RateLimitWaitSec: 60,
		},
		Throttle: Throttle{
			Enabled: false,
			RPS:     2,
			Burst:   2,
		},
	}
}

// Load reads YAML config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields
// for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, errors.Wrap(err, "read config")
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, errors.Wrap(err, "parse config")
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitCSV(v)
	}
	if v := os.Getenv("HTTP_ENDPOINT"); v != "" {
		cfg.HTTP.Endpoint = v
	}
	if v := os.Getenv("HTTP_PATH"); v != "" {
		cfg.HTTP.Path = v
	}
	if v := os.Getenv("HTTP_SYMBOL_PARAM"); v != "" {
		cfg.HTTP.SymbolParam = v
	}
	if v := os.Getenv("HTTP_API_KEY"); v != "" {
		cfg.HTTP.APIKey = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.HTTP.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Fetch.MaxRetries = x
		}
	}
	if v := os.Getenv("BACKOFF_BASE_MS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Fetch.BackoffBaseMs = x
		}
	}
	if v := os.Getenv("MAX_BACKOFF_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Fetch.MaxBackoffSec = x
		}
	}
	if v := os.Getenv("FAIL_FAST_ON_RATE_LIMIT"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Fetch.FailFastOnRateLimit = true
		case "0", "false", "no", "n":
			cfg.Fetch.FailFastOnRateLimit = false
		}
	}
	if v := os.Getenv("RATE_LIMIT_WAIT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Fetch.RateLimitWaitSec = x
		}
	}
	if v := os.Getenv("THROTTLE_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Throttle.Enabled = true
		case "0", "false", "no", "n":
			cfg.Throttle.Enabled = false
		}
	}
	if v := os.Getenv("THROTTLE_RPS"); v != "" {
		var x float64
		fmt.Sscanf(v, "%f", &x)
		if x > 0 {
			cfg.Throttle.RPS = x
		}
	}
	if v := os.Getenv("THROTTLE_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Throttle.Burst = x
		}
	}
	if v := os.Getenv("COALESCE"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Coalesce = true
		case "0", "false", "no", "n":
			cfg.Coalesce = false
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
