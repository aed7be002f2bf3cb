package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the static configuration for the telemetry backend, loaded
// from a yaml file and overlaid with environment variables, per spec.md
// §6.
type Config struct {
	Symbols []string `yaml:"symbols"`

	Exchange struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
	} `yaml:"exchange"`

	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"` // "json" or "console"
	} `yaml:"logging"`

	Server struct {
		Port           int      `yaml:"port"`
		Host           string   `yaml:"host"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Execution struct {
		MaxLeverage float64 `yaml:"max_leverage"`
	} `yaml:"execution"`

	Hub struct {
		LoggerQueueLimit         int `yaml:"logger_queue_limit"`
		LoggerDropHaltThreshold  int `yaml:"logger_drop_halt_threshold"`
	} `yaml:"hub"`

	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
}

// Load reads path as yaml then applies env var overrides named in
// spec.md §6 (PORT, HOST, ALLOWED_ORIGINS, MAX_LEVERAGE,
// LOGGER_QUEUE_LIMIT, LOGGER_DROP_HALT_THRESHOLD). Env wins over yaml,
// matching the teacher's single-source-of-truth loadConfig but extended
// with an overlay pass since the teacher's MVP config has no env layer.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("MAX_LEVERAGE"); v != "" {
		if lev, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Execution.MaxLeverage = lev
		}
	}
	if v := os.Getenv("LOGGER_QUEUE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Hub.LoggerQueueLimit = n
		}
	}
	if v := os.Getenv("LOGGER_DROP_HALT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Hub.LoggerDropHaltThreshold = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Hub.LoggerQueueLimit == 0 {
		cfg.Hub.LoggerQueueLimit = 64
	}
	if cfg.Hub.LoggerDropHaltThreshold == 0 {
		cfg.Hub.LoggerDropHaltThreshold = 1000
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "telemetry.db"
	}
	if cfg.Execution.MaxLeverage == 0 {
		cfg.Execution.MaxLeverage = 20
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}
}
