package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	CronToken string `yaml:"cron_token"`
}

type FetcherConfig struct {
	ConnectTimeoutSec  int   `yaml:"connect_timeout_sec"`
	ResponseTimeoutSec int   `yaml:"response_timeout_sec"`
	MaxRetries         int   `yaml:"max_retries"`
	RateLimitPerWindow int   `yaml:"rate_limit"`
	RateWindowSec      int   `yaml:"rate_window_sec"`
	MaxBodyBytes       int64 `yaml:"max_body_bytes"`
}

type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Postgres PostgresConfig `yaml:"postgres"`
}

func LoadConfig(filename string) (*AppConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return config, nil
}

// DefaultConfig builds a configuration from environment variables only,
// used when no yaml file is supplied.
func DefaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server: ServerConfig{
			Addr:      getEnv("SERVER_ADDR", ":8080"),
			CronToken: getEnv("CRON_TOKEN", ""),
		},
		Postgres: *GetConfig(),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Fetcher.ConnectTimeoutSec == 0 {
		c.Fetcher.ConnectTimeoutSec = 5
	}
	if c.Fetcher.ResponseTimeoutSec == 0 {
		c.Fetcher.ResponseTimeoutSec = 25
	}
	if c.Fetcher.MaxRetries == 0 {
		c.Fetcher.MaxRetries = 2
	}
	if c.Fetcher.RateLimitPerWindow == 0 {
		c.Fetcher.RateLimitPerWindow = 6
	}
	if c.Fetcher.RateWindowSec == 0 {
		c.Fetcher.RateWindowSec = 2
	}
	if c.Fetcher.MaxBodyBytes == 0 {
		c.Fetcher.MaxBodyBytes = 64 << 20
	}
	if c.Postgres.Host == "" {
		c.Postgres = *GetConfig()
	}
}
