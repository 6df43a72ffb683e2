package main

import "github.com/kelseyhightower/envconfig"

type Config struct {
	Addr            string `envconfig:"RELAY_ADDR" default:":5007"`
	Path            string `envconfig:"RELAY_PATH" default:"/socket"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"INFO"`
	RestartInterval string `envconfig:"RESTART_INTERVAL" default:"200ms"`
	// RELAY_METRICS exposes Go runtime metrics on /metrics
	Metrics bool `envconfig:"RELAY_METRICS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
