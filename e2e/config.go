package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_URL targets a running relay; empty starts one in-process
	RelayURL string `envconfig:"RELAY_URL"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_VOICE_DELAY shortens the simulated voice handshake
	VoiceDelay string `envconfig:"E2E_VOICE_DELAY" default:"50ms"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
