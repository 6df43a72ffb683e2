package main

import "time"

type Config struct {
	ServerURL         string        `env:"SERVER_URL,default=ws://localhost:5007/socket"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	SessionPath       string        `env:"SESSION_PATH"`
	TypingDebounce    time.Duration `env:"TYPING_DEBOUNCE,default=3s"`
	VoiceConnectDelay time.Duration `env:"VOICE_CONNECT_DELAY,default=2s"`
	QueueSize         int           `env:"QUEUE_SIZE,default=1024"`
	ReconcileEchoes   bool          `env:"RECONCILE_ECHOES,default=false"`
	EchoTTL           time.Duration `env:"ECHO_TTL,default=1m"`
	ReconnectInterval time.Duration `env:"RECONNECT_INTERVAL,default=2s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricsAddr       string        `env:"METRICS_ADDR"`
	Username          string        `env:"USERNAME"`
	Colours           bool          `env:"COLOURS,default=true"`
	EventBufferSize   int           `env:"EVENT_BUFFER_SIZE,default=256"`
	SampleInterval    time.Duration `env:"QUEUE_SAMPLE_INTERVAL,default=5s"`
}
