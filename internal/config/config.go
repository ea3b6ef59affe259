package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	Match      Match  `yaml:"match"`
	NATS       NATS   `yaml:"nats"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Match struct {
	GridSize         int  `yaml:"grid-size" env-default:"3"`
	MaxGridSize      int  `yaml:"max-grid-size" env-default:"15"`
	WinBonus         int  `yaml:"win-bonus" env-default:"5"`
	LegacyDrawResult bool `yaml:"legacy-draw-result" env-default:"false"`
	RejectFeedback   bool `yaml:"reject-feedback" env-default:"false"`

	// HistoryTTL - how long finished match results are kept, 0 keeps them forever.
	HistoryTTL time.Duration `yaml:"history-ttl" env-default:"168h"`
}

// NATS - an empty URL disables result publishing.
type NATS struct {
	URL     string `yaml:"url" env:"NATS_URL" env-default:""`
	Subject string `yaml:"subject" env-default:"tictactoe.match.ended"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" || that.Port == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
