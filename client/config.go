package client

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIURL             string        `envconfig:"CHAT_API_URL" default:"http://localhost:8080"`
	FeedAddr           string        `envconfig:"CHAT_FEED_ADDR" default:"localhost:9090"`
	Token              string        `envconfig:"CHAT_TOKEN" required:"true"`
	UserID             string        `envconfig:"CHAT_USER_ID" required:"true"`
	RequestTimeout     time.Duration `envconfig:"CHAT_REQUEST_TIMEOUT" default:"10s"`
	TypingTTL          time.Duration `envconfig:"CHAT_TYPING_TTL" default:"5s"`
	ReconnectMin       time.Duration `envconfig:"CHAT_RECONNECT_MIN" default:"250ms"`
	ReconnectMax       time.Duration `envconfig:"CHAT_RECONNECT_MAX" default:"10s"`
	NotificationBuffer int           `envconfig:"CHAT_NOTIFICATION_BUFFER" default:"256"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"INFO"`
	Colours            bool          `envconfig:"CHAT_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func (c Config) Engine() EngineConfig {
	return EngineConfig{
		TypingTTL:          c.TypingTTL,
		ReconnectMin:       c.ReconnectMin,
		ReconnectMax:       c.ReconnectMax,
		NotificationBuffer: c.NotificationBuffer,
	}
}
