package internal

import (
	"strings"
	"time"
)

type Config struct {
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	HTTPAddr          string        `env:"HTTP_ADDR,default=:8080"`
	GRPCAddr          string        `env:"GRPC_ADDR,default=:9090"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	OrdersDSN         string        `env:"ORDERS_DSN,default=file:orders.db"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	BufferSize        int           `env:"BUFFER_SIZE,default=1024"`
	PushBufferSize    int           `env:"PUSH_BUFFER_SIZE,default=64"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,default=2s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=15s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS,default=*"`
	DebugEnabled      bool          `env:"DEBUG_ENABLED,default=false"`

	// AMQP is optional: without a URL, offer-accepted notifications are not consumed
	// and chat events are not republished.
	AMQPURL        string `env:"AMQP_URL"`
	AMQPExchange   string `env:"AMQP_EXCHANGE,default=order-chat.events"`
	AMQPOrderQueue string `env:"AMQP_ORDER_QUEUE,default=order-chat.offer-accepted"`

	OpenAIAPIKey          string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `env:"OPENAI_BASE_URL"`
	OpenAIModel           string        `env:"OPENAI_MODEL,default=gpt-4o-mini"`
	TranslationTargetLang string        `env:"TRANSLATION_TARGET_LANG,default=en"`
	TranslationTimeout    time.Duration `env:"TRANSLATION_TIMEOUT,default=3s"`

	OTLPEndpoint   string        `env:"OTLP_ENDPOINT"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=30s"`
}

// Origins splits ALLOWED_ORIGINS on commas, dropping blanks.
func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
