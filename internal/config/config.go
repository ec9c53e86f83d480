package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/ikimina/tontine-gateway/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every value the services read from the environment. Only
// this struct must be used to hold configuration values, no direct access
// to env, ini or any other config source should be made.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"tontine_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel []string `env:"LOG_LEVEL"`

	// Lanari Pay. Credentials ride on every request body, so they live
	// here and never in code.
	GatewayBaseURL         string        `env:"GATEWAY_BASE_URL" default:"https://www.lanari.rw/lanari_pay/api/payment"`
	GatewayAPIKey          string        `env:"GATEWAY_API_KEY" validation:"mustExists"`
	GatewayAPISecret       string        `env:"GATEWAY_API_SECRET" validation:"mustExists"`
	GatewayInitiateTimeout time.Duration `env:"GATEWAY_INITIATE_TIMEOUT" default:"60s"`
	GatewayStatusTimeout   time.Duration `env:"GATEWAY_STATUS_TIMEOUT" default:"30s"`

	PollerInitialDelay time.Duration `env:"POLLER_INITIAL_DELAY" default:"10s"`
	PollerInterval     time.Duration `env:"POLLER_INTERVAL" default:"30s"`
	PollerMaxAttempts  int           `env:"POLLER_MAX_ATTEMPTS" default:"10"`
	PollerTickInterval time.Duration `env:"POLLER_TICK_INTERVAL" default:"2s"`
	PollerBatchSize    int           `env:"POLLER_BATCH_SIZE" default:"50"`
	PollerWorkers      int           `env:"POLLER_WORKERS" default:"8"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
