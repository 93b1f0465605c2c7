package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/tewereus/prime-property/pkg/logger"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every env-sourced value used by the listing core. Only this
// struct may be used to read configuration, no direct access to env or any
// other config source should be made elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"prime_property"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

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

	QueueName              string        `env:"QUEUE_NAME" default:"payments:callbacks"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`

	// Listing fee charged for publication, in the smallest currency unit.
	ListingFeeCents int64  `env:"LISTING_FEE_CENTS" default:"10000"`
	ListingCurrency string `env:"LISTING_CURRENCY" default:"ETB"`

	// A PENDING_PAYMENT property whose transaction is older than this and
	// still unresolved is swept to EXPIRED.
	PaymentExpiryTimeout time.Duration `env:"PAYMENT_EXPIRY_TIMEOUT" default:"30m"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" default:"1m"`

	ProviderSecret      string        `env:"PROVIDER_SECRET"`
	ProviderTelebirrUrl string        `env:"PROVIDER_TELEBIRR_URL"`
	ProviderCBEUrl      string        `env:"PROVIDER_CBE_URL"`
	ProviderCashUrl     string        `env:"PROVIDER_CASH_URL"`
	ProviderCallbackUrl string        `env:"PROVIDER_CALLBACK_URL"`
	ProviderReturnUrl   string        `env:"PROVIDER_RETURN_URL"`
	ProviderTimeout     time.Duration `env:"PROVIDER_TIMEOUT" default:"5s"`
	ProviderMaxRetries  int           `env:"PROVIDER_MAX_RETRIES" default:"2"`
	ProviderRetryDelay  time.Duration `env:"PROVIDER_RETRY_DELAY" default:"200ms"`
	ProviderMaxConns    int           `env:"PROVIDER_MAX_CONNS" default:"512"`
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
