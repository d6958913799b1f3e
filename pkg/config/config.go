package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App       AppConfig
	Firestore FirestoreConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Stripe    StripeConfig
	PayPal    PayPalConfig
	Sendgrid  SendgridConfig
	PubSub    PubSubConfig
	Fees      FeesConfig
	Worker    WorkerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Fees.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FAIRWAVE_APP_ENV" required:"true"`
	Port         string `envconfig:"FAIRWAVE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FAIRWAVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FAIRWAVE_LOG_WARN_STACK" default:"false"`
	Currency     string `envconfig:"FAIRWAVE_SETTLEMENT_CURRENCY" default:"usd"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type FirestoreConfig struct {
	ProjectID       string        `envconfig:"FAIRWAVE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string        `envconfig:"FAIRWAVE_GCP_CREDENTIALS_JSON"`
	TokenTTL        time.Duration `envconfig:"FAIRWAVE_FIRESTORE_TOKEN_TTL" default:"50m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FAIRWAVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FAIRWAVE_REDIS_ADDR"`
	Password     string        `envconfig:"FAIRWAVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FAIRWAVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FAIRWAVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FAIRWAVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FAIRWAVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FAIRWAVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FAIRWAVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FAIRWAVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FAIRWAVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FAIRWAVE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"FAIRWAVE_STRIPE_API_KEY"`
	Secret string `envconfig:"FAIRWAVE_STRIPE_SECRET"`
	Env    string `envconfig:"FAIRWAVE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID    string        `envconfig:"FAIRWAVE_PAYPAL_CLIENT_ID"`
	Secret      string        `envconfig:"FAIRWAVE_PAYPAL_SECRET"`
	Env         string        `envconfig:"FAIRWAVE_PAYPAL_ENV" default:"sandbox"`
	HTTPTimeout time.Duration `envconfig:"FAIRWAVE_PAYPAL_HTTP_TIMEOUT" default:"30s"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SendgridConfig struct {
	APIKey           string `envconfig:"FAIRWAVE_SENDGRID_API_KEY"`
	DefaultFrom      string `envconfig:"FAIRWAVE_SENDGRID_FROM_EMAIL" default:"orders@fairwave.fm"`
	FulfillmentEmail string `envconfig:"FAIRWAVE_FULFILLMENT_EMAIL" default:"fulfillment@fairwave.fm"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"FAIRWAVE_PUBSUB_SETTLEMENT_TOPIC" default:"fw-settlement-events"`
}

// FeesConfig carries the platform and processor fee rates. Rates are
// percentages (1 means 1%), fixed fees are settlement-currency amounts.
type FeesConfig struct {
	ArtistRatePercent    decimal.Decimal `envconfig:"FAIRWAVE_FEES_ARTIST_RATE" default:"1"`
	MerchRatePercent     decimal.Decimal `envconfig:"FAIRWAVE_FEES_MERCH_RATE" default:"5"`
	ProcessorRatePercent decimal.Decimal `envconfig:"FAIRWAVE_FEES_PROCESSOR_RATE" default:"2.9"`
	ProcessorFixed       decimal.Decimal `envconfig:"FAIRWAVE_FEES_PROCESSOR_FIXED" default:"0.3"`
	BatchPayoutPercent   decimal.Decimal `envconfig:"FAIRWAVE_FEES_BATCH_PAYOUT_RATE" default:"2"`
}

func (f FeesConfig) validate() error {
	for name, rate := range map[string]decimal.Decimal{
		"artist rate":       f.ArtistRatePercent,
		"merch rate":        f.MerchRatePercent,
		"processor rate":    f.ProcessorRatePercent,
		"batch payout rate": f.BatchPayoutPercent,
	} {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s must be between 0 and 100, got %s", name, rate)
		}
	}
	if f.ProcessorFixed.IsNegative() {
		return fmt.Errorf("processor fixed fee must not be negative, got %s", f.ProcessorFixed)
	}
	return nil
}

type WorkerConfig struct {
	RetryInterval  time.Duration `envconfig:"FAIRWAVE_WORKER_RETRY_INTERVAL" default:"5m"`
	RetryBatchSize int           `envconfig:"FAIRWAVE_WORKER_RETRY_BATCH_SIZE" default:"25"`
	MaxAttempts    int           `envconfig:"FAIRWAVE_WORKER_RETRY_MAX_ATTEMPTS" default:"5"`
}
