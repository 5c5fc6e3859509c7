package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "tindago"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Order        OrderConfig
	Reconcile    ReconcileConfig
	PayMongo     PayMongoConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Refunds      RefundsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TINDAGO_APP_ENV" required:"true"`
	Port         string `envconfig:"TINDAGO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TINDAGO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TINDAGO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TINDAGO_DB_DSN"`
	Driver string `envconfig:"TINDAGO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TINDAGO_DB_HOST"`
	LegacyPort     int    `envconfig:"TINDAGO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TINDAGO_DB_USER"`
	LegacyPassword string `envconfig:"TINDAGO_DB_PASSWORD"`
	LegacyName     string `envconfig:"TINDAGO_DB_NAME"`
	LegacySSLMode  string `envconfig:"TINDAGO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TINDAGO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TINDAGO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TINDAGO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TINDAGO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either TINDAGO_DB_DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.LegacyUser),
		url.QueryEscape(d.LegacyPassword),
		d.LegacyHost,
		d.LegacyPort,
		d.LegacyName,
		d.LegacySSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL      string `envconfig:"TINDAGO_REDIS_URL"`
	Address  string `envconfig:"TINDAGO_REDIS_ADDRESS"`
	Password string `envconfig:"TINDAGO_REDIS_PASSWORD"`
	DB       int    `envconfig:"TINDAGO_REDIS_DB" default:"0"`

	PoolSize     int           `envconfig:"TINDAGO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TINDAGO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TINDAGO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TINDAGO_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"TINDAGO_REDIS_WRITE_TIMEOUT" default:"3s"`

	WebhookIdempotencyTTL time.Duration `envconfig:"TINDAGO_REDIS_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type JWTConfig struct {
	Secret   string        `envconfig:"TINDAGO_JWT_SECRET" required:"true"`
	Issuer   string        `envconfig:"TINDAGO_JWT_ISSUER" default:"tindago"`
	TokenTTL time.Duration `envconfig:"TINDAGO_JWT_TOKEN_TTL" default:"24h"`
}

// OrderConfig carries the order-creation and cancellation tunables.
type OrderConfig struct {
	MinPickupMinutes    int   `envconfig:"TINDAGO_ORDER_MIN_PICKUP_MINUTES" default:"30"`
	MaxPickupHours      int   `envconfig:"TINDAGO_ORDER_MAX_PICKUP_HOURS" default:"72"`
	CancelGracePeriodMS int64 `envconfig:"TINDAGO_ORDER_CANCEL_GRACE_PERIOD_MS" default:"300000"`
	ArrivalCodeAttempts int   `envconfig:"TINDAGO_ORDER_ARRIVAL_CODE_ATTEMPTS" default:"5"`
}

// MinPickupLead returns the minimum lead time as a duration.
func (o OrderConfig) MinPickupLead() time.Duration {
	return time.Duration(o.MinPickupMinutes) * time.Minute
}

// MaxPickupLead returns the maximum lead time as a duration.
func (o OrderConfig) MaxPickupLead() time.Duration {
	return time.Duration(o.MaxPickupHours) * time.Hour
}

// CancelGracePeriod returns the post-creation cancellation window.
func (o OrderConfig) CancelGracePeriod() time.Duration {
	return time.Duration(o.CancelGracePeriodMS) * time.Millisecond
}

// ReconcileConfig bounds the payment reconciliation race.
type ReconcileConfig struct {
	PollInterval time.Duration `envconfig:"TINDAGO_RECONCILE_POLL_INTERVAL" default:"2s"`
	PollAttempts int           `envconfig:"TINDAGO_RECONCILE_POLL_ATTEMPTS" default:"30"`
}

type PayMongoConfig struct {
	SecretKey     string `envconfig:"TINDAGO_PAYMONGO_SECRET_KEY"`
	WebhookSecret string `envconfig:"TINDAGO_PAYMONGO_WEBHOOK_SECRET"`
	BaseURL       string `envconfig:"TINDAGO_PAYMONGO_BASE_URL" default:"https://api.paymongo.com/v1"`
	ReturnURL     string `envconfig:"TINDAGO_PAYMONGO_RETURN_URL" default:"tindago://payments/return"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TINDAGO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationsTopic string `envconfig:"TINDAGO_PUBSUB_NOTIFICATIONS_TOPIC" default:"notifications"`
}

type RefundsConfig struct {
	PollInterval time.Duration `envconfig:"TINDAGO_REFUNDS_POLL_INTERVAL" default:"30s"`
	MaxAttempts  int           `envconfig:"TINDAGO_REFUNDS_MAX_ATTEMPTS" default:"5"`
	BatchSize    int           `envconfig:"TINDAGO_REFUNDS_BATCH_SIZE" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TINDAGO_FEATURE_AUTO_MIGRATE" default:"false"`
}
