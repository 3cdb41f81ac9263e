package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Session      SessionConfig
	Review       ReviewConfig
	Checkout     CheckoutConfig
	Commission   CommissionConfig
	Stripe       StripeConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ETHER_APP_ENV" required:"true"`
	Port         string `envconfig:"ETHER_APP_PORT" default:"8080"`
	MetricsPort  string `envconfig:"ETHER_METRICS_PORT" default:"9091"`
	LogLevel     string `envconfig:"ETHER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ETHER_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"ETHER_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"ETHER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ETHER_DB_DSN"`
	Driver string `envconfig:"ETHER_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"ETHER_DB_HOST"`
	Port     int    `envconfig:"ETHER_DB_PORT" default:"5432"`
	User     string `envconfig:"ETHER_DB_USER"`
	Password string `envconfig:"ETHER_DB_PASSWORD"`
	Name     string `envconfig:"ETHER_DB_NAME"`
	SSLMode  string `envconfig:"ETHER_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"ETHER_SQLITE_PATH" default:"ether.db"`

	MaxOpenConns    int           `envconfig:"ETHER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ETHER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ETHER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ETHER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ETHER_REDIS_URL"`
	Address      string        `envconfig:"ETHER_REDIS_ADDR"`
	Password     string        `envconfig:"ETHER_REDIS_PASSWORD"`
	DB           int           `envconfig:"ETHER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ETHER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ETHER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ETHER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ETHER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ETHER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens issued by the external auth provider.
type JWTConfig struct {
	Secret            string `envconfig:"ETHER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ETHER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ETHER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ETHER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ETHER_AUTO_MIGRATE" default:"false"`
}

type SessionConfig struct {
	TTL time.Duration `envconfig:"ETHER_SESSION_TTL" default:"720h"`
}

type ReviewConfig struct {
	SwipeThreshold float64 `envconfig:"ETHER_REVIEW_SWIPE_THRESHOLD" default:"100"`
}

type CheckoutConfig struct {
	ProcessingTimeout time.Duration `envconfig:"ETHER_CHECKOUT_PROCESSING_TIMEOUT" default:"30s"`
	SimulatedDelay    time.Duration `envconfig:"ETHER_CHECKOUT_SIMULATED_DELAY" default:"3s"`
	Currency          string        `envconfig:"ETHER_CHECKOUT_CURRENCY" default:"usd"`
}

// CommissionConfig holds the platform share of each sale in basis points.
type CommissionConfig struct {
	PlatformBPS int `envconfig:"ETHER_COMMISSION_PLATFORM_BPS" default:"2000"`
}

func (c CommissionConfig) validate() error {
	if c.PlatformBPS < 0 || c.PlatformBPS > 10000 {
		return fmt.Errorf("%s must be between 0 and 10000", EnvCommissionPlatformBPS)
	}
	return nil
}

type StripeConfig struct {
	APIKey string `envconfig:"ETHER_STRIPE_API_KEY"`
	Env    string `envconfig:"ETHER_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether a Stripe key has been configured.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"ETHER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ETHER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ETHER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ETHER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ReviewTopic           string `envconfig:"ETHER_PUBSUB_REVIEW_TOPIC" default:"ether-review-events"`
	OrdersTopic           string `envconfig:"ETHER_PUBSUB_ORDERS_TOPIC" default:"ether-order-events"`
	AnalyticsSubscription string `envconfig:"ETHER_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"ether-analytics"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"ETHER_BIGQUERY_DATASET" default:"ether"`
	MarketplaceEventsTable string `envconfig:"ETHER_BIGQUERY_MARKETPLACE_TABLE" default:"marketplace_events"`
	CreateTables           bool   `envconfig:"ETHER_BIGQUERY_CREATE_TABLES" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ETHER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ETHER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ETHER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
