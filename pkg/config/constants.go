package config

// EnvPrefix is empty because every field carries its fully qualified ETHER_ name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                = "ETHER_APP_ENV"
	EnvPort                  = "ETHER_APP_PORT"
	EnvDBDSN                 = "ETHER_DB_DSN"
	EnvDBHost                = "ETHER_DB_HOST"
	EnvDBUser                = "ETHER_DB_USER"
	EnvDBName                = "ETHER_DB_NAME"
	EnvUseSQLite             = "ETHER_USE_SQLITE"
	EnvRedisURL              = "ETHER_REDIS_URL"
	EnvJWTSecret             = "ETHER_JWT_SECRET"
	EnvJWTIssuer             = "ETHER_JWT_ISSUER"
	EnvCommissionPlatformBPS = "ETHER_COMMISSION_PLATFORM_BPS"
	EnvCheckoutTimeout       = "ETHER_CHECKOUT_PROCESSING_TIMEOUT"
	EnvStripeAPIKey          = "ETHER_STRIPE_API_KEY"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
