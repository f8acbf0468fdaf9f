package config

const EnvPrefix = "MARKETWATCH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "MARKETWATCH_APP_ENV"
	EnvPort      = "MARKETWATCH_APP_PORT"
	EnvUseSQLite = "MARKETWATCH_USE_SQLITE"

	EnvDBDSN  = "MARKETWATCH_DB_DSN"
	EnvDBHost = "MARKETWATCH_DB_HOST"
	EnvDBUser = "MARKETWATCH_DB_USER"
	EnvDBName = "MARKETWATCH_DB_NAME"

	EnvRedisURL  = "MARKETWATCH_REDIS_URL"
	EnvJWTSecret = "MARKETWATCH_JWT_SECRET"
	EnvJWTIssuer = "MARKETWATCH_JWT_ISSUER"

	EnvEditResetsStatus         = "MARKETWATCH_MODERATION_EDIT_RESETS_STATUS"
	EnvPricingTrendCacheTTL     = "MARKETWATCH_PRICING_TREND_CACHE_TTL"
	EnvPricingBasketMaxItems    = "MARKETWATCH_PRICING_BASKET_MAX_ITEMS"
	EnvPricingBasketConcurrency = "MARKETWATCH_PRICING_BASKET_CONCURRENCY"

	EnvPubSubDomainTopic = "MARKETWATCH_PUBSUB_DOMAIN_TOPIC"
	EnvGCPProjectID      = "MARKETWATCH_GCP_PROJECT_ID"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
