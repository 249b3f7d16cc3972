package config

const (
	EnvPrefix = "HOMECHEF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:homechef.db?cache=shared&_busy_timeout=5000"
)

// Environment variable names referenced by validation errors and tests.
const (
	EnvAppEnv                 = "HOMECHEF_APP_ENV"
	EnvPort                   = "HOMECHEF_APP_PORT"
	EnvDBDSN                  = "HOMECHEF_DB_DSN"
	EnvDBDriver               = "HOMECHEF_DB_DRIVER"
	EnvDBHost                 = "HOMECHEF_DB_HOST"
	EnvDBUser                 = "HOMECHEF_DB_USER"
	EnvDBName                 = "HOMECHEF_DB_NAME"
	EnvStoreTimeout           = "HOMECHEF_STORE_TIMEOUT"
	EnvUseSQLite              = "HOMECHEF_USE_SQLITE"
	EnvRedisURL               = "HOMECHEF_REDIS_URL"
	EnvJWTSecret              = "HOMECHEF_JWT_SECRET"
	EnvJWTIssuer              = "HOMECHEF_JWT_ISSUER"
	EnvJWTExpMins             = "HOMECHEF_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "HOMECHEF_REFRESH_TOKEN_TTL_MINUTES"
	EnvPubSubOrdersTopic      = "HOMECHEF_PUBSUB_ORDERS_TOPIC"
)
