package config

const (
	EnvPrefix = "FULFILLMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "FULFILLMENT_APP_ENV"
	EnvPort        = "FULFILLMENT_APP_PORT"
	EnvLogLevel    = "FULFILLMENT_LOG_LEVEL"
	EnvDBDSN       = "FULFILLMENT_DB_DSN"
	EnvDBHost      = "FULFILLMENT_DB_HOST"
	EnvDBUser      = "FULFILLMENT_DB_USER"
	EnvDBName      = "FULFILLMENT_DB_NAME"
	EnvDBPassword  = "FULFILLMENT_DB_PASSWORD"
	EnvUseSQLite   = "FULFILLMENT_USE_SQLITE"
	EnvRedisURL    = "FULFILLMENT_REDIS_URL"
	EnvJWTSecret   = "FULFILLMENT_JWT_SECRET"
	EnvJWTIssuer   = "FULFILLMENT_JWT_ISSUER"
	EnvJWTExpMins  = "FULFILLMENT_JWT_EXPIRATION_MINUTES"
	EnvClaimAuto   = "FULFILLMENT_CLAIM_AUTO_APPROVE"
	EnvDeliveryETA = "FULFILLMENT_DELIVERY_ETA"

	EnvCommissionDefaultRate = "FULFILLMENT_COMMISSION_DEFAULT_RATE"
)

var partsDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
