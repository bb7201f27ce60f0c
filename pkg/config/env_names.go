package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix only matters for ad-hoc lookups.
const EnvPrefix = "estatehub"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv   = "ESTATEHUB_APP_ENV"
	EnvPort     = "ESTATEHUB_APP_PORT"
	EnvDBDSN    = "ESTATEHUB_DB_DSN"
	EnvDBHost   = "ESTATEHUB_DB_HOST"
	EnvDBUser   = "ESTATEHUB_DB_USER"
	EnvDBName   = "ESTATEHUB_DB_NAME"
	EnvRedisURL = "ESTATEHUB_REDIS_URL"

	EnvJWTSecret              = "ESTATEHUB_JWT_SECRET"
	EnvJWTIssuer              = "ESTATEHUB_JWT_ISSUER"
	EnvJWTExpMins             = "ESTATEHUB_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "ESTATEHUB_REFRESH_TOKEN_TTL_MINUTES"

	EnvGCPProjectID    = "ESTATEHUB_GCP_PROJECT_ID"
	EnvPubSubDomainSub = "ESTATEHUB_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
