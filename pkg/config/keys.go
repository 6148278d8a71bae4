package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// qualified names so it stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names, kept in one place so tests and tooling
// reference the same strings.
const (
	EnvAppEnv   = "ULTRAMARKET_APP_ENV"
	EnvLogLevel = "ULTRAMARKET_LOG_LEVEL"

	EnvDBDSN  = "ULTRAMARKET_DB_DSN"
	EnvDBHost = "ULTRAMARKET_DB_HOST"
	EnvDBUser = "ULTRAMARKET_DB_USER"
	EnvDBName = "ULTRAMARKET_DB_NAME"

	EnvRedisURL = "ULTRAMARKET_REDIS_URL"

	EnvLockTTL              = "ULTRAMARKET_LOCK_TTL"
	EnvCoordinatorRetries   = "ULTRAMARKET_TX_MAX_RETRIES"
	EnvConsistencyInterval  = "ULTRAMARKET_CONSISTENCY_INTERVAL"
	EnvAlertBufferSize      = "ULTRAMARKET_ALERT_BUFFER_SIZE"
	EnvConsistencyBatchSize = "ULTRAMARKET_CONSISTENCY_BATCH_SIZE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
