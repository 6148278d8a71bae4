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
	Locks        LockConfig
	Coordinator  CoordinatorConfig
	Consistency  ConsistencyConfig
	Alerts       AlertConfig
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
	Env          string `envconfig:"ULTRAMARKET_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"ULTRAMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ULTRAMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ULTRAMARKET_SERVICE_KIND" default:"consistency-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"ULTRAMARKET_DB_DSN"`
	Driver string `envconfig:"ULTRAMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ULTRAMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"ULTRAMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ULTRAMARKET_DB_USER"`
	LegacyPassword string `envconfig:"ULTRAMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"ULTRAMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"ULTRAMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ULTRAMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ULTRAMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ULTRAMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ULTRAMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ULTRAMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ULTRAMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"ULTRAMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"ULTRAMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ULTRAMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ULTRAMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ULTRAMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ULTRAMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ULTRAMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LockConfig bounds the lifetime of stock locks.
type LockConfig struct {
	TTL            time.Duration `envconfig:"ULTRAMARKET_LOCK_TTL" default:"30s"`
	ReaperInterval time.Duration `envconfig:"ULTRAMARKET_LOCK_REAPER_INTERVAL" default:"1m"`
}

// CoordinatorConfig bounds the retry loop for stock transactions.
type CoordinatorConfig struct {
	MaxRetries  int           `envconfig:"ULTRAMARKET_TX_MAX_RETRIES" default:"3"`
	BackoffBase time.Duration `envconfig:"ULTRAMARKET_TX_BACKOFF_BASE" default:"50ms"`
	BackoffMax  time.Duration `envconfig:"ULTRAMARKET_TX_BACKOFF_MAX" default:"1s"`
}

// ConsistencyConfig drives the periodic invariant check.
type ConsistencyConfig struct {
	Interval  time.Duration `envconfig:"ULTRAMARKET_CONSISTENCY_INTERVAL" default:"5m"`
	BatchSize int           `envconfig:"ULTRAMARKET_CONSISTENCY_BATCH_SIZE" default:"500"`
	AutoFix   bool          `envconfig:"ULTRAMARKET_CONSISTENCY_AUTO_FIX" default:"true"`
}

// AlertConfig sizes the alert dispatcher queue.
type AlertConfig struct {
	BufferSize int `envconfig:"ULTRAMARKET_ALERT_BUFFER_SIZE" default:"256"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ULTRAMARKET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
