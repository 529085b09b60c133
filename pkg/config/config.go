package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "FEIRA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "FEIRA_DB_DSN"
	EnvDBHost = "FEIRA_DB_HOST"
	EnvDBUser = "FEIRA_DB_USER"
	EnvDBName = "FEIRA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Cart         CartConfig
	Outbox       OutboxConfig
	Push         PushConfig
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
	Env          string `envconfig:"FEIRA_APP_ENV" required:"true"`
	Port         string `envconfig:"FEIRA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FEIRA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FEIRA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FEIRA_DB_DSN"`
	Driver string `envconfig:"FEIRA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FEIRA_DB_HOST"`
	LegacyPort     int    `envconfig:"FEIRA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FEIRA_DB_USER"`
	LegacyPassword string `envconfig:"FEIRA_DB_PASSWORD"`
	LegacyName     string `envconfig:"FEIRA_DB_NAME"`
	LegacySSLMode  string `envconfig:"FEIRA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FEIRA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FEIRA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FEIRA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FEIRA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FEIRA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FEIRA_REDIS_ADDR"`
	Password     string        `envconfig:"FEIRA_REDIS_PASSWORD"`
	DB           int           `envconfig:"FEIRA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FEIRA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FEIRA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FEIRA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FEIRA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FEIRA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CartConfig struct {
	// SessionTTL bounds anonymous session carts; user carts never expire.
	SessionTTL     time.Duration `envconfig:"FEIRA_CART_SESSION_TTL" default:"168h"`
	IdempotencyTTL time.Duration `envconfig:"FEIRA_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"FEIRA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"FEIRA_OUTBOX_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"FEIRA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PushConfig struct {
	Endpoint string        `envconfig:"FEIRA_PUSH_ENDPOINT" default:"https://exp.host/--/api/v2/push/send"`
	Timeout  time.Duration `envconfig:"FEIRA_PUSH_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FEIRA_AUTO_MIGRATE" default:"false"`
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
