package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

// Config is the full runtime configuration shared by every binary.
type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

// Load reads the HOMECHEF_* environment, derives the database DSN and
// rejects settings the services cannot run with.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}
	check(c.DB.StoreTimeout > 0, "%s must be positive", EnvStoreTimeout)
	check(c.JWT.ExpirationMinutes > 0, "%s must be positive", EnvJWTExpMins)
	check(c.JWT.RefreshTokenTTL() > c.JWT.AccessTTL(), "%s must exceed the access token lifetime", EnvRefreshTokenTTLMinutes)
	check(c.Cron.LockTTL >= c.Cron.JobTimeout, "cron lock ttl %s is shorter than job timeout %s", c.Cron.LockTTL, c.Cron.JobTimeout)
	check(c.PubSub.OrdersTopic != "", "%s is required", EnvPubSubOrdersTopic)
	return err
}

type AppConfig struct {
	Env          string `envconfig:"HOMECHEF_APP_ENV" required:"true"`
	Port         string `envconfig:"HOMECHEF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HOMECHEF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HOMECHEF_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"HOMECHEF_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

type ServiceConfig struct {
	Kind string `envconfig:"HOMECHEF_SERVICE_KIND" default:"api"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOMECHEF_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOMECHEF_REDIS_ADDR"`
	Password     string        `envconfig:"HOMECHEF_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOMECHEF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOMECHEF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOMECHEF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOMECHEF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOMECHEF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOMECHEF_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"HOMECHEF_REDIS_KEY_PREFIX" default:"hc"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"HOMECHEF_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"HOMECHEF_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"HOMECHEF_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"HOMECHEF_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

func (j JWTConfig) AccessTTL() time.Duration {
	return minutes(j.ExpirationMinutes)
}

func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return minutes(j.RefreshTokenTTLMinutes)
}

func minutes(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"HOMECHEF_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"HOMECHEF_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"HOMECHEF_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"HOMECHEF_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"HOMECHEF_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"HOMECHEF_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"HOMECHEF_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"HOMECHEF_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"HOMECHEF_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"HOMECHEF_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"HOMECHEF_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HOMECHEF_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HOMECHEF_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"HOMECHEF_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"HOMECHEF_PUBSUB_ORDERS_TOPIC" default:"homechef-order-events"`
	// RidersTopic receives rider availability changes; empty routes them to OrdersTopic.
	RidersTopic string `envconfig:"HOMECHEF_PUBSUB_RIDERS_TOPIC" default:"homechef-rider-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HOMECHEF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HOMECHEF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HOMECHEF_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"HOMECHEF_CRON_INTERVAL" default:"1h"`
	OutboxRetentionDays int           `envconfig:"HOMECHEF_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	JobTimeout          time.Duration `envconfig:"HOMECHEF_CRON_JOB_TIMEOUT" default:"5m"`
	LockTTL             time.Duration `envconfig:"HOMECHEF_CRON_LOCK_TTL" default:"30m"`
}
