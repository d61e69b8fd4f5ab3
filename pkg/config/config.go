package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Roster        RosterConfig
	Reminder      ReminderConfig
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
	Env          string `envconfig:"PELOTON_APP_ENV" required:"true"`
	Port         string `envconfig:"PELOTON_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PELOTON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PELOTON_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"PELOTON_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PELOTON_DB_DSN"`
	Driver string `envconfig:"PELOTON_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PELOTON_DB_HOST"`
	LegacyPort     int    `envconfig:"PELOTON_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PELOTON_DB_USER"`
	LegacyPassword string `envconfig:"PELOTON_DB_PASSWORD"`
	LegacyName     string `envconfig:"PELOTON_DB_NAME"`
	LegacySSLMode  string `envconfig:"PELOTON_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PELOTON_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PELOTON_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PELOTON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PELOTON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PELOTON_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PELOTON_REDIS_ADDR"`
	Password     string        `envconfig:"PELOTON_REDIS_PASSWORD"`
	DB           int           `envconfig:"PELOTON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PELOTON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PELOTON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PELOTON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PELOTON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PELOTON_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PELOTON_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PELOTON_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PELOTON_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PELOTON_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PELOTON_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PELOTON_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PELOTON_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PELOTON_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PELOTON_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PELOTON_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PELOTON_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PELOTON_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PELOTON_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PELOTON_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PELOTON_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PELOTON_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PELOTON_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PELOTON_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PELOTON_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RidesTopic               string `envconfig:"PELOTON_PUBSUB_RIDES_TOPIC" default:"pl-ride-events"`
	RosterSubscription       string `envconfig:"PELOTON_PUBSUB_ROSTER_SUBSCRIPTION" required:"true"`
	NotificationSubscription string `envconfig:"PELOTON_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PELOTON_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PELOTON_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PELOTON_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type RosterConfig struct {
	LoadTimeout    time.Duration `envconfig:"PELOTON_ROSTER_LOAD_TIMEOUT" default:"10s"`
	EventBuffer    int           `envconfig:"PELOTON_ROSTER_EVENT_BUFFER" default:"64"`
	DebounceWindow time.Duration `envconfig:"PELOTON_ROSTER_DEBOUNCE_WINDOW" default:"150ms"`
}

type ReminderConfig struct {
	Interval time.Duration `envconfig:"PELOTON_REMINDER_INTERVAL" default:"1h"`
	Horizon  time.Duration `envconfig:"PELOTON_REMINDER_HORIZON" default:"24h"`
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
