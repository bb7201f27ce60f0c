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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Stripe        StripeConfig
	Stream        StreamConfig
	Retention     RetentionConfig
	Referrals     ReferralsConfig
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
	Env          string `envconfig:"ESTATEHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"ESTATEHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ESTATEHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ESTATEHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ESTATEHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ESTATEHUB_DB_DSN"`
	Driver string `envconfig:"ESTATEHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ESTATEHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"ESTATEHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ESTATEHUB_DB_USER"`
	LegacyPassword string `envconfig:"ESTATEHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"ESTATEHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"ESTATEHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ESTATEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ESTATEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ESTATEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ESTATEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ESTATEHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ESTATEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"ESTATEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"ESTATEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ESTATEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ESTATEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ESTATEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ESTATEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ESTATEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ESTATEHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ESTATEHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"ESTATEHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"ESTATEHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type AuthRateLimitConfig struct {
	Window    time.Duration `envconfig:"ESTATEHUB_AUTH_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"ESTATEHUB_AUTH_RATE_LIMIT_USER_LIMIT" default:"30"`
	IPLimit   int           `envconfig:"ESTATEHUB_AUTH_RATE_LIMIT_IP_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ESTATEHUB_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"ESTATEHUB_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ESTATEHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ESTATEHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ESTATEHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"ESTATEHUB_PUBSUB_DOMAIN_TOPIC" default:"eh-domain-events"`
	DomainSubscription string `envconfig:"ESTATEHUB_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ESTATEHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ESTATEHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ESTATEHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey       string `envconfig:"ESTATEHUB_STRIPE_API_KEY"`
	Secret       string `envconfig:"ESTATEHUB_STRIPE_SECRET"`
	Env          string `envconfig:"ESTATEHUB_STRIPE_ENV" default:"test"`
	PriceID      string `envconfig:"ESTATEHUB_STRIPE_SUBSCRIPTION_PRICE_ID"`
	SuccessURL   string `envconfig:"ESTATEHUB_STRIPE_SUCCESS_URL"`
	CancelURL    string `envconfig:"ESTATEHUB_STRIPE_CANCEL_URL"`
	PortalReturn string `envconfig:"ESTATEHUB_STRIPE_PORTAL_RETURN_URL"`

	WebhookEventTTL time.Duration `envconfig:"ESTATEHUB_STRIPE_WEBHOOK_EVENT_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type StreamConfig struct {
	SubscriberBuffer  int           `envconfig:"ESTATEHUB_STREAM_SUBSCRIBER_BUFFER" default:"16"`
	HeartbeatInterval time.Duration `envconfig:"ESTATEHUB_STREAM_HEARTBEAT_INTERVAL" default:"25s"`
}

type RetentionConfig struct {
	NotificationDays    int `envconfig:"ESTATEHUB_RETENTION_NOTIFICATION_DAYS" default:"30"`
	OutboxDays          int `envconfig:"ESTATEHUB_RETENTION_OUTBOX_DAYS" default:"14"`
	StaleAppointmentDay int `envconfig:"ESTATEHUB_RETENTION_STALE_APPOINTMENT_DAYS" default:"7"`
}

type ReferralsConfig struct {
	PointsPerReferral int    `envconfig:"ESTATEHUB_REFERRAL_POINTS_PER_REFERRAL" default:"250"`
	LinkBaseURL       string `envconfig:"ESTATEHUB_REFERRAL_LINK_BASE_URL" default:"https://estatehub.example/r"`
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
