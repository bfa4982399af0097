package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Delivery     DeliveryConfig
	Commission   CommissionConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.Commission.DefaultRate.IsNegative() || cfg.Commission.DefaultRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%s must be between 0 and 100", EnvCommissionDefaultRate)
	}
	return &cfg, nil
}

type AppConfig struct {
	Name         string `envconfig:"FULFILLMENT_APP_NAME" default:"fulfillment-engine"`
	Env          string `envconfig:"FULFILLMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"FULFILLMENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FULFILLMENT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FULFILLMENT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FULFILLMENT_LOG_WARN_STACK" default:"false"`
	MaxUploadMB  int64  `envconfig:"FULFILLMENT_MAX_UPLOAD_MB" default:"10"`

	CORSOrigins []string `envconfig:"FULFILLMENT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"FULFILLMENT_DB_DSN"`

	Host     string `envconfig:"FULFILLMENT_DB_HOST"`
	Port     int    `envconfig:"FULFILLMENT_DB_PORT" default:"5432"`
	User     string `envconfig:"FULFILLMENT_DB_USER"`
	Password string `envconfig:"FULFILLMENT_DB_PASSWORD"`
	Name     string `envconfig:"FULFILLMENT_DB_NAME"`
	SSLMode  string `envconfig:"FULFILLMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns     int           `envconfig:"FULFILLMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns     int           `envconfig:"FULFILLMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime  time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime  time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	StatementTimeout time.Duration `envconfig:"FULFILLMENT_DB_STATEMENT_TIMEOUT" default:"15s"`
}

type RedisConfig struct {
	URL            string        `envconfig:"FULFILLMENT_REDIS_URL"`
	Address        string        `envconfig:"FULFILLMENT_REDIS_ADDR"`
	Password       string        `envconfig:"FULFILLMENT_REDIS_PASSWORD"`
	DB             int           `envconfig:"FULFILLMENT_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"FULFILLMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"FULFILLMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"FULFILLMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"FULFILLMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"FULFILLMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"FULFILLMENT_IDEMPOTENCY_TTL" default:"24h"`
}

// Enabled reports whether a redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"FULFILLMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FULFILLMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FULFILLMENT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite           bool `envconfig:"FULFILLMENT_USE_SQLITE" default:"false"`
	AutoMigrate         bool `envconfig:"FULFILLMENT_AUTO_MIGRATE" default:"false"`
	ClaimAutoApprove    bool `envconfig:"FULFILLMENT_CLAIM_AUTO_APPROVE" default:"true"`
	NotificationsPubSub bool `envconfig:"FULFILLMENT_NOTIFICATIONS_PUBSUB" default:"false"`
	PhotoStorageGCS     bool `envconfig:"FULFILLMENT_PHOTO_STORAGE_GCS" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FULFILLMENT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FULFILLMENT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FULFILLMENT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName   string `envconfig:"FULFILLMENT_GCS_BUCKET_NAME"`
	PhotoPrefix  string `envconfig:"FULFILLMENT_GCS_PHOTO_PREFIX" default:"delivery-confirmations"`
	LocalRootDir string `envconfig:"FULFILLMENT_PHOTO_LOCAL_DIR" default:"./var/photos"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"FULFILLMENT_PUBSUB_NOTIFICATION_TOPIC" default:"fulfillment-notifications"`
}

type DeliveryConfig struct {
	ETA        time.Duration   `envconfig:"FULFILLMENT_DELIVERY_ETA" default:"24h"`
	DefaultFee decimal.Decimal `envconfig:"FULFILLMENT_DELIVERY_DEFAULT_FEE" default:"0"`
}

type RateLimitConfig struct {
	ClaimWindow time.Duration `envconfig:"FULFILLMENT_CLAIM_RATE_WINDOW" default:"1m"`
	ClaimLimit  int           `envconfig:"FULFILLMENT_CLAIM_RATE_LIMIT" default:"20"`
}

type CommissionConfig struct {
	DefaultRate decimal.Decimal `envconfig:"FULFILLMENT_COMMISSION_DEFAULT_RATE" default:"10"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:fulfillment.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range partsDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
