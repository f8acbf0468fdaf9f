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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Moderation   ModerationConfig
	Pricing      PricingConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Tracing      TracingConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETWATCH_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETWATCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETWATCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETWATCH_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"MARKETWATCH_CORS_ORIGINS" default:"http://localhost:5173"`
	// MetricsAddr is where the workers expose /metrics; the api serves it on Port.
	MetricsAddr string `envconfig:"MARKETWATCH_METRICS_ADDR" default:":9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETWATCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETWATCH_DB_DSN"`
	Driver string `envconfig:"MARKETWATCH_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MARKETWATCH_DB_HOST"`
	Port     int    `envconfig:"MARKETWATCH_DB_PORT" default:"5432"`
	User     string `envconfig:"MARKETWATCH_DB_USER"`
	Password string `envconfig:"MARKETWATCH_DB_PASSWORD"`
	Name     string `envconfig:"MARKETWATCH_DB_NAME"`
	SSLMode  string `envconfig:"MARKETWATCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETWATCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETWATCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETWATCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETWATCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"MARKETWATCH_DB_SLOW_QUERY" default:"200ms"`
	ConnectTimeout     time.Duration `envconfig:"MARKETWATCH_DB_CONNECT_TIMEOUT" default:"5s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETWATCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETWATCH_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETWATCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETWATCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETWATCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETWATCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETWATCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETWATCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETWATCH_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"MARKETWATCH_REDIS_KEY_PREFIX" default:"mw"`
}

// JWTConfig describes the tokens minted by the upstream identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"MARKETWATCH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKETWATCH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKETWATCH_JWT_EXPIRATION_MINUTES" default:"60"`
	// Audience is enforced only when set.
	Audience string        `envconfig:"MARKETWATCH_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"MARKETWATCH_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MARKETWATCH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MARKETWATCH_AUTO_MIGRATE" default:"false"`
}

type ModerationConfig struct {
	// EditResetsStatus sends approved and rejected items back to pending when
	// their owner edits content.
	EditResetsStatus bool          `envconfig:"MARKETWATCH_MODERATION_EDIT_RESETS_STATUS" default:"false"`
	StaleAfter       time.Duration `envconfig:"MARKETWATCH_MODERATION_STALE_AFTER" default:"72h"`
}

type PricingConfig struct {
	TrendCacheTTL     time.Duration `envconfig:"MARKETWATCH_PRICING_TREND_CACHE_TTL" default:"10m"`
	BasketMaxItems    int           `envconfig:"MARKETWATCH_PRICING_BASKET_MAX_ITEMS" default:"50"`
	BasketConcurrency int           `envconfig:"MARKETWATCH_PRICING_BASKET_CONCURRENCY" default:"8"`
}

func (p PricingConfig) validate() error {
	if p.BasketMaxItems <= 0 {
		return fmt.Errorf("%s must be positive", EnvPricingBasketMaxItems)
	}
	if p.BasketConcurrency <= 0 {
		return fmt.Errorf("%s must be positive", EnvPricingBasketConcurrency)
	}
	return nil
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKETWATCH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKETWATCH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKETWATCH_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"MARKETWATCH_OUTBOX_RETENTION_DAYS" default:"14"`

	// terminal rows are kept longer for investigation
	TerminalRetentionDays int `envconfig:"MARKETWATCH_OUTBOX_TERMINAL_RETENTION_DAYS" default:"90"`
	PurgeBatchSize        int `envconfig:"MARKETWATCH_OUTBOX_PURGE_BATCH_SIZE" default:"1000"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MARKETWATCH_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"MARKETWATCH_PUBSUB_DOMAIN_TOPIC" default:"marketwatch-domain-events"`
	// CreateTopics creates missing topics on startup; meant for the emulator.
	CreateTopics bool          `envconfig:"MARKETWATCH_PUBSUB_CREATE_TOPICS" default:"false"`
	Ordered      bool          `envconfig:"MARKETWATCH_PUBSUB_ORDERED" default:"true"`
	BatchDelay   time.Duration `envconfig:"MARKETWATCH_PUBSUB_BATCH_DELAY" default:"10ms"`
}

type TracingConfig struct {
	Enabled      bool    `envconfig:"MARKETWATCH_TRACING_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"MARKETWATCH_OTLP_ENDPOINT" default:"localhost:4317"`
	Insecure     bool    `envconfig:"MARKETWATCH_OTLP_INSECURE" default:"true"`
	SampleRatio  float64 `envconfig:"MARKETWATCH_TRACING_SAMPLE_RATIO" default:"1"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"MARKETWATCH_CRON_INTERVAL" default:"1h"`
	JobTimeout time.Duration `envconfig:"MARKETWATCH_CRON_JOB_TIMEOUT" default:"10m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:marketwatch.db?cache=shared"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
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
