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
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Airtable     AirtableConfig
	EmailJS      EmailJSConfig
	Cart         CartConfig
	Orders       OrdersConfig
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
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	if cfg.Orders.UsesRedis() && !cfg.Redis.Enabled() {
		return nil, fmt.Errorf("%s=%s requires %s", EnvOrdersGuardBackend, GuardBackendRedis, EnvRedisURL)
	}
	return &cfg, nil
}

// LoadDatabase reads only the app and database sections, for tools that never
// touch the external services.
func LoadDatabase() (*Config, error) {
	var partial struct {
		App AppConfig
		DB  DBConfig
	}
	if err := envconfig.Process(EnvPrefix, &partial); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := partial.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &Config{App: partial.App, DB: partial.DB}, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow-list; empty means the local dev origins.
	CORSOrigins     []string      `envconfig:"STOREFRONT_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn; zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// AuthConfig points at the managed auth provider that issues access tokens.
type AuthConfig struct {
	URL       string `envconfig:"STOREFRONT_AUTH_URL" required:"true"`
	AnonKey   string `envconfig:"STOREFRONT_AUTH_ANON_KEY" required:"true"`
	JWTSecret string `envconfig:"STOREFRONT_AUTH_JWT_SECRET" required:"true"`
	// JWTIssuer is optional; when empty the iss claim is not checked.
	JWTIssuer string `envconfig:"STOREFRONT_AUTH_JWT_ISSUER"`
}

type AirtableConfig struct {
	APIURL        string        `envconfig:"STOREFRONT_AIRTABLE_API_URL" default:"https://api.airtable.com/v0"`
	APIKey        string        `envconfig:"STOREFRONT_AIRTABLE_API_KEY" required:"true"`
	BaseID        string        `envconfig:"STOREFRONT_AIRTABLE_BASE_ID" required:"true"`
	ProductsTable string        `envconfig:"STOREFRONT_AIRTABLE_PRODUCTS_TABLE" default:"Products"`
	CommentsTable string        `envconfig:"STOREFRONT_AIRTABLE_COMMENTS_TABLE" default:"Comments"`
	Timeout       time.Duration `envconfig:"STOREFRONT_AIRTABLE_TIMEOUT" default:"10s"`
}

type EmailJSConfig struct {
	APIURL             string        `envconfig:"STOREFRONT_EMAILJS_API_URL" default:"https://api.emailjs.com/api/v1.0"`
	ServiceID          string        `envconfig:"STOREFRONT_EMAILJS_SERVICE_ID" required:"true"`
	CustomerTemplateID string        `envconfig:"STOREFRONT_EMAILJS_CUSTOMER_TEMPLATE_ID" required:"true"`
	OperatorTemplateID string        `envconfig:"STOREFRONT_EMAILJS_OPERATOR_TEMPLATE_ID" required:"true"`
	PublicKey          string        `envconfig:"STOREFRONT_EMAILJS_PUBLIC_KEY" required:"true"`
	PrivateKey         string        `envconfig:"STOREFRONT_EMAILJS_PRIVATE_KEY"`
	Timeout            time.Duration `envconfig:"STOREFRONT_EMAILJS_TIMEOUT" default:"10s"`
}

type CartConfig struct {
	SyncStrategy    string        `envconfig:"STOREFRONT_CART_SYNC_STRATEGY" default:"read_then_branch"`
	SessionIdleTTL  time.Duration `envconfig:"STOREFRONT_CART_SESSION_IDLE_TTL" default:"2h"`
	LoadWaitTimeout time.Duration `envconfig:"STOREFRONT_CART_LOAD_WAIT_TIMEOUT" default:"5s"`
}

func (c CartConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.SyncStrategy)) {
	case CartSyncUpsert, CartSyncReadThenBranch:
		return nil
	}
	return fmt.Errorf("%s must be one of %s, %s", EnvCartSyncStrategy, CartSyncUpsert, CartSyncReadThenBranch)
}

type OrdersConfig struct {
	GuardBackend string        `envconfig:"STOREFRONT_ORDERS_GUARD_BACKEND" default:"local"`
	GuardTTL     time.Duration `envconfig:"STOREFRONT_ORDERS_GUARD_TTL" default:"1m"`
}

func (o OrdersConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.GuardBackend)) {
	case GuardBackendLocal, GuardBackendRedis:
		return nil
	}
	return fmt.Errorf("%s must be one of %s, %s", EnvOrdersGuardBackend, GuardBackendLocal, GuardBackendRedis)
}

// UsesRedis reports whether the in-flight guard needs a redis connection.
func (o OrdersConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(o.GuardBackend), GuardBackendRedis)
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
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
