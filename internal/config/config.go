package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthCookieSecure       bool
	AuthSessionIdleTimeout time.Duration
	AuthRememberFor        time.Duration
	AuthLoginPath          string
	AuthDashboardPath      string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig

	BlobStorageDir    string
	JobsConfigPath    string
	SchedulerOn       bool
	ReferenceCacheTTL time.Duration

	Bootstrap BootstrapConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool

	LoginRate  float64
	LoginBurst int

	IngestRate  float64
	IngestBurst int

	JobLockTTL time.Duration
}

// BootstrapConfig seeds a first operator account and reference rows on empty databases.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	Branch        string
	Store         string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:     getenv("APP_SERVICE", "posreport"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		AuthCookieSecure:       authCookieSecure,
		AuthSessionIdleTimeout: getenvDuration("AUTH_SESSION_IDLE_TIMEOUT", 4*time.Hour),
		AuthRememberFor:        getenvDuration("AUTH_REMEMBER_FOR", 30*24*time.Hour),
		AuthLoginPath:          getenv("AUTH_LOGIN_PATH", "/login"),
		AuthDashboardPath:      getenv("AUTH_DASHBOARD_PATH", "/dashboard"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "posreport"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", false),
			LoginRate:   getenvFloat("RATE_LIMIT_LOGIN_RATE", 0.2),
			LoginBurst:  getenvInt("RATE_LIMIT_LOGIN_BURST", 5),
			IngestRate:  getenvFloat("RATE_LIMIT_INGEST_RATE", 50),
			IngestBurst: getenvInt("RATE_LIMIT_INGEST_BURST", 200),
			JobLockTTL:  getenvDuration("RATE_LIMIT_JOB_LOCK_TTL", 30*time.Minute),
		},

		BlobStorageDir:    getenv("BLOB_STORAGE_DIR", "./storage"),
		JobsConfigPath:    getenv("JOBS_CONFIG_PATH", ""),
		SchedulerOn:       getenvBool("SCHEDULER_ENABLED", true),
		ReferenceCacheTTL: getenvDuration("REFERENCE_CACHE_TTL", 5*time.Minute),

		Bootstrap: BootstrapConfig{
			AdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
			Branch:        strings.TrimSpace(getenv("BOOTSTRAP_BRANCH", "")),
			Store:         strings.TrimSpace(getenv("BOOTSTRAP_STORE", "")),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// RedisEnabled reports whether a redis address is configured.
func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("4h") or plain seconds ("14400").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
