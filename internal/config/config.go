package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewSettlementConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	SettlementConfigFile  string
	SettlementConfigWatch bool

	OTLPEndpoint   string
	PushgatewayURL string
	Telemetry      TelemetryConfig

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
	DBLogSQL          bool
	DBSlowQueryMS     int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
}

// RedisConfig is optional. An empty Addr disables the per-merchant lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelemetryConfig carries the logging and tracing knobs shared by every binary.
type TelemetryConfig struct {
	LogLevel       string
	LogFormat      string
	TracingEnabled bool
	OTLPProtocol   string
	SamplingRatio  float64
}

// RateLimitConfig throttles admin writes per actor. It needs Redis.
type RateLimitConfig struct {
	Enabled    bool
	WriteRate  float64
	WriteBurst int
}

// SchedulerConfig drives the in-process job loop of the admin app.
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	JobTimeout time.Duration
	SyncLimit  int
	Jobs       string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "settlement"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            getenvInt64("SNOWFLAKE_NODE", 1),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "settlement"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
	}
	cfg.SettlementConfigFile = strings.TrimSpace(getenv("SETTLEMENT_CONFIG_FILE", ""))
	cfg.SettlementConfigWatch = getenvBool("SETTLEMENT_CONFIG_WATCH", true)
	cfg.PushgatewayURL = strings.TrimSpace(getenv("PUSHGATEWAY_URL", ""))
	cfg.Telemetry = TelemetryConfig{
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getenv("LOG_FORMAT", "json")),
		TracingEnabled: getenvBool("OTEL_ENABLED", false),
		OTLPProtocol:   strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		SamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
	if endpoint := getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""); endpoint != "" {
		cfg.OTLPEndpoint = endpoint
	}
	cfg.DBLogSQL = getenvBool("DATABASE_LOG_SQL", false)
	cfg.DBSlowQueryMS = int(getenvInt64("DATABASE_SLOW_QUERY_MS", 200))
	cfg.RateLimit = RateLimitConfig{
		Enabled:    getenvBool("RATE_LIMIT_ENABLED", false),
		WriteRate:  getenvFloat("RATE_LIMIT_WRITE_RATE", 2),
		WriteBurst: int(getenvInt64("RATE_LIMIT_WRITE_BURST", 10)),
	}
	cfg.Scheduler = SchedulerConfig{
		Enabled:    getenvBool("SCHEDULER_ENABLED", true),
		Interval:   getenvDuration("SCHEDULER_INTERVAL", time.Minute),
		JobTimeout: getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second),
		SyncLimit:  int(getenvInt64("SCHEDULER_SYNC_LIMIT", 500)),
		Jobs:       getenv("SCHEDULER_JOBS", "sync_credits"),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
