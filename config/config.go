package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	MetricsPort int

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	TelegramBotToken string

	GoogleMapsAPIKey  string
	ReferenceLocality string
	Timezone          string

	DistanceDailyQuota  int64
	DistanceConcurrency int64
	ExternalCallTimeout time.Duration
	RetryAttempts       int
	RetryStep           time.Duration
	QuotaResetSpec      string

	SessionIdleTimeout time.Duration
	SessionRetention   time.Duration
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "courierbot"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.MetricsPort = cast.ToInt(getOrReturnDefault("METRICS_PORT", 9090))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "courierbot"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", "migrations"))

	cfg.RedisHost = cast.ToString(getOrReturnDefault("REDIS_HOST", "localhost"))
	cfg.RedisPort = cast.ToString(getOrReturnDefault("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))
	cfg.RedisDB = cast.ToInt(getOrReturnDefault("REDIS_DB", 0))

	cfg.TelegramBotToken = cast.ToString(getOrReturnDefault("TG_BOT_TOKEN", ""))

	cfg.GoogleMapsAPIKey = cast.ToString(getOrReturnDefault("GOOGLE_MAPS_API_KEY", ""))
	cfg.ReferenceLocality = cast.ToString(getOrReturnDefault("REFERENCE_LOCALITY", "Cascavel, Paraná"))
	cfg.Timezone = cast.ToString(getOrReturnDefault("TIMEZONE", "America/Sao_Paulo"))

	cfg.DistanceDailyQuota = cast.ToInt64(getOrReturnDefault("DISTANCE_DAILY_QUOTA", 1000))
	cfg.DistanceConcurrency = cast.ToInt64(getOrReturnDefault("DISTANCE_CONCURRENCY", 5))
	cfg.ExternalCallTimeout = cast.ToDuration(getOrReturnDefault("EXTERNAL_CALL_TIMEOUT", "10s"))
	cfg.RetryAttempts = cast.ToInt(getOrReturnDefault("DISTANCE_RETRY_ATTEMPTS", 3))
	cfg.RetryStep = cast.ToDuration(getOrReturnDefault("DISTANCE_RETRY_STEP", "1s"))
	// midnight in TIMEZONE
	cfg.QuotaResetSpec = cast.ToString(getOrReturnDefault("QUOTA_RESET_SPEC", "0 0 * * *"))

	cfg.SessionIdleTimeout = cast.ToDuration(getOrReturnDefault("SESSION_IDLE_TIMEOUT", "15m"))
	cfg.SessionRetention = cast.ToDuration(getOrReturnDefault("SESSION_RETENTION", "24h"))

	return cfg
}

// Location falls back to UTC when TIMEZONE is not a known zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
