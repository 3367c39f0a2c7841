package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Timetable  TimetableConfig
	Migrations MigrationsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig tunes the allocator and the services around it.
type TimetableConfig struct {
	Enabled          bool
	SafetyMargin     int
	MaxPerSubjectDay int
	// RelaxedDailyCap enables a second pass for short subjects when above MaxPerSubjectDay.
	RelaxedDailyCap int
	// RoomFallbackID substitutes a single room when the room pool is empty. Empty keeps scarcity.
	RoomFallbackID    string
	GridCacheTTL      time.Duration
	BatchTTL          time.Duration
	LockTTL           time.Duration
	AuditCron         string
	WorkerConcurrency int
}

// MigrationsConfig toggles embedded schema migrations on startup.
type MigrationsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Timetable = TimetableConfig{
		Enabled:           v.GetBool("ENABLE_TIMETABLE"),
		SafetyMargin:      v.GetInt("TIMETABLE_SAFETY_MARGIN"),
		MaxPerSubjectDay:  v.GetInt("TIMETABLE_MAX_PER_SUBJECT_DAY"),
		RelaxedDailyCap:   v.GetInt("TIMETABLE_RELAXED_DAILY_CAP"),
		RoomFallbackID:    strings.TrimSpace(v.GetString("TIMETABLE_ROOM_FALLBACK_ID")),
		GridCacheTTL:      parseDuration(v.GetString("TIMETABLE_GRID_CACHE_TTL"), 10*time.Minute),
		BatchTTL:          parseDuration(v.GetString("TIMETABLE_BATCH_TTL"), time.Hour),
		LockTTL:           parseDuration(v.GetString("TIMETABLE_LOCK_TTL"), 2*time.Minute),
		AuditCron:         auditSchedule(v.GetString("AUDIT_CRON")),
		WorkerConcurrency: v.GetInt("TIMETABLE_WORKER_CONCURRENCY"),
	}

	cfg.Migrations = MigrationsConfig{
		Enabled: v.GetBool("ENABLE_MIGRATIONS"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ttms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_TIMETABLE", true)
	v.SetDefault("TIMETABLE_SAFETY_MARGIN", 100)
	v.SetDefault("TIMETABLE_MAX_PER_SUBJECT_DAY", 2)
	v.SetDefault("TIMETABLE_RELAXED_DAILY_CAP", 0)
	v.SetDefault("TIMETABLE_ROOM_FALLBACK_ID", "")
	v.SetDefault("TIMETABLE_GRID_CACHE_TTL", "10m")
	v.SetDefault("TIMETABLE_BATCH_TTL", "1h")
	v.SetDefault("TIMETABLE_LOCK_TTL", "2m")
	v.SetDefault("AUDIT_CRON", "@every 1h")
	v.SetDefault("TIMETABLE_WORKER_CONCURRENCY", 1)

	v.SetDefault("ENABLE_MIGRATIONS", false)
}

// auditSchedule returns the cron spec of the periodic audit. "off" disables it.
func auditSchedule(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "off") {
		return ""
	}
	return raw
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
