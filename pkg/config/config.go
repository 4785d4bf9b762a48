package config

import (
	"errors"
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
	Timezone  string

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Receipts       ReceiptsConfig
	Analysis       AnalysisConfig
	Reconciliation ReconciliationConfig
	Reminders      RemindersConfig
	RateLimit      RateLimitConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReceiptsConfig controls receipt file intake and download links.
type ReceiptsConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// AnalysisConfig wires the external document-analysis capability.
type AnalysisConfig struct {
	Enabled           bool
	Provider          string
	GeminiAPIKey      string
	GeminiModel       string
	OllamaURL         string
	OllamaModel       string
	Timeout           time.Duration
	BatchConcurrency  int
	MaxImageDimension int
}

// ReconciliationConfig tunes the missing-receipt scanner.
type ReconciliationConfig struct {
	CacheTTL                  time.Duration
	RejectedCountsAsAddressed bool
}

// RemindersConfig governs reminder delivery into the outbox.
type RemindersConfig struct {
	Enabled      bool
	OutboxPath   string
	ScanInterval time.Duration
	Workers      int
	Retries      int
}

// RateLimitConfig throttles the batch analysis endpoint per user.
type RateLimitConfig struct {
	BatchLimit  int
	BatchWindow time.Duration
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("RECEIPTS_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	cfg.Receipts = ReceiptsConfig{
		StorageDir:       v.GetString("RECEIPTS_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("RECEIPTS_ALLOWED_MIME_TYPES")),
	}

	cfg.Analysis = AnalysisConfig{
		Enabled:           v.GetBool("ANALYSIS_ENABLED"),
		Provider:          strings.ToLower(v.GetString("ANALYSIS_PROVIDER")),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		GeminiModel:       v.GetString("GEMINI_MODEL"),
		OllamaURL:         v.GetString("OLLAMA_URL"),
		OllamaModel:       v.GetString("OLLAMA_MODEL"),
		Timeout:           parseDuration(v.GetString("ANALYSIS_TIMEOUT"), 45*time.Second),
		BatchConcurrency:  v.GetInt("ANALYSIS_BATCH_CONCURRENCY"),
		MaxImageDimension: v.GetInt("ANALYSIS_MAX_IMAGE_DIMENSION"),
	}

	cfg.Reconciliation = ReconciliationConfig{
		CacheTTL:                  parseDuration(v.GetString("RECONCILIATION_CACHE_TTL"), 5*time.Minute),
		RejectedCountsAsAddressed: v.GetBool("RECONCILIATION_REJECTED_COUNTS_AS_ADDRESSED"),
	}

	cfg.Reminders = RemindersConfig{
		Enabled:      v.GetBool("REMINDERS_ENABLED"),
		OutboxPath:   v.GetString("REMINDERS_OUTBOX_PATH"),
		ScanInterval: parseDuration(v.GetString("REMINDERS_SCAN_INTERVAL"), 24*time.Hour),
		Workers:      v.GetInt("REMINDERS_WORKERS"),
		Retries:      v.GetInt("REMINDERS_RETRIES"),
	}

	cfg.RateLimit = RateLimitConfig{
		BatchLimit:  v.GetInt("BATCH_RATE_LIMIT"),
		BatchWindow: parseDuration(v.GetString("BATCH_RATE_WINDOW"), time.Minute),
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "Europe/Istanbul")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dekont")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "dekont-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RECEIPTS_STORAGE_DIR", "./receipts")
	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("RECEIPTS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("RECEIPTS_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp,image/heic,image/heif,application/pdf")

	v.SetDefault("ANALYSIS_ENABLED", false)
	v.SetDefault("ANALYSIS_PROVIDER", "gemini")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llava")
	v.SetDefault("ANALYSIS_TIMEOUT", "45s")
	v.SetDefault("ANALYSIS_BATCH_CONCURRENCY", 4)
	v.SetDefault("ANALYSIS_MAX_IMAGE_DIMENSION", 2000)

	v.SetDefault("RECONCILIATION_CACHE_TTL", "5m")
	v.SetDefault("RECONCILIATION_REJECTED_COUNTS_AS_ADDRESSED", true)

	v.SetDefault("REMINDERS_ENABLED", false)
	v.SetDefault("REMINDERS_OUTBOX_PATH", "./reminders.db")
	v.SetDefault("REMINDERS_SCAN_INTERVAL", "24h")
	v.SetDefault("REMINDERS_WORKERS", 2)
	v.SetDefault("REMINDERS_RETRIES", 3)

	v.SetDefault("BATCH_RATE_LIMIT", 5)
	v.SetDefault("BATCH_RATE_WINDOW", "1m")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
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
