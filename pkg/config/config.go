package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server (dashboard API)
	Port string
	Env  string // development, staging, production, test

	// Data layout
	DataDir      string
	RegistryPath string
	CalendarPath string

	// Daily run schedule (cron with seconds)
	Schedule string

	// 타임스탬프 스냅샷 보존 기간 (latest, cache 는 제외)
	RetentionDays int

	// Database (optional run archive)
	Database DatabaseConfig

	// Redis (optional cache mirror + distributed rate limit)
	Redis RedisConfig

	// External APIs
	APIKeys APIKeys

	// Collection
	Collect CollectConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a run archive database was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// APIKeys holds credentials for upstream sources
// 빈 값이면 해당 어댑터는 키 없는 엔드포인트를 사용하거나 에러 스냅샷을 남김
type APIKeys struct {
	Anthropic      string
	AnthropicModel string
	EIA            string
	USDAFAS        string
	TomorrowIO     string
	NOAA           string
	FRED           string
}

// CollectConfig holds adapter execution settings
type CollectConfig struct {
	Workers         int           // 동시 실행 어댑터 수 (1 = 순차)
	RESTTimeout     time.Duration // 일반 REST 요청
	DownloadTimeout time.Duration // XLSX/ZIP 등 대용량 다운로드
	MaxAttempts     int           // 총 시도 횟수
	RetryDelay      time.Duration // 선형 backoff 기본값 (delay * attempt)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Data layout
		DataDir:      getEnv("AGRIMACRO_DATA_DIR", "./data"),
		RegistryPath: getEnv("AGRIMACRO_REGISTRY", "config/registry.yml"),
		CalendarPath: getEnv("AGRIMACRO_CALENDAR", "config/calendar.yml"),
		Schedule:     getEnv("AGRIMACRO_SCHEDULE", "0 30 6 * * *"),

		RetentionDays: getEnvAsInt("AGRIMACRO_RETENTION_DAYS", 90),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		APIKeys: APIKeys{
			Anthropic:      getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			EIA:            getEnv("EIA_API_KEY", ""),
			USDAFAS:        getEnv("USDA_FAS_KEY", ""),
			TomorrowIO:     getEnv("TOMORROW_IO_KEY", ""),
			NOAA:           getEnv("NOAA_KEY", ""),
			FRED:           getEnv("FRED_API_KEY", ""),
		},

		// Collection
		Collect: CollectConfig{
			Workers:         getEnvAsInt("COLLECT_WORKERS", 1),
			RESTTimeout:     getEnvAsDuration("COLLECT_REST_TIMEOUT", "60s"),
			DownloadTimeout: getEnvAsDuration("COLLECT_DOWNLOAD_TIMEOUT", "120s"),
			MaxAttempts:     getEnvAsInt("COLLECT_MAX_ATTEMPTS", 3),
			RetryDelay:      getEnvAsDuration("COLLECT_RETRY_DELAY", "2s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.DataDir == "" {
		return fmt.Errorf("AGRIMACRO_DATA_DIR must not be empty")
	}

	if c.RetentionDays < 1 {
		return fmt.Errorf("AGRIMACRO_RETENTION_DAYS must be >= 1")
	}

	if c.Collect.Workers < 1 {
		return fmt.Errorf("COLLECT_WORKERS must be >= 1")
	}

	if c.Collect.MaxAttempts < 1 {
		return fmt.Errorf("COLLECT_MAX_ATTEMPTS must be >= 1")
	}

	// 재시도 간격은 최소 2초 (upstream 보호)
	if c.Collect.RetryDelay < 2*time.Second {
		return fmt.Errorf("COLLECT_RETRY_DELAY must be >= 2s")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
