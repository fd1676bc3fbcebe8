package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	SplitRPC   SplitRPCConfig
	ChangeFeed ChangeFeedConfig
	Reconcile  ReconcileConfig
	Reminder   ReminderConfig
	S3         S3Config
	SQS        SQSConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool // gorm 쿼리 로그 (개발용)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// SplitRPCConfig 원격 분할 프로시저 설정 (BaseURL이 비어 있으면 로컬 분할만 사용)
type SplitRPCConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ChangeFeedConfig 변경 알림 구독 백엔드 (redis, postgres, memory)
type ChangeFeedConfig struct {
	Driver string
}

type ReconcileConfig struct {
	RefetchInterval  time.Duration
	ReconnectBackoff time.Duration
	MaxBackoff       time.Duration
}

// ReminderConfig 매장 미응답 분할 주문 리마인더
type ReminderConfig struct {
	Schedule        string
	ResponseTimeout time.Duration
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

type SQSConfig struct {
	Region   string
	QueueURL string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "admin"),
			Password:        getEnv("DB_PASSWORD", "1234"),
			DBName:          getEnv("DB_NAME", "udonggeum"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    parseInt(getEnv("DB_MAX_IDLE_CONNS", "10"), 10),
			MaxOpenConns:    parseInt(getEnv("DB_MAX_OPEN_CONNS", "50"), 50),
			ConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "30m"), 30*time.Minute),
			LogSQL:          getEnv("DB_LOG_SQL", "false") == "true",
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		SplitRPC: SplitRPCConfig{
			BaseURL: getEnv("SPLIT_RPC_BASE_URL", ""),
			APIKey:  getEnv("SPLIT_RPC_API_KEY", ""),
			Timeout: parseDuration(getEnv("SPLIT_RPC_TIMEOUT", "8s"), 8*time.Second),
		},
		ChangeFeed: ChangeFeedConfig{
			Driver: getEnv("CHANGEFEED_DRIVER", "redis"),
		},
		Reconcile: ReconcileConfig{
			RefetchInterval:  parseDuration(getEnv("RECONCILE_REFETCH_INTERVAL", "30s"), 30*time.Second),
			ReconnectBackoff: parseDuration(getEnv("RECONCILE_RECONNECT_BACKOFF", "1s"), time.Second),
			MaxBackoff:       parseDuration(getEnv("RECONCILE_MAX_BACKOFF", "30s"), 30*time.Second),
		},
		Reminder: ReminderConfig{
			Schedule:        getEnv("REMINDER_SCHEDULE", "@every 5m"),
			ResponseTimeout: parseDuration(getEnv("REMINDER_RESPONSE_TIMEOUT", "30m"), 30*time.Minute),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-northeast-2"),
			Bucket:          getEnv("AWS_S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		SQS: SQSConfig{
			Region:   getEnv("AWS_REGION", "ap-northeast-2"),
			QueueURL: getEnv("NOTIFICATION_QUEUE_URL", ""),
		},
	}

	switch config.ChangeFeed.Driver {
	case "redis", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unsupported CHANGEFEED_DRIVER %q", config.ChangeFeed.Driver)
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
