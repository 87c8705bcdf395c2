package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AWS        AWSConfig
	Kafka      KafkaConfig
	Attendance AttendanceConfig
	Worker     WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Env                string
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the attendance reports bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ReportsBucket        string
	PresignExpireMinutes int
}

// KafkaConfig holds the check-in event stream settings. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AttendanceConfig locates the check-in policy and overrides parts of it.
type AttendanceConfig struct {
	PolicyFile string        // optional YAML file, see LoadPolicy
	Timezone   string        // overrides policy timezone when set
	TokenTTL   time.Duration // overrides policy token_ttl when > 0
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	SweepInterval time.Duration
	SweepGrace    time.Duration
	MetricsAddr   string // worker /metrics listener, empty disables
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Policy loads the attendance policy and applies the environment overrides.
func (c AttendanceConfig) Policy() (PolicyConfig, error) {
	p, err := LoadPolicy(c.PolicyFile)
	if err != nil {
		return PolicyConfig{}, err
	}
	if c.Timezone != "" {
		p.Timezone = c.Timezone
	}
	if c.TokenTTL > 0 {
		p.TokenTTL = c.TokenTTL
	}
	return p, nil
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "15"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "15"))

	cfg := &Config{
		Server: ServerConfig{
			Env:                getEnv("APP_ENV", "dev"),
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "portal"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ReportsBucket:        getEnv("AWS_S3_REPORTS_BUCKET", "portal-attendance-reports"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Kafka: KafkaConfig{
			Brokers: splitTrim(getEnv("KAFKA_BROKERS", ""), ","),
			Topic:   getEnv("KAFKA_CHECKIN_TOPIC", "attendance.checkins"),
		},
		Attendance: AttendanceConfig{
			PolicyFile: getEnv("ATTENDANCE_POLICY_FILE", ""),
			Timezone:   getEnv("ATTENDANCE_TIMEZONE", ""),
			TokenTTL:   getEnvDuration("ATTENDANCE_TOKEN_TTL", 0),
		},
		Worker: WorkerConfig{
			SweepInterval: getEnvDuration("TOKEN_SWEEP_INTERVAL", 10*time.Minute),
			SweepGrace:    getEnvDuration("TOKEN_SWEEP_GRACE", time.Hour),
			MetricsAddr:   getEnv("WORKER_METRICS_ADDR", ":9102"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
