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
	fx.Provide(NewAccessPolicyHolder),
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	MembershipCheckSnapshot = "snapshot"
	MembershipCheckLive     = "live"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	AppBaseURL  string

	AuthJWTSecret       string
	AuthTokenTTL        time.Duration
	AuthInviteTTL       time.Duration
	AuthMembershipCheck string

	OTLPEndpoint string

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

	Redis RedisConfig
	Email EmailConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	AuthRate  float64
	AuthBurst int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:             getenv("APP_SERVICE", "appraisal"),
		AppVersion:          getenv("APP_VERSION", "0.1.0"),
		Environment:         strings.ToLower(getenv("ENVIRONMENT", EnvDevelopment)),
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		AppBaseURL:          strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:3000"), "/"),
		AuthJWTSecret:       strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthTokenTTL:        getenvDuration("AUTH_TOKEN_TTL", 7*24*time.Hour),
		AuthInviteTTL:       getenvDuration("AUTH_INVITE_TTL", time.Hour),
		AuthMembershipCheck: normalizeMembershipCheck(getenv("AUTH_MEMBERSHIP_CHECK", MembershipCheckSnapshot)),
		OTLPEndpoint:        getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:              getenv("DATABASE_TYPE", "postgres"),
		DBHost:              getenv("DATABASE_HOST", "localhost"),
		DBPort:              getenv("DATABASE_PORT", "5432"),
		DBName:              getenv("DATABASE_NAME", "appraisal"),
		DBUser:              getenv("DATABASE_USER", "postgres"),
		DBPassword:          getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:           getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:       getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:       getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:   getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:   getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:      strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password:  getenv("REDIS_PASSWORD", ""),
			DB:        getenvInt("REDIS_DB", 0),
			AuthRate:  getenvFloat("AUTH_RATE_LIMIT_PER_SECOND", 1),
			AuthBurst: getenvInt("AUTH_RATE_LIMIT_BURST", 10),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@appraisal.local"),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction || c.Environment == "prod"
}

func normalizeMembershipCheck(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case MembershipCheckLive:
		return MembershipCheckLive
	default:
		return MembershipCheckSnapshot
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
