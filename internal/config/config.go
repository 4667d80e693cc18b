package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	// InviteBaseURL is the public base URL embedded in invitation links,
	// e.g. https://app.crewplan.dev.
	InviteBaseURL string

	SessionTTLHours int

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	Email EmailConfig
}

// EmailConfig holds outbound SMTP settings. An empty host means no email
// channel is configured; outside development that makes invitation creation
// unavailable.
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

	return Config{
		AppName:         getenv("APP_SERVICE", "crewplan"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		InviteBaseURL:   strings.TrimRight(getenv("INVITE_BASE_URL", "http://localhost:8080"), "/"),
		SessionTTLHours: getenvInt("SESSION_TTL_HOURS", 72),
		DBType:          getenv("DATABASE_TYPE", "postgres"),
		DBHost:          getenv("DATABASE_HOST", "localhost"),
		DBPort:          getenv("DATABASE_PORT", "5432"),
		DBName:          getenv("DATABASE_NAME", "crewplan"),
		DBUser:          getenv("DATABASE_USER", "postgres"),
		DBPassword:      getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:       getenv("DATABASE_SSLMODE", "disable"),
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@crewplan.dev"),
		},
	}
}

// IsDevelopment reports whether the app runs in a development-like
// environment, where a missing email channel is tolerated.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
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
