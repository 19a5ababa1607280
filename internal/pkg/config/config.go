package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8000"`
	AdminAddr   string `env:"ADMIN_ADDR" envDefault:":9091"`
	AdminAPIKey string `env:"ADMIN_API_KEY,required"`

	PostgresURL        string        `env:"POSTGRES_URL"` // empty selects the file credential store
	CredentialsFile    string        `env:"CREDENTIALS_FILE" envDefault:"./data/credentials.json"`
	CredentialCacheTTL time.Duration `env:"CREDENTIAL_CACHE_TTL" envDefault:"5m"`
	SessionDataDir     string        `env:"SESSION_DATA_DIR" envDefault:"./sessions"`
	RestoreSessions    bool          `env:"RESTORE_SESSIONS" envDefault:"true"`

	RedisAddr           string        `env:"REDIS_ADDR"` // empty disables the dispatch audit stream
	DispatchStream      string        `env:"DISPATCH_STREAM" envDefault:"dispatch_events"`
	DispatchGroup       string        `env:"DISPATCH_GROUP" envDefault:"dispatch-archivers"`
	RedisHealthInterval time.Duration `env:"REDIS_HEALTH_INTERVAL" envDefault:"5s"`
	ArchiveInterval     time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"1s"`
	ArchiveRetryCount   int           `env:"ARCHIVE_RETRY_COUNT" envDefault:"3"`
	ArchiveRetryBackoff time.Duration `env:"ARCHIVE_RETRY_BACKOFF" envDefault:"1s"`

	DriverURL     string        `env:"DRIVER_URL" envDefault:"ws://localhost:3000"`
	QRMaxAttempts int           `env:"QR_MAX_ATTEMPTS" envDefault:"4"`
	QRWindow      time.Duration `env:"QR_WINDOW" envDefault:"60s"`

	PhoneCountryCode    string `env:"PHONE_COUNTRY_CODE" envDefault:"55"`
	PhoneLocalMinDigits int    `env:"PHONE_LOCAL_MIN_DIGITS" envDefault:"10"`
	PhoneLocalMaxDigits int    `env:"PHONE_LOCAL_MAX_DIGITS" envDefault:"11"`
	PhoneMinDigits      int    `env:"PHONE_MIN_DIGITS" envDefault:"12"`
	PhoneMaxDigits      int    `env:"PHONE_MAX_DIGITS" envDefault:"15"`
	ChatIDSuffix        string `env:"CHAT_ID_SUFFIX" envDefault:"@s.whatsapp.net"`

	SendTimeout     time.Duration `env:"SEND_TIMEOUT" envDefault:"30s"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"5m"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"10485760"` // 10MB
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
