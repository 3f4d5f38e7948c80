package config

import (
	"os"
	"strconv"
	"time"
	"transferdesk/interfaces"
	"transferdesk/services"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// Server-to-server token for the event intake endpoint
	ServiceToken string

	// Twilio Config
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// SMTP Settings
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Dispatch Settings
	DispatchWorkers    int
	DispatchRetries    int
	DispatchRetryDelay time.Duration
	HandleTimeout      time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   int // minutes
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/transferdesk"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),

		ServiceToken: getEnv("SERVICE_TOKEN", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@transferdesk.app"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "TransferDesk"),

		DispatchWorkers:    getEnvAsInt("DISPATCH_WORKERS", 8),
		DispatchRetries:    getEnvAsInt("DISPATCH_RETRIES", 3),
		DispatchRetryDelay: time.Duration(getEnvAsInt("DISPATCH_RETRY_DELAY_MS", 500)) * time.Millisecond,
		HandleTimeout:      time.Duration(getEnvAsInt("HANDLE_TIMEOUT_SECONDS", 30)) * time.Second,

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 1),
	}
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	return redis.NewClient(opt)
}

// InitEmailProvider returns the SMTP provider, or the mock when SMTP is not
// configured so development setups still work end to end.
func (c *Config) InitEmailProvider() interfaces.DeliveryProvider {
	if c.SMTPHost == "" {
		logrus.Warn("SMTP not configured, using mock email provider")
		return services.NewMockEmailProvider()
	}
	return services.NewEmailService(services.EmailConfig{
		Host:      c.SMTPHost,
		Port:      c.SMTPPort,
		Username:  c.SMTPUsername,
		Password:  c.SMTPPassword,
		FromEmail: c.SMTPFrom,
		FromName:  c.SMTPFromName,
	})
}

// InitSMSProvider returns the Twilio provider, or the mock when credentials
// are missing.
func (c *Config) InitSMSProvider() interfaces.DeliveryProvider {
	if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" {
		logrus.Warn("Twilio not configured, using mock SMS provider")
		return services.NewMockSMSProvider()
	}
	return services.NewSMSService(services.SMSConfig{
		AccountSID: c.TwilioAccountSID,
		AuthToken:  c.TwilioAuthToken,
		FromNumber: c.TwilioFromNumber,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
