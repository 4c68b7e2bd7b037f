package app

import (
	"os"
	"strconv"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/strategy"
)

type Config struct {
	Issuer  string // service name used in mail and authenticator apps
	BaseURL string // public base URL used in verification links

	DatabaseFile string // path to SQLite database file (default: ./gatehouse.db)
	PepperFile   string // path to password hashing pepper file (default: ./pepper)

	SessionBackend string        // "memory" or "redis" (default: memory)
	RedisAddr      string        // redis host:port, required for the redis backend
	RedisPassword  string        //
	SessionTTL     time.Duration // session lifetime (default: 24h)
	SecureCookies  bool          // set the Secure cookie attribute (default: true)

	VerifyTokenSecret []byte        // HS256 key for email verification tokens
	VerifyTokenTTL    time.Duration // verification link lifetime (default: 48h)

	SMTPHost     string // mail relay; when empty mail is logged instead of sent
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	Facebook strategy.ProviderConfig
	GitHub   strategy.ProviderConfig
	Twitter  strategy.ProviderConfig
	Google   strategy.ProviderConfig

	Env                 string        // dev, staging, prod (default: dev)
	LogLevel            string        // debug, info, warn, error (default: info)
	LogFormat           string        // json, text (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:  getEnvOrDefault("GATE_ISSUER", "gatehouse"),
		BaseURL: getEnvOrDefault("GATE_BASE_URL", "http://localhost:8080"),

		DatabaseFile: getEnvOrDefault("GATE_DATABASE_FILE", "gatehouse.db"),
		PepperFile:   getEnvOrDefault("GATE_PEPPER_FILE", "pepper"),

		SessionBackend: getEnvOrDefault("GATE_SESSION_BACKEND", "memory"),
		RedisAddr:      os.Getenv("GATE_REDIS_ADDR"),
		RedisPassword:  os.Getenv("GATE_REDIS_PASSWORD"),
		SessionTTL:     getEnvDurationOrDefault("GATE_SESSION_TTL", 24*time.Hour),
		SecureCookies:  getEnvBoolOrDefault("GATE_SECURE_COOKIES", true),

		VerifyTokenSecret: []byte(os.Getenv("GATE_VERIFY_TOKEN_SECRET")),
		VerifyTokenTTL:    getEnvDurationOrDefault("GATE_VERIFY_TOKEN_TTL", 48*time.Hour),

		SMTPHost:     os.Getenv("GATE_SMTP_HOST"),
		SMTPPort:     getEnvOrDefault("GATE_SMTP_PORT", "465"),
		SMTPUsername: os.Getenv("GATE_SMTP_USERNAME"),
		SMTPPassword: os.Getenv("GATE_SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("GATE_SMTP_FROM"),

		Facebook: providerFromEnv("FACEBOOK"),
		GitHub:   providerFromEnv("GITHUB"),
		Twitter:  providerFromEnv("TWITTER"),
		Google:   providerFromEnv("GOOGLE"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	return cfg
}

func providerFromEnv(prefix string) strategy.ProviderConfig {
	return strategy.ProviderConfig{
		ClientID:     os.Getenv("GATE_" + prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv("GATE_" + prefix + "_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GATE_" + prefix + "_REDIRECT_URL"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
