package config

import (
	"errors"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	// DefaultSessionSecret is only acceptable outside production.
	DefaultSessionSecret = "your-secret-key-change-in-production"
)

var ErrDefaultSecret = errors.New("SESSION_SECRET must be set in production")

// FeatureFlags are resolved once at startup and injected into the components
// that branch on them.
type FeatureFlags struct {
	ImpersonationEnabled bool
}

type PayPalConfig struct {
	ClientID    string
	Secret      string
	Environment string // "sandbox" or "production"
	Currency    string
	BrandName   string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type WahaConfig struct {
	BaseURL string
	APIKey  string
}

// Config holds every runtime setting of the server, worker and tools.
type Config struct {
	Env                     string
	Port                    string
	AppURL                  string
	DatabaseURL             string
	RedisURL                string
	SessionSecret           string
	FirebaseCredentialsPath string
	AdminEmail              string
	AdminName               string
	RateLimitPerSecond      float64

	PayPal   PayPalConfig
	Google   GoogleConfig
	SMTP     SMTPConfig
	Waha     WahaConfig
	Features FeatureFlags
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Unset APP_ENV means production, so a forgotten variable never enables
	// impersonation or drops the Secure cookie flag.
	env := getEnv("APP_ENV", EnvProduction)

	cfg := &Config{
		Env:                     env,
		Port:                    getEnv("PORT", "8080"),
		AppURL:                  getEnv("APP_URL", "http://localhost:8080"),
		DatabaseURL:             getEnv("DATABASE_URL", "file:retreat.db"),
		RedisURL:                os.Getenv("REDIS_URL"),
		SessionSecret:           getEnv("SESSION_SECRET", DefaultSessionSecret),
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		AdminEmail:              os.Getenv("ADMIN_EMAIL"),
		AdminName:               getEnv("ADMIN_NAME", "Admin"),
		RateLimitPerSecond:      getEnvFloat("RATE_LIMIT_PER_SECOND", 10),
		PayPal: PayPalConfig{
			ClientID:    os.Getenv("PAYPAL_CLIENT_ID"),
			Secret:      os.Getenv("PAYPAL_CLIENT_SECRET"),
			Environment: getEnv("PAYPAL_ENVIRONMENT", "sandbox"),
			Currency:    getEnv("PAYPAL_CURRENCY", "CAD"),
			BrandName:   getEnv("PAYPAL_BRAND_NAME", "Rigdzen"),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("EMAIL_FROM"),
		},
		Waha: WahaConfig{
			BaseURL: getEnv("WAHA_BASE_URL", "http://waha:3000"),
			APIKey:  os.Getenv("WAHA_API_KEY"),
		},
	}
	cfg.Features = FeaturesFor(env)

	return cfg
}

// FeaturesFor derives the feature flags of an environment.
// Impersonation is a development-only tool.
func FeaturesFor(env string) FeatureFlags {
	return FeatureFlags{
		ImpersonationEnabled: env == EnvDevelopment,
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate rejects settings the server must not start with.
func (c *Config) Validate() error {
	if c.IsProduction() && c.SessionSecret == DefaultSessionSecret {
		return ErrDefaultSecret
	}
	return nil
}

// SecureCookies reports whether cookies should carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.IsProduction()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
