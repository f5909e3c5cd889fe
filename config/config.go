package config

import (
	"errors"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Payment    PaymentConfig
	Escrow     EscrowConfig
	Firebase   FirebaseConfig
	RabbitMQ   RabbitMQConfig
	Redis      RedisConfig
	Jobs       JobsConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// PaymentConfig selects the gateway. Without a Stripe secret key the offline
// stub gateway is used and webhooks are verified with WebhookSecret as HMAC.
type PaymentConfig struct {
	StripeSecretKey string
	WebhookSecret   string
	SignatureHeader string
	SuccessURL      string // {contract_id} is substituted
	CancelURL       string
}

// EscrowConfig is read once at startup.
type EscrowConfig struct {
	PlatformFeePercent float64
	DefaultCurrency    string
}

type FirebaseConfig struct {
	CredentialsPath string
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type RedisConfig struct {
	URL             string
	RateLimitPrefix string
	RequestsPerMin  int
}

type JobsConfig struct {
	ReleaseReminderSchedule string
	ReleaseReminderAfter    time.Duration
}

// Load reads an optional .env file from dir, then the environment.
func Load(dir string) (*Config, error) {
	if dir != "" {
		if err := godotenv.Load(dir + "/.env"); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[Config] could not read .env: %v", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", "8099")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("DATABASE_DSN", "hireloop:hireloop@tcp(localhost:3306)/hireloop?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true")
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 100)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("JWT_ACCESS_SECRET", "change-me-in-production")
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_ISSUER", "hireloop")
	v.SetDefault("PAYMENT_SIGNATURE_HEADER", "Stripe-Signature")
	v.SetDefault("PAYMENT_SUCCESS_URL", "http://localhost:3000/contracts/{contract_id}?checkout=success")
	v.SetDefault("PAYMENT_CANCEL_URL", "http://localhost:3000/contracts/{contract_id}?checkout=cancelled")
	v.SetDefault("PLATFORM_FEE_PERCENT", 10.0)
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("RABBITMQ_EXCHANGE", "escrow_events")
	v.SetDefault("REDIS_RATE_LIMIT_PREFIX", "hireloop:rate_limit")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 100)
	v.SetDefault("RELEASE_REMINDER_SCHEDULE", "@every 1h")
	v.SetDefault("RELEASE_REMINDER_AFTER", "24h")

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{
		"STRIPE_SECRET_KEY", "PAYMENT_WEBHOOK_SECRET", "FIREBASE_CREDENTIALS_PATH",
		"CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET",
		"RABBITMQ_URL", "REDIS_URL",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Env:          v.GetString("APP_ENV"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("DATABASE_DSN"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
			AccessExpiry: v.GetDuration("JWT_ACCESS_EXPIRY"),
			Issuer:       v.GetString("JWT_ISSUER"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
			APIKey:    v.GetString("CLOUDINARY_API_KEY"),
			APISecret: v.GetString("CLOUDINARY_API_SECRET"),
		},
		Payment: PaymentConfig{
			StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:   v.GetString("PAYMENT_WEBHOOK_SECRET"),
			SignatureHeader: v.GetString("PAYMENT_SIGNATURE_HEADER"),
			SuccessURL:      v.GetString("PAYMENT_SUCCESS_URL"),
			CancelURL:       v.GetString("PAYMENT_CANCEL_URL"),
		},
		Escrow: EscrowConfig{
			PlatformFeePercent: clampPercent(v.GetFloat64("PLATFORM_FEE_PERCENT")),
			DefaultCurrency:    strings.ToUpper(strings.TrimSpace(v.GetString("DEFAULT_CURRENCY"))),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
		},
		Redis: RedisConfig{
			URL:             v.GetString("REDIS_URL"),
			RateLimitPrefix: v.GetString("REDIS_RATE_LIMIT_PREFIX"),
			RequestsPerMin:  v.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
		Jobs: JobsConfig{
			ReleaseReminderSchedule: v.GetString("RELEASE_REMINDER_SCHEDULE"),
			ReleaseReminderAfter:    v.GetDuration("RELEASE_REMINDER_AFTER"),
		},
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if len(cfg.Escrow.DefaultCurrency) != 3 {
		log.Printf("[Config] invalid DEFAULT_CURRENCY %q, using USD", cfg.Escrow.DefaultCurrency)
		cfg.Escrow.DefaultCurrency = "USD"
	}
	if cfg.Redis.RequestsPerMin <= 0 {
		cfg.Redis.RequestsPerMin = 100
	}
	return cfg, nil
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		log.Printf("[Config] PLATFORM_FEE_PERCENT %v out of range, using 0", p)
		return 0
	}
	if p > 100 {
		log.Printf("[Config] PLATFORM_FEE_PERCENT %v out of range, using 100", p)
		return 100
	}
	return p
}
