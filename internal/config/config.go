package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// StoreConfig es lo minimo para abrir el store y hashear passwords. La usa
// tambien adminctl, que no necesita JWT ni SMTP.
type StoreConfig struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data"`

	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"10"`
}

// Config centraliza la configuración del servicio.
type Config struct {
	StoreConfig

	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	JWTSecret       string `env:"JWT_SECRET,required,notEmpty"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"168"`
	CookieSecure    bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieCrossSite bool   `env:"COOKIE_CROSS_SITE" envDefault:"false"`

	OTPTTLMinutes         int `env:"OTP_TTL_MINUTES" envDefault:"15"`
	OTPRequestsPerWindow  int `env:"OTP_REQUESTS_PER_WINDOW" envDefault:"3"`
	OTPAttemptsPerWindow  int `env:"OTP_ATTEMPTS_PER_WINDOW" envDefault:"5"`
	OTPLimitWindowMinutes int `env:"OTP_LIMIT_WINDOW_MINUTES" envDefault:"15"`
	RateLimitPerMinute    int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStoreConfig carga solo la configuracion del store.
func LoadStoreConfig() (*StoreConfig, error) {
	var cfg StoreConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *StoreConfig) validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unknown PASSWORD_HASHER %q", c.PasswordHasher)
	}
	return nil
}

// SessionTTL devuelve la vigencia del token de sesion.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

func (c *Config) OTPLimitWindow() time.Duration {
	return time.Duration(c.OTPLimitWindowMinutes) * time.Minute
}
