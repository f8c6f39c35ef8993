package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

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

	JWTIssuer         string            `env:"JWT_ISSUER" envDefault:"auth-service"`
	JWTAudience       string            `env:"JWT_AUDIENCE" envDefault:"bike-ecosystem"`
	JWTActiveKeyID    string            `env:"JWT_ACTIVE_KEY_ID,required,notEmpty"`
	JWTPrivateKeyPath string            `env:"JWT_PRIVATE_KEY_PATH,required,notEmpty"`
	JWTPublicKeys     map[string]string `env:"JWT_PUBLIC_KEYS" envSeparator:"," envKeyValSeparator:"="`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	LockoutMaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	LockoutDuration    time.Duration `env:"LOCKOUT_DURATION" envDefault:"30m"`

	EmailVerificationTTLMinutes int `env:"EMAIL_VERIFICATION_TTL_MINUTES" envDefault:"1440"`
	PasswordResetTTLMinutes     int `env:"PASSWORD_RESET_TTL_MINUTES" envDefault:"30"`

	RefreshReuseRevokesFamily      bool `env:"REFRESH_REUSE_REVOKES_FAMILY" envDefault:"true"`
	SocialLinkRequireVerifiedEmail bool `env:"SOCIAL_LINK_REQUIRE_VERIFIED_EMAIL" envDefault:"false"`

	GoogleClientID      string        `env:"GOOGLE_CLIENT_ID"`
	SocialVerifyTimeout time.Duration `env:"SOCIAL_VERIFY_TIMEOUT" envDefault:"5s"`
	EmailSendTimeout    time.Duration `env:"EMAIL_SEND_TIMEOUT" envDefault:"10s"`

	EmailRequestLimit  int           `env:"EMAIL_REQUEST_LIMIT" envDefault:"3"`
	EmailRequestWindow time.Duration `env:"EMAIL_REQUEST_WINDOW" envDefault:"10m"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza valores que dejarian al servicio en un estado inseguro.
func (c *Config) Validate() error {
	var errs []error
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be positive"))
	}
	if c.LockoutMaxAttempts <= 0 {
		errs = append(errs, errors.New("LOCKOUT_MAX_ATTEMPTS must be positive"))
	}
	if c.LockoutDuration <= 0 {
		errs = append(errs, errors.New("LOCKOUT_DURATION must be positive"))
	}
	if c.EmailVerificationTTLMinutes <= 0 || c.PasswordResetTTLMinutes <= 0 {
		errs = append(errs, errors.New("verification token TTLs must be positive"))
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_ISSUER and JWT_AUDIENCE are required"))
	}
	return errors.Join(errs...)
}
