// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DevJWTSecret is used when JWT_SECRET is unset. Never deploy with it.
const DevJWTSecret = "dev-insecure-secret-change"

const (
	StorageLocal = "local"
	StorageB2    = "b2"
)

// Config is the typed view of the settings used by the server and the tools.
type Config struct {
	HTTPAddr      string
	DatabaseDSN   string
	AutoMigrate   bool
	JWTSecret     string
	SessionTTL    time.Duration
	CookieSecure  bool
	LogLevel      string
	LogFormat     string
	AdminEmail    string
	AdminPassword string
	Storage       StorageConfig
}

// StorageConfig selects and configures the signature image store.
type StorageConfig struct {
	Driver     string
	UploadBase string
	PublicPath string
	MaxBytes   int64
	B2KeyID    string
	B2AppKey   string
	B2Bucket   string
}

// UsingDevSecret reports whether the JWT secret is the development fallback.
func (c Config) UsingDevSecret() bool {
	return c.JWTSecret == DevJWTSecret
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("JWT_SECRET", DevJWTSecret)
	v.SetDefault("SESSION_TTL", 7*24*time.Hour)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("ADMIN_EMAIL", "admin@example.com")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("UPLOAD_BASE", "uploads")
	v.SetDefault("UPLOAD_PUBLIC_PATH", "/uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 5*1024*1024)
}

// Load reads ./.env when present (variables already in the environment win) and then
// resolves every setting from the environment with its default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv resolves settings from the process environment only.
func FromEnv() Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return Config{
		HTTPAddr:      v.GetString("HTTP_ADDR"),
		DatabaseDSN:   strings.TrimSpace(v.GetString("DB_DSN")),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		SessionTTL:    v.GetDuration("SESSION_TTL"),
		CookieSecure:  v.GetBool("COOKIE_SECURE"),
		LogLevel:      strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:     strings.ToLower(v.GetString("LOG_FORMAT")),
		AdminEmail:    strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		Storage: StorageConfig{
			Driver:     strings.ToLower(v.GetString("STORAGE_DRIVER")),
			UploadBase: v.GetString("UPLOAD_BASE"),
			PublicPath: strings.TrimRight(v.GetString("UPLOAD_PUBLIC_PATH"), "/"),
			MaxBytes:   v.GetInt64("UPLOAD_MAX_BYTES"),
			B2KeyID:    v.GetString("B2_KEY_ID"),
			B2AppKey:   v.GetString("B2_APP_KEY"),
			B2Bucket:   v.GetString("B2_BUCKET"),
		},
	}
}

// Validate reports settings the server cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DB_DSN is not set; a Postgres DSN is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Storage.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	switch c.Storage.Driver {
	case StorageLocal:
		if c.Storage.UploadBase == "" {
			errs = append(errs, errors.New("UPLOAD_BASE must not be empty"))
		}
	case StorageB2:
		if c.Storage.B2KeyID == "" || c.Storage.B2AppKey == "" || c.Storage.B2Bucket == "" {
			errs = append(errs, errors.New("STORAGE_DRIVER=b2 requires B2_KEY_ID, B2_APP_KEY and B2_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q (want local or b2)", c.Storage.Driver))
	}
	return errors.Join(errs...)
}
