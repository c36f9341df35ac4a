package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for the patient collection and account records.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	StoreBackend         string        `mapstructure:"STORE_BACKEND"`
	DataDir              string        `mapstructure:"DATA_DIR"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	MongoURI             string        `mapstructure:"MONGO_URI"`
	MongoDatabase        string        `mapstructure:"MONGO_DATABASE"`
	JWTSecret            string        `mapstructure:"JWT_SECRET"`
	TokenTTL             time.Duration `mapstructure:"TOKEN_TTL"`
	AdminEmail           string        `mapstructure:"ADMIN_EMAIL"`
	AdminPassword        string        `mapstructure:"ADMIN_PASSWORD"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	PageSize             int           `mapstructure:"PAGE_SIZE"`
	FeedbackDismissAfter time.Duration `mapstructure:"FEEDBACK_DISMISS_AFTER"`
	MaxBodySize          string        `mapstructure:"MAX_BODY_SIZE"`
	MaxUploadSize        string        `mapstructure:"MAX_UPLOAD_SIZE"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	APIURL               string        `mapstructure:"API_URL"`
	ClientStateDir       string        `mapstructure:"CLIENT_STATE_DIR"`
}

var keys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATA_DIR",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MONGO_URI", "MONGO_DATABASE",
	"JWT_SECRET", "TOKEN_TTL", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	"CORS_ORIGINS", "PAGE_SIZE", "FEEDBACK_DISMISS_AFTER",
	"MAX_BODY_SIZE", "MAX_UPLOAD_SIZE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"API_URL", "CLIENT_STATE_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendFile)
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MONGO_DATABASE", "clinicboard")
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("FEEDBACK_DISMISS_AFTER", "3s")
	v.SetDefault("MAX_BODY_SIZE", "1M")
	v.SetDefault("MAX_UPLOAD_SIZE", "25M")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("API_URL", "http://localhost:8000/api/v1")
	v.SetDefault("CLIENT_STATE_DIR", defaultClientStateDir())

	// Bind explicitly so Unmarshal sees env-only values.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings the server needs before it binds a port.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required when STORE_BACKEND is %q", BackendFile)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_BACKEND is %q", BackendMongo)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, file, postgres, mongo, got %q", c.StoreBackend)
	}

	if !c.IsDev() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development")
		}
		if c.AdminEmail != "" && c.AdminPassword == "" {
			return fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
		}
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.FeedbackDismissAfter <= 0 {
		return fmt.Errorf("FEEDBACK_DISMISS_AFTER must be positive, got %s", c.FeedbackDismissAfter)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst == 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive when RATE_LIMIT_RPS is set")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	return nil
}
