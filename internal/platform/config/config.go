package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SettingsFileEnv names an optional settings file layered under the environment.
const SettingsFileEnv = "APP_SETTINGS"

const minSecretKeyLength = 32

// Config is the full runtime configuration. Only Server, Log, Cache and
// Tracing are validated at startup; Database, SMTP and SMS are checked by
// their components at first use.
type Config struct {
	Server   Server
	Log      Log
	Database Database
	SMTP     SMTP
	SMS      SMS
	Cache    Cache
	Redis    RedisConfig
	Tracing  Tracing
}

// Server captures HTTP server level configuration.
type Server struct {
	Port           int
	ServerAddress  string // overrides auto-detected address embedded in notifications
	SecretKey      string
	RequestTimeout time.Duration
}

// Addr is the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Log struct {
	Level  string
	Format string
}

// Database holds connection parameters for the storage gateway.
type Database struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	ConnectTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
}

// Missing lists the environment variables required by the gateway that are unset.
func (d Database) Missing() []string {
	var missing []string
	if d.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if d.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	if d.User == "" {
		missing = append(missing, "DB_USER")
	}
	if d.Password == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	return missing
}

// SMTP configures the email relay.
type SMTP struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string // mandatory, opportunistic or none
	Timeout   time.Duration
}

func (s SMTP) Missing() []string {
	var missing []string
	if s.Host == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if s.Port == 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if s.Username == "" {
		missing = append(missing, "SMTP_USERNAME")
	}
	if s.Password == "" {
		missing = append(missing, "SMTP_PASSWORD")
	}
	if s.From == "" {
		missing = append(missing, "SMTP_FROM")
	}
	return missing
}

// SMS configures the Twilio messaging client.
type SMS struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

func (s SMS) Missing() []string {
	var missing []string
	if s.AccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if s.AuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if s.FromNumber == "" {
		missing = append(missing, "TWILIO_FROM_NUMBER")
	}
	return missing
}

// Cache selects the list cache backend.
type Cache struct {
	Backend string // none, memory or redis
	TTL     time.Duration
}

const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// RedisConfig configures the redis client used by the redis cache backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Tracing configures the OpenTelemetry provider.
type Tracing struct {
	Enabled      bool
	Exporter     string // none, stdout or otlp
	OTLPEndpoint string
	SampleRate   float64
	ServiceName  string
}

var defaults = map[string]any{
	"PORT":                  5000,
	"REQUEST_TIMEOUT":       "30s",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "json",
	"DB_PORT":               5432,
	"DB_SSLMODE":            "disable",
	"DB_CONNECT_TIMEOUT":    "5s",
	"DB_MAX_OPEN_CONNS":     10,
	"DB_MAX_IDLE_CONNS":     5,
	"DB_CONN_MAX_IDLE_TIME": "5m",
	"SMTP_PORT":             587,
	"SMTP_TLS":              "mandatory",
	"SMTP_TIMEOUT":          "10s",
	"SMS_TIMEOUT":           "10s",
	"CACHE_BACKEND":         CacheBackendNone,
	"CACHE_TTL":             "30s",
	"REDIS_POOL_SIZE":       10,
	"REDIS_MIN_IDLE_CONNS":  2,
	"REDIS_DIAL_TIMEOUT":    "5s",
	"REDIS_READ_TIMEOUT":    "3s",
	"REDIS_WRITE_TIMEOUT":   "3s",
	"TRACING_ENABLED":       false,
	"TRACING_EXPORTER":      "none",
	"OTLP_ENDPOINT":         "localhost:4317",
	"TRACING_SAMPLE_RATE":   1.0,
	"TRACING_SERVICE_NAME":  "registro",
}

// keys without defaults that still need env binding
var unsetKeys = []string{
	"SERVER_ADDRESS", "SECRET_KEY",
	"DB_HOST", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"SMTP_HOST", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER",
	"REDIS_URL",
}

// Load reads configuration from the environment, layered over an optional
// settings file named by APP_SETTINGS. Keys in the file use the same names as
// the environment variables.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key := range defaults {
		_ = v.BindEnv(key)
	}
	for _, key := range unsetKeys {
		_ = v.BindEnv(key)
	}

	_ = v.BindEnv(SettingsFileEnv)
	if path := v.GetString(SettingsFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read settings file %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Server: Server{
			Port:           v.GetInt("PORT"),
			ServerAddress:  strings.TrimSpace(v.GetString("SERVER_ADDRESS")),
			SecretKey:      v.GetString("SECRET_KEY"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Database: Database{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Name:            v.GetString("DB_NAME"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			ConnectTimeout:  v.GetDuration("DB_CONNECT_TIMEOUT"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		SMTP: SMTP{
			Host:      v.GetString("SMTP_HOST"),
			Port:      v.GetInt("SMTP_PORT"),
			Username:  v.GetString("SMTP_USERNAME"),
			Password:  v.GetString("SMTP_PASSWORD"),
			From:      v.GetString("SMTP_FROM"),
			TLSPolicy: strings.ToLower(v.GetString("SMTP_TLS")),
			Timeout:   v.GetDuration("SMTP_TIMEOUT"),
		},
		SMS: SMS{
			AccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
			FromNumber: v.GetString("TWILIO_FROM_NUMBER"),
			Timeout:    v.GetDuration("SMS_TIMEOUT"),
		},
		Cache: Cache{
			Backend: strings.ToLower(v.GetString("CACHE_BACKEND")),
			TTL:     v.GetDuration("CACHE_TTL"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Tracing: Tracing{
			Enabled:      v.GetBool("TRACING_ENABLED"),
			Exporter:     strings.ToLower(v.GetString("TRACING_EXPORTER")),
			OTLPEndpoint: v.GetString("OTLP_ENDPOINT"),
			SampleRate:   v.GetFloat64("TRACING_SAMPLE_RATE"),
			ServiceName:  v.GetString("TRACING_SERVICE_NAME"),
		},
	}
}

// Validate checks the settings the process cannot start without.
func (c Config) Validate() error {
	var errs []error
	if len(c.Server.SecretKey) < minSecretKeyLength {
		errs = append(errs, fmt.Errorf("SECRET_KEY must be set and at least %d characters", minSecretKeyLength))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Server.Port))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of json, text", c.Log.Format))
	}
	switch c.Cache.Backend {
	case CacheBackendNone, CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when CACHE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND %q is not one of none, memory, redis", c.Cache.Backend))
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "none", "stdout", "otlp":
		default:
			errs = append(errs, fmt.Errorf("TRACING_EXPORTER %q is not one of none, stdout, otlp", c.Tracing.Exporter))
		}
	}
	return errors.Join(errs...)
}
