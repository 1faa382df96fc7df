package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server   ServerConfig
	Dataset  DatasetConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Secure          bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatasetConfig controls how uploaded sales files are accepted and parsed.
type DatasetConfig struct {
	// CSVFile is loaded at startup when set; uploads replace it.
	CSVFile         string
	MaxUploadBytes  int64
	DateLayouts     []string
	RawTableMaxRows int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableCSRF      bool
	CSRFKey         string
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// DefaultDateLayouts are the accepted spellings of the date column. All of
// them are year-first so 01/02/2024 style ambiguity cannot arise.
var DefaultDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Dataset: DatasetConfig{
			MaxUploadBytes:  32 << 20,
			DateLayouts:     append([]string(nil), DefaultDateLayouts...),
			RawTableMaxRows: 500,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableCSRF:      true,
			EnableRateLimit: true,
			RateLimitRPS:    2,
			RateLimitBurst:  5,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnvString("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Secure = getEnvBool("SERVER_SECURE", cfg.Server.Secure)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Dataset.CSVFile = getEnvString("CSV_FILE", cfg.Dataset.CSVFile)
	cfg.Dataset.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", cfg.Dataset.MaxUploadBytes)
	cfg.Dataset.DateLayouts = getEnvStringSlice("DATE_LAYOUTS", cfg.Dataset.DateLayouts, "|")
	cfg.Dataset.RawTableMaxRows = getEnvInt("RAW_TABLE_MAX_ROWS", cfg.Dataset.RawTableMaxRows)

	cfg.Logger.Level = getEnvString("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Format = getEnvString("LOG_FORMAT", cfg.Logger.Format)

	cfg.Security.EnableCSRF = getEnvBool("SECURITY_CSRF_ENABLED", cfg.Security.EnableCSRF)
	cfg.Security.CSRFKey = getEnvString("SECURITY_CSRF_KEY", cfg.Security.CSRFKey)
	cfg.Security.EnableRateLimit = getEnvBool("SECURITY_RATE_LIMIT_ENABLED", cfg.Security.EnableRateLimit)
	cfg.Security.RateLimitRPS = getEnvInt("SECURITY_RATE_LIMIT_RPS", cfg.Security.RateLimitRPS)
	cfg.Security.RateLimitBurst = getEnvInt("SECURITY_RATE_LIMIT_BURST", cfg.Security.RateLimitBurst)
	cfg.Security.AllowedOrigins = getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", cfg.Security.AllowedOrigins, ",")
	cfg.Security.TrustedProxies = getEnvStringSlice("SECURITY_TRUSTED_PROXIES", cfg.Security.TrustedProxies, ",")
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Dataset.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if len(c.Dataset.DateLayouts) == 0 {
		return fmt.Errorf("at least one date layout is required")
	}

	if c.Dataset.RawTableMaxRows < 0 {
		return fmt.Errorf("raw table max rows cannot be negative")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Security.CSRFKey != "" {
		if _, err := c.Security.CSRFKeyBytes(); err != nil {
			return err
		}
	}

	return nil
}

// CSRFKeyBytes decodes the configured key, which must be 32 bytes hex encoded.
func (s SecurityConfig) CSRFKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(s.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("csrf key must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("csrf key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// fileConfig mirrors Config for TOML decoding. Durations are strings such as
// "30s"; pointer fields distinguish "unset" from false.
type fileConfig struct {
	Server struct {
		Host            string `toml:"host"`
		Port            int    `toml:"port"`
		Secure          *bool  `toml:"secure"`
		ReadTimeout     string `toml:"read_timeout"`
		WriteTimeout    string `toml:"write_timeout"`
		IdleTimeout     string `toml:"idle_timeout"`
		ShutdownTimeout string `toml:"shutdown_timeout"`
	} `toml:"server"`
	Dataset struct {
		CSVFile         string   `toml:"csv_file"`
		MaxUploadBytes  int64    `toml:"max_upload_bytes"`
		DateLayouts     []string `toml:"date_layouts"`
		RawTableMaxRows *int     `toml:"raw_table_max_rows"`
	} `toml:"dataset"`
	Logger struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"logger"`
	Security struct {
		EnableCSRF      *bool    `toml:"csrf_enabled"`
		CSRFKey         string   `toml:"csrf_key"`
		EnableRateLimit *bool    `toml:"rate_limit_enabled"`
		RateLimitRPS    int      `toml:"rate_limit_rps"`
		RateLimitBurst  int      `toml:"rate_limit_burst"`
		AllowedOrigins  []string `toml:"allowed_origins"`
		TrustedProxies  []string `toml:"trusted_proxies"`
	} `toml:"security"`
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return err
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Server.Host, fc.Server.Host)
	setInt(&cfg.Server.Port, fc.Server.Port)
	if fc.Server.Secure != nil {
		cfg.Server.Secure = *fc.Server.Secure
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_timeout", fc.Server.ReadTimeout, &cfg.Server.ReadTimeout},
		{"server.write_timeout", fc.Server.WriteTimeout, &cfg.Server.WriteTimeout},
		{"server.idle_timeout", fc.Server.IdleTimeout, &cfg.Server.IdleTimeout},
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	setString(&cfg.Dataset.CSVFile, fc.Dataset.CSVFile)
	if fc.Dataset.MaxUploadBytes != 0 {
		cfg.Dataset.MaxUploadBytes = fc.Dataset.MaxUploadBytes
	}
	if len(fc.Dataset.DateLayouts) > 0 {
		cfg.Dataset.DateLayouts = fc.Dataset.DateLayouts
	}
	if fc.Dataset.RawTableMaxRows != nil {
		cfg.Dataset.RawTableMaxRows = *fc.Dataset.RawTableMaxRows
	}

	setString(&cfg.Logger.Level, fc.Logger.Level)
	setString(&cfg.Logger.Format, fc.Logger.Format)

	if fc.Security.EnableCSRF != nil {
		cfg.Security.EnableCSRF = *fc.Security.EnableCSRF
	}
	setString(&cfg.Security.CSRFKey, fc.Security.CSRFKey)
	if fc.Security.EnableRateLimit != nil {
		cfg.Security.EnableRateLimit = *fc.Security.EnableRateLimit
	}
	setInt(&cfg.Security.RateLimitRPS, fc.Security.RateLimitRPS)
	setInt(&cfg.Security.RateLimitBurst, fc.Security.RateLimitBurst)
	if len(fc.Security.AllowedOrigins) > 0 {
		cfg.Security.AllowedOrigins = fc.Security.AllowedOrigins
	}
	if len(fc.Security.TrustedProxies) > 0 {
		cfg.Security.TrustedProxies = fc.Security.TrustedProxies
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string, sep string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, sep)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
