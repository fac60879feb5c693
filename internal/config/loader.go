package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/example/vetclinic-scheduler/internal/logging"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "SCHEDULER"

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort        int
	StorageDriver   string
	SQLiteDSN       string
	PostgresURL     string
	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	Location              *time.Location
	ConflictLookback      time.Duration
	NextAvailableAttempts int
	MaxAvailabilityDays   int
	AvailabilityCacheTTL  time.Duration

	RedisURL          string
	RateLimit         int
	RateLimitWindow   time.Duration
	RateLimitFailOpen bool

	KafkaBrokers string

	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64
}

// rawConfig mirrors the environment as strings so every value can be validated and
// reported together.
type rawConfig struct {
	HTTPPort              string `mapstructure:"HTTP_PORT"`
	StorageDriver         string `mapstructure:"STORAGE_DRIVER"`
	SQLiteDSN             string `mapstructure:"SQLITE_DSN"`
	PostgresURL           string `mapstructure:"POSTGRES_URL"`
	ShutdownTimeout       string `mapstructure:"SHUTDOWN_TIMEOUT"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	JWTIssuer             string `mapstructure:"JWT_ISSUER"`
	JWTAudience           string `mapstructure:"JWT_AUDIENCE"`
	Timezone              string `mapstructure:"TIMEZONE"`
	ConflictLookback      string `mapstructure:"CONFLICT_LOOKBACK"`
	NextAvailableAttempts string `mapstructure:"NEXT_AVAILABLE_ATTEMPTS"`
	MaxAvailabilityDays   string `mapstructure:"MAX_AVAILABILITY_DAYS"`
	AvailabilityCacheTTL  string `mapstructure:"AVAILABILITY_CACHE_TTL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RateLimit             string `mapstructure:"RATE_LIMIT"`
	RateLimitWindow       string `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitFailOpen     string `mapstructure:"RATE_LIMIT_FAIL_OPEN"`
	KafkaBrokers          string `mapstructure:"KAFKA_BROKERS"`
	OTelEnabled           string `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint          string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio       string `mapstructure:"OTEL_SAMPLING_RATIO"`
}

var defaults = map[string]string{
	"HTTP_PORT":                   "8080",
	"STORAGE_DRIVER":              StorageSQLite,
	"SQLITE_DSN":                  "scheduler.db",
	"SHUTDOWN_TIMEOUT":            "10s",
	"LOG_LEVEL":                   "info",
	"TIMEZONE":                    "UTC",
	"CONFLICT_LOOKBACK":           "60m",
	"NEXT_AVAILABLE_ATTEMPTS":     "20",
	"MAX_AVAILABILITY_DAYS":       "62",
	"AVAILABILITY_CACHE_TTL":      "15s",
	"RATE_LIMIT":                  "120",
	"RATE_LIMIT_WINDOW":           "1m",
	"RATE_LIMIT_FAIL_OPEN":        "true",
	"OTEL_ENABLED":                "false",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_SAMPLING_RATIO":         "1",
}

var unset = []string{"POSTGRES_URL", "JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "REDIS_URL", "KAFKA_BROKERS"}

// Load parses configuration values from the current process environment.
//
// Defaults apply to optional fields. Every missing required variable and every
// malformed value is collected and reported in a single error.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}
	for _, key := range unset {
		_ = v.BindEnv(key)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return parse(raw)
}

func parse(raw rawConfig) (Config, error) {
	p := &parser{}
	cfg := Config{
		HTTPPort:              p.positiveInt("HTTP_PORT", raw.HTTPPort),
		StorageDriver:         strings.ToLower(strings.TrimSpace(raw.StorageDriver)),
		SQLiteDSN:             strings.TrimSpace(raw.SQLiteDSN),
		PostgresURL:           strings.TrimSpace(raw.PostgresURL),
		ShutdownTimeout:       p.positiveDuration("SHUTDOWN_TIMEOUT", raw.ShutdownTimeout),
		JWTSecret:             p.required("JWT_SECRET", raw.JWTSecret),
		JWTIssuer:             strings.TrimSpace(raw.JWTIssuer),
		JWTAudience:           strings.TrimSpace(raw.JWTAudience),
		ConflictLookback:      p.duration("CONFLICT_LOOKBACK", raw.ConflictLookback),
		NextAvailableAttempts: p.positiveInt("NEXT_AVAILABLE_ATTEMPTS", raw.NextAvailableAttempts),
		MaxAvailabilityDays:   p.positiveInt("MAX_AVAILABILITY_DAYS", raw.MaxAvailabilityDays),
		AvailabilityCacheTTL:  p.positiveDuration("AVAILABILITY_CACHE_TTL", raw.AvailabilityCacheTTL),
		RedisURL:              strings.TrimSpace(raw.RedisURL),
		RateLimit:             p.positiveInt("RATE_LIMIT", raw.RateLimit),
		RateLimitWindow:       p.positiveDuration("RATE_LIMIT_WINDOW", raw.RateLimitWindow),
		RateLimitFailOpen:     p.boolean("RATE_LIMIT_FAIL_OPEN", raw.RateLimitFailOpen),
		KafkaBrokers:          strings.TrimSpace(raw.KafkaBrokers),
		OTelEnabled:           p.boolean("OTEL_ENABLED", raw.OTelEnabled),
		OTelEndpoint:          strings.TrimSpace(raw.OTelEndpoint),
		OTelSampleRatio:       p.ratio("OTEL_SAMPLING_RATIO", raw.OTelSampleRatio),
	}

	if level, err := logging.ParseLevel(raw.LogLevel); err != nil {
		p.invalidKey("LOG_LEVEL")
	} else {
		cfg.LogLevel = level
	}

	if loc, err := time.LoadLocation(strings.TrimSpace(raw.Timezone)); err != nil {
		p.invalidKey("TIMEZONE")
	} else {
		cfg.Location = loc
	}

	switch cfg.StorageDriver {
	case StorageSQLite:
		if cfg.SQLiteDSN == "" {
			p.missingKey("SQLITE_DSN")
		}
	case StoragePostgres:
		if cfg.PostgresURL == "" {
			p.missingKey("POSTGRES_URL")
		}
	default:
		p.invalidKey("STORAGE_DRIVER")
	}

	if cfg.ConflictLookback < 0 {
		p.invalidKey("CONFLICT_LOOKBACK")
	}

	if err := p.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type parser struct {
	missing []string
	invalid []string
}

func (p *parser) missingKey(key string) {
	p.missing = append(p.missing, EnvPrefix+"_"+key)
}

func (p *parser) invalidKey(key string) {
	p.invalid = append(p.invalid, EnvPrefix+"_"+key)
}

func (p *parser) required(key, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		p.missingKey(key)
	}
	return value
}

func (p *parser) positiveInt(key, value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		p.invalidKey(key)
		return 0
	}
	return n
}

func (p *parser) duration(key, value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		p.invalidKey(key)
		return 0
	}
	return d
}

func (p *parser) positiveDuration(key, value string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		p.invalidKey(key)
		return 0
	}
	return d
}

func (p *parser) boolean(key, value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		p.invalidKey(key)
		return false
	}
	return b
}

func (p *parser) ratio(key, value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 || f > 1 {
		p.invalidKey(key)
		return 0
	}
	return f
}

func (p *parser) err() error {
	var parts []string
	if len(p.missing) > 0 {
		parts = append(parts, "missing required environment variables: "+strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		parts = append(parts, "invalid environment variable values: "+strings.Join(p.invalid, ", "))
	}
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
