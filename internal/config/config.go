// Package config provides application configuration loaded from an optional
// YAML file and then overridden by environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        `yaml:"port"`                   // e.g. "8080"
	BackofficePort       string        `yaml:"backoffice_port"`        // e.g. "8081"
	Env                  string        `yaml:"env"`                    // "development" | "production"
	ReadTimeout          time.Duration `yaml:"read_timeout"`           // default 10s
	WriteTimeout         time.Duration `yaml:"write_timeout"`          // default 10s
	BackofficeAllowedIPs string        `yaml:"backoffice_allowed_ips"` // comma-separated IPs; "" = allow all
	AllowedOrigins       []string      `yaml:"allowed_origins"`        // CORS + WS origins in production
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Driver          string        `yaml:"driver"` // "postgres" | "sqlite"
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`    // default 25 (ignored for sqlite)
	MaxIdleConns    int           `yaml:"max_idle_conns"`    // default 10
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // default 5m
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	AccessSecret string        `yaml:"access_secret"` // must be set
	AccessTTL    time.Duration `yaml:"access_ttl"`    // default 30m
	RefreshTTL   time.Duration `yaml:"refresh_ttl"`   // default 720h (30 days)
}

// LedgerConfig holds money-movement policy.
type LedgerConfig struct {
	StartingBalance decimal.Decimal `yaml:"starting_balance"` // granted at registration, default 0
	HouseSeed       decimal.Decimal `yaml:"house_seed"`       // credited to the house on first boot when it is empty
	MatchupTimeout  time.Duration   `yaml:"matchup_timeout"`  // bound on the odds lookup during placement, default 2s
}

// OddsConfig holds the-odds-api settings.
type OddsConfig struct {
	BaseURL          string        `yaml:"base_url"` // default "https://api.the-odds-api.com"
	APIKey           string        `yaml:"api_key"`
	DefaultSport     string        `yaml:"default_sport"`     // default "basketball_nba"
	DefaultBookmaker string        `yaml:"default_bookmaker"` // default "fanduel"
	Regions          string        `yaml:"regions"`           // default "us"
	Markets          string        `yaml:"markets"`           // default "h2h,spreads,totals"
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`     // default 5s
	CacheTTL         time.Duration `yaml:"cache_ttl"`         // default 60s
	RefreshCron      string        `yaml:"refresh_cron"`      // with seconds field, default every minute
	WarmSports       []string      `yaml:"warm_sports"`       // defaults to [DefaultSport]
}

// RedisConfig holds the odds cache connection. Empty Addr disables Redis and
// falls back to an in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig holds event publishing settings. Empty Brokers disables publishing.
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	TopicBetPlaced  string   `yaml:"topic_bet_placed"`  // default "bet_placed"
	TopicBetSettled string   `yaml:"topic_bet_settled"` // default "bet_settled"
	ConsumerGroup   string   `yaml:"consumer_group"`    // API process group for settlement relay, default "sportsbook-api"
}

// MetricsConfig holds the Prometheus listener.
type MetricsConfig struct {
	Port           string `yaml:"port"`            // API process, default "9090"
	BackofficePort string `yaml:"backoffice_port"` // back-office process, default "9091"
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	JWT     JWTConfig     `yaml:"jwt"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Odds    OddsConfig    `yaml:"odds"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver))
	}
	if c.IsProd() && c.DB.Driver != "postgres" {
		errs = append(errs, errors.New("DB_DRIVER must be postgres in production"))
	}

	if c.Ledger.StartingBalance.IsNegative() || !c.Ledger.StartingBalance.Equal(c.Ledger.StartingBalance.Truncate(2)) {
		errs = append(errs, fmt.Errorf("LEDGER_STARTING_BALANCE must be a non-negative amount in whole cents, got %s", c.Ledger.StartingBalance))
	}
	if c.Ledger.HouseSeed.IsNegative() || !c.Ledger.HouseSeed.Equal(c.Ledger.HouseSeed.Truncate(2)) {
		errs = append(errs, fmt.Errorf("LEDGER_HOUSE_SEED must be a non-negative amount in whole cents, got %s", c.Ledger.HouseSeed))
	}
	if c.Ledger.MatchupTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_MATCHUP_TIMEOUT must be positive"))
	}

	if c.Odds.RefreshCron != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Odds.RefreshCron); err != nil {
			errs = append(errs, fmt.Errorf("ODDS_REFRESH_CRON %q: %w", c.Odds.RefreshCron, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from CONFIG_PATH (default
// "config.yaml") and the environment. Panics if loading fails, so call this
// early in main() to catch misconfigurations at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load(getEnv("CONFIG_PATH", "config.yaml"))
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Loader
// ──────────────────────────────────────────────────────────────────────────────

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides, then fills defaults for anything still empty.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err = applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BackofficePort = getEnv("BACKOFFICE_PORT", cfg.Server.BackofficePort)
	cfg.Server.Env = getEnv("ENVIRONMENT", cfg.Server.Env)
	cfg.Server.ReadTimeout = getDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.BackofficeAllowedIPs = getEnv("BACKOFFICE_ALLOWED_IPS", cfg.Server.BackofficeAllowedIPs)
	cfg.Server.AllowedOrigins = getList("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	// ── Database ──────────────────────────────────────────────────────────────
	cfg.DB.Driver = getEnv("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = getEnv("DATABASE_DSN", cfg.DB.DSN)
	if cfg.DB.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns); err != nil {
		return fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	if cfg.DB.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns); err != nil {
		return fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB.ConnMaxLifetime = getDuration("DB_CONN_MAX_LIFETIME", cfg.DB.ConnMaxLifetime)

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT.AccessSecret = getEnv("JWT_ACCESS_SECRET", cfg.JWT.AccessSecret)
	cfg.JWT.AccessTTL = getDuration("JWT_ACCESS_TTL", cfg.JWT.AccessTTL)
	cfg.JWT.RefreshTTL = getDuration("JWT_REFRESH_TTL", cfg.JWT.RefreshTTL)

	// ── Ledger ────────────────────────────────────────────────────────────────
	if cfg.Ledger.StartingBalance, err = getDecimal("LEDGER_STARTING_BALANCE", cfg.Ledger.StartingBalance); err != nil {
		return fmt.Errorf("LEDGER_STARTING_BALANCE: %w", err)
	}
	if cfg.Ledger.HouseSeed, err = getDecimal("LEDGER_HOUSE_SEED", cfg.Ledger.HouseSeed); err != nil {
		return fmt.Errorf("LEDGER_HOUSE_SEED: %w", err)
	}
	cfg.Ledger.MatchupTimeout = getDuration("LEDGER_MATCHUP_TIMEOUT", cfg.Ledger.MatchupTimeout)

	// ── Odds ──────────────────────────────────────────────────────────────────
	cfg.Odds.BaseURL = getEnv("ODDS_BASE_URL", cfg.Odds.BaseURL)
	cfg.Odds.APIKey = getEnv("ODDS_API_KEY", cfg.Odds.APIKey)
	cfg.Odds.DefaultSport = getEnv("ODDS_DEFAULT_SPORT", cfg.Odds.DefaultSport)
	cfg.Odds.DefaultBookmaker = getEnv("ODDS_DEFAULT_BOOKMAKER", cfg.Odds.DefaultBookmaker)
	cfg.Odds.Regions = getEnv("ODDS_REGIONS", cfg.Odds.Regions)
	cfg.Odds.Markets = getEnv("ODDS_MARKETS", cfg.Odds.Markets)
	cfg.Odds.FetchTimeout = getDuration("ODDS_FETCH_TIMEOUT", cfg.Odds.FetchTimeout)
	cfg.Odds.CacheTTL = getDuration("ODDS_CACHE_TTL", cfg.Odds.CacheTTL)
	cfg.Odds.RefreshCron = getEnv("ODDS_REFRESH_CRON", cfg.Odds.RefreshCron)
	cfg.Odds.WarmSports = getList("ODDS_WARM_SPORTS", cfg.Odds.WarmSports)

	// ── Redis / Kafka / Metrics ───────────────────────────────────────────────
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Kafka.Brokers = getList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TopicBetPlaced = getEnv("KAFKA_TOPIC_BET_PLACED", cfg.Kafka.TopicBetPlaced)
	cfg.Kafka.TopicBetSettled = getEnv("KAFKA_TOPIC_BET_SETTLED", cfg.Kafka.TopicBetSettled)
	cfg.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", cfg.Kafka.ConsumerGroup)
	cfg.Metrics.Port = getEnv("METRICS_PORT", cfg.Metrics.Port)
	cfg.Metrics.BackofficePort = getEnv("METRICS_BACKOFFICE_PORT", cfg.Metrics.BackofficePort)

	return nil
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.Server.Port, "8080")
	setDefault(&cfg.Server.BackofficePort, "8081")
	setDefault(&cfg.Server.Env, "development")
	setDefaultDuration(&cfg.Server.ReadTimeout, 10*time.Second)
	setDefaultDuration(&cfg.Server.WriteTimeout, 10*time.Second)

	setDefault(&cfg.DB.Driver, "postgres")
	if cfg.DB.DSN == "" {
		if cfg.DB.Driver == "sqlite" {
			cfg.DB.DSN = "data/sportsbook.db"
		} else {
			// Build DSN from individual components for convenience in dev
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				getEnv("DB_HOST", "localhost"),
				getEnv("DB_PORT", "5432"),
				getEnv("DB_USER", "postgres"),
				getEnv("DB_PASSWORD", ""),
				getEnv("DB_NAME", "sportsbook"),
				getEnv("DB_SSLMODE", "disable"),
			)
		}
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 25
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 10
	}
	setDefaultDuration(&cfg.DB.ConnMaxLifetime, 5*time.Minute)

	setDefaultDuration(&cfg.JWT.AccessTTL, 30*time.Minute)
	setDefaultDuration(&cfg.JWT.RefreshTTL, 30*24*time.Hour)

	setDefaultDuration(&cfg.Ledger.MatchupTimeout, 2*time.Second)

	setDefault(&cfg.Odds.BaseURL, "https://api.the-odds-api.com")
	setDefault(&cfg.Odds.DefaultSport, "basketball_nba")
	setDefault(&cfg.Odds.DefaultBookmaker, "fanduel")
	setDefault(&cfg.Odds.Regions, "us")
	setDefault(&cfg.Odds.Markets, "h2h,spreads,totals")
	setDefaultDuration(&cfg.Odds.FetchTimeout, 5*time.Second)
	setDefaultDuration(&cfg.Odds.CacheTTL, 60*time.Second)
	setDefault(&cfg.Odds.RefreshCron, "0 * * * * *")
	if len(cfg.Odds.WarmSports) == 0 {
		cfg.Odds.WarmSports = []string{cfg.Odds.DefaultSport}
	}

	setDefault(&cfg.Kafka.TopicBetPlaced, "bet_placed")
	setDefault(&cfg.Kafka.TopicBetSettled, "bet_settled")
	setDefault(&cfg.Kafka.ConsumerGroup, "sportsbook-api")
	setDefault(&cfg.Metrics.Port, "9090")
	setDefault(&cfg.Metrics.BackofficePort, "9091")
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", v)
	}
	return d, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or unparsable.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getList splits a comma-separated env var, dropping blanks.
func getList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setDefault(field *string, val string) {
	if *field == "" {
		*field = val
	}
}

func setDefaultDuration(field *time.Duration, val time.Duration) {
	if *field == 0 {
		*field = val
	}
}
