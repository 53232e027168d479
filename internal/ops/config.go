// Package ops loads runtime configuration. Structural settings come from a
// JSON file; credentials come only from the environment.
package ops

import (
	"encoding/json"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/risk"
	"github.com/doug4987/New-MM-Test/internal/venue"
	"github.com/doug4987/New-MM-Test/internal/wager"
)

// FileConfig mirrors the JSON config layout. Durations are expressed in
// milliseconds so the file stays plain JSON.
type FileConfig struct {
	DryRun   bool           `json:"dryRun"`
	Venue    VenueConfig    `json:"venue"`
	Risk     risk.Config    `json:"risk"`
	Strategy StrategyConfig `json:"strategy"`
	Wager    WagerConfig    `json:"wager"`
	Store    StoreConfig    `json:"store"`
	Dash     DashConfig     `json:"dashboard"`
	Profile  ProfileConfig  `json:"profiling"`
	Bus      BusConfig      `json:"bus"`
}

// VenueConfig describes the venue endpoints. Keys are never read from the
// file.
type VenueConfig struct {
	FeedURL     string   `json:"feedUrl"`
	APIBaseURL  string   `json:"apiBaseUrl"`
	Tournaments []string `json:"tournaments"`
	TimeoutMs   int64    `json:"timeoutMs"`
}

// StrategyConfig describes the quoting strategy.
type StrategyConfig struct {
	Name                        string          `json:"name"`
	Stake                       decimal.Decimal `json:"stake"`
	SpreadMargin                float64         `json:"spreadMargin"`
	QuoteRefreshIntervalSeconds int64           `json:"quoteRefreshIntervalSeconds"`
	SkewThreshold               decimal.Decimal `json:"skewThreshold"`
	MaxPositionSize             decimal.Decimal `json:"maxPositionSize"`
}

// WagerConfig describes submission retry behavior.
type WagerConfig struct {
	SubmitTimeoutMs    int64 `json:"submitTimeoutMs"`
	MaxRetries         int   `json:"maxRetries"`
	RetryBackoffMs     int64 `json:"retryBackoffMs"`
	CancelAllTimeoutMs int64 `json:"cancelAllTimeoutMs"`
}

// StoreConfig selects and configures the snapshot backend.
type StoreConfig struct {
	Backend  string         `json:"backend"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`

	// SaveIntervalMs throttles periodic snapshot writes. Zero disables the
	// periodic save; a snapshot is still written on shutdown.
	SaveIntervalMs int64 `json:"saveIntervalMs"`
}

// PostgresConfig holds connection parameters for the postgres backend. The
// password is taken from the environment.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	DBName   string `json:"dbName"`
	SSLMode  string `json:"sslMode"`
}

// RedisConfig holds connection parameters for the redis backend.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// DashConfig configures the HTTP dashboard.
type DashConfig struct {
	Addr string `json:"addr"`
}

// ProfileConfig enables continuous profiling.
type ProfileConfig struct {
	Enable        bool   `json:"enable"`
	ServerAddress string `json:"serverAddress"`
}

// BusConfig sizes the in-process event bus.
type BusConfig struct {
	Depth int `json:"depth"`
}

// Credentials are the secrets resolved from the environment.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Loaded is the resolved configuration ready for wiring.
type Loaded struct {
	DryRun   bool
	Feed     venue.FeedConfig
	Order    venue.OrderConfig
	Risk     risk.Config
	Strategy StrategySpec
	Wager    wager.ManagerConfig
	Store    StoreConfig
	Dash     DashConfig
	Profile  ProfileConfig
	BusDepth int
}

// StrategySpec is the resolved strategy definition with typed durations.
type StrategySpec struct {
	Name            string
	Stake           decimal.Decimal
	SpreadMargin    float64
	RefreshInterval time.Duration
	SkewThreshold   decimal.Decimal
	MaxPositionSize decimal.Decimal
}

// Load reads the JSON config file, merges environment credentials, and
// resolves typed settings. A missing .env file is not an error.
func Load(path string) (Loaded, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logs.Warnf("load .env, err: %+v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config")
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "parse config").With("path", path)
	}

	creds := loadCredentials()
	if !cfg.DryRun && creds.AccessKey == "" {
		return Loaded{}, errors.New("VENUE_ACCESS_KEY is required outside dry-run mode")
	}

	cfg.Store.Postgres.Password = os.Getenv("POSTGRES_PASSWORD")
	cfg.Store.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}

	return Loaded{
		DryRun: cfg.DryRun,
		Feed: venue.FeedConfig{
			URL:         cfg.Venue.FeedURL,
			AccessKey:   creds.AccessKey,
			Tournaments: cfg.Venue.Tournaments,
		},
		Order: venue.OrderConfig{
			BaseURL:   cfg.Venue.APIBaseURL,
			AccessKey: creds.AccessKey,
			SecretKey: creds.SecretKey,
			Timeout:   ms(cfg.Venue.TimeoutMs),
		},
		Risk: cfg.Risk,
		Strategy: StrategySpec{
			Name:            cfg.Strategy.Name,
			Stake:           cfg.Strategy.Stake,
			SpreadMargin:    cfg.Strategy.SpreadMargin,
			RefreshInterval: time.Duration(cfg.Strategy.QuoteRefreshIntervalSeconds) * time.Second,
			SkewThreshold:   cfg.Strategy.SkewThreshold,
			MaxPositionSize: cfg.Strategy.MaxPositionSize,
		},
		Wager: wager.ManagerConfig{
			SubmitTimeout:    ms(cfg.Wager.SubmitTimeoutMs),
			MaxRetries:       cfg.Wager.MaxRetries,
			RetryBackoff:     ms(cfg.Wager.RetryBackoffMs),
			CancelAllTimeout: ms(cfg.Wager.CancelAllTimeoutMs),
			SimulateFills:    cfg.DryRun,
		},
		Store:    cfg.Store,
		Dash:     cfg.Dash,
		Profile:  cfg.Profile,
		BusDepth: cfg.Bus.Depth,
	}, nil
}

func loadCredentials() Credentials {
	return Credentials{
		AccessKey: os.Getenv("VENUE_ACCESS_KEY"),
		SecretKey: os.Getenv("VENUE_SECRET_KEY"),
	}
}

func ms(v int64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Millisecond
}
