package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure defaults
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Pricing constants for the premium engine
	Pricing PricingConfig `json:"pricing"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-memory cache + channel bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS.
	TierPro Tier = "pro"
)

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU settings
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EnableTwoPhase wraps Redis with a local L1 LRU.
	EnableTwoPhase bool
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// PricingConfig carries every numeric constant of the premium and decision
// engine. It is built once at startup and injected by reference; nothing
// mutates it afterwards.
type PricingConfig struct {
	// BaseRates maps territorial scope to the base-premium rate applied
	// to the sum insured. Monotonically increasing POLAND < EUROPE < WORLD.
	BaseRates map[TerritorialScope]decimal.Decimal

	// QuickRate is the clause-free pre-qualification rate, anchored to
	// the POLAND scope; TerritorialMultipliers scale it per scope.
	QuickRate              decimal.Decimal
	TerritorialMultipliers map[TerritorialScope]decimal.Decimal

	// MinimumPremium is the fixed policy floor, independent of sum insured.
	MinimumPremium decimal.Decimal

	// Risk-loading rates (fractions of the base+clause subtotal).
	ShortHistoryLoading decimal.Decimal // yearsInBusiness < ShortHistoryYears
	MidHistoryLoading   decimal.Decimal // yearsInBusiness < MidHistoryYears
	SmallFleetLoading   decimal.Decimal // fleetSize < FleetMin
	LargeFleetLoading   decimal.Decimal // fleetSize > FleetMax
	ClaimsLoading       decimal.Decimal // any APK-declared claim
	HighValueLoading    decimal.Decimal // APK high-value goods
	UnattendedLoading   decimal.Decimal // APK unattended parking

	ShortHistoryYears int
	MidHistoryYears   int
	FleetMin          int
	FleetMax          int

	// Decision thresholds.
	MaterialitySumInsured decimal.Decimal // referral above this sum insured
	MinYearsInBusiness    int             // referral below this history
	ElevatedClaimCount    int             // claims pushing level to ELEVATED
	HighClaimCount        int             // claims pushing level to HIGH
	NewBusinessYears      int             // history below this is ELEVATED
}

// DefaultPricingConfig returns the production pricing table.
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		BaseRates: map[TerritorialScope]decimal.Decimal{
			ScopePoland: decimal.NewFromFloat(0.0015),
			ScopeEurope: decimal.NewFromFloat(0.0021),
			ScopeWorld:  decimal.NewFromFloat(0.0030),
		},
		QuickRate: decimal.NewFromFloat(0.0015),
		TerritorialMultipliers: map[TerritorialScope]decimal.Decimal{
			ScopePoland: decimal.NewFromFloat(1.0),
			ScopeEurope: decimal.NewFromFloat(1.4),
			ScopeWorld:  decimal.NewFromFloat(2.0),
		},
		MinimumPremium: decimal.NewFromInt(600),

		ShortHistoryLoading: decimal.NewFromFloat(0.25),
		MidHistoryLoading:   decimal.NewFromFloat(0.10),
		SmallFleetLoading:   decimal.NewFromFloat(0.10),
		LargeFleetLoading:   decimal.NewFromFloat(0.15),
		ClaimsLoading:       decimal.NewFromFloat(0.20),
		HighValueLoading:    decimal.NewFromFloat(0.10),
		UnattendedLoading:   decimal.NewFromFloat(0.05),

		ShortHistoryYears: 2,
		MidHistoryYears:   5,
		FleetMin:          3,
		FleetMax:          50,

		MaterialitySumInsured: decimal.NewFromInt(2_000_000),
		MinYearsInBusiness:    2,
		ElevatedClaimCount:    2,
		HighClaimCount:        4,
		NewBusinessYears:      1,
	}
}

// DefaultConfig returns a default configuration for the Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./ocpd.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Pricing: DefaultPricingConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "ocpd-engine",
		},
	}
}

// ProConfig returns a configuration for the Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "ocpd",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       5 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
