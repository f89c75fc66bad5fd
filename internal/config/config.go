package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Ethereum RPC configuration (used by the rpc balance source)
	Ethereum EthereumConfig

	// Database configuration (intent journal)
	Database DatabaseConfig

	// Redis configuration (balance cache)
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Orchestrator configuration
	Nexus NexusConfig

	// Logging configuration
	Log LogConfig
}

// EthereumConfig holds per-chain RPC connection settings
type EthereumConfig struct {
	// RPCURLs maps chain ID to endpoint, e.g. "1=https://eth.llamarpc.com,137=https://polygon-rpc.com"
	RPCURLs        ChainURLs     `envconfig:"ETH_RPC_URLS"`
	RequestTimeout time.Duration `envconfig:"ETH_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"ETH_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"ETH_RETRY_DELAY" default:"1s"`
}

// ChainURLs maps chain ID to RPC endpoint. Items are separated by commas and
// split on their first "=" or ":", so "1:https://..." and "1=https://..." both work.
type ChainURLs map[int64]string

// Decode implements envconfig.Decoder
func (c *ChainURLs) Decode(value string) error {
	urls := make(ChainURLs)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		sep := strings.IndexAny(item, "=:")
		if sep <= 0 {
			return fmt.Errorf("invalid RPC item %q: want <chainId>=<url>", item)
		}
		chainID, err := strconv.ParseInt(strings.TrimSpace(item[:sep]), 10, 64)
		if err != nil || chainID <= 0 {
			return fmt.Errorf("invalid chain id in RPC item %q", item)
		}
		url := strings.TrimSpace(item[sep+1:])
		if url == "" {
			return fmt.Errorf("empty URL for chain %d", chainID)
		}
		urls[chainID] = url
	}
	*c = urls
	return nil
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"nexus"`
	Password        string        `envconfig:"DB_PASSWORD" default:"nexus"`
	Name            string        `envconfig:"DB_NAME" default:"nexus"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// NexusConfig holds orchestrator settings
type NexusConfig struct {
	BalanceSource   string        `envconfig:"NEXUS_BALANCE_SOURCE" default:"simulated"`
	SpenderAddress  string        `envconfig:"NEXUS_SPENDER_ADDRESS" default:"0x1234567890123456789012345678901234567890"`
	BridgeFeeBps    int64         `envconfig:"NEXUS_BRIDGE_FEE_BPS" default:"5"`
	GasFeeWei       string        `envconfig:"NEXUS_GAS_FEE_WEI" default:"1000000000000000"`
	SupportedChains []int64       `envconfig:"NEXUS_SUPPORTED_CHAINS" default:"1,137,42161,10,8453"`
	BridgeTokens    []string      `envconfig:"NEXUS_BRIDGE_TOKENS" default:"USDC,USDT,ETH"`
	RefreshInterval time.Duration `envconfig:"NEXUS_REFRESH_INTERVAL" default:"0s"`
	EventBuffer     int           `envconfig:"NEXUS_EVENT_BUFFER" default:"64"`
	WorkerCount     int           `envconfig:"NEXUS_WORKER_COUNT" default:"4"`

	Delays DelayConfig
}

// DelayConfig holds the simulated round-trip latencies
type DelayConfig struct {
	Init            time.Duration `envconfig:"NEXUS_DELAY_INIT" default:"1500ms"`
	Refresh         time.Duration `envconfig:"NEXUS_DELAY_REFRESH" default:"800ms"`
	AllowanceGet    time.Duration `envconfig:"NEXUS_DELAY_ALLOWANCE_GET" default:"500ms"`
	AllowanceSet    time.Duration `envconfig:"NEXUS_DELAY_ALLOWANCE_SET" default:"1s"`
	AllowanceRevoke time.Duration `envconfig:"NEXUS_DELAY_ALLOWANCE_REVOKE" default:"800ms"`
	IntentCreate    time.Duration `envconfig:"NEXUS_DELAY_INTENT_CREATE" default:"600ms"`
	IntentApprove   time.Duration `envconfig:"NEXUS_DELAY_INTENT_APPROVE" default:"500ms"`
	Settlement      time.Duration `envconfig:"NEXUS_DELAY_SETTLEMENT" default:"2s"`
	Swap            time.Duration `envconfig:"NEXUS_DELAY_SWAP" default:"2s"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Nexus.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks orchestrator settings that envconfig cannot express
func (c *NexusConfig) Validate() error {
	switch c.BalanceSource {
	case "simulated", "rpc":
	default:
		return fmt.Errorf("invalid NEXUS_BALANCE_SOURCE %q: want simulated or rpc", c.BalanceSource)
	}
	if c.BridgeFeeBps < 0 || c.BridgeFeeBps > 10000 {
		return fmt.Errorf("invalid NEXUS_BRIDGE_FEE_BPS %d", c.BridgeFeeBps)
	}
	if len(c.SupportedChains) == 0 {
		return fmt.Errorf("NEXUS_SUPPORTED_CHAINS must not be empty")
	}
	for i, symbol := range c.BridgeTokens {
		c.BridgeTokens[i] = strings.ToUpper(strings.TrimSpace(symbol))
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
