package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all auditor configuration loaded from environment variables.
// Command line flags of the scan command override the matching fields.
type Config struct {
	// Scan target; empty Endpoint, BlockHash and LedgerSchema fall back to the
	// chain profile and the latest finalized block
	Chain        string `env:"AUDITOR_CHAIN" envDefault:"polkadot"`
	Skip         uint64 `env:"AUDITOR_SKIP" envDefault:"0"`
	Endpoint     string `env:"AUDITOR_ENDPOINT"`
	BlockHash    string `env:"AUDITOR_BLOCK_HASH"`
	LedgerSchema string `env:"AUDITOR_LEDGER_SCHEMA"`
	PageSize     uint32 `env:"AUDITOR_PAGE_SIZE" envDefault:"1000"`

	// Outputs; the Postgres mirror is disabled without DatabaseURL
	OutputDir   string `env:"AUDITOR_OUTPUT_DIR" envDefault:"."`
	DatabaseURL string `env:"AUDITOR_DATABASE_URL"`

	RPCTimeout time.Duration `env:"AUDITOR_RPC_TIMEOUT" envDefault:"60s"`

	// Logging configuration
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly bool   `env:"LOG_HUMAN_FRIENDLY" envDefault:"true"`
	LogFile          string `env:"LOG_FILE"`
}

// Load parses the configuration from environment variables
func Load() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads configuration from environment variables, panicking on malformed values
func New() Config {
	return env.Must(Load())
}
