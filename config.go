package epicgame

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the process configuration, read from EPICGAME_* variables.
type Config struct {
	ChainID      uint64 `env:"EPICGAME_CHAIN_ID"      envDefault:"1"`
	TokenAddress string `env:"EPICGAME_TOKEN_ADDRESS"`
	GameAddress  string `env:"EPICGAME_GAME_ADDRESS"`

	// PrivateKey takes precedence over Account, which names a jarvis
	// managed wallet to unlock.
	PrivateKey string `env:"EPICGAME_PRIVATE_KEY"`
	Account    string `env:"EPICGAME_ACCOUNT"`

	TxType          uint8         `env:"EPICGAME_TX_TYPE"           envDefault:"2"`
	NumRetries      int           `env:"EPICGAME_NUM_RETRIES"       envDefault:"9"`
	SleepDuration   time.Duration `env:"EPICGAME_SLEEP_DURATION"    envDefault:"5s"`
	TxCheckInterval time.Duration `env:"EPICGAME_TX_CHECK_INTERVAL" envDefault:"5s"`
	ExtraGasLimit   uint64        `env:"EPICGAME_EXTRA_GAS_LIMIT"`
	ExtraGasPrice   float64       `env:"EPICGAME_EXTRA_GAS_PRICE"`
	ExtraTipCapGwei float64       `env:"EPICGAME_EXTRA_TIP_CAP_GWEI"`

	HTTPAddr string `env:"EPICGAME_HTTP_ADDR" envDefault:":8080"`

	// Redis is only used for the action lock; empty keeps it in process.
	RedisURL string        `env:"EPICGAME_REDIS_URL"`
	LockTTL  time.Duration `env:"EPICGAME_LOCK_TTL"  envDefault:"2m"`

	OTLPEndpoint string `env:"EPICGAME_OTLP_ENDPOINT"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Contracts validates and returns the configured contract addresses.
func (c Config) Contracts() (Contracts, error) {
	if !common.IsHexAddress(c.TokenAddress) {
		return Contracts{}, fmt.Errorf("invalid token contract address %q", c.TokenAddress)
	}
	if !common.IsHexAddress(c.GameAddress) {
		return Contracts{}, fmt.Errorf("invalid game contract address %q", c.GameAddress)
	}
	return Contracts{
		Token: common.HexToAddress(c.TokenAddress),
		Game:  common.HexToAddress(c.GameAddress),
	}, nil
}

// Defaults returns the tx execution settings of the configuration.
func (c Config) Defaults() SessionDefaults {
	return SessionDefaults{
		NumRetries:      c.NumRetries,
		SleepDuration:   c.SleepDuration,
		TxCheckInterval: c.TxCheckInterval,
		ExtraGasLimit:   c.ExtraGasLimit,
		ExtraGasPrice:   c.ExtraGasPrice,
		ExtraTipCapGwei: c.ExtraTipCapGwei,
		TxType:          c.TxType,
	}
}
