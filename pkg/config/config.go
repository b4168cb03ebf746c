package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"

	"github.com/stablepay-hq/payrunner/pkg/logger"
)

// Config holds the configuration for a dispatcher run
type Config struct {
	LedgerAPIURL   string
	LedgerAPIKey   string
	LedgerTable    string
	WalletMnemonic []string
	Treasury       *address.Address
	JettonMaster   *address.Address
	TonConfigURL   string
	BatchLimit     int
	PacingInterval time.Duration
	CallTimeout    time.Duration
	AttachTON      tlb.Coins
	ForwardTON     tlb.Coins
	TokenDecimals  int
	CircuitBreaker CircuitBreakerConfig
	LoggerConfig   LoggerConfig
	PushgatewayURL string
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	ledgerAPIURL, err := GetEnvLedgerAPIURL()
	if err != nil {
		return nil, err
	}

	ledgerAPIKey, err := GetEnvLedgerAPIKey()
	if err != nil {
		return nil, err
	}

	ledgerTable, err := GetEnvLedgerTable()
	if err != nil {
		return nil, err
	}

	mnemonic, err := GetEnvWalletMnemonic()
	if err != nil {
		return nil, err
	}

	treasury, err := GetEnvTreasuryAddress()
	if err != nil {
		return nil, err
	}

	jettonMaster, err := GetEnvJettonMasterAddress()
	if err != nil {
		return nil, err
	}

	tonConfigURL, err := GetEnvTonConfigURL()
	if err != nil {
		return nil, err
	}

	batchLimit, err := GetEnvBatchLimit()
	if err != nil {
		return nil, err
	}

	pacingInterval, err := GetEnvPacingInterval()
	if err != nil {
		return nil, err
	}

	callTimeout, err := GetEnvCallTimeout()
	if err != nil {
		return nil, err
	}

	attachTON, err := GetEnvAttachTON()
	if err != nil {
		return nil, err
	}

	forwardTON, err := GetEnvForwardTON()
	if err != nil {
		return nil, err
	}

	tokenDecimals, err := GetEnvTokenDecimals()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	pushgatewayURL, err := GetEnvPushgatewayURL()
	if err != nil {
		return nil, err
	}

	return &Config{
		LedgerAPIURL:   ledgerAPIURL,
		LedgerAPIKey:   ledgerAPIKey,
		LedgerTable:    ledgerTable,
		WalletMnemonic: mnemonic,
		Treasury:       treasury,
		JettonMaster:   jettonMaster,
		TonConfigURL:   tonConfigURL,
		BatchLimit:     batchLimit,
		PacingInterval: pacingInterval,
		CallTimeout:    callTimeout,
		AttachTON:      attachTON,
		ForwardTON:     forwardTON,
		TokenDecimals:  tokenDecimals,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
		PushgatewayURL: pushgatewayURL,
	}, nil
}
