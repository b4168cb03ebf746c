package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"

	"github.com/stablepay-hq/payrunner/pkg/faults"
	"github.com/stablepay-hq/payrunner/pkg/logger"
)

const (
	// DefaultLedgerTable is the ledger store table holding payout rows
	DefaultLedgerTable = "payouts"

	// DefaultTonConfigURL is the liteserver network config for mainnet
	DefaultTonConfigURL = "https://ton.org/global.config.json"

	// DefaultBatchLimit bounds how many pending rows a single run picks up
	DefaultBatchLimit = 50

	// DefaultPacingInterval is the fixed delay between consecutive rows
	DefaultPacingInterval = 3 * time.Second

	// DefaultCallTimeout bounds each store or chain network call
	DefaultCallTimeout = 15 * time.Second

	// DefaultAttachTON is the native gas amount carried by each transfer envelope
	DefaultAttachTON = "0.05"

	// DefaultForwardTON is the forward-gas amount attached to the token transfer
	DefaultForwardTON = "0.000000001"

	// DefaultTokenDecimals matches 6-decimal stablecoin jettons
	DefaultTokenDecimals = 6

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in seconds
	DefaultCircuitBreakerWindow = 30

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in seconds
	DefaultCircuitBreakerReset = 60

	// mnemonicWordCount is the fixed length of the recovery phrase
	mnemonicWordCount = 24
)

// GetEnvLedgerAPIURL returns the ledger store endpoint from environment variables
func GetEnvLedgerAPIURL() (string, error) {
	endpoint := os.Getenv("LEDGER_API_URL")
	if endpoint == "" {
		return "", faults.Configurationf("LEDGER_API_URL environment variable is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", faults.Configurationf("invalid LEDGER_API_URL value: %s, must be a valid URL", endpoint)
	}
	return strings.TrimRight(endpoint, "/"), nil
}

// GetEnvLedgerAPIKey returns the ledger store credential from environment variables
func GetEnvLedgerAPIKey() (string, error) {
	key := os.Getenv("LEDGER_API_KEY")
	if key == "" {
		return "", faults.Configurationf("LEDGER_API_KEY environment variable is required")
	}
	return key, nil
}

// GetEnvLedgerTable returns the payout table name from environment variables
func GetEnvLedgerTable() (string, error) {
	table := os.Getenv("LEDGER_TABLE")
	if table == "" {
		return DefaultLedgerTable, nil
	}
	return table, nil
}

// GetEnvWalletMnemonic returns the treasury recovery phrase from environment variables.
// Word-level validation happens in the key manager; this only checks presence and length.
func GetEnvWalletMnemonic() ([]string, error) {
	phrase := os.Getenv("WALLET_MNEMONIC")
	if phrase == "" {
		return nil, faults.Configurationf("WALLET_MNEMONIC environment variable is required")
	}
	words := strings.Fields(phrase)
	if len(words) != mnemonicWordCount {
		return nil, faults.Configurationf(
			"invalid WALLET_MNEMONIC value: expected %d words, got %d", mnemonicWordCount, len(words))
	}
	return words, nil
}

// GetEnvTreasuryAddress returns the expected treasury wallet address from environment variables
func GetEnvTreasuryAddress() (*address.Address, error) {
	raw := os.Getenv("TREASURY_ADDRESS")
	if raw == "" {
		return nil, faults.Configurationf("TREASURY_ADDRESS environment variable is required")
	}
	addr, err := address.ParseAddr(raw)
	if err != nil {
		return nil, faults.Configurationf("invalid TREASURY_ADDRESS value: %s, must be a valid TON address", raw)
	}
	return addr, nil
}

// GetEnvJettonMasterAddress returns the token master contract address from environment variables
func GetEnvJettonMasterAddress() (*address.Address, error) {
	raw := os.Getenv("JETTON_MASTER_ADDRESS")
	if raw == "" {
		return nil, faults.Configurationf("JETTON_MASTER_ADDRESS environment variable is required")
	}
	addr, err := address.ParseAddr(raw)
	if err != nil {
		return nil, faults.Configurationf("invalid JETTON_MASTER_ADDRESS value: %s, must be a valid TON address", raw)
	}
	return addr, nil
}

// GetEnvTonConfigURL returns the liteserver network config URL from environment variables
func GetEnvTonConfigURL() (string, error) {
	configURL := os.Getenv("TON_CONFIG_URL")
	if configURL == "" {
		return DefaultTonConfigURL, nil
	}
	if _, err := url.ParseRequestURI(configURL); err != nil {
		return "", faults.Configurationf("invalid TON_CONFIG_URL value: %s, must be a valid URL", configURL)
	}
	return configURL, nil
}

// GetEnvBatchLimit returns the maximum batch size from environment variables
func GetEnvBatchLimit() (int, error) {
	batchLimit := os.Getenv("BATCH_LIMIT")
	if batchLimit == "" {
		return DefaultBatchLimit, nil
	}

	limit, err := strconv.Atoi(batchLimit)
	if err != nil {
		return 0, faults.Configurationf("invalid BATCH_LIMIT value: %s, must be an integer", batchLimit)
	}
	if limit <= 0 {
		return 0, faults.Configurationf("BATCH_LIMIT must be greater than 0")
	}
	return limit, nil
}

// GetEnvPacingInterval returns the inter-row pacing delay from environment variables
func GetEnvPacingInterval() (time.Duration, error) {
	pacing := os.Getenv("PACING_INTERVAL")
	if pacing == "" {
		return DefaultPacingInterval, nil
	}

	parsed, err := time.ParseDuration(pacing)
	if err != nil {
		return 0, faults.Configurationf("invalid PACING_INTERVAL value: %s, must be a valid duration string", pacing)
	}
	if parsed <= 0 {
		return 0, faults.Configurationf("PACING_INTERVAL must be greater than 0")
	}
	return parsed, nil
}

// GetEnvCallTimeout returns the per-call network timeout from environment variables
func GetEnvCallTimeout() (time.Duration, error) {
	timeout := os.Getenv("CALL_TIMEOUT")
	if timeout == "" {
		return DefaultCallTimeout, nil
	}

	parsed, err := time.ParseDuration(timeout)
	if err != nil {
		return 0, faults.Configurationf("invalid CALL_TIMEOUT value: %s, must be a valid duration string", timeout)
	}
	if parsed <= 0 {
		return 0, faults.Configurationf("CALL_TIMEOUT must be greater than 0")
	}
	return parsed, nil
}

// GetEnvAttachTON returns the native gas amount per transfer from environment variables
func GetEnvAttachTON() (tlb.Coins, error) {
	attach := os.Getenv("ATTACH_TON")
	if attach == "" {
		attach = DefaultAttachTON
	}

	coins, err := tlb.FromTON(attach)
	if err != nil {
		return tlb.Coins{}, faults.Configurationf("invalid ATTACH_TON value: %s, must be a decimal TON amount", attach)
	}
	if coins.Nano().Sign() <= 0 {
		return tlb.Coins{}, faults.Configurationf("ATTACH_TON must be greater than 0")
	}
	return coins, nil
}

// GetEnvForwardTON returns the forward-gas amount from environment variables
func GetEnvForwardTON() (tlb.Coins, error) {
	forward := os.Getenv("FORWARD_TON")
	if forward == "" {
		forward = DefaultForwardTON
	}

	coins, err := tlb.FromTON(forward)
	if err != nil {
		return tlb.Coins{}, faults.Configurationf("invalid FORWARD_TON value: %s, must be a decimal TON amount", forward)
	}
	return coins, nil
}

// GetEnvTokenDecimals returns the token decimal scale from environment variables
func GetEnvTokenDecimals() (int, error) {
	decimals := os.Getenv("TOKEN_DECIMALS")
	if decimals == "" {
		return DefaultTokenDecimals, nil
	}

	parsed, err := strconv.Atoi(decimals)
	if err != nil {
		return 0, faults.Configurationf("invalid TOKEN_DECIMALS value: %s, must be an integer", decimals)
	}
	if parsed < 0 || parsed > 18 {
		return 0, faults.Configurationf("TOKEN_DECIMALS must be between 0 and 18")
	}
	return parsed, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, faults.Configurationf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, faults.Configurationf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, faults.Configurationf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, faults.Configurationf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, faults.Configurationf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the logging level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, faults.Configurationf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, faults.Configurationf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

// GetEnvPushgatewayURL returns the optional metrics push endpoint from environment variables
func GetEnvPushgatewayURL() (string, error) {
	pushURL := os.Getenv("PUSHGATEWAY_URL")
	if pushURL == "" {
		return "", nil
	}
	if _, err := url.ParseRequestURI(pushURL); err != nil {
		return "", faults.Configurationf("invalid PUSHGATEWAY_URL value: %s, must be a valid URL", pushURL)
	}
	return pushURL, nil
}
