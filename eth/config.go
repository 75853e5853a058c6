package eth

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	envRpcURL  = "ETH_RPC_URL"
	envChainID = "ETH_CHAIN_ID"

	// -- accounts and private keys
	envAccountsList         = "ETH_ACCOUNTS"
	envAccountPrivateKeyFmt = "ETH_ACCOUNT_%s_PRIVATE_KEY"
	envAccountPublicKeyFmt  = "ETH_ACCOUNT_%s_PUBLIC_KEY"

	// -- target contract
	envContractAddress = "MARKS_CONTRACT_ADDRESS"
	envContractABIPath = "MARKS_CONTRACT_ABI_PATH"

	// -- gas configuration
	// Recommended settings:
	// Development/Testing:
	//   ETH_GAS_LIMIT_BUFFER_SIMPLE=1.2    # Higher buffers for testing
	//   ETH_GAS_LIMIT_BUFFER_COMPLEX=1.4
	// Production - Ethereum Mainnet:
	//   ETH_GAS_LIMIT_BUFFER_SIMPLE=1.1    # Higher costs, more conservative
	//   ETH_GAS_LIMIT_BUFFER_COMPLEX=1.25
	envGasLimitBufferSimple  = "ETH_GAS_LIMIT_BUFFER_SIMPLE"
	envGasLimitBufferComplex = "ETH_GAS_LIMIT_BUFFER_COMPLEX"

	// -- fee configuration
	// Max fee per gas in wei (default: 500 gwei)
	envMaxFeePerGas = "ETH_MAX_FEE_PER_GAS"
	// Priority fee per gas in wei (network-specific, defaults: 2 gwei for mainnet, 1 gwei for Base, 1.5 gwei for others)
	envPriorityFeeMainnet = "ETH_PRIORITY_FEE_MAINNET"
	envPriorityFeeBase    = "ETH_PRIORITY_FEE_BASE"
	envPriorityFeeDefault = "ETH_PRIORITY_FEE_DEFAULT"

	// -- submission
	envSubmitTimeoutSeconds = "ETH_SUBMIT_TIMEOUT_SECONDS"
	envNonceRetries         = "ETH_NONCE_RETRIES"
	envVerifyChainID        = "ETH_VERIFY_CHAIN_ID"

	// -- confirmation
	envTransactionTimeoutSeconds = "ETH_TRANSACTION_TIMEOUT_SECONDS"
	envTransactionTickerSeconds  = "ETH_TRANSACTION_TICKER_SECONDS"

	// --- Units and defaults ---
	GWEI = 1000000000 // 1 gwei in wei

	DEFAULT_PRIORITY_FEE_MAINNET = 2 * GWEI       // 2 gwei
	DEFAULT_PRIORITY_FEE_BASE    = 1 * GWEI       // 1 gwei
	DEFAULT_PRIORITY_FEE_OTHER   = 15 * GWEI / 10 // 1.5 gwei
	DEFAULT_MAX_FEE_PER_GAS      = 500 * GWEI     // 500 gwei

	DEFAULT_GAS_LIMIT_BUFFER_SIMPLE  = 1.1
	DEFAULT_GAS_LIMIT_BUFFER_COMPLEX = 1.2

	DEFAULT_SUBMIT_TIMEOUT_SECONDS = 60
	DEFAULT_NONCE_RETRIES          = 1

	// --- Transaction monitoring defaults ---
	DEFAULT_TRANSACTION_TIMEOUT_SECONDS = 300 // 5 minutes
	DEFAULT_TRANSACTION_TICKER_SECONDS  = 3   // 3 seconds
)

// Config is the read-only view of the environment the client and sequencer run with
type Config interface {
	ChainID() int64
	Accounts() []*Account
	RPCURL() string
	ContractAddress() common.Address
	ContractABI() string

	GasLimitBufferSimple() float64
	GasLimitBufferComplex() float64
	MaxFeePerGas() *big.Int
	PriorityFeeMainnet() *big.Int
	PriorityFeeBase() *big.Int
	PriorityFeeDefault() *big.Int

	SubmitTimeoutSeconds() int
	NonceRetries() int
	VerifyChainID() bool
	TransactionTimeoutSeconds() int
	TransactionTickerSeconds() int
}

var _ Config = (*config)(nil)

type config struct {
	chainId         int64
	acounts         []*Account
	rpcURL          string
	contractAddress common.Address
	contractABI     string
}

// NewConfiguration reads the environment. ETH_CHAIN_ID, ETH_ACCOUNTS and
// MARKS_CONTRACT_ADDRESS are required; everything else has a default.
func NewConfiguration() (*config, error) {
	chainIDStr := os.Getenv(envChainID)
	if chainIDStr == "" {
		return nil, fmt.Errorf("%w: %s environment variable is not set", ErrInvalidKey, envChainID)
	}

	chainId, err := strconv.ParseInt(chainIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %w", ErrInvalidKey, envChainID, err)
	}

	accounts, err := loadAccountsFromEnv(chainId)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts found in %s environment variable", envAccountsList)
	}

	addrStr := os.Getenv(envContractAddress)
	if addrStr == "" {
		return nil, fmt.Errorf("%w: %s environment variable is not set", ErrInvalidKey, envContractAddress)
	}
	contractAddress, err := ParseAddress(addrStr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envContractAddress, err)
	}

	var contractABI string
	if path := os.Getenv(envContractABIPath); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read contract ABI: %w", err)
		}
		contractABI = string(raw)
	}

	return &config{
		rpcURL:          os.Getenv(envRpcURL),
		chainId:         chainId,
		acounts:         accounts,
		contractAddress: contractAddress,
		contractABI:     contractABI,
	}, nil
}

func (c *config) ChainID() int64 {
	return c.chainId
}
func (c *config) Accounts() []*Account {
	return c.acounts
}

func (c *config) RPCURL() string {
	return c.rpcURL
}

func (c *config) ContractAddress() common.Address {
	return c.contractAddress
}

// ContractABI returns the ABI JSON loaded from MARKS_CONTRACT_ABI_PATH, or "" when unset
func (c *config) ContractABI() string {
	return c.contractABI
}

// GasLimitBufferSimple returns the buffer multiplier for calls without calldata
func (c *config) GasLimitBufferSimple() float64 {
	return envBuffer(envGasLimitBufferSimple, DEFAULT_GAS_LIMIT_BUFFER_SIMPLE)
}

// GasLimitBufferComplex returns the buffer multiplier for contract calls
func (c *config) GasLimitBufferComplex() float64 {
	return envBuffer(envGasLimitBufferComplex, DEFAULT_GAS_LIMIT_BUFFER_COMPLEX)
}

// MaxFeePerGas returns the max fee per gas in wei (default: 500 gwei)
func (c *config) MaxFeePerGas() *big.Int {
	return envWei(envMaxFeePerGas, DEFAULT_MAX_FEE_PER_GAS)
}

// PriorityFeeMainnet returns the fixed priority fee for Ethereum mainnet (default: 2 gwei)
func (c *config) PriorityFeeMainnet() *big.Int {
	return envWei(envPriorityFeeMainnet, DEFAULT_PRIORITY_FEE_MAINNET)
}

// PriorityFeeBase returns the fixed priority fee for Base (default: 1 gwei)
func (c *config) PriorityFeeBase() *big.Int {
	return envWei(envPriorityFeeBase, DEFAULT_PRIORITY_FEE_BASE)
}

// PriorityFeeDefault returns the fixed priority fee for other networks (default: 1.5 gwei)
func (c *config) PriorityFeeDefault() *big.Int {
	return envWei(envPriorityFeeDefault, DEFAULT_PRIORITY_FEE_OTHER)
}

// SubmitTimeoutSeconds bounds one sign-and-broadcast round trip (default: 60)
func (c *config) SubmitTimeoutSeconds() int {
	return envPositiveInt(envSubmitTimeoutSeconds, DEFAULT_SUBMIT_TIMEOUT_SECONDS)
}

// NonceRetries is how many times a call is re-signed after a nonce error (default: 1)
func (c *config) NonceRetries() int {
	retriesStr := os.Getenv(envNonceRetries)
	if retriesStr == "" {
		return DEFAULT_NONCE_RETRIES
	}
	retries, err := strconv.Atoi(retriesStr)
	if err != nil || retries < 0 {
		return DEFAULT_NONCE_RETRIES
	}
	return retries
}

// VerifyChainID reports whether the node's chain ID is checked before submitting (default: false)
func (c *config) VerifyChainID() bool {
	verify, err := strconv.ParseBool(os.Getenv(envVerifyChainID))
	return err == nil && verify
}

// TransactionTimeoutSeconds returns the transaction timeout in seconds (default: 300)
func (c *config) TransactionTimeoutSeconds() int {
	return envPositiveInt(envTransactionTimeoutSeconds, DEFAULT_TRANSACTION_TIMEOUT_SECONDS)
}

// TransactionTickerSeconds returns the transaction ticker interval in seconds (default: 3)
func (c *config) TransactionTickerSeconds() int {
	return envPositiveInt(envTransactionTickerSeconds, DEFAULT_TRANSACTION_TICKER_SECONDS)
}

func envBuffer(name string, def float64) float64 {
	bufferStr := os.Getenv(name)
	if bufferStr == "" {
		return def
	}

	buffer, err := strconv.ParseFloat(bufferStr, 64)
	if err != nil {
		return def // Fallback to default on parse error
	}

	// Ensure reasonable bounds (0.5 to 3.0)
	if buffer < 0.5 || buffer > 3.0 {
		return def
	}

	return buffer
}

func envWei(name string, def int64) *big.Int {
	feeStr := os.Getenv(name)
	if feeStr == "" {
		return big.NewInt(def)
	}
	fee, ok := new(big.Int).SetString(feeStr, 10)
	if !ok || fee.Sign() < 0 {
		return big.NewInt(def)
	}
	return fee
}

func envPositiveInt(name string, def int) int {
	valueStr := os.Getenv(name)
	if valueStr == "" {
		return def
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func loadAccountsFromEnv(chainID int64) ([]*Account, error) {
	var accounts []*Account
	accountLabels := os.Getenv(envAccountsList)
	if accountLabels == "" {
		return nil, fmt.Errorf("%s env variable not set", envAccountsList)
	}
	for _, label := range strings.Split(accountLabels, ",") {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}

		privHex := os.Getenv(fmt.Sprintf(envAccountPrivateKeyFmt, strings.ToUpper(label)))
		pubHex := os.Getenv(fmt.Sprintf(envAccountPublicKeyFmt, strings.ToUpper(label)))

		var (
			account *Account
			err     error
		)
		switch {
		case privHex != "":
			account, err = NewAccount(label, privHex, chainID)
		case pubHex != "":
			// read-only account, usable for balance queries but not for signing
			account, err = NewReadOnlyAccount(label, pubHex, chainID)
		default:
			return nil, fmt.Errorf("no private or public key found for account[%s] in environment variables", label)
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
