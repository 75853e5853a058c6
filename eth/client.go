package eth

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

// GhostClient signs and broadcasts transactions for a single account.
// It holds no per-call state and is safe to share between call sites.
type GhostClient interface {
	// Account returns the signing account
	Account() *Account

	// ChainID returns the chain the account is bound to
	ChainID() int64

	// VerifyChainID compares the node's chain ID with the account's
	VerifyChainID(ctx context.Context) error

	// SendTransaction sends a signed transaction to the network
	SendTransaction(ctx context.Context, signedTx *types.Transaction) (*TransactionReceipt, error)

	// SignTransaction fills nonce, gas and fees then signs with the account key
	SignTransaction(ctx context.Context, tx *Transaction) (*types.Transaction, error)

	// CallContract executes a read-only call against the latest state
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

	// GetBalance returns the ETH balance of an address
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)

	// WaitForTransaction waits for a transaction to be mined and returns the receipt
	WaitForTransaction(ctx context.Context, hash common.Hash) (*TransactionReceipt, error)

	// GetTransactionReceipt returns the receipt for a transaction if it exists
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*TransactionReceipt, error)

	// Close closes the Ethereum client connection
	Close()
}

// EthClient is the subset of *ethclient.Client the package relies on
type EthClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	Close()
}

// Ensure *ethclient.Client implements EthClient
var _ EthClient = (*ethclient.Client)(nil)

// Dial validates rawURL and opens a connection handle. Over HTTP no request is
// made here; network failures surface on the first call.
func Dial(ctx context.Context, rawURL string) (*ethclient.Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid RPC URL %q: %w", ErrConnection, rawURL, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported RPC URL scheme %q", ErrConnection, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: RPC URL %q has no host", ErrConnection, rawURL)
	}

	// HTTP_PROXY and HTTPS_PROXY environment variables are automatically used by ethclient.DialContext
	if os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" {
		log.Info("Using proxy for Ethereum RPC",
			"http_proxy", os.Getenv("HTTP_PROXY"),
			"https_proxy", os.Getenv("HTTPS_PROXY"))
	}

	log.Info("Connecting to Ethereum RPC", "url", u.Redacted())
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to Ethereum network: %w", ErrConnection, err)
	}
	return client, nil
}

type ghostClient struct {
	client  EthClient
	chainId int64
	account *Account
	config  Config
}

// NewGhostClient composes a connection and a signing account. It performs no network calls.
func NewGhostClient(client EthClient, account *Account, cfg Config) (GhostClient, error) {
	if account != nil && account.PrivateKey == nil {
		return nil, fmt.Errorf("%w: account %s has no private key", ErrInvalidKey, account.Label)
	}
	return newGhostClient(client, account, cfg)
}

// NewReadOnlyClient accepts an account without a private key. It serves
// balance and receipt queries; signing fails with ErrInvalidKey.
func NewReadOnlyClient(client EthClient, account *Account, cfg Config) (GhostClient, error) {
	return newGhostClient(client, account, cfg)
}

func newGhostClient(client EthClient, account *Account, cfg Config) (GhostClient, error) {
	// -- validate account
	if account == nil {
		return nil, fmt.Errorf("%w: account is nil", ErrInvalidKey)
	}

	if account.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: account address is not set", ErrInvalidKey)
	}

	if account.ChainId <= 0 {
		return nil, fmt.Errorf("%w: account chain ID is not set", ErrInvalidKey)
	}

	if account.PublicKey == nil {
		return nil, fmt.Errorf("%w: account public key is not set", ErrInvalidKey)
	}

	if cfg != nil && cfg.ChainID() != account.ChainId {
		return nil, fmt.Errorf("%w: account bound to chain %d, configuration targets %d",
			ErrInvalidKey, account.ChainId, cfg.ChainID())
	}

	return &ghostClient{
		client:  client,
		chainId: account.ChainId,
		account: account,
		config:  cfg,
	}, nil
}

func (es *ghostClient) Account() *Account {
	return es.account
}

func (es *ghostClient) ChainID() int64 {
	return es.chainId
}

// VerifyChainID fails when the node serves a different chain than the account is bound to
func (es *ghostClient) VerifyChainID(ctx context.Context) error {
	log.Info("Verifying connection and getting chain ID")
	clientChainId, err := es.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get chain ID: %w", ErrConnection, err)
	}

	if clientChainId.Int64() != es.chainId {
		return fmt.Errorf("%w: expected chain ID %d, got %d", ErrInvalidKey, es.chainId, clientChainId.Int64())
	}

	log.Info("Successfully connected to Ethereum network",
		"chain_id", clientChainId.Int64(),
		"account", es.account.Address.Hex())
	return nil
}

// SendTransaction hands a signed transaction to the node and returns once it is
// accepted into the pending pool.
func (es *ghostClient) SendTransaction(ctx context.Context, signedTx *types.Transaction) (*TransactionReceipt, error) {
	log.Info("Sending transaction to network", "hash", signedTx.Hash().Hex())

	if err := es.client.SendTransaction(ctx, signedTx); err != nil {
		log.Error("Failed to send transaction", "hash", signedTx.Hash().Hex(), "error", err)
		return nil, fmt.Errorf("failed to send transaction: %w", classifyNodeError(err))
	}

	log.Info("Transaction sent successfully", "hash", signedTx.Hash().Hex())

	receipt := &TransactionReceipt{
		TxHash: signedTx.Hash(),
		Status: 0, // Pending
		From:   es.account.Address,
	}
	if to := signedTx.To(); to != nil {
		receipt.To = *to
	}
	return receipt, nil
}

// estimateGasAndSetLimit estimates gas for the transaction and sets tx.GasLimit accordingly.
func (es *ghostClient) estimateGasAndSetLimit(ctx context.Context, tx *Transaction) error {
	msg := ethereum.CallMsg{
		From:  tx.From,
		To:    &tx.To,
		Value: tx.Value,
		Data:  tx.Data,
	}

	gasLimit, err := es.client.EstimateGas(ctx, msg)
	if err != nil {
		log.Error("Failed to estimate gas", "error", err)
		return fmt.Errorf("failed to estimate gas: %w", classifyNodeError(err))
	}

	var buffer float64
	if len(tx.Data) == 0 {
		buffer = es.config.GasLimitBufferSimple()
		log.Debug("Using simple transaction buffer", "buffer", buffer)
	} else {
		buffer = es.config.GasLimitBufferComplex()
		log.Debug("Using complex transaction buffer", "buffer", buffer)
	}
	tx.GasLimit = uint64(float64(gasLimit) * buffer)
	log.Info("Gas limit calculated", "estimated", gasLimit, "with_buffer", tx.GasLimit)

	// Validate against network gas limit, transaction will get blocked if goes above it
	header, err := es.client.HeaderByNumber(ctx, nil)
	if err == nil && header.GasLimit > 0 {
		maxGas := header.GasLimit * 2 / 3 // Use 2/3 of block gas limit
		if tx.GasLimit > maxGas {
			log.Error("Gas limit too high", "gas_limit", tx.GasLimit, "max_allowed", maxGas)
			return fmt.Errorf("%w: gas limit %d exceeds maximum allowed %d", ErrSubmission, tx.GasLimit, maxGas)
		}
	}
	return nil
}

// SignTransaction signs a transaction with the client's private key.
// Zero nonce and gas limit are filled from the node.
func (es *ghostClient) SignTransaction(ctx context.Context, tx *Transaction) (*types.Transaction, error) {
	log.Info("Starting transaction signing process", "from", tx.From.Hex(), "to", tx.To.Hex())

	if !es.account.CanSign() {
		return nil, fmt.Errorf("%w: account %s is read-only", ErrInvalidKey, es.account.Label)
	}

	if tx.Nonce == 0 {
		nonce, err := es.client.PendingNonceAt(ctx, tx.From)
		if err != nil {
			log.Error("Failed to get nonce", "error", err)
			return nil, fmt.Errorf("%w: failed to get nonce: %w", ErrSubmission, err)
		}
		tx.Nonce = nonce
		log.Info("Got nonce", "address", tx.From.Hex(), "nonce", nonce)
	}

	if tx.GasLimit == 0 {
		if err := es.estimateGasAndSetLimit(ctx, tx); err != nil {
			return nil, err
		}
	}

	if err := es.calculateOptimalFees(ctx, tx); err != nil {
		log.Error("Failed to calculate fees", "error", err)
		return nil, fmt.Errorf("failed to calculate fees: %w", err)
	}

	var ethereumTx *types.Transaction
	switch {
	case tx.MaxFeePerGas != nil && tx.MaxPriorityFeePerGas != nil:
		log.Info("Creating EIP-1559 transaction",
			"max_fee_per_gas", tx.MaxFeePerGas.String(),
			"max_priority_fee_per_gas", tx.MaxPriorityFeePerGas.String())
		ethereumTx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(es.chainId),
			Nonce:     tx.Nonce,
			GasTipCap: tx.MaxPriorityFeePerGas,
			GasFeeCap: tx.MaxFeePerGas,
			Gas:       tx.GasLimit,
			To:        &tx.To,
			Value:     tx.Value,
			Data:      tx.Data,
		})
	case tx.GasPrice != nil:
		log.Info("Creating legacy transaction", "gas_price", tx.GasPrice.String())
		ethereumTx = types.NewTx(&types.LegacyTx{
			Nonce:    tx.Nonce,
			GasPrice: tx.GasPrice,
			Gas:      tx.GasLimit,
			To:       &tx.To,
			Value:    tx.Value,
			Data:     tx.Data,
		})
	default:
		return nil, fmt.Errorf("transaction must specify either EIP-1559 fields (MaxFeePerGas, MaxPriorityFeePerGas) or legacy GasPrice")
	}

	tx.ChainID = big.NewInt(es.chainId)
	signedTx, err := types.SignTx(ethereumTx, types.LatestSignerForChainID(tx.ChainID), es.account.PrivateKey)
	if err != nil {
		log.Error("Failed to sign transaction", "error", err)
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	log.Info("Transaction signed successfully", "hash", signedTx.Hash().Hex(), "nonce", tx.Nonce)
	return signedTx, nil
}

// calculateOptimalFees calculates optimal gas fees based on network conditions
func (es *ghostClient) calculateOptimalFees(ctx context.Context, tx *Transaction) error {
	if (tx.MaxFeePerGas != nil && tx.MaxPriorityFeePerGas != nil) || tx.GasPrice != nil {
		return es.validateFees(tx)
	}

	header, err := es.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to get latest header: %w", ErrSubmission, err)
	}

	if header.BaseFee != nil {
		log.Debug("Using EIP-1559 fee calculation", "base_fee", header.BaseFee)
		tx.MaxPriorityFeePerGas = es.getFixedPriorityFee()

		// Calculate max fee with room for base fee increases
		maxFee := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
		maxFee.Add(maxFee, tx.MaxPriorityFeePerGas)
		tx.MaxFeePerGas = maxFee
	} else {
		log.Debug("Using legacy fee calculation")
		gasPrice, err := es.client.SuggestGasPrice(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to get gas price: %w", ErrSubmission, err)
		}
		tx.GasPrice = gasPrice
	}

	return es.validateFees(tx)
}

// getFixedPriorityFee returns a fixed priority fee based on the network
func (es *ghostClient) getFixedPriorityFee() *big.Int {
	switch es.chainId {
	case 1: // Ethereum mainnet
		return es.config.PriorityFeeMainnet()
	case 8453: // Base
		return es.config.PriorityFeeBase()
	default:
		return es.config.PriorityFeeDefault()
	}
}

// validateFees caps the fee the account is willing to pay
func (es *ghostClient) validateFees(tx *Transaction) error {
	maxAllowed := es.config.MaxFeePerGas()
	if tx.MaxFeePerGas != nil && tx.MaxFeePerGas.Cmp(maxAllowed) > 0 {
		return fmt.Errorf("%w: max fee too high: %s wei", ErrSubmission, tx.MaxFeePerGas.String())
	}
	if tx.MaxFeePerGas == nil && tx.GasPrice != nil && tx.GasPrice.Cmp(maxAllowed) > 0 {
		return fmt.Errorf("%w: gas price too high: %s wei", ErrSubmission, tx.GasPrice.String())
	}
	return nil
}

// CallContract runs msg against the latest block without creating a transaction
func (es *ghostClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if msg.From == (common.Address{}) {
		msg.From = es.account.Address
	}
	out, err := es.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", classifyNodeError(err))
	}
	return out, nil
}

// GetBalance returns the ETH balance of an address
func (es *ghostClient) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := es.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// WaitForTransaction polls for the receipt until it appears, the configured
// timeout elapses or ctx is done.
func (es *ghostClient) WaitForTransaction(ctx context.Context, hash common.Hash) (*TransactionReceipt, error) {
	timeout := time.Duration(es.config.TransactionTimeoutSeconds()) * time.Second
	tickerInterval := time.Duration(es.config.TransactionTickerSeconds()) * time.Second

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	log.Info("Waiting for transaction to be mined", "hash", hash.Hex(), "timeout", timeout)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction timeout: %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
			receipt, err := es.GetTransactionReceipt(ctx, hash)
			if err == nil {
				return receipt, nil
			}
			log.Debug("Transaction not yet mined", "hash", hash.Hex(), "error", err)
		}
	}
}

// GetTransactionReceipt returns the receipt for a transaction if it exists
func (es *ghostClient) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*TransactionReceipt, error) {
	receipt, err := es.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("transaction not found or pending: %w", err)
	}

	// Get the transaction to find the To address
	tx, _, err := es.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	result := &TransactionReceipt{
		TxHash:  receipt.TxHash,
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
		From:    es.account.Address, // Use known address
		Logs:    receipt.Logs,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if to := tx.To(); to != nil {
		result.To = *to
	}
	return result, nil
}

// Close closes the Ethereum client connection
func (es *ghostClient) Close() {
	if es.client != nil {
		es.client.Close()
	}
}
