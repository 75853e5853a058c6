package eth

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Account is a signing identity scoped to one chain
type Account struct {
	Address    common.Address    // Ethereum address
	PublicKey  *ecdsa.PublicKey  // Public key, derived from the private key when present
	ChainId    int64             // Chain ID for transaction signing
	Label      string            // Optional: human-readable label
	PrivateKey *ecdsa.PrivateKey // Private key for signing transactions, nil for read-only accounts
}

// CanSign reports whether the account holds a private key
func (a *Account) CanSign() bool {
	return a != nil && a.PrivateKey != nil
}

// Transaction is the unsigned form of a contract call before it is handed to the network
type Transaction struct {
	From                 common.Address `json:"from"`
	To                   common.Address `json:"to"`
	Value                *big.Int       `json:"value"`
	Data                 []byte         `json:"data"`
	GasLimit             uint64         `json:"gas_limit"`
	GasPrice             *big.Int       `json:"gas_price"`
	MaxFeePerGas         *big.Int       `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas *big.Int       `json:"max_priority_fee_per_gas"`
	Nonce                uint64         `json:"nonce"`
	ChainID              *big.Int       `json:"chain_id"`
}

// SubmittedTransaction is a call accepted into the node's pending pool
type SubmittedTransaction struct {
	TxHash common.Hash    `json:"tx_hash"`
	Method string         `json:"method"`
	Nonce  uint64         `json:"nonce"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
}

// TransactionReceipt represents transaction execution result
type TransactionReceipt struct {
	TxHash      common.Hash    `json:"tx_hash"`
	Status      uint64         `json:"status"`
	BlockNumber uint64         `json:"block_number"`
	GasUsed     uint64         `json:"gas_used"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Logs        []*types.Log   `json:"logs"`
}
