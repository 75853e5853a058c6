package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Contract binds a deployed address and its ABI to a GhostClient
type Contract struct {
	address common.Address
	abi     abi.ABI
	client  GhostClient

	submitTimeout time.Duration
	nonceRetries  int
}

// ParseABI parses a JSON interface description
func ParseABI(abiJSON string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return parsed, nil
}

// NewContract binds address and contractABI to client. Submission timeout and
// nonce retries are taken from cfg; a nil cfg uses the package defaults.
func NewContract(address common.Address, contractABI abi.ABI, client GhostClient, cfg Config) *Contract {
	c := &Contract{
		address:       address,
		abi:           contractABI,
		client:        client,
		submitTimeout: DEFAULT_SUBMIT_TIMEOUT_SECONDS * time.Second,
		nonceRetries:  DEFAULT_NONCE_RETRIES,
	}
	if cfg != nil {
		c.submitTimeout = time.Duration(cfg.SubmitTimeoutSeconds()) * time.Second
		c.nonceRetries = cfg.NonceRetries()
	}
	return c
}

// Address is the contract every call is sent to
func (c *Contract) Address() common.Address {
	return c.address
}

// HasMethod reports whether the ABI declares name
func (c *Contract) HasMethod(name string) bool {
	_, ok := c.abi.Methods[name]
	return ok
}

// Invoke encodes a call to method. Nothing is sent until Submit is called on the result.
func (c *Contract) Invoke(method string, args ...interface{}) (*PendingCall, error) {
	data, err := c.pack(method, args)
	if err != nil {
		return nil, err
	}
	return &PendingCall{
		contract: c,
		method:   method,
		args:     args,
		data:     data,
	}, nil
}

// Call runs a read-only method and returns its decoded outputs
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.pack(method, args)
	if err != nil {
		return nil, err
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	results, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return results, nil
}

// DecodeCall recovers the method name and arguments from calldata produced by Invoke
func (c *Contract) DecodeCall(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	m, err := c.abi.MethodById(data[:4])
	if err != nil {
		return "", nil, fmt.Errorf("%w: selector %x: %w", ErrUnknownFunction, data[:4], err)
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("%s: failed to decode arguments: %w", m.Name, err)
	}
	return m.Name, args, nil
}

func (c *Contract) pack(method string, args []interface{}) ([]byte, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found in contract ABI", ErrUnknownFunction, method)
	}
	if err := checkArguments(m, args); err != nil {
		return nil, err
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArgumentMismatch, method, err)
	}
	return data, nil
}

// checkArguments requires the exact Go type the ABI decoder produces for each
// input, so []uint16 and []*big.Int never stand in for one another.
func checkArguments(m abi.Method, args []interface{}) error {
	if len(args) != len(m.Inputs) {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgumentMismatch, m.Sig, len(m.Inputs), len(args))
	}
	for i, input := range m.Inputs {
		want := input.Type.GetType()
		got := reflect.TypeOf(args[i])
		if got != want {
			return fmt.Errorf("%w: %s argument %d (%s %s) has type %v, want %v",
				ErrArgumentMismatch, m.Sig, i, input.Type.String(), input.Name, got, want)
		}
	}
	return nil
}

// PendingCall is an encoded call that has not been broadcast yet
type PendingCall struct {
	contract *Contract
	method   string
	args     []interface{}
	data     []byte

	submitted *SubmittedTransaction
}

// Method is the ABI method name the call encodes
func (p *PendingCall) Method() string {
	return p.method
}

// Data returns the encoded calldata, selector included
func (p *PendingCall) Data() []byte {
	return common.CopyBytes(p.data)
}

// Submit signs and broadcasts the call and returns once the node accepts it
// into its pending pool. It does not wait for the transaction to be mined.
// A PendingCall is broadcast at most once; later calls return the first result.
func (p *PendingCall) Submit(ctx context.Context) (*SubmittedTransaction, error) {
	if p.submitted != nil {
		return p.submitted, nil
	}

	client := p.contract.client
	ctx, cancel := context.WithTimeout(ctx, p.contract.submitTimeout)
	defer cancel()

	tx := &Transaction{
		From:  client.Account().Address,
		To:    p.contract.address,
		Value: new(big.Int),
		Data:  p.data,
	}

	for attempt := 0; ; attempt++ {
		receipt, err := p.signAndSend(ctx, tx)
		if err == nil {
			p.submitted = &SubmittedTransaction{
				TxHash: receipt.TxHash,
				Method: p.method,
				Nonce:  tx.Nonce,
				From:   receipt.From,
				To:     receipt.To,
			}
			return p.submitted, nil
		}
		if errors.Is(err, ErrNonce) && attempt < p.contract.nonceRetries {
			log.Warn("Nonce rejected, re-signing with a fresh nonce",
				"method", p.method, "nonce", tx.Nonce, "attempt", attempt+1, "error", err)
			tx.Nonce = 0
			continue
		}
		return nil, fmt.Errorf("%s: %w", p.method, err)
	}
}

func (p *PendingCall) signAndSend(ctx context.Context, tx *Transaction) (*TransactionReceipt, error) {
	client := p.contract.client
	signedTx, err := client.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return client.SendTransaction(ctx, signedTx)
}
