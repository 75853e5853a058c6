package eth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
)

var (
	// ErrConnection is returned for a malformed or unreachable endpoint
	ErrConnection = errors.New("connection error")
	// ErrInvalidKey covers malformed private keys, chain ids and addresses
	ErrInvalidKey = errors.New("invalid key")
	// ErrUnknownFunction is returned when the ABI does not declare the method
	ErrUnknownFunction = errors.New("unknown function")
	// ErrArgumentMismatch is returned when call arguments disagree with the method inputs
	ErrArgumentMismatch = errors.New("argument mismatch")
	// ErrNonce is returned when the node rejects the transaction nonce
	ErrNonce = errors.New("nonce error")
	// ErrSubmission is returned for any other failure to broadcast
	ErrSubmission = errors.New("submission error")
	// ErrRevert is returned when the node simulates the call and it reverts
	ErrRevert = errors.New("execution reverted")
)

var nonceErrs = []error{
	core.ErrNonceTooLow,
	core.ErrNonceTooHigh,
	core.ErrNonceMax,
}

// classifyNodeError maps an RPC error onto the package taxonomy. The node only
// returns the error text, so geth sentinels are matched by message.
func classifyNodeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, nonceErr := range nonceErrs {
		if strings.Contains(msg, nonceErr.Error()) {
			return fmt.Errorf("%w: %w", ErrNonce, err)
		}
	}
	if strings.Contains(msg, vm.ErrExecutionReverted.Error()) {
		return fmt.Errorf("%w: %w", ErrRevert, err)
	}
	return fmt.Errorf("%w: %w", ErrSubmission, err)
}
