package eth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// NewAccount derives a signing account from a hex encoded secret and binds it to chainID.
// There is no default chain: a zero or negative id is rejected.
func NewAccount(label, privHex string, chainID int64) (*Account, error) {
	if chainID <= 0 {
		return nil, fmt.Errorf("%w: chain ID must be positive, got %d", ErrInvalidKey, chainID)
	}
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: private key for %s: %w", ErrInvalidKey, label, err)
	}
	pubKey := privKey.Public().(*ecdsa.PublicKey)
	return &Account{
		Address:    crypto.PubkeyToAddress(*pubKey),
		PublicKey:  pubKey,
		ChainId:    chainID,
		Label:      label,
		PrivateKey: privKey,
	}, nil
}

// NewReadOnlyAccount builds an account from an uncompressed hex public key.
// Such an account can be queried but never signs.
func NewReadOnlyAccount(label, pubHex string, chainID int64) (*Account, error) {
	if chainID <= 0 {
		return nil, fmt.Errorf("%w: chain ID must be positive, got %d", ErrInvalidKey, chainID)
	}
	raw, err := hexutil.Decode(ensureHexPrefix(strings.TrimSpace(pubHex)))
	if err != nil {
		return nil, fmt.Errorf("%w: public key for %s: %w", ErrInvalidKey, label, err)
	}
	pubKey, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: public key for %s: %w", ErrInvalidKey, label, err)
	}
	return &Account{
		Address:   crypto.PubkeyToAddress(*pubKey),
		PublicKey: pubKey,
		ChainId:   chainID,
		Label:     label,
	}, nil
}

// ParseAddress accepts exactly 40 hex digits with an optional 0x prefix.
// Longer or shorter input is rejected rather than truncated or padded.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(digits) != 2*common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: address %q has %d hex digits, want %d",
			ErrInvalidKey, s, len(digits), 2*common.AddressLength)
	}
	if !common.IsHexAddress(digits) {
		return common.Address{}, fmt.Errorf("%w: address %q is not hex", ErrInvalidKey, s)
	}
	return common.HexToAddress(digits), nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
