package marks

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/nando-os/ghost-marks/eth"
)

// CombiningMarks is the data written by one run: a key/value table of
// combining code points and the salts stored next to it.
type CombiningMarks struct {
	Keys   []uint16
	Values []uint16
	Salts  []*big.Int
}

// DefaultCombiningMarks maps U+0300..U+0303 onto a, e, i, o.
func DefaultCombiningMarks() CombiningMarks {
	return CombiningMarks{
		Keys:   []uint16{768, 769, 770, 771},
		Values: []uint16{97, 101, 105, 111},
		Salts:  []*big.Int{big.NewInt(12345), big.NewInt(67890)},
	}
}

// Validate rejects a table whose keys and values do not pair up
func (m CombiningMarks) Validate() error {
	if len(m.Keys) != len(m.Values) {
		return fmt.Errorf("%w: %d keys but %d values", eth.ErrArgumentMismatch, len(m.Keys), len(m.Values))
	}
	for i, salt := range m.Salts {
		if salt == nil || salt.Sign() < 0 || salt.BitLen() > 256 {
			return fmt.Errorf("%w: salt %d is not a uint256", eth.ErrArgumentMismatch, i)
		}
	}
	return nil
}

// ParseUint16List parses decimal or 0x-prefixed values, one per element
func ParseUint16List(items []string) ([]uint16, error) {
	out := make([]uint16, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, err := strconv.ParseUint(item, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a uint16: %w", eth.ErrArgumentMismatch, item, err)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

// ParseUint256List parses decimal or 0x-prefixed values, one per element
func ParseUint256List(items []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		v, ok := new(big.Int).SetString(item, 0)
		if !ok || v.Sign() < 0 || v.BitLen() > 256 {
			return nil, fmt.Errorf("%w: %q is not a uint256", eth.ErrArgumentMismatch, item)
		}
		out = append(out, v)
	}
	return out, nil
}
