package marks

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nando-os/ghost-marks/eth"
)

// Reporter writes one human readable line per transaction
type Reporter struct {
	w io.Writer
}

// NewReporter writes result lines to w
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Submitted reports a transaction accepted by the node
func (r *Reporter) Submitted(label string, tx *eth.SubmittedTransaction) error {
	_, err := fmt.Fprintf(r.w, "%s transaction hash: %s\n", label, tx.TxHash.Hex())
	return err
}

// Recorded reports a transaction found in the journal instead of being sent again
func (r *Reporter) Recorded(label string, hash common.Hash) error {
	_, err := fmt.Fprintf(r.w, "%s transaction hash: %s (already submitted)\n", label, hash.Hex())
	return err
}

// Confirmed reports the mined receipt of a transaction
func (r *Reporter) Confirmed(label string, receipt *eth.TransactionReceipt) error {
	_, err := fmt.Fprintf(r.w, "%s confirmed in block %d, status %d, gas used %d\n",
		label, receipt.BlockNumber, receipt.Status, receipt.GasUsed)
	return err
}
