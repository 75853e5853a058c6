package marks

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nando-os/ghost-marks/eth"
)

// Sequencer writes a CombiningMarks table to the contract with two calls,
// issuing the second only after the node has accepted the first.
type Sequencer struct {
	contract *eth.Contract
	reporter *Reporter
	journal  Journal
	waiter   eth.GhostClient
}

// Option configures a Sequencer
type Option func(*Sequencer)

// WithJournal skips calls already recorded in j with the same calldata and records new ones
func WithJournal(j Journal) Option {
	return func(s *Sequencer) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithConfirmation waits for each transaction to be mined before the next call
func WithConfirmation(client eth.GhostClient) Option {
	return func(s *Sequencer) {
		s.waiter = client
	}
}

// NewSequencer returns a Sequencer that reports to reporter and keeps no journal unless one is given
func NewSequencer(contract *eth.Contract, reporter *Reporter, opts ...Option) *Sequencer {
	s := &Sequencer{
		contract: contract,
		reporter: reporter,
		journal:  nopJournal{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type step struct {
	method string
	label  string
	args   []interface{}
}

// Run submits initializeCombiningMarks then initializeCombiningMarksSalt.
// The first error aborts the run; a call already broadcast stays in flight.
func (s *Sequencer) Run(ctx context.Context, m CombiningMarks) error {
	if err := m.Validate(); err != nil {
		return err
	}

	steps := []step{
		{method: MethodInitializeCombiningMarks, label: "CombiningMarks", args: []interface{}{m.Keys, m.Values}},
		{method: MethodInitializeCombiningMarksSalt, label: "CombiningMarksSalt", args: []interface{}{m.Salts}},
	}
	for _, st := range steps {
		if err := s.runStep(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) runStep(ctx context.Context, st step) error {
	call, err := s.contract.Invoke(st.method, st.args...)
	if err != nil {
		return err
	}

	if hash, ok := s.journal.Lookup(st.method, call.Data()); ok {
		log.Info("Skipping call already in journal", "method", st.method, "hash", hash.Hex())
		return s.reporter.Recorded(st.label, hash)
	}

	log.Info("Submitting contract call", "method", st.method, "contract", s.contract.Address().Hex())
	submitted, err := call.Submit(ctx)
	if err != nil {
		return err
	}

	if err := s.reporter.Submitted(st.label, submitted); err != nil {
		return fmt.Errorf("failed to report %s: %w", st.method, err)
	}
	if err := s.journal.Record(st.method, call.Data(), submitted.TxHash); err != nil {
		return fmt.Errorf("%s broadcast as %s but not journaled: %w", st.method, submitted.TxHash.Hex(), err)
	}

	if s.waiter == nil {
		return nil
	}
	receipt, err := s.waiter.WaitForTransaction(ctx, submitted.TxHash)
	if err != nil {
		return fmt.Errorf("%s: %w", st.method, err)
	}
	if err := s.reporter.Confirmed(st.label, receipt); err != nil {
		return fmt.Errorf("failed to report %s: %w", st.method, err)
	}
	if receipt.Status != 1 {
		return fmt.Errorf("%w: %s mined with status %d in block %d", eth.ErrRevert, st.method, receipt.Status, receipt.BlockNumber)
	}
	return nil
}
