package marks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Journal remembers which calls of a run were already broadcast so a re-run
// after a partial failure does not send them twice. A call is identified by
// its method and calldata, so changed arguments are never taken as sent.
type Journal interface {
	Lookup(method string, calldata []byte) (common.Hash, bool)
	Record(method string, calldata []byte, hash common.Hash) error
}

type nopJournal struct{}

func (nopJournal) Lookup(string, []byte) (common.Hash, bool) { return common.Hash{}, false }
func (nopJournal) Record(string, []byte, common.Hash) error { return nil }

type journalEntry struct {
	TxHash     common.Hash `json:"tx_hash"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// FileJournal is a Journal persisted as JSON. Entries are scoped by chain and
// contract so one file can serve several targets.
type FileJournal struct {
	mu      sync.Mutex
	path    string
	scope   string
	entries map[string]map[string]journalEntry
}

// OpenJournal loads path, treating a missing file as empty
func OpenJournal(path string, chainID int64, contract common.Address) (*FileJournal, error) {
	j := &FileJournal{
		path:    path,
		scope:   fmt.Sprintf("%d/%s", chainID, contract.Hex()),
		entries: make(map[string]map[string]journalEntry),
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &j.entries); err != nil {
			return nil, fmt.Errorf("failed to decode journal %s: %w", path, err)
		}
	}
	return j, nil
}

// Lookup returns the hash recorded for the same method and calldata
func (j *FileJournal) Lookup(method string, calldata []byte) (common.Hash, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[j.scope][journalKey(method, calldata)]
	return entry.TxHash, ok
}

// Record stores hash for the call and rewrites the file atomically
func (j *FileJournal) Record(method string, calldata []byte, hash common.Hash) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.entries[j.scope] == nil {
		j.entries[j.scope] = make(map[string]journalEntry)
	}
	j.entries[j.scope][journalKey(method, calldata)] = journalEntry{TxHash: hash, RecordedAt: time.Now().UTC()}

	raw, err := json.MarshalIndent(j.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(j.path), filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

func journalKey(method string, calldata []byte) string {
	return method + "/" + crypto.Keccak256Hash(calldata).Hex()
}
