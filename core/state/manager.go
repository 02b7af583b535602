package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"vaultchain/storage"
)

// ErrSchemaMismatch is returned when the database was written by an
// incompatible record layout.
var ErrSchemaMismatch = errors.New("state: schema version mismatch")

// Manager persists node checkpoints and history as RLP records.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager wraps db and stamps or verifies the schema version.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database must not be nil")
	}
	m := &Manager{db: db}
	var version uint64
	ok, err := m.KVGet(schemaVersionKey, &version)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := m.KVPut(schemaVersionKey, SchemaVersion); err != nil {
			return nil, err
		}
		return m, nil
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrSchemaMismatch, version, SchemaVersion)
	}
	return m, nil
}

// KVPut stores the provided value under key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) nextSeq(key []byte) (uint64, error) {
	var seq uint64
	if _, err := m.KVGet(key, &seq); err != nil {
		return 0, err
	}
	if err := m.KVPut(key, seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

// PutVaultCheckpoint overwrites the vault checkpoint.
func (m *Manager) PutVaultCheckpoint(cp VaultCheckpoint) error {
	cp.normalize()
	return m.KVPut(vaultCheckpointKey, &cp)
}

// VaultCheckpoint returns the last stored vault checkpoint.
func (m *Manager) VaultCheckpoint() (*VaultCheckpoint, bool, error) {
	cp := new(VaultCheckpoint)
	ok, err := m.KVGet(vaultCheckpointKey, cp)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cp, true, nil
}

// PutStrategyCheckpoint overwrites the checkpoint of cp.Address.
func (m *Manager) PutStrategyCheckpoint(cp StrategyCheckpoint) error {
	cp.normalize()
	return m.KVPut(StrategyCheckpointKey(cp.Address), &cp)
}

// StrategyCheckpoint returns the last stored checkpoint of addr.
func (m *Manager) StrategyCheckpoint(addr common.Address) (*StrategyCheckpoint, bool, error) {
	cp := new(StrategyCheckpoint)
	ok, err := m.KVGet(StrategyCheckpointKey(addr), cp)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cp, true, nil
}

// AppendReport assigns the next sequence number to rec and stores it.
func (m *Manager) AppendReport(rec ReportRecord) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, err := m.nextSeq(reportSeqKey)
	if err != nil {
		return 0, err
	}
	rec.Seq = seq
	rec.normalize()
	if err := m.KVPut(ReportKey(seq), &rec); err != nil {
		return 0, err
	}
	return seq, nil
}

// Reports returns the most recent limit harvest reports, oldest first. A
// zero limit returns the full history.
func (m *Manager) Reports(limit int) ([]ReportRecord, error) {
	var (
		out    []ReportRecord
		decErr error
	)
	err := m.db.Iterate(reportPrefix, func(_, value []byte) bool {
		var rec ReportRecord
		if decErr = rlp.DecodeBytes(value, &rec); decErr != nil {
			return false
		}
		out = append(out, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, fmt.Errorf("state: decode report: %w", decErr)
	}
	return tail(out, limit), nil
}

// AppendTrade stores a settled trade.
func (m *Manager) AppendTrade(rec TradeRecord) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, err := m.nextSeq(tradeSeqKey)
	if err != nil {
		return 0, err
	}
	rec.Seq = seq
	rec.normalize()
	if err := m.KVPut(TradeKey(seq), &rec); err != nil {
		return 0, err
	}
	return seq, nil
}

// Trades returns the most recent limit trades, oldest first.
func (m *Manager) Trades(limit int) ([]TradeRecord, error) {
	var (
		out    []TradeRecord
		decErr error
	)
	err := m.db.Iterate(tradePrefix, func(_, value []byte) bool {
		var rec TradeRecord
		if decErr = rlp.DecodeBytes(value, &rec); decErr != nil {
			return false
		}
		out = append(out, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, fmt.Errorf("state: decode trade: %w", decErr)
	}
	return tail(out, limit), nil
}

func tail[T any](list []T, limit int) []T {
	if limit <= 0 || len(list) <= limit {
		return list
	}
	return list[len(list)-limit:]
}
