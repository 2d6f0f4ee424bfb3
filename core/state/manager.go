package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"moneymarket/storage"
)

// Manager is the lending module's view of chain state. Writes are staged in
// memory and journaled so a failed operation can be rolled back to a
// snapshot; Commit flushes the staged writes to the database in one batch.
//
// A Manager is not safe for concurrent use. The lending engine serialises
// every access.
type Manager struct {
	db      storage.Database
	dirty   map[string]stagedValue
	journal []journalEntry
}

type stagedValue struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    stagedValue
	hadPrev bool
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]stagedValue)}
}

func kvKey(parts ...[]byte) []byte {
	return ethcrypto.Keccak256(parts...)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if staged, ok := m.dirty[string(key)]; ok {
		if staged.deleted {
			return nil, nil
		}
		return staged.value, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) stage(key []byte, value stagedValue) {
	k := string(key)
	prev, hadPrev := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, hadPrev: hadPrev})
	m.dirty[k] = value
}

// kvPut stores the RLP encoding of value under key.
func (m *Manager) kvPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	m.stage(key, stagedValue{value: encoded})
	return nil
}

// kvGet decodes the value stored under key into out and reports whether the
// key existed.
func (m *Manager) kvGet(key []byte, out interface{}) (bool, error) {
	data, err := m.get(key)
	if err != nil {
		return false, fmt.Errorf("state: read: %w", err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

func (m *Manager) kvDelete(key []byte) {
	m.stage(key, stagedValue{deleted: true})
}

// Snapshot returns an identifier for the current staged state.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every staged write made after the snapshot was
// taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 {
		id = 0
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	if id < len(m.journal) {
		m.journal = m.journal[:id]
	}
}

// Pending reports the number of staged keys.
func (m *Manager) Pending() int {
	return len(m.dirty)
}

// Commit writes all staged values in a single batch and clears the journal.
// Snapshots taken before Commit are invalidated.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batch := m.db.NewBatch()
	for _, k := range keys {
		staged := m.dirty[k]
		if staged.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), staged.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string]stagedValue)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every staged write.
func (m *Manager) Discard() {
	m.dirty = make(map[string]stagedValue)
	m.journal = m.journal[:0]
}
