// Package storage implements the per-shard StorageItem aggregate and the
// StorageManager persistence façade described in SPEC_FULL.md's storage/
// module: load/save/size, capacity lock/unlock events, and the bolt-backed
// default Adapter. Adapted from the bookkeeping half of the teacher's
// modules/host/storagemanager (the byte-layout half of that package is the
// external, out-of-scope shard store this package consumes through
// ShardStore instead of reimplementing).
package storage

import (
	"encoding/json"

	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/keys"
	"gitlab.com/NebulousLabs/demotemutex"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/writeaheadlog"
)

var (
	// ErrNotFound is returned when Load is asked for a hash with no item.
	ErrNotFound = errors.New("storage: no item for that hash")

	// ErrDisrupted is returned when a test dependency forces a failure.
	ErrDisrupted = errors.New("storage: disrupted by test dependency")
)

// Adapter is the narrow persistence interface this core consumes (spec §6
// StorageAdapter): get/put/size/keys/del over the bookkeeping half of an
// Item (contracts, trees, challenges — never shard bytes).
type Adapter interface {
	Get(hash keys.Hash160) (*bookkeeping, error)
	Put(hash keys.Hash160, b *bookkeeping) error
	Size() (uint64, error)
	Keys() ([]keys.Hash160, error)
	Del(hash keys.Hash160) error
}

// bookkeeping is the JSON-serializable projection of an Item that actually
// gets persisted; the Shard field is reconstructed on load via ShardStore,
// never written to the adapter.
type bookkeeping struct {
	Hash       keys.Hash160                  `json:"hash"`
	Contracts  map[string]json.RawMessage    `json:"contracts"`
	Trees      map[string]MerkleRoot         `json:"trees"`
	Challenges map[string][]Challenge        `json:"challenges"`
}

// Manager is the StorageManager façade: it combines an Adapter (contract
// bookkeeping persistence), a ShardStore (shard handle resolution), and a
// write-ahead log that makes Save all-or-nothing, per §5's "StorageItem
// writes are all-or-nothing through the manager."
type Manager struct {
	mu           demotemutex.DemoteMutex
	adapter      Adapter
	shards       ShardStore
	wal          *writeaheadlog.WAL
	deps         Dependencies
	listeners    []CapacityListener
	capacity     uint64
	lockThreshold uint64
	locked       bool
}

// NewManager builds a Manager around adapter and shards, with a
// write-ahead log rooted at walPath. capacity and lockThreshold set the
// byte budget at which the manager transitions to "locked" (no more room).
func NewManager(adapter Adapter, shards ShardStore, walPath string, capacity, lockThreshold uint64) (*Manager, error) {
	wal, recovered, err := writeaheadlog.New(walPath)
	if err != nil {
		return nil, errors.Extend(err, errors.New("storage: failed to open write-ahead log"))
	}
	for _, txn := range recovered {
		// Any transaction that was interrupted mid-commit is discarded
		// without being re-applied: the adapter's Put either completed or
		// didn't, and bookkeeping writes are idempotent.
		if err := txn.SignalUpdatesApplied(); err != nil {
			return nil, errors.Extend(err, errors.New("storage: failed to recover write-ahead log"))
		}
	}
	return &Manager{
		adapter:       adapter,
		shards:        shards,
		wal:           wal,
		deps:          ProductionDependencies{},
		capacity:      capacity,
		lockThreshold: lockThreshold,
	}, nil
}

// SetDependencies installs a fault-injection seam for tests.
func (m *Manager) SetDependencies(d Dependencies) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps = d
}

// Size reports current bookkeeping usage in bytes, or an error, which
// callers (notably farmer.Negotiator) must treat as "no space available."
func (m *Manager) Size() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.deps.Disrupt("StorageManagerSizeError") {
		err := ErrDisrupted
		go m.notifyError(err)
		return 0, err
	}
	return m.adapter.Size()
}

// Load retrieves the full Item for hash, reconstructing its shard handle
// via ShardStore.
func (m *Manager) Load(hash keys.Hash160) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.deps.Disrupt("StorageManagerLoadError") {
		return nil, ErrDisrupted
	}
	bk, err := m.adapter.Get(hash)
	if err != nil {
		return nil, err
	}
	return m.toItem(bk)
}

// Save persists item's bookkeeping state atomically via the write-ahead
// log, then re-evaluates capacity and fires Locked/Unlocked as needed. The
// write is all-or-nothing: if the WAL transaction's setup fails, the
// adapter is never touched.
func (m *Manager) Save(item *Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	bk, err := fromItem(item)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(bk)
	if err != nil {
		return errors.Extend(err, errors.New("storage: failed to marshal item"))
	}

	m.mu.Lock()
	if m.deps.Disrupt("StorageManagerSaveError") {
		m.mu.Unlock()
		return ErrDisrupted
	}
	// Demote to a read lock for the slow WAL/adapter round trip so
	// concurrent Load/Size callers are not blocked behind disk I/O; the
	// capacity recheck below re-acquires the lock fully.
	m.mu.Demote()
	txn, err := m.wal.NewTransaction([]writeaheadlog.Update{{
		Name:         "storage-item-put",
		Version:      "1.0",
		Instructions: payload,
	}})
	if err != nil {
		m.mu.RUnlock()
		return errors.Extend(err, errors.New("storage: failed to open wal transaction"))
	}
	if err := <-txn.SignalSetupComplete(); err != nil {
		m.mu.RUnlock()
		return errors.Extend(err, errors.New("storage: wal setup failed"))
	}
	putErr := m.adapter.Put(item.Hash, bk)
	if putErr != nil {
		m.mu.RUnlock()
		return errors.Extend(putErr, errors.New("storage: adapter put failed"))
	}
	if err := txn.SignalUpdatesApplied(); err != nil {
		m.mu.RUnlock()
		return errors.Extend(err, errors.New("storage: wal commit failed"))
	}
	m.mu.RUnlock()

	m.recheckCapacity()
	return nil
}

// NewPendingItem constructs an Item for hash with a fresh write handle,
// used when a handler is about to persist the first contract seen for a
// data hash (the shard itself has not arrived yet).
func (m *Manager) NewPendingItem(hash keys.Hash160) (*Item, error) {
	shard, err := m.shards.Open(hash)
	if err != nil {
		return nil, errors.Extend(err, errors.New("storage: failed to allocate shard handle"))
	}
	return NewItem(hash, shard), nil
}

// Delete removes an item's bookkeeping entirely (invoked once all of its
// contracts have expired, per §3's StorageItem lifecycle).
func (m *Manager) Delete(hash keys.Hash160) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.adapter.Del(hash); err != nil {
		return err
	}
	go m.recheckCapacity()
	return nil
}

func (m *Manager) recheckCapacity() {
	size, err := m.adapter.Size()
	if err != nil {
		m.notifyError(err)
		return
	}
	m.mu.Lock()
	wasLocked := m.locked
	m.locked = m.capacity > 0 && size >= m.capacity-m.lockThreshold
	nowLocked := m.locked
	m.mu.Unlock()

	if nowLocked && !wasLocked {
		m.notifyLocked()
	} else if !nowLocked && wasLocked {
		m.notifyUnlocked()
	}
}

func (m *Manager) toItem(bk *bookkeeping) (*Item, error) {
	shard, err := m.shards.Open(bk.Hash)
	if err != nil {
		return nil, errors.Extend(err, errors.New("storage: failed to open shard handle"))
	}
	item := NewItem(bk.Hash, shard)
	for k, raw := range bk.Contracts {
		var id keys.Hash160
		if err := id.LoadString(k); err != nil {
			return nil, err
		}
		var c contract.Contract
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		item.Contracts[id] = c
	}
	for k, root := range bk.Trees {
		var id keys.Hash160
		if err := id.LoadString(k); err != nil {
			return nil, err
		}
		item.Trees[id] = root
	}
	for k, ch := range bk.Challenges {
		var id keys.Hash160
		if err := id.LoadString(k); err != nil {
			return nil, err
		}
		item.Challenges[id] = ch
	}
	return item, nil
}

func fromItem(item *Item) (*bookkeeping, error) {
	bk := &bookkeeping{
		Hash:       item.Hash,
		Contracts:  make(map[string]json.RawMessage, len(item.Contracts)),
		Trees:      make(map[string]MerkleRoot, len(item.Trees)),
		Challenges: make(map[string][]Challenge, len(item.Challenges)),
	}
	for id, c := range item.Contracts {
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		bk.Contracts[id.String()] = raw
	}
	for id, root := range item.Trees {
		bk.Trees[id.String()] = root
	}
	for id, ch := range item.Challenges {
		bk.Challenges[id.String()] = ch
	}
	return bk, nil
}
