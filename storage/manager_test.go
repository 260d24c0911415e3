package storage

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/keys"
)

// memAdapter is a minimal in-memory Adapter for exercising Manager without a
// real BoltDB file.
type memAdapter struct {
	mu    sync.Mutex
	items map[keys.Hash160]*bookkeeping
}

func newMemAdapter() *memAdapter {
	return &memAdapter{items: make(map[keys.Hash160]*bookkeeping)}
}

func (a *memAdapter) Get(hash keys.Hash160) (*bookkeeping, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bk, ok := a.items[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return bk, nil
}

func (a *memAdapter) Put(hash keys.Hash160, b *bookkeeping) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[hash] = b
	return nil
}

func (a *memAdapter) Size() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total uint64
	for _, bk := range a.items {
		total += uint64(len(bk.Hash)) + 1024 // a fixed per-item weight is enough to exercise capacity locking
	}
	return total, nil
}

func (a *memAdapter) Keys() ([]keys.Hash160, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []keys.Hash160
	for k := range a.items {
		out = append(out, k)
	}
	return out, nil
}

func (a *memAdapter) Del(hash keys.Hash160) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, hash)
	return nil
}

// memShardStore always hands out a WriteHandle over discardWriteCloser, since these
// tests only exercise bookkeeping, never shard bytes.
type memShardStore struct{}

func (memShardStore) Open(hash keys.Hash160) (ShardHandle, error) {
	return WriteHandle{WriteCloser: discardWriteCloser{}}, nil
}

type discardWriteCloser struct{}

func (discardWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriteCloser) Close() error                { return nil }

func newTestManager(t *testing.T, capacity, lockThreshold uint64) (*Manager, *memAdapter) {
	t.Helper()
	adapter := newMemAdapter()
	walPath := filepath.Join(t.TempDir(), "manager.wal")
	m, err := NewManager(adapter, memShardStore{}, walPath, capacity, lockThreshold)
	if err != nil {
		t.Fatal(err)
	}
	return m, adapter
}

func TestManagerSaveLoadRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, 0, 0)

	var hash keys.Hash160
	hash[0] = 5
	item, err := m.NewPendingItem(hash)
	if err != nil {
		t.Fatal(err)
	}
	var counterparty keys.Hash160
	counterparty[0] = 6
	item.Contracts[counterparty] = contract.Contract{DataHash: hash, StoreEnd: 100}

	if err := m.Save(item); err != nil {
		t.Fatal(err)
	}

	loaded, err := m.Load(hash)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Hash != hash {
		t.Fatal("loaded item has the wrong hash")
	}
	c, ok := loaded.Contracts[counterparty]
	if !ok {
		t.Fatal("expected the saved contract to round-trip under its counterparty key")
	}
	if c.StoreEnd != 100 {
		t.Fatalf("expected StoreEnd 100, got %d", c.StoreEnd)
	}
}

func TestManagerSaveRejectsInvalidItem(t *testing.T) {
	m, _ := newTestManager(t, 0, 0)
	var hash, other keys.Hash160
	hash[0], other[0] = 1, 2
	item := NewItem(hash, nil)
	var counterparty keys.Hash160
	counterparty[0] = 9
	item.Contracts[counterparty] = contract.Contract{DataHash: other}

	if err := m.Save(item); err == nil {
		t.Fatal("expected Save to reject an item whose contract data_hash doesn't match")
	}
}

func TestManagerLoadUnknownHash(t *testing.T) {
	m, _ := newTestManager(t, 0, 0)
	var hash keys.Hash160
	if _, err := m.Load(hash); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type recordingListener struct {
	mu            sync.Mutex
	lockedCount   int
	unlockedCount int
}

func (l *recordingListener) Locked() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lockedCount++
}
func (l *recordingListener) Unlocked() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlockedCount++
}
func (l *recordingListener) StorageError(error) {}

func TestManagerNotifiesLockedOnceCapacityIsReached(t *testing.T) {
	// Each Save adds a ~1024-byte item per memAdapter.Size's accounting; a
	// capacity of 1024 with no threshold locks on the very first save.
	m, _ := newTestManager(t, 1024, 0)
	listener := &recordingListener{}
	m.Subscribe(listener)

	var hash keys.Hash160
	hash[0] = 1
	item, err := m.NewPendingItem(hash)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Save(item); err != nil {
		t.Fatal(err)
	}

	listener.mu.Lock()
	locked := listener.lockedCount
	listener.mu.Unlock()
	if locked != 1 {
		t.Fatalf("expected exactly one Locked notification, got %d", locked)
	}
}

func TestManagerDeleteRemovesItem(t *testing.T) {
	m, _ := newTestManager(t, 0, 0)
	var hash keys.Hash160
	hash[0] = 3
	item, err := m.NewPendingItem(hash)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Save(item); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(hash); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load(hash); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after Delete, got %v", err)
	}
}
