package storage

import (
	"encoding/json"

	"github.com/NebulousLabs/contractcore/keys"
	"gitlab.com/NebulousLabs/bolt"
	"gitlab.com/NebulousLabs/errors"
)

var itemsBucket = []byte("items")

// BoltAdapter is the default Adapter, a single-bucket BoltDB store keyed by
// data hash. It is the only Adapter this core ships; anything reading the
// StorageAdapter interface from §6 can swap it out.
type BoltAdapter struct {
	db *bolt.DB
}

// OpenBoltAdapter opens (creating if necessary) a BoltDB file at path.
func OpenBoltAdapter(path string) (*BoltAdapter, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Extend(err, errors.New("storage: failed to open bolt database"))
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(itemsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Extend(err, errors.New("storage: failed to initialize bucket"))
	}
	return &BoltAdapter{db: db}, nil
}

// Close releases the underlying BoltDB file handle.
func (a *BoltAdapter) Close() error {
	return a.db.Close()
}

// Get implements Adapter.
func (a *BoltAdapter) Get(hash keys.Hash160) (*bookkeeping, error) {
	var bk bookkeeping
	err := a.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(itemsBucket).Get(hash[:])
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &bk)
	})
	if err != nil {
		return nil, err
	}
	return &bk, nil
}

// Put implements Adapter.
func (a *BoltAdapter) Put(hash keys.Hash160, b *bookkeeping) error {
	v, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(itemsBucket).Put(hash[:], v)
	})
}

// Del implements Adapter.
func (a *BoltAdapter) Del(hash keys.Hash160) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(itemsBucket).Delete(hash[:])
	})
}

// Keys implements Adapter.
func (a *BoltAdapter) Keys() ([]keys.Hash160, error) {
	var out []keys.Hash160
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(itemsBucket).ForEach(func(k, _ []byte) error {
			var id keys.Hash160
			copy(id[:], k)
			out = append(out, id)
			return nil
		})
	})
	return out, err
}

// Size implements Adapter, reporting the total bookkeeping payload size in
// bytes across all stored items. This is a proxy for occupied capacity;
// the actual shard bytes live in the external shard store.
func (a *BoltAdapter) Size() (uint64, error) {
	var total uint64
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(itemsBucket).ForEach(func(_, v []byte) error {
			total += uint64(len(v))
			return nil
		})
	})
	return total, err
}
