package storage

import (
	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/keys"
	"gitlab.com/NebulousLabs/errors"
)

// MerkleRoot is a per-renter audit-tree root, supplied by the renter on
// CONSIGN and used by AUDIT to prove continued custody.
type MerkleRoot [32]byte

// Challenge is an opaque audit challenge (a segment index plus any salt the
// renter chooses to include), interpreted only by the proof transform.
type Challenge []byte

// Item is the aggregate per-shard record: the shard handle, the set of
// contracts, and the audit state, each indexed by the counterparty's node id
// (the renter on a farmer's item, the farmer on a renter's). It corresponds
// to the teacher's storageObligation, generalized from a single blockchain
// file contract to the multi-contract, multi-renter-tree shape the
// protocol spec requires.
type Item struct {
	Hash      keys.Hash160
	Shard     ShardHandle
	Contracts map[keys.Hash160]contract.Contract // keyed by the counterparty node id
	Trees     map[keys.Hash160]MerkleRoot         // keyed by the counterparty node id
	Challenges map[keys.Hash160][]Challenge        // keyed by the counterparty node id
}

// NewItem creates an empty item for hash around the given shard handle.
func NewItem(hash keys.Hash160, shard ShardHandle) *Item {
	return &Item{
		Hash:       hash,
		Shard:      shard,
		Contracts:  make(map[keys.Hash160]contract.Contract),
		Trees:      make(map[keys.Hash160]MerkleRoot),
		Challenges: make(map[keys.Hash160][]Challenge),
	}
}

// Validate checks the invariant that hash equals every contract's
// DataHash.
func (it *Item) Validate() error {
	for farmer, c := range it.Contracts {
		if c.DataHash != it.Hash {
			return errors.New("storage: item " + it.Hash.String() + " holds a contract for counterparty " + farmer.String() + " with mismatched data_hash")
		}
	}
	return nil
}

// Expired reports whether every contract held by the item has passed its
// store_end as of nowMS, meaning the item is eligible for destruction.
func (it *Item) Expired(nowMS int64) bool {
	if len(it.Contracts) == 0 {
		return false
	}
	for _, c := range it.Contracts {
		if c.StoreEnd > nowMS {
			return false
		}
	}
	return true
}
