package storage

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/NebulousLabs/contractcore/keys"
	"gitlab.com/NebulousLabs/errors"
)

// FSShardStore is a minimal, directory-backed ShardStore: each shard is a
// single file named after its hex-encoded hash. It exists so
// cmd/contractnode has a real, runnable ShardStore to pair with the
// BoltAdapter — the spec places the block-storage layer itself out of
// scope (§1), so nothing about segment layout or on-disk format beyond
// "one file per shard" is implied.
type FSShardStore struct {
	dir string
}

// NewFSShardStore opens dir as a shard store root, creating it if needed.
func NewFSShardStore(dir string) (*FSShardStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Extend(err, errors.New("storage: failed to create shard directory"))
	}
	return &FSShardStore{dir: dir}, nil
}

func (s *FSShardStore) path(hash keys.Hash160) string {
	return filepath.Join(s.dir, hex.EncodeToString(hash[:]))
}

// Open implements ShardStore: a shard whose file already exists resolves
// to a ReadHandle, otherwise to a WriteHandle that creates it.
func (s *FSShardStore) Open(hash keys.Hash160) (ShardHandle, error) {
	path := s.path(hash)
	if f, err := os.Open(path); err == nil {
		return ReadHandle{ReadSeeker: f, Closer: f}, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Extend(err, errors.New("storage: failed to open shard"))
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.Extend(err, errors.New("storage: failed to create shard"))
	}
	return WriteHandle{WriteCloser: f}, nil
}
