package storage

import (
	"io"

	"github.com/NebulousLabs/contractcore/keys"
)

// ShardHandle is the tagged variant the teacher's source represents with a
// duck-typed "is this handle writable" check (see DESIGN.md — §9's
// "Duck-typed shard handle" note). A shard is either not yet stored
// (WriteHandle, a sink waiting for CONSIGN/MIRROR to fill it) or already
// stored (ReadHandle, a source for RETRIEVE/AUDIT).
type ShardHandle interface {
	isShardHandle()
}

// WriteHandle is a shard that has not yet been received. It is the sink
// CONSIGN and MIRROR write into.
type WriteHandle struct {
	io.WriteCloser
}

func (WriteHandle) isShardHandle() {}

// ReadHandle is a shard whose bytes are already present. It is the source
// RETRIEVE and AUDIT read from.
type ReadHandle struct {
	io.ReadSeeker
	io.Closer
}

func (ReadHandle) isShardHandle() {}

// Writable reports whether handle is a WriteHandle (the shard has not yet
// been stored). Handlers use this instead of the teacher's duck typing to
// decide whether a CONSIGN/MIRROR/AUDIT should proceed or bail out.
func Writable(handle ShardHandle) bool {
	_, ok := handle.(WriteHandle)
	return ok
}

// ShardStore is the external, block-oriented shard store the protocol core
// consumes but does not implement (see spec §1, out of scope). It resolves
// a data hash to the handle appropriate for the shard's current state.
type ShardStore interface {
	Open(hash keys.Hash160) (ShardHandle, error)
}
