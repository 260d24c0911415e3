package protocol

import (
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/storage"
	"github.com/NebulousLabs/contractcore/wire"
)

// AuditEntry is one challenge within an AUDIT request.
type AuditEntry struct {
	DataHash  keys.Hash160
	Challenge storage.Challenge
}

// AuditRequest is the AUDIT wire request.
type AuditRequest struct {
	Audits []AuditEntry
}

// AuditResponse is the AUDIT wire response: one proof per request entry, in
// the same order.
type AuditResponse struct {
	Proofs []storage.Proof
}

// HandleAudit implements the AUDIT handler: it produces a Merkle proof per
// entry, bounded to MaxConcurrentAudits in flight, preserving input order in
// the output. The first proof failure fails the whole response. See
// SPEC_FULL.md §4.1.
func (h *Handlers) HandleAudit(contact wire.Contact, req AuditRequest) (*AuditResponse, *Failure) {
	if len(req.Audits) == 0 {
		return nil, fail("invalid-audits", nil)
	}
	if err := h.tg.Add(); err != nil {
		return nil, fail("invalid-audits", err)
	}
	defer h.tg.Done()

	proofs := make([]storage.Proof, len(req.Audits))
	errs := make([]*Failure, len(req.Audits))
	sem := make(chan struct{}, MaxConcurrentAudits)
	done := make(chan int, len(req.Audits))

	for i, entry := range req.Audits {
		i, entry := i, entry
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; done <- i }()
			p, f := h.proveShardExistence(entry.DataHash, entry.Challenge, contact.NodeID)
			proofs[i] = p
			errs[i] = f
		}()
	}
	for range req.Audits {
		<-done
	}

	for _, f := range errs {
		if f != nil {
			return nil, f
		}
	}
	return &AuditResponse{Proofs: proofs}, nil
}

// proveShardExistence loads the item for hash and produces a single-pass
// Merkle proof over the renter's audit tree, challenged at the segment
// index encoded in challenge. Grounded on crypto.BuildReaderProof via
// storage.BuildProof.
func (h *Handlers) proveShardExistence(hash keys.Hash160, challenge storage.Challenge, nodeID keys.NodeID) (storage.Proof, *Failure) {
	item, err := h.Manager.Load(hash)
	if err != nil {
		return storage.Proof{}, fail("not-found", err)
	}
	if _, ok := item.Trees[nodeID]; !ok {
		return storage.Proof{}, fail("no-tree", nil)
	}
	if storage.Writable(item.Shard) {
		return storage.Proof{}, fail("not-found", nil)
	}
	segmentIndex, err := challenge.SegmentIndex()
	if err != nil {
		return storage.Proof{}, fail("not-found", err)
	}

	read, ok := item.Shard.(storage.ReadHandle)
	if !ok {
		return storage.Proof{}, fail("not-found", nil)
	}
	defer read.Close()

	p, err := storage.BuildProof(read, segmentIndex)
	if err != nil {
		return storage.Proof{}, fail("not-found", err)
	}
	return p, nil
}
