// Package negotiation implements the PendingOfferRegistry: the
// process-wide (here: per-network-instance, per §9's design note) table
// that guarantees at most one open renter-side negotiation per data hash.
// Adapted from the map-of-pending-actions bookkeeping style in
// modules/renter/contractor, generalized to the single explicit
// open/resolve/cancel/blacklist API §9 recommends in place of a bare
// global map.
package negotiation

import (
	"sync"
	"time"

	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/wire"
	"gitlab.com/NebulousLabs/errors"
)

// Resolver is invoked exactly once when a pending offer resolves, either
// because the farmer's OFFER landed or because the negotiation was
// cancelled/timed out (in which case err is non-nil).
type Resolver func(err error, farmer wire.Contact, c contract.Contract)

// PendingOffer is the open renter-side negotiation for one data hash.
type PendingOffer struct {
	DataHash  keys.Hash160
	resolver  Resolver
	blacklist map[keys.NodeID]struct{}
	CreatedAt time.Time
}

// IsBlacklisted reports whether id has been excluded from this
// negotiation (see the asymmetry noted in SPEC_FULL/DESIGN: blacklisted
// farmers fail the same way as "no pending offer at all", but do not emit
// unhandled_offer).
func (p *PendingOffer) IsBlacklisted(id keys.NodeID) bool {
	_, ok := p.blacklist[id]
	return ok
}

var (
	// ErrAlreadyOpen is returned by Open when a negotiation for the hash is
	// already outstanding: at most one entry per data_hash, process-wide.
	ErrAlreadyOpen = errors.New("negotiation: a pending offer for this data hash is already open")

	// ErrNotOpen is returned by Resolve/Cancel/Blacklist when there is no
	// matching pending offer.
	ErrNotOpen = errors.New("negotiation: no pending offer for this data hash")
)

// Registry is the PendingOfferRegistry: a single table keyed by data hash.
type Registry struct {
	mu      sync.Mutex
	entries map[keys.Hash160]*PendingOffer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[keys.Hash160]*PendingOffer),
	}
}

func (r *Registry) lock()   { r.mu.Lock() }
func (r *Registry) unlock() { r.mu.Unlock() }

// Open installs a new pending offer for hash, failing if one is already
// open. This is the registry's single duplicate-suppression point: exactly
// one entry per data_hash can exist at a time.
func (r *Registry) Open(hash keys.Hash160, resolver Resolver) (*PendingOffer, error) {
	r.lock()
	defer r.unlock()
	if _, exists := r.entries[hash]; exists {
		return nil, ErrAlreadyOpen
	}
	p := &PendingOffer{
		DataHash:  hash,
		resolver:  resolver,
		blacklist: make(map[keys.NodeID]struct{}),
		CreatedAt: time.Now(),
	}
	r.entries[hash] = p
	return p, nil
}

// Get returns the pending offer for hash, if any, without removing it.
func (r *Registry) Get(hash keys.Hash160) (*PendingOffer, bool) {
	r.lock()
	defer r.unlock()
	p, ok := r.entries[hash]
	return p, ok
}

// Blacklist excludes id from the pending negotiation for hash.
func (r *Registry) Blacklist(hash keys.Hash160, id keys.NodeID) error {
	r.lock()
	defer r.unlock()
	p, ok := r.entries[hash]
	if !ok {
		return ErrNotOpen
	}
	p.blacklist[id] = struct{}{}
	return nil
}

// Resolve atomically removes the pending offer for hash and invokes its
// resolver with (nil, farmer, c). The removal happens before the resolver
// runs, matching §4.1's "atomically remove the pending entry, reply
// {contract}, then invoke the pending resolver" ordering — the protocol
// core is expected to reply to the wire request before calling Resolve.
func (r *Registry) Resolve(hash keys.Hash160, farmer wire.Contact, c contract.Contract) error {
	r.lock()
	p, ok := r.entries[hash]
	if ok {
		delete(r.entries, hash)
	}
	r.unlock()
	if !ok {
		return ErrNotOpen
	}
	p.resolver(nil, farmer, c)
	return nil
}

// Cancel removes the pending offer for hash and invokes its resolver with
// err, discarding any result from an in-flight save or send that arrives
// later (per §5's cancellation model: the registry is the source of
// truth, not the in-flight operation).
func (r *Registry) Cancel(hash keys.Hash160, err error) {
	r.lock()
	p, ok := r.entries[hash]
	if ok {
		delete(r.entries, hash)
	}
	r.unlock()
	if ok {
		p.resolver(err, wire.Contact{}, contract.Contract{})
	}
}
