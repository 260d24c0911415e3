// Package farmer implements the FarmerNegotiator: the outbound half of
// contract acquisition. It subscribes to published offers, admission-gates
// them through a pluggable predicate and a concurrency limit, resolves the
// renter's contact (locally or via the DHT), signs and persists a skeleton
// StorageItem, and sends OFFER. Adapted from the verify-then-finalize shape
// of modules/host/negotiatenewcontract.go and the mutex-guarded settings
// pattern of modules/host.go, generalized from a single blockchain file
// contract handshake to the spec's renter-contact-resolution pipeline.
package farmer

import (
	"encoding/json"
	"sync"

	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/protocol"
	"github.com/NebulousLabs/contractcore/storage"
	"github.com/NebulousLabs/contractcore/wire"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/threadgroup"
)

// Predicate is the pluggable admission callback: _should_send_offer's final
// gate. The negotiator never ships a pricing or decision engine itself
// (spec §1 Non-goals); this is the seam a caller installs one through.
type Predicate func(contract.Contract) bool

// Logger is the minimal logging seam Negotiator needs.
type Logger interface {
	Println(v ...interface{})
	Debugln(v ...interface{})
}

// Settings configures a Negotiator. Adapted from the plain-struct shape of
// modules/host.go's HostInternalSettings; its fields carry no JSON tags.
type Settings struct {
	Concurrency    uint32
	PaymentAddress string
	AuditCount     uint32
	AuditLeaves    uint64
	PaymentAmount  uint64
	PaymentInterval uint64
}

// Negotiator is the FarmerNegotiator.
type Negotiator struct {
	mu       sync.Mutex
	settings Settings
	pending  []contract.Contract
	hasSpace bool

	identity  keys.KeyPair
	manager   *storage.Manager
	router    wire.RoutingTable
	transport wire.Transport
	predicate Predicate
	log       Logger

	tg threadgroup.ThreadGroup
}

// New constructs a Negotiator around its collaborators. It assumes
// hasSpace is false until the manager's first capacity event arrives;
// callers that want an optimistic start should call Unlocked() once after
// construction if they already know there is room.
func New(identity keys.KeyPair, manager *storage.Manager, router wire.RoutingTable, transport wire.Transport, settings Settings, predicate Predicate, log Logger) *Negotiator {
	if settings.PaymentAddress == "" {
		settings.PaymentAddress = identity.Address()
	}
	return &Negotiator{
		settings:  settings,
		identity:  identity,
		manager:   manager,
		router:    router,
		transport: transport,
		predicate: predicate,
		log:       log,
	}
}

// Close stops accepting new publications and waits for in-flight offers to
// finish sending.
func (n *Negotiator) Close() error {
	return n.tg.Stop()
}

// Locked implements storage.CapacityListener: the manager has no more room.
func (n *Negotiator) Locked() {
	n.mu.Lock()
	n.hasSpace = false
	n.mu.Unlock()
}

// Unlocked implements storage.CapacityListener: room is available again.
func (n *Negotiator) Unlocked() {
	n.mu.Lock()
	n.hasSpace = true
	n.mu.Unlock()
}

// StorageError implements storage.CapacityListener: a size check itself
// failed. Per spec §4.2 this leaves has_free_space state unchanged, it
// only logs.
func (n *Negotiator) StorageError(err error) {
	if n.log != nil {
		n.log.Println("farmer: storage manager capacity check failed:", err)
	}
}

// PendingCount reports how many offers are currently outstanding, for
// status surfaces such as api.
func (n *Negotiator) PendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// ContractPublication handles an incoming contract_publication event: the
// admission pipeline described in SPEC_FULL.md §4.2.
func (n *Negotiator) ContractPublication(c contract.Contract) {
	if c.Version != contract.V1 || c.StoreBegin >= c.StoreEnd {
		return
	}
	if err := n.tg.Add(); err != nil {
		return
	}
	defer n.tg.Done()

	if !n.admit(c) {
		return
	}

	farmerContact, ok := n.resolveRenter(c.RenterID)
	if !ok {
		n.abandon(c.DataHash)
		return
	}

	signed, item, err := n.signAndPersist(c)
	if err != nil {
		if n.log != nil {
			n.log.Println("farmer: failed to persist skeleton item for", c.DataHash.String(), err)
		}
		n.abandon(c.DataHash)
		return
	}

	n.sendOffer(farmerContact, signed, item)
}

// admit runs _should_send_offer and, if it passes, adds c to the pending
// list with duplicate suppression.
func (n *Negotiator) admit(c contract.Contract) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.hasSpace {
		return false
	}
	if _, err := n.manager.Size(); err != nil {
		return false
	}
	if uint32(len(n.pending)) >= n.settings.Concurrency {
		return false
	}
	if n.predicate != nil && !n.predicate(c) {
		return false
	}
	for _, p := range n.pending {
		if p.DataHash == c.DataHash {
			return true // already pending: admitted, but not re-added
		}
	}
	n.pending = append(n.pending, c)
	return true
}

// resolveRenter consults the local routing table, falling back to a
// FIND_NODE lookup.
func (n *Negotiator) resolveRenter(renterID keys.NodeID) (wire.Contact, bool) {
	if c, ok := n.router.GetContact(renterID); ok {
		return c, true
	}
	result := make(chan []wire.Contact, 1)
	n.router.FindNode(renterID, func(contacts []wire.Contact, err error) {
		if err != nil {
			result <- nil
			return
		}
		result <- contacts
	})
	contacts := <-result
	if len(contacts) == 0 {
		return wire.Contact{}, false
	}
	return contacts[0], true
}

// signAndPersist signs the farmer half of c and saves a skeleton
// StorageItem (shard not yet received: a WriteHandle).
func (n *Negotiator) signAndPersist(c contract.Contract) (contract.Contract, *storage.Item, error) {
	if err := c.SignFarmer(n.identity); err != nil {
		return contract.Contract{}, nil, errors.Extend(err, errors.New("farmer: failed to sign contract"))
	}
	item, err := n.manager.NewPendingItem(c.DataHash)
	if err != nil {
		return contract.Contract{}, nil, err
	}
	// Keyed by the counterparty (the renter), matching the convention every
	// protocol handler's authorization check uses: contracts are indexed by
	// the id of whichever peer is not the node holding this Item.
	item.Contracts[c.RenterID] = c
	if err := n.manager.Save(item); err != nil {
		return contract.Contract{}, nil, err
	}
	return c, item, nil
}

// sendOffer ships OFFER to renterContact and processes the response,
// validating the returned contract's renter signature before treating the
// negotiation as settled.
func (n *Negotiator) sendOffer(renterContact wire.Contact, signed contract.Contract, item *storage.Item) {
	payload, err := json.Marshal(signed)
	if err != nil {
		n.abandon(signed.DataHash)
		return
	}

	var resp protocol.OfferResponse
	err = n.transport.Send(renterContact, "OFFER", protocol.OfferRequest{Contract: payload}, &resp)
	if err != nil {
		if n.log != nil {
			n.log.Println("farmer: OFFER send failed for", signed.DataHash.String(), err)
		}
		n.abandon(signed.DataHash)
		return
	}
	if len(resp.Contract) == 0 {
		if n.log != nil {
			n.log.Println("farmer: renter refused to sign", signed.DataHash.String())
		}
		n.abandon(signed.DataHash)
		return
	}

	completed, err := contract.Parse(resp.Contract)
	if err != nil {
		if n.log != nil {
			n.log.Println("farmer: renter returned an unparsable contract", err)
		}
		n.abandon(signed.DataHash)
		return
	}
	if completed.RenterID != renterContact.NodeID {
		if n.log != nil {
			n.log.Println("farmer: renter contract claims an unexpected renter id")
		}
		n.abandon(signed.DataHash)
		return
	}
	if err := completed.VerifyRenterSignature(renterContact.PublicKey); err != nil {
		if n.log != nil {
			n.log.Println("farmer: renter signature failed to verify", err)
		}
		n.abandon(signed.DataHash)
		return
	}

	// The local StorageItem is already in place from signAndPersist; the
	// farmer now simply awaits CONSIGN. Remove the bookkeeping entry since
	// the negotiation is no longer "pending an OFFER response" — it is
	// settled.
	n.removePending(signed.DataHash)
}

func (n *Negotiator) abandon(hash keys.Hash160) {
	n.removePending(hash)
}

func (n *Negotiator) removePending(hash keys.Hash160) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, p := range n.pending {
		if p.DataHash == hash {
			n.pending = append(n.pending[:i], n.pending[i+1:]...)
			return
		}
	}
}
