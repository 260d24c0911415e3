package protocol

import (
	"encoding/json"

	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/wire"
)

// OfferRequest is the OFFER wire request: a farmer's proposed contract.
type OfferRequest struct {
	Contract []byte // JSON encoding of the contract, signatures included
}

// OfferResponse is the OFFER wire response: the completed, renter-signed
// contract.
type OfferResponse struct {
	Contract []byte
}

// PostReply is returned alongside a successful response and must be
// invoked by the caller only after the wire reply has been sent. This is
// how the core preserves §5(a)'s ordering guarantee — "the reply is sent
// before the consign resolver fires" — without the protocol package owning
// the transport's write path itself.
type PostReply func()

// HandleOffer implements the OFFER handler: the renter side of contract
// negotiation. See SPEC_FULL.md §4.1.
func (h *Handlers) HandleOffer(contact wire.Contact, req OfferRequest) (*OfferResponse, PostReply, *Failure) {
	c, err := contract.Parse(req.Contract)
	if err != nil {
		return nil, nil, fail("invalid-format", err)
	}

	if err := c.VerifyFarmerSignature(contact.PublicKey); err != nil {
		return nil, nil, fail("invalid-signature", err)
	}
	if c.FarmerID != contact.NodeID {
		return nil, nil, fail("invalid-signature", nil)
	}

	if err := c.SignRenter(h.Identity); err != nil {
		return nil, nil, fail("incomplete", err)
	}
	if !c.HasBothSignatures() || c.RenterID != h.Identity.NodeID() {
		return nil, nil, fail("incomplete", nil)
	}

	pending, ok := h.Registry.Get(c.DataHash)
	if !ok {
		if h.Events != nil {
			h.Events.UnhandledOffer(UnhandledOfferEvent{DataHash: c.DataHash, Farmer: contact})
		}
		return nil, nil, fail("not-open", nil)
	}
	if pending.IsBlacklisted(contact.NodeID) {
		// Per the asymmetry preserved from the source (see DESIGN.md Open
		// Question): blacklisted farmers fail identically to "not open",
		// but do NOT emit unhandled_offer.
		return nil, nil, fail("not-open", nil)
	}

	item, err := h.Manager.NewPendingItem(c.DataHash)
	if err != nil {
		return nil, nil, fail("save-failed", err)
	}
	item.Contracts[contact.NodeID] = *c
	if err := h.Manager.Save(item); err != nil {
		return nil, nil, fail("save-failed", err)
	}

	completed, err := json.Marshal(c)
	if err != nil {
		return nil, nil, fail("save-failed", err)
	}

	resp := &OfferResponse{Contract: completed}
	post := func() {
		// The registry's own Resolve call is the "atomically remove the
		// pending entry" step; it runs synchronously with respect to the
		// resolver, but only after the wire reply has gone out.
		h.Registry.Resolve(c.DataHash, contact, *c)
	}
	return resp, post, nil
}
