package protocol

import (
	"github.com/NebulousLabs/contractcore/channel"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/storage"
	"github.com/NebulousLabs/contractcore/wire"
)

// ConsignRequest is the CONSIGN wire request.
type ConsignRequest struct {
	DataHash  keys.Hash160
	AuditTree storage.MerkleRoot
}

// ConsignResponse is the CONSIGN wire response: a one-shot upload token.
type ConsignResponse struct {
	Token channel.Token
}

// HandleConsign implements the CONSIGN handler (farmer side): it records
// the renter's audit tree, checks timing, and issues an upload token. See
// SPEC_FULL.md §4.1.
func (h *Handlers) HandleConsign(contact wire.Contact, req ConsignRequest) (*ConsignResponse, *Failure) {
	item, err := h.Manager.Load(req.DataHash)
	if err != nil {
		return nil, fail("load-failed", err)
	}
	if _, ok := item.Contracts[contact.NodeID]; !ok {
		return nil, fail("unauthorized", nil)
	}

	item.Trees[contact.NodeID] = req.AuditTree

	t := nowMS()
	c := item.Contracts[contact.NodeID]
	if !(t < c.StoreEnd && t+ConsignThreshold > c.StoreBegin) {
		return nil, fail("timing", nil)
	}

	if err := h.Manager.Save(item); err != nil {
		return nil, fail("save-failed", err)
	}

	token, err := h.Auth.Issue(req.DataHash, channel.PurposeConsign)
	if err != nil {
		return nil, fail("save-failed", err)
	}
	if err := h.DataServer.Accept(token, req.DataHash); err != nil {
		return nil, fail("save-failed", err)
	}

	return &ConsignResponse{Token: token}, nil
}
