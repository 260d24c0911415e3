package protocol

import (
	"github.com/NebulousLabs/contractcore/channel"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/wire"
)

// RetrieveRequest is the RETRIEVE wire request.
type RetrieveRequest struct {
	DataHash keys.Hash160
}

// RetrieveResponse is the RETRIEVE wire response: a one-shot download
// token.
type RetrieveResponse struct {
	Token channel.Token
}

// HandleRetrieve implements the RETRIEVE handler: a renter pulling a shard
// back from a farmer. As documented in SPEC_FULL.md §4.1/§9, the source
// left requester authorization as a TODO; this core closes that gap by
// requiring the item to hold a contract keyed by the caller before issuing
// a token (see DESIGN.md's Open Question decision). The contract's
// store_end is not checked.
func (h *Handlers) HandleRetrieve(contact wire.Contact, req RetrieveRequest) (*RetrieveResponse, *Failure) {
	if req.DataHash.IsZero() {
		return nil, fail("invalid-key", nil)
	}

	item, err := h.Manager.Load(req.DataHash)
	if err != nil {
		return nil, fail("load-failed", err)
	}
	if _, ok := item.Contracts[contact.NodeID]; !ok {
		return nil, fail("invalid-key", nil)
	}

	token, err := h.Auth.Issue(item.Hash, channel.PurposeRetrieve)
	if err != nil {
		return nil, fail("load-failed", err)
	}
	if err := h.DataServer.Accept(token, item.Hash); err != nil {
		return nil, fail("load-failed", err)
	}

	return &RetrieveResponse{Token: token}, nil
}
