package protocol

import "github.com/NebulousLabs/contractcore/wire"

// ProbeRequest is the PROBE wire request: ask this node to test whether
// target is externally reachable.
type ProbeRequest struct {
	Target wire.Contact
}

// ProbeResponse is the PROBE wire response; empty on success.
type ProbeResponse struct{}

// HandleProbe implements the PROBE handler: it pings target and reports
// whether it answered. See SPEC_FULL.md §4.1.
func (h *Handlers) HandleProbe(contact wire.Contact, req ProbeRequest) (*ProbeResponse, *Failure) {
	if err := h.Transport.Send(req.Target, "PING", nil, nil); err != nil {
		return nil, fail("not-addressable", err)
	}
	return &ProbeResponse{}, nil
}
