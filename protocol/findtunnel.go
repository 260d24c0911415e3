package protocol

import "github.com/NebulousLabs/contractcore/wire"

// FindTunnelRequest is the FIND_TUNNEL wire request.
type FindTunnelRequest struct {
	Relayers []wire.Contact
}

// FindTunnelResponse is the FIND_TUNNEL wire response.
type FindTunnelResponse struct {
	Tunnels []wire.Contact
}

// HandleFindTunnel implements the FIND_TUNNEL handler, delegating entirely
// to the TunnelBroker's gossip/relay logic. See SPEC_FULL.md §4.1/§4.4.
func (h *Handlers) HandleFindTunnel(contact wire.Contact, req FindTunnelRequest) (*FindTunnelResponse, *Failure) {
	tunnels, err := h.Broker.FindTunnel(req.Relayers)
	if err != nil {
		return nil, fail("relay-failed", err)
	}
	return &FindTunnelResponse{Tunnels: tunnels}, nil
}
