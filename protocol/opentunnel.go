package protocol

import (
	"github.com/NebulousLabs/contractcore/tunnel"
	"github.com/NebulousLabs/contractcore/wire"
	"gitlab.com/NebulousLabs/errors"
)

// OpenTunnelRequest is the OPEN_TUNNEL wire request; it carries no fields.
type OpenTunnelRequest struct{}

// OpenTunnelResponse is the OPEN_TUNNEL wire response.
type OpenTunnelResponse struct {
	TunnelURL string
	Alias     wire.Contact
}

// HandleOpenTunnel implements the OPEN_TUNNEL handler: gateway allocation
// plus, if this node is behind NAT, a port mapping for the gateway's
// entrance port. See SPEC_FULL.md §4.1.
func (h *Handlers) HandleOpenTunnel(contact wire.Contact, req OpenTunnelRequest) (*OpenTunnelResponse, *Failure) {
	t, err := h.Broker.OpenTunnel(h.Mapper)
	if err != nil {
		if errors.Contains(err, tunnel.ErrMappingFailed) {
			return nil, fail("mapping-failed", err)
		}
		return nil, fail("gateway-failed", err)
	}
	return &OpenTunnelResponse{TunnelURL: t.URL, Alias: t.Alias}, nil
}
