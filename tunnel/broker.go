// Package tunnel implements TunnelBroker: FIND_TUNNEL gossip across the
// overlay and OPEN_TUNNEL gateway allocation with optional UPnP port
// mapping. Adapted from the teacher's peer-relay shape in
// modules/gateway.go, generalized from block/transaction relay to tunnel
// gossip, and from the teacher's vendored go-upnp for the NAT traversal
// half.
package tunnel

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"

	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/wire"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/fastrand"
	upnp "gitlab.com/NebulousLabs/go-upnp"
)

// MaxFindTunnelRelays bounds FIND_TUNNEL relay depth to prevent loops.
const MaxFindTunnelRelays = 3

var (
	// ErrGatewayFailed marks an OpenTunnel failure in gateway allocation.
	ErrGatewayFailed = errors.New("tunnel: gateway allocation failed")

	// ErrMappingFailed marks an OpenTunnel failure in NAT port mapping.
	ErrMappingFailed = errors.New("tunnel: port mapping failed")
)

// RelayBreadth is how many nearest-neighbor contacts a relay queries.
const RelayBreadth = 3

// NeighborQuerier is the narrow slice of RoutingTable this broker needs:
// the K nearest contacts to query when relaying FIND_TUNNEL.
type NeighborQuerier interface {
	Nearest(id keys.NodeID, k int, exclude map[keys.NodeID]struct{}) []wire.Contact
}

// FindTunnelCaller sends an augmented FIND_TUNNEL to a neighbor and
// returns the tunnels it reports, if any.
type FindTunnelCaller func(neighbor wire.Contact, relayers []wire.Contact) ([]wire.Contact, error)

// Gateway is the external tunnel server collaborator (spec §6
// tunnel_server): it knows whether this node can act as a tunneler, and
// can allocate gateways for OPEN_TUNNEL.
type Gateway interface {
	Available() bool
	CreateGateway() (AllocatedGateway, error)
}

// AllocatedGateway is a freshly allocated tunnel entrance.
type AllocatedGateway struct {
	EntranceToken string
	EntrancePort  uint16
}

// Broker is the TunnelBroker.
type Broker struct {
	mu          sync.Mutex
	tunnelers   []wire.Contact
	k           int
	self        wire.Contact
	gateway     Gateway
	neighbors   NeighborQuerier
	callFind    FindTunnelCaller
	tunPort     uint16
	requiresNAT bool
}

// NewBroker constructs a Broker that tracks up to k known tunnelers.
func NewBroker(self wire.Contact, gateway Gateway, neighbors NeighborQuerier, callFind FindTunnelCaller, tunPort uint16, requiresNAT bool, k int) *Broker {
	return &Broker{
		k:           k,
		self:        self,
		gateway:     gateway,
		neighbors:   neighbors,
		callFind:    callFind,
		tunPort:     tunPort,
		requiresNAT: requiresNAT,
	}
}

// addTunneler inserts c into the bounded set, dropping the oldest entry
// once capacity k is reached.
func (b *Broker) addTunneler(c wire.Contact) {
	for _, t := range b.tunnelers {
		if t.NodeID == c.NodeID {
			return
		}
	}
	b.tunnelers = append(b.tunnelers, c)
	if len(b.tunnelers) > b.k {
		b.tunnelers = b.tunnelers[len(b.tunnelers)-b.k:]
	}
}

// FindTunnel implements the FIND_TUNNEL handler body: if this node is
// itself a tunneler it prepends itself; otherwise, up to
// MaxFindTunnelRelays deep, it relays to up to RelayBreadth nearest
// neighbors not already in relayers.
func (b *Broker) FindTunnel(relayers []wire.Contact) ([]wire.Contact, error) {
	b.mu.Lock()
	known := append([]wire.Contact(nil), b.tunnelers...)
	self := b.self
	b.mu.Unlock()

	if b.gateway != nil && b.gateway.Available() {
		known = append([]wire.Contact{self}, known...)
	}
	if len(known) > 0 {
		return known, nil
	}
	if len(relayers) >= MaxFindTunnelRelays {
		return known, nil
	}

	exclude := make(map[keys.NodeID]struct{}, len(relayers)+1)
	exclude[self.NodeID] = struct{}{}
	for _, r := range relayers {
		exclude[r.NodeID] = struct{}{}
	}
	candidates := b.neighbors.Nearest(self.NodeID, RelayBreadth, exclude)
	augmented := append(append([]wire.Contact(nil), relayers...), self)

	for _, neighbor := range candidates {
		result, err := b.callFind(neighbor, augmented)
		if err != nil {
			continue
		}
		if len(result) == 0 {
			continue
		}
		b.mu.Lock()
		for _, t := range result {
			b.addTunneler(t)
			if len(b.tunnelers) >= b.k {
				break
			}
		}
		known = append([]wire.Contact(nil), b.tunnelers...)
		b.mu.Unlock()
		break
	}
	return known, nil
}

// Tunnel is the wire shape returned by OPEN_TUNNEL: a websocket URL and an
// alias contact clients can dial instead of self directly.
type Tunnel struct {
	URL   string
	Alias wire.Contact
}

// PortMapper is the external NAT traversal collaborator (spec §6
// transport.create_port_mapping).
type PortMapper interface {
	CreatePortMapping(port uint16) error
}

// upnpMapper adapts the teacher's vendored go-upnp to PortMapper.
type upnpMapper struct{}

// CreatePortMapping discovers a UPnP/IGD device on the local network and
// forwards port, so a NATed gateway remains reachable from the public
// internet.
func (upnpMapper) CreatePortMapping(port uint16) error {
	d, err := upnp.Discover()
	if err != nil {
		return errors.Extend(err, errors.New("tunnel: upnp discovery failed"))
	}
	if err := d.Forward(port, "contractcore tunnel gateway"); err != nil {
		return errors.Extend(err, errors.New("tunnel: upnp port forward failed"))
	}
	return nil
}

// DefaultPortMapper returns the UPnP-backed PortMapper used outside tests.
func DefaultPortMapper() PortMapper { return upnpMapper{} }

// OpenTunnel implements the OPEN_TUNNEL handler body: it asks the gateway
// to allocate an entrance, builds the websocket URL and alias, and — if
// the transport reports this node is behind NAT — creates a port mapping
// for the gateway's entrance port before returning.
func (b *Broker) OpenTunnel(mapper PortMapper) (Tunnel, error) {
	gw, err := b.gateway.CreateGateway()
	if err != nil {
		return Tunnel{}, errors.Extend(err, ErrGatewayFailed)
	}
	if gw.EntranceToken == "" {
		gw.EntranceToken = hex.EncodeToString(fastrand.Bytes(16))
	}
	host, _, _ := splitHostPort(b.self.Address)
	u := url.URL{
		Scheme:   "ws",
		Host:     fmt.Sprintf("%s:%d", host, b.tunPort),
		Path:     "/tun",
		RawQuery: "token=" + gw.EntranceToken,
	}
	alias := wire.Contact{
		Address:  b.self.Address,
		Port:     gw.EntrancePort,
		NodeID:   b.self.NodeID,
		Protocol: b.self.Protocol,
	}
	if b.requiresNAT {
		if err := mapper.CreatePortMapping(gw.EntrancePort); err != nil {
			return Tunnel{}, errors.Extend(err, ErrMappingFailed)
		}
	}
	return Tunnel{URL: u.String(), Alias: alias}, nil
}

func splitHostPort(addr string) (host, port string, err error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return addr, "", nil
}
