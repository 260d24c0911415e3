// Package wire holds the shared wire-level types and external-collaborator
// interfaces every protocol submodule consumes: Contact, Transport, and
// RoutingTable. This mirrors the teacher's top-level modules package, which
// plays the same role for Gateway/Host/Renter (see modules/gateway.go):
// one small shared package of interfaces, with no business logic of its
// own, that the real submodules all import instead of redeclaring.
package wire

import "github.com/NebulousLabs/contractcore/keys"

// Contact is produced by the transport layer and identifies a peer: its
// node id, network address, port, and protocol. Per the Open Question
// resolution in DESIGN.md, PublicKey travels alongside the wire fields
// named in spec §3, since signature verification against a bare node id
// requires the signer's public key and key derivation is explicitly out of
// scope for this core.
type Contact struct {
	NodeID    keys.NodeID
	Address   string
	Port      uint16
	Protocol  string
	PublicKey []byte
}

// Transport is the narrow RPC send interface this core consumes (spec §6):
// send a named method with a payload to contact, and get back a raw
// response or an error.
type Transport interface {
	Send(contact Contact, method string, payload interface{}, response interface{}) error
	TunnelServer() TunnelServer
	RequiresTraversal() bool
	CreatePortMapping(port uint16, cb func(error))
}

// TunnelServer is the external collaborator that knows whether this node
// can act as a tunneler and can allocate gateways (spec §6 tunnel_server).
type TunnelServer interface {
	Available() bool
	CreateGateway() (EntranceToken string, EntrancePort uint16, err error)
}

// RoutingTable is the narrow DHT interface this core consumes (spec §6):
// local contact lookup, iterative FIND_NODE, and k-nearest queries.
type RoutingTable interface {
	GetContact(id keys.NodeID) (Contact, bool)
	FindNode(id keys.NodeID, cb func([]Contact, error))
	Nearest(id keys.NodeID, k int, exclude map[keys.NodeID]struct{}) []Contact
}
