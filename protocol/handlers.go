// Package protocol implements ProtocolHandlers: the nine inbound request
// handlers (OFFER, CONSIGN, MIRROR, RETRIEVE, AUDIT, PROBE, FIND_TUNNEL,
// OPEN_TUNNEL, TRIGGER) described in SPEC_FULL.md's protocol/ module.
// Adapted from the request/response shape of
// modules/host/negotiatenewcontract.go and modules/host/negotiate.go,
// generalized from the teacher's blockchain file-contract negotiation to
// the spec's two-signature, no-blockchain contract model.
package protocol

import (
	"time"

	"github.com/NebulousLabs/contractcore/channel"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/negotiation"
	"github.com/NebulousLabs/contractcore/storage"
	"github.com/NebulousLabs/contractcore/tunnel"
	"github.com/NebulousLabs/contractcore/wire"
	"gitlab.com/NebulousLabs/threadgroup"
)

// MaxConcurrentAudits bounds per-request proof parallelism in AUDIT.
const MaxConcurrentAudits = 8

// ConsignThreshold is how much slack, in milliseconds, CONSIGN requires
// before store_begin: t + ConsignThreshold must still exceed store_begin,
// giving the renter a grace window to open the upload channel after
// CONSIGN succeeds.
const ConsignThreshold = 10 * 60 * 1000 // 10 minutes

// Logger is the minimal logging seam Handlers needs; *persist.Logger
// satisfies it.
type Logger interface {
	Println(v ...interface{})
	Debugln(v ...interface{})
}

// UnhandledOfferEvent is emitted when OFFER arrives for a data hash with no
// open pending negotiation (and the caller isn't merely blacklisted — see
// the asymmetry preserved from the source, recorded as an Open Question in
// DESIGN.md).
type UnhandledOfferEvent struct {
	DataHash keys.Hash160
	Farmer   wire.Contact
}

// EventSink receives protocol-level events that have no direct response
// value, such as unhandled_offer.
type EventSink interface {
	UnhandledOffer(UnhandledOfferEvent)
}

// Handlers bundles every collaborator the nine request handlers need. It
// holds no network-framing logic itself — callers are expected to decode
// a request into the relevant *Request type, call the matching method, and
// encode the *Response (or Failure) back onto the wire.
type Handlers struct {
	Identity   keys.KeyPair
	Manager    *storage.Manager
	Registry   *negotiation.Registry
	Auth       *channel.Authorization
	DataServer channel.Server
	DataClient channel.Client
	Broker     *tunnel.Broker
	Mapper     tunnel.PortMapper
	Resolver   keys.PublicKeyResolver
	Transport  wire.Transport
	Triggers   TriggerRegistry
	Events     EventSink
	Log        Logger

	tg threadgroup.ThreadGroup
}

// TriggerRegistry is the opaque delegate backing the TRIGGER handler.
type TriggerRegistry interface {
	Trigger(contact wire.Contact, name string, payload []byte) ([]byte, error)
}

// Close stops accepting new work and waits for in-flight handlers (notably
// AUDIT's bounded fan-out) to finish.
func (h *Handlers) Close() error {
	return h.tg.Stop()
}

// Failure is the structured error every handler returns on the wire: a
// short machine-checkable reason plus a human-readable message. It
// implements error so handlers can return it directly.
type Failure struct {
	Reason  string
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Reason
	}
	return f.Reason + ": " + f.Message
}

func fail(reason string, err error) *Failure {
	f := &Failure{Reason: reason}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

// nowMS is the single clock read point for every handler, so tests can
// reason about a consistent "now" per call.
func nowMS() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
