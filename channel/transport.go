package channel

import (
	"io"

	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/wire"
)

// Server is the DataChannelServer interface this core consumes (spec §6):
// accept registers a token, granting the next incoming stream request for
// that token one chance to open.
type Server interface {
	Accept(token Token, hash keys.Hash160) error
}

// Client is the DataChannelClient interface this core consumes (spec §6):
// an event-based open/error handshake followed by a read stream.
type Client interface {
	// Open dials farmer and presents token, returning a read stream for
	// hash once the handshake completes.
	Open(farmer wire.Contact, token Token, hash keys.Hash160) (io.ReadCloser, error)
}
