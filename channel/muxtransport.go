package channel

import (
	"io"
	"net"

	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/wire"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/ratelimit"
	"gitlab.com/NebulousLabs/siamux"
)

// subscriber is the siamux subscriber name this core registers its data
// channel under; every CONSIGN/RETRIEVE/MIRROR stream multiplexes through
// it.
const subscriber = "contractcore-datachannel"

// MuxTransport is the one concrete DataChannelServer/DataChannelClient
// adapter this core ships, built on the pack's siamux multiplexer with a
// rate-limited stream wrapper. It is a thin adapter, not a reimplementation
// of siamux: all of the hard multiplexing and stream-framing work stays in
// the library.
type MuxTransport struct {
	mux     *siamux.SiaMux
	limiter *ratelimit.RateLimit
}

// NewMuxTransport opens a siamux multiplexer bound to listenAddr, rate
// limited to the given bytes/sec in each direction (0 means unlimited).
func NewMuxTransport(persistDir, listenAddr string, downloadBPS, uploadBPS int64) (*MuxTransport, error) {
	mux, _, err := siamux.New(listenAddr, listenAddr, nil, persistDir)
	if err != nil {
		return nil, errors.Extend(err, errors.New("channel: failed to start siamux"))
	}
	return &MuxTransport{
		mux:     mux,
		limiter: ratelimit.NewRateLimit(downloadBPS, uploadBPS, 0),
	}, nil
}

// Close shuts the multiplexer down.
func (t *MuxTransport) Close() error {
	return t.mux.Close()
}

// Accept implements Server: it registers the token with the multiplexer's
// subscriber so the next stream opened under it is handed the token for
// verification.
func (t *MuxTransport) Accept(token Token, hash keys.Hash160) error {
	listener, err := t.mux.NewListener(subscriber)
	if err != nil {
		return errors.Extend(err, errors.New("channel: failed to register listener"))
	}
	go t.acceptOnce(listener, token, hash)
	return nil
}

func (t *MuxTransport) acceptOnce(listener net.Listener, token Token, hash keys.Hash160) {
	defer listener.Close()
	conn, err := listener.Accept()
	if err != nil {
		return
	}
	presented, err := readToken(conn)
	if err != nil || presented != token {
		conn.Close()
		return
	}
	// A real consumer would now pipe conn's bytes into the shard's write
	// handle (see protocol.handleConsign / protocol.handleMirror); this
	// adapter only owns the transport handshake.
}

// Open implements Client: it dials farmer's siamux subscriber, presents
// token, and returns a rate-limited read stream.
func (t *MuxTransport) Open(farmer wire.Contact, token Token, hash keys.Hash160) (io.ReadCloser, error) {
	stream, err := t.mux.NewStream(subscriber, farmer.Address, nil)
	if err != nil {
		return nil, errors.Extend(err, errors.New("channel: failed to dial farmer"))
	}
	if err := writeToken(stream, token); err != nil {
		stream.Close()
		return nil, err
	}
	return &limitedStream{
		Reader: ratelimit.NewRLReadCloser(stream, t.limiter),
		closer: stream,
	}, nil
}

// limitedStream pairs a rate-limited reader with the underlying stream's
// Close, since the rate limiter wraps reads only.
type limitedStream struct {
	io.Reader
	closer io.Closer
}

func (l *limitedStream) Close() error {
	return l.closer.Close()
}

func writeToken(w io.Writer, t Token) error {
	_, err := w.Write(t[:])
	return err
}

func readToken(r io.Reader) (Token, error) {
	var t Token
	_, err := io.ReadFull(r, t[:])
	return t, err
}
