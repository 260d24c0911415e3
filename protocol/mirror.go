package protocol

import (
	"io"

	"github.com/NebulousLabs/contractcore/channel"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/storage"
	"github.com/NebulousLabs/contractcore/wire"
)

// MirrorRequest is the MIRROR wire request: a peer farmer asking this node
// to pull a shard from another farmer that already holds it.
type MirrorRequest struct {
	DataHash keys.Hash160
	Token    channel.Token
	Farmer   wire.Contact
}

// MirrorResponse is the MIRROR wire response; it carries no fields. Success
// means the channel was established, not that the transfer finished.
type MirrorResponse struct{}

// HandleMirror implements the MIRROR handler: farmer-to-farmer shard
// replication. It replies as soon as the data channel is open; the copy
// itself runs in the background. See SPEC_FULL.md §4.1.
func (h *Handlers) HandleMirror(contact wire.Contact, req MirrorRequest) (*MirrorResponse, *Failure) {
	item, err := h.Manager.Load(req.DataHash)
	if err != nil {
		return nil, fail("load-failed", err)
	}
	if _, ok := item.Contracts[contact.NodeID]; !ok {
		return nil, fail("not-contracted", nil)
	}
	if !storage.Writable(item.Shard) {
		return &MirrorResponse{}, nil
	}

	stream, err := h.DataClient.Open(req.Farmer, req.Token, req.DataHash)
	if err != nil {
		h.destroyWriteHandle(item)
		return nil, fail("channel-error", err)
	}

	write, ok := item.Shard.(storage.WriteHandle)
	if !ok {
		stream.Close()
		h.destroyWriteHandle(item)
		return nil, fail("channel-error", nil)
	}

	if err := h.tg.Add(); err != nil {
		stream.Close()
		return nil, fail("channel-error", err)
	}
	go h.pipeShard(item, stream, write)

	return &MirrorResponse{}, nil
}

// pipeShard copies stream into write until either side closes. A copy
// failure destroys the local write handle so a subsequent RETRIEVE/AUDIT
// does not see a half-written shard.
func (h *Handlers) pipeShard(item *storage.Item, stream io.ReadCloser, write storage.WriteHandle) {
	defer h.tg.Done()
	defer stream.Close()
	_, err := io.Copy(write, stream)
	if err != nil {
		h.destroyWriteHandle(item)
		return
	}
	write.Close()
}

func (h *Handlers) destroyWriteHandle(item *storage.Item) {
	if write, ok := item.Shard.(storage.WriteHandle); ok {
		write.Close()
	}
}
