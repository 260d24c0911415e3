package protocol

import "github.com/NebulousLabs/contractcore/wire"

// TriggerRequest is the TRIGGER wire request: an opaque named payload for
// the pluggable trigger registry.
type TriggerRequest struct {
	Name    string
	Payload []byte
}

// TriggerResponse is the TRIGGER wire response: an opaque reply.
type TriggerResponse struct {
	Payload []byte
}

// HandleTrigger implements the TRIGGER handler: a pure delegate to
// Triggers, opaque to the protocol core. See SPEC_FULL.md §4.1.
func (h *Handlers) HandleTrigger(contact wire.Contact, req TriggerRequest) (*TriggerResponse, *Failure) {
	if h.Triggers == nil {
		return nil, fail("no-trigger-registry", nil)
	}
	reply, err := h.Triggers.Trigger(contact, req.Name, req.Payload)
	if err != nil {
		return nil, fail("trigger-failed", err)
	}
	return &TriggerResponse{Payload: reply}, nil
}
