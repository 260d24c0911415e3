package negotiation

import (
	"testing"

	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/wire"
)

func TestOpenRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	var hash keys.Hash160
	hash[0] = 1

	if _, err := r.Open(hash, func(error, wire.Contact, contract.Contract) {}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Open(hash, func(error, wire.Contact, contract.Contract) {}); err != ErrAlreadyOpen {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestResolveInvokesResolverAndRemovesEntry(t *testing.T) {
	r := NewRegistry()
	var hash keys.Hash160
	hash[0] = 2

	var gotErr error
	var gotFarmer wire.Contact
	var gotContract contract.Contract
	called := make(chan struct{}, 1)

	_, err := r.Open(hash, func(err error, farmer wire.Contact, c contract.Contract) {
		gotErr, gotFarmer, gotContract = err, farmer, c
		called <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}

	farmer := wire.Contact{Address: "farmer.example:1234"}
	c := contract.Contract{Version: contract.V1, DataHash: hash}
	if err := r.Resolve(hash, farmer, c); err != nil {
		t.Fatal(err)
	}
	<-called

	if gotErr != nil {
		t.Fatalf("expected a nil error from Resolve's resolver call, got %v", gotErr)
	}
	if gotFarmer != farmer {
		t.Fatalf("resolver received the wrong farmer contact: %+v", gotFarmer)
	}
	if gotContract.DataHash != hash {
		t.Fatal("resolver received the wrong contract")
	}

	if _, ok := r.Get(hash); ok {
		t.Fatal("expected the pending offer to be removed after Resolve")
	}
	if err := r.Resolve(hash, farmer, c); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen resolving an already-resolved hash, got %v", err)
	}
}

func TestCancelInvokesResolverWithError(t *testing.T) {
	r := NewRegistry()
	var hash keys.Hash160
	hash[0] = 3

	wantErr := ErrNotOpen // reuse as an arbitrary sentinel
	gotErr := make(chan error, 1)
	if _, err := r.Open(hash, func(err error, _ wire.Contact, _ contract.Contract) { gotErr <- err }); err != nil {
		t.Fatal(err)
	}
	r.Cancel(hash, wantErr)
	if err := <-gotErr; err != wantErr {
		t.Fatalf("expected resolver to receive %v, got %v", wantErr, err)
	}
	if _, ok := r.Get(hash); ok {
		t.Fatal("expected the pending offer to be removed after Cancel")
	}
}

func TestBlacklist(t *testing.T) {
	r := NewRegistry()
	var hash keys.Hash160
	hash[0] = 4
	var farmerID keys.NodeID
	farmerID[0] = 9

	p, err := r.Open(hash, func(error, wire.Contact, contract.Contract) {})
	if err != nil {
		t.Fatal(err)
	}
	if p.IsBlacklisted(farmerID) {
		t.Fatal("expected farmerID not to be blacklisted yet")
	}
	if err := r.Blacklist(hash, farmerID); err != nil {
		t.Fatal(err)
	}
	if !p.IsBlacklisted(farmerID) {
		t.Fatal("expected farmerID to be blacklisted")
	}
}

func TestBlacklistUnknownHash(t *testing.T) {
	r := NewRegistry()
	var hash, farmerID keys.NodeID
	if err := r.Blacklist(hash, farmerID); err != ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}
