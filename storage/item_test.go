package storage

import (
	"testing"

	"github.com/NebulousLabs/contractcore/contract"
	"github.com/NebulousLabs/contractcore/keys"
)

func TestValidateRejectsMismatchedDataHash(t *testing.T) {
	var hash, other keys.Hash160
	hash[0] = 1
	other[0] = 2
	item := NewItem(hash, nil)
	var counterparty keys.Hash160
	counterparty[0] = 9
	item.Contracts[counterparty] = contract.Contract{DataHash: other}

	if err := item.Validate(); err == nil {
		t.Fatal("expected Validate to reject a contract with a mismatched data_hash")
	}
}

func TestValidateAcceptsMatchingContracts(t *testing.T) {
	var hash keys.Hash160
	hash[0] = 1
	item := NewItem(hash, nil)
	var counterparty keys.Hash160
	counterparty[0] = 9
	item.Contracts[counterparty] = contract.Contract{DataHash: hash}

	if err := item.Validate(); err != nil {
		t.Fatalf("expected Validate to pass, got %v", err)
	}
}

func TestExpiredFalseWithNoContracts(t *testing.T) {
	var hash keys.Hash160
	item := NewItem(hash, nil)
	if item.Expired(1000) {
		t.Fatal("an item with no contracts should never be reported expired")
	}
}

func TestExpiredRequiresAllContractsPast(t *testing.T) {
	var hash keys.Hash160
	item := NewItem(hash, nil)
	var a, b keys.Hash160
	a[0], b[0] = 1, 2
	item.Contracts[a] = contract.Contract{DataHash: hash, StoreEnd: 100}
	item.Contracts[b] = contract.Contract{DataHash: hash, StoreEnd: 200}

	if item.Expired(150) {
		t.Fatal("expected Expired to be false while one contract has not yet ended")
	}
	if !item.Expired(250) {
		t.Fatal("expected Expired to be true once every contract's store_end has passed")
	}
}
