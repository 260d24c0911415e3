package contract

import (
	"testing"

	"github.com/NebulousLabs/contractcore/keys"
)

type resolverMap map[keys.NodeID][]byte

func (r resolverMap) ResolvePublicKey(id keys.NodeID) ([]byte, bool) {
	pub, ok := r[id]
	return pub, ok
}

func newTestContract(t *testing.T, renter, farmer keys.KeyPair) Contract {
	t.Helper()
	return Contract{
		Version:            V1,
		RenterID:           renter.NodeID(),
		FarmerID:           farmer.NodeID(),
		PaymentDestination: farmer.Address(),
		PaymentAmount:      1000,
		PaymentInterval:    3600,
		DataSize:           1 << 20,
		StoreBegin:         100,
		StoreEnd:           200,
		AuditCount:         4,
		AuditLeaves:        64,
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	renter, err := keys.Generate()
	if err != nil {
		t.Fatal(err)
	}
	farmer, err := keys.Generate()
	if err != nil {
		t.Fatal(err)
	}
	c := newTestContract(t, renter, farmer)

	if err := c.SignFarmer(farmer); err != nil {
		t.Fatal(err)
	}
	if err := c.SignRenter(renter); err != nil {
		t.Fatal(err)
	}
	if err := c.VerifyFarmerSignature(farmer.PublicKey()); err != nil {
		t.Fatalf("farmer signature did not verify: %v", err)
	}
	if err := c.VerifyRenterSignature(renter.PublicKey()); err != nil {
		t.Fatalf("renter signature did not verify: %v", err)
	}
	if !c.HasBothSignatures() {
		t.Fatal("expected HasBothSignatures to be true")
	}

	resolver := resolverMap{renter.NodeID(): renter.PublicKey(), farmer.NodeID(): farmer.PublicKey()}
	if !c.IsComplete(resolver) {
		t.Fatal("expected IsComplete to be true")
	}
}

func TestSignRejectsAlreadyComplete(t *testing.T) {
	renter, _ := keys.Generate()
	farmer, _ := keys.Generate()
	c := newTestContract(t, renter, farmer)
	if err := c.SignFarmer(farmer); err != nil {
		t.Fatal(err)
	}
	if err := c.SignRenter(renter); err != nil {
		t.Fatal(err)
	}
	if err := c.SignRenter(renter); err != ErrImmutable {
		t.Fatalf("expected ErrImmutable re-signing a complete contract, got %v", err)
	}
}

func TestVerifySignatureRejectsTamperedField(t *testing.T) {
	renter, _ := keys.Generate()
	farmer, _ := keys.Generate()
	c := newTestContract(t, renter, farmer)
	if err := c.SignFarmer(farmer); err != nil {
		t.Fatal(err)
	}
	c.PaymentAmount = 999999
	if err := c.VerifyFarmerSignature(farmer.PublicKey()); err == nil {
		t.Fatal("expected signature verification to fail after tampering with a signed field")
	}
}

func TestParseRejectsBadWindow(t *testing.T) {
	renter, _ := keys.Generate()
	farmer, _ := keys.Generate()
	c := newTestContract(t, renter, farmer)
	c.StoreBegin, c.StoreEnd = 200, 100

	canon, err := c.CanonicalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(canon); err == nil {
		t.Fatal("expected Parse to reject store_begin >= store_end")
	}
}

func TestParseRejectsWrongVersion(t *testing.T) {
	renter, _ := keys.Generate()
	farmer, _ := keys.Generate()
	c := newTestContract(t, renter, farmer)
	c.Version = 99

	canon, err := c.CanonicalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(canon); err == nil {
		t.Fatal("expected Parse to reject an unrecognized version")
	}
}

func TestCanonicalJSONExcludesSignatures(t *testing.T) {
	renter, _ := keys.Generate()
	farmer, _ := keys.Generate()
	c := newTestContract(t, renter, farmer)
	before, err := c.CanonicalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SignFarmer(farmer); err != nil {
		t.Fatal(err)
	}
	after, err := c.CanonicalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("CanonicalJSON should be stable across signing since signatures are nulled out")
	}
}
