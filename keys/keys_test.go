package keys

import "testing"

func TestGenerateSignVerify(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("a canonical contract body")
	sig, err := kp.Sign(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(kp.NodeID(), kp.PublicKey(), data, sig); err != nil {
		t.Fatalf("signature failed to verify: %v", err)
	}
}

func TestVerifyRejectsTamperedData(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := kp.Sign([]byte("original"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(kp.NodeID(), kp.PublicKey(), []byte("tampered"), sig); err == nil {
		t.Fatal("expected verification to fail against tampered data")
	}
}

func TestVerifyRejectsWrongNodeID(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	other, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("payload")
	sig, err := kp.Sign(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(other.NodeID(), kp.PublicKey(), data, sig); err != ErrWrongNodeID {
		t.Fatalf("expected ErrWrongNodeID, got %v", err)
	}
}

func TestFromSeedIsDeterministic(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	seed := kp.Seed()
	rebuilt, err := FromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.NodeID() != kp.NodeID() {
		t.Fatal("FromSeed did not reproduce the same identity")
	}
}

func TestHash160RoundTripsThroughJSON(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	id := kp.NodeID()

	b, err := id.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var got Hash160
	if err := got.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("round trip mismatch: got %v, want %v", got, id)
	}
}

func TestHash160LoadStringRejectsWrongLength(t *testing.T) {
	var h Hash160
	if err := h.LoadString("abcd"); err == nil {
		t.Fatal("expected an error for a too-short hex string")
	}
}

func TestAddressMatchesNodeIDDerivation(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	if kp.Address() != kp.NodeID().String() {
		t.Fatal("Address should be the hex node id, per the default payment address rule")
	}
}
