package storage

import (
	"bytes"
	"math/rand"
	"testing"

	"gitlab.com/NebulousLabs/merkletree"
)

func TestBuildAndVerifyProofRoundTrip(t *testing.T) {
	const numSegments = 16
	data := make([]byte, numSegments*SegmentSize)
	rand.New(rand.NewSource(1)).Read(data)

	tree := merkletree.New(newTreeHash())
	tree.SetIndex(3)
	for i := 0; i < numSegments; i++ {
		tree.Push(data[i*SegmentSize : (i+1)*SegmentSize])
	}
	rootBytes, _, _, _ := tree.Prove()
	var root MerkleRoot
	copy(root[:], rootBytes)

	proof, err := BuildProof(bytes.NewReader(data), 3)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyProof(proof, numSegments, 3, root) {
		t.Fatal("expected a freshly built proof to verify against the matching root")
	}
}

func TestVerifyProofRejectsWrongRoot(t *testing.T) {
	const numSegments = 8
	data := make([]byte, numSegments*SegmentSize)
	rand.New(rand.NewSource(2)).Read(data)

	proof, err := BuildProof(bytes.NewReader(data), 1)
	if err != nil {
		t.Fatal(err)
	}
	var wrongRoot MerkleRoot
	wrongRoot[0] = 0xFF
	if VerifyProof(proof, numSegments, 1, wrongRoot) {
		t.Fatal("expected VerifyProof to reject a mismatched root")
	}
}

func TestChallengeSegmentIndexRoundTrip(t *testing.T) {
	c := NewChallenge(42, []byte("salt"))
	idx, err := c.SegmentIndex()
	if err != nil {
		t.Fatal(err)
	}
	if idx != 42 {
		t.Fatalf("expected segment index 42, got %d", idx)
	}
}

func TestChallengeSegmentIndexRejectsShort(t *testing.T) {
	c := Challenge([]byte{1, 2, 3})
	if _, err := c.SegmentIndex(); err != ErrBadChallenge {
		t.Fatalf("expected ErrBadChallenge, got %v", err)
	}
}
