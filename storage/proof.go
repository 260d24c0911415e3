package storage

import (
	"encoding/binary"
	"hash"
	"io"

	"github.com/dchest/blake2b"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/merkletree"
)

// SegmentSize is the number of shard bytes hashed to form each base leaf of
// the audit Merkle tree, matching the teacher's crypto.SegmentSize.
const SegmentSize = 64

// ErrBadChallenge is returned when a Challenge does not carry a well-formed
// segment index.
var ErrBadChallenge = errors.New("storage: challenge is too short to carry a segment index")

// newTreeHash returns the hasher the audit tree is built and proved over.
// Grounded on crypto.NewHash in the teacher, which reserves blake2b as the
// one hash function Sia-derived trees use.
func newTreeHash() hash.Hash {
	return blake2b.New256()
}

// SegmentIndex extracts the leading 8-byte big-endian segment index from a
// challenge. Any bytes beyond the first 8 are renter-chosen salt, carried
// for the renter's own bookkeeping but not interpreted by the proof
// transform.
func (c Challenge) SegmentIndex() (uint64, error) {
	if len(c) < 8 {
		return 0, ErrBadChallenge
	}
	return binary.BigEndian.Uint64(c[:8]), nil
}

// NewChallenge builds a Challenge from a segment index and optional salt.
func NewChallenge(segmentIndex uint64, salt []byte) Challenge {
	c := make(Challenge, 8+len(salt))
	binary.BigEndian.PutUint64(c[:8], segmentIndex)
	copy(c[8:], salt)
	return c
}

// Proof is a compact Merkle authentication path over one challenged leaf.
type Proof struct {
	Base    [SegmentSize]byte
	HashSet [][32]byte
}

// BuildProof streams r (the full shard) through a single-pass Merkle proof
// transform, producing the authentication path for the leaf at
// segmentIndex. Grounded directly on crypto.BuildReaderProof.
func BuildProof(r io.Reader, segmentIndex uint64) (Proof, error) {
	_, proofSet, _, err := merkletree.BuildReaderProof(r, newTreeHash(), SegmentSize, segmentIndex)
	if err != nil {
		return Proof{}, errors.Extend(err, errors.New("storage: failed to build audit proof"))
	}
	var p Proof
	copy(p.Base[:], proofSet[0])
	p.HashSet = make([][32]byte, len(proofSet)-1)
	for i, h := range proofSet[1:] {
		copy(p.HashSet[i][:], h)
	}
	return p, nil
}

// VerifyProof checks p against root for a tree of numSegments leaves,
// challenged at segmentIndex. Grounded on crypto.VerifySegment.
func VerifyProof(p Proof, numSegments, segmentIndex uint64, root MerkleRoot) bool {
	proofSet := make([][]byte, len(p.HashSet)+1)
	proofSet[0] = p.Base[:]
	for i := range p.HashSet {
		proofSet[i+1] = p.HashSet[i][:]
	}
	return merkletree.VerifyProof(newTreeHash(), root[:], proofSet, segmentIndex, numSegments)
}
