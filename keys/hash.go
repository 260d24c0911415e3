// Package keys implements node identity: keypair generation, signing, and
// the RIPEMD-160 node-id/address derivation used throughout the contract
// protocol.
package keys

import (
	"encoding/hex"

	"gitlab.com/NebulousLabs/errors"
)

// HashSize is the length in bytes of a node id or data hash.
const HashSize = 20

// Hash160 is a 20-byte RIPEMD-160 digest. It is used both for node ids
// (RIPEMD-160 of a public key) and for shard data hashes.
type Hash160 [HashSize]byte

// NodeID is the identity of a peer in the overlay: the RIPEMD-160 hash of
// its public key.
type NodeID = Hash160

// String renders the hash as lowercase hex, matching the wire format used
// in contract fields and log lines.
func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON renders the hash as a hex string, matching the "20-byte hex"
// wire format used for renter_id/farmer_id/data_hash.
func (h Hash160) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON parses a hex-encoded 20-byte hash.
func (h *Hash160) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("hash160: not a JSON string")
	}
	return h.LoadString(string(b[1 : len(b)-1]))
}

// LoadString decodes a hex string into the hash.
func (h *Hash160) LoadString(s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return errors.Extend(err, errors.New("hash160: invalid hex"))
	}
	if len(b) != HashSize {
		return errors.New("hash160: wrong length")
	}
	copy(h[:], b)
	return nil
}

// HashFromString parses a hex-encoded node id or data hash.
func HashFromString(s string) (h Hash160, err error) {
	err = h.LoadString(s)
	return
}

// IsZero reports whether h is the zero hash.
func (h Hash160) IsZero() bool {
	return h == Hash160{}
}
