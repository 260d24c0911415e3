// Package contract implements the canonical signed document binding a
// renter and a farmer over a specific data hash for a specific storage
// period. See modules/host/negotiatenewcontract.go in the teacher for the
// shape this was adapted from (there: a blockchain file contract; here: a
// two-signature off-chain agreement).
package contract

import (
	"encoding/json"

	"github.com/NebulousLabs/contractcore/keys"
	"gitlab.com/NebulousLabs/errors"
)

// Version identifies the wire schema of a Contract.
type Version uint8

// V1 is the only version this core understands.
const V1 Version = 1

var (
	// ErrInvalidFormat is returned when a contract fails to parse or
	// rejects the expected schema version.
	ErrInvalidFormat = errors.New("invalid contract format")

	// ErrBadWindow is returned when store_begin does not precede store_end.
	ErrBadWindow = errors.New("store_begin must be before store_end")

	// ErrImmutable is returned when a caller attempts to modify a contract
	// that is already fully signed.
	ErrImmutable = errors.New("contract is already complete and cannot be modified")
)

// Contract is the canonical signed agreement. Field order is fixed and is
// never reordered across versions: that fixed order, combined with Go's
// struct-order JSON marshaling, is what makes CanonicalJSON deterministic
// (see DESIGN.md for why no extra canonical-JSON library was needed here).
type Contract struct {
	Version Version `json:"version"`

	RenterID keys.NodeID `json:"renter_id"`
	FarmerID keys.NodeID `json:"farmer_id"`

	RenterSignature []byte `json:"renter_signature"`
	FarmerSignature []byte `json:"farmer_signature"`

	PaymentSource      string `json:"payment_source"`
	PaymentDestination string `json:"payment_destination"`
	PaymentAmount      uint64 `json:"payment_amount"`
	PaymentInterval    uint64 `json:"payment_interval"`

	DataHash keys.Hash160 `json:"data_hash"`
	DataSize uint64       `json:"data_size"`

	StoreBegin int64 `json:"store_begin"`
	StoreEnd   int64 `json:"store_end"`

	AuditCount  uint32 `json:"audit_count"`
	AuditLeaves uint64 `json:"audit_leaves"`
}

// Parse decodes and schema-checks a contract from its wire form.
func Parse(b []byte) (*Contract, error) {
	var c Contract
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, errors.Extend(err, ErrInvalidFormat)
	}
	if c.Version != V1 {
		return nil, errors.Extend(errors.New("unrecognized version"), ErrInvalidFormat)
	}
	if c.StoreBegin >= c.StoreEnd {
		return nil, errors.Extend(ErrBadWindow, ErrInvalidFormat)
	}
	return &c, nil
}

// canonicalForm returns a copy of c with both signature fields nulled, the
// form that signatures are computed and verified over.
func (c Contract) canonicalForm() Contract {
	c.RenterSignature = nil
	c.FarmerSignature = nil
	return c
}

// CanonicalJSON returns the deterministic, key-sorted-by-declaration byte
// form, with both signature fields nulled, that signatures are computed and
// verified over. Persisted and wire forms marshal the whole Contract
// instead, so they keep the signatures.
func (c Contract) CanonicalJSON() ([]byte, error) {
	b, err := json.Marshal(c.canonicalForm())
	if err != nil {
		return nil, errors.Extend(err, errors.New("contract: failed to canonicalize"))
	}
	return b, nil
}

// SignRenter signs the canonical form with the renter's keypair and sets
// RenterSignature. It fails if the contract is already complete.
func (c *Contract) SignRenter(kp keys.KeyPair) error {
	if c.HasBothSignatures() {
		return ErrImmutable
	}
	canon, err := c.CanonicalJSON()
	if err != nil {
		return err
	}
	sig, err := kp.Sign(canon)
	if err != nil {
		return err
	}
	c.RenterSignature = sig
	return nil
}

// SignFarmer signs the canonical form with the farmer's keypair and sets
// FarmerSignature. It fails if the contract is already complete.
func (c *Contract) SignFarmer(kp keys.KeyPair) error {
	if c.HasBothSignatures() {
		return ErrImmutable
	}
	canon, err := c.CanonicalJSON()
	if err != nil {
		return err
	}
	sig, err := kp.Sign(canon)
	if err != nil {
		return err
	}
	c.FarmerSignature = sig
	return nil
}

// VerifyRenterSignature checks RenterSignature against the renter's public
// key, confirming both the signature and that the public key derives
// RenterID.
func (c Contract) VerifyRenterSignature(renterPub []byte) error {
	if len(c.RenterSignature) == 0 {
		return errors.New("contract: no renter signature present")
	}
	canon, err := c.CanonicalJSON()
	if err != nil {
		return err
	}
	return keys.Verify(c.RenterID, renterPub, canon, c.RenterSignature)
}

// VerifyFarmerSignature checks FarmerSignature against the farmer's public
// key, confirming both the signature and that the public key derives
// FarmerID.
func (c Contract) VerifyFarmerSignature(farmerPub []byte) error {
	if len(c.FarmerSignature) == 0 {
		return errors.New("contract: no farmer signature present")
	}
	canon, err := c.CanonicalJSON()
	if err != nil {
		return err
	}
	return keys.Verify(c.FarmerID, farmerPub, canon, c.FarmerSignature)
}

// IsComplete reports whether both signatures are present and verify
// against their claimed node ids.
func (c Contract) IsComplete(resolver keys.PublicKeyResolver) bool {
	if len(c.RenterSignature) == 0 || len(c.FarmerSignature) == 0 {
		return false
	}
	renterPub, ok := resolver.ResolvePublicKey(c.RenterID)
	if !ok {
		return false
	}
	farmerPub, ok := resolver.ResolvePublicKey(c.FarmerID)
	if !ok {
		return false
	}
	return c.VerifyRenterSignature(renterPub) == nil && c.VerifyFarmerSignature(farmerPub) == nil
}

// HasBothSignatures is a cheap, resolver-free completeness check used
// internally where a full signature verification has already happened (for
// example, right after SignRenter/SignFarmer in the same call path).
func (c Contract) HasBothSignatures() bool {
	return len(c.RenterSignature) > 0 && len(c.FarmerSignature) > 0
}
