package keys

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"gitlab.com/NebulousLabs/entropy-mnemonics"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/fastrand"
	"golang.org/x/crypto/ripemd160"
)

// SeedSize is the amount of entropy, in bytes, used to derive a KeyPair.
const SeedSize = 32

var (
	// ErrInvalidSignature is returned when a DER signature does not verify
	// against the claimed public key.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrWrongNodeID is returned when a public key's derived node id does
	// not match the node id it was supposed to authenticate.
	ErrWrongNodeID = errors.New("public key does not match claimed node id")
)

// KeyPair is a farmer or renter's signing identity: an ECDSA keypair over
// secp256k1, the same curve used by the rest of the pack's Bitcoin-style
// address derivation.
type KeyPair struct {
	priv *btcec.PrivateKey
}

// Generate creates a new KeyPair from fresh entropy.
func Generate() (KeyPair, error) {
	var seed [SeedSize]byte
	fastrand.Read(seed[:])
	return FromSeed(seed)
}

// FromSeed deterministically derives a KeyPair from 32 bytes of entropy.
func FromSeed(seed [SeedSize]byte) (KeyPair, error) {
	priv, _ := btcec.PrivKeyFromBytes(seed[:])
	return KeyPair{priv: priv}, nil
}

// Seed returns the 32 bytes of entropy this KeyPair was derived from, so
// callers can persist and later reconstruct an identity via FromSeed.
func (kp KeyPair) Seed() (seed [SeedSize]byte) {
	copy(seed[:], kp.priv.Serialize())
	return
}

// PublicKey returns the compressed SEC1 encoding of the public key.
func (kp KeyPair) PublicKey() []byte {
	return kp.priv.PubKey().SerializeCompressed()
}

// NodeID returns the RIPEMD-160 hash of the public key: the peer's
// identity in the DHT overlay.
func (kp KeyPair) NodeID() NodeID {
	return NodeIDFromPublicKey(kp.PublicKey())
}

// Address derives a payment wallet address from the keypair. Addresses use
// the same RIPEMD-160(SHA-256(pubkey)) construction as the node id, so that
// a farmer with no configured payment address can fall back to its own
// identity (see farmer.Negotiator's default payment address rule).
func (kp KeyPair) Address() string {
	return NodeIDFromPublicKey(kp.PublicKey()).String()
}

// Sign produces a DER-encoded ECDSA signature over data's SHA-256 digest.
// Contract signatures cover the canonical serialization with the signature
// fields nulled, per the wire format.
func (kp KeyPair) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig := ecdsa.Sign(kp.priv, digest[:])
	return sig.Serialize(), nil
}

// Mnemonic renders a human-readable phrase for this keypair's seed bytes,
// a memorable rendering of an identity instead of a raw hex blob. No other
// package in this module calls it.
func (kp KeyPair) Mnemonic() (string, error) {
	seed := kp.priv.Serialize()
	phrase, err := mnemonics.ToPhrase(seed, mnemonics.English)
	if err != nil {
		return "", errors.Extend(err, errors.New("keys: failed to render mnemonic"))
	}
	return phrase.String(), nil
}

// NodeIDFromPublicKey computes the RIPEMD-160(SHA-256(pubkey)) node id for
// an arbitrary public key, without requiring the private half.
func NodeIDFromPublicKey(pub []byte) NodeID {
	sum := sha256.Sum256(pub)
	r := ripemd160.New()
	r.Write(sum[:])
	var id NodeID
	copy(id[:], r.Sum(nil))
	return id
}

// Verify checks a DER-encoded ECDSA signature over data's SHA-256 digest
// against a raw compressed public key, and confirms the public key's
// derived node id matches id.
func Verify(id NodeID, pub []byte, data []byte, sig []byte) error {
	if NodeIDFromPublicKey(pub) != id {
		return ErrWrongNodeID
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return errors.Extend(err, ErrInvalidSignature)
	}
	parsedPub, err := btcec.ParsePubKey(pub)
	if err != nil {
		return errors.Extend(err, errors.New("invalid public key"))
	}
	digest := sha256.Sum256(data)
	if !parsedSig.Verify(digest[:], parsedPub) {
		return ErrInvalidSignature
	}
	return nil
}

// PublicKeyResolver maps a node id to the public key that produced it. It
// is the narrow interface this core consumes in place of a full identity
// directory: the DHT layer (out of scope per the protocol spec) is expected
// to supply public keys alongside contacts, since node ids alone are not
// sufficient to verify a signature.
type PublicKeyResolver interface {
	ResolvePublicKey(id NodeID) ([]byte, bool)
}
