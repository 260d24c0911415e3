// Package channel implements DataChannelAuthorization: one-time tokens
// bound to a data_hash (the purpose is recorded alongside but not checked
// on accept) that gate the opaque data-channel transport
// used for CONSIGN, RETRIEVE, and MIRROR. Token generation is grounded on
// the fastrand idioms the teacher uses throughout crypto/rand.go for
// unpredictable byte generation.
package channel

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/NebulousLabs/contractcore/keys"
	"gitlab.com/NebulousLabs/errors"
	"gitlab.com/NebulousLabs/fastrand"
)

// Purpose distinguishes the three operations a token may authorize.
type Purpose string

const (
	PurposeConsign  Purpose = "consign"
	PurposeRetrieve Purpose = "retrieve"
	PurposeMirror   Purpose = "mirror"
)

// TokenSize is 16 bytes (128 bits), the minimum size the spec requires.
const TokenSize = 16

// DefaultTTL bounds how long an unconsumed token remains valid.
const DefaultTTL = 5 * time.Minute

// Token is a one-shot authorization string.
type Token [TokenSize]byte

// String renders the token as hex, as it appears on the wire.
func (t Token) String() string {
	return hex.EncodeToString(t[:])
}

type record struct {
	hash     keys.Hash160
	purpose  Purpose
	expires  time.Time
	consumed bool
}

var (
	// ErrUnknownToken is returned by Accept when the token was never
	// issued, has expired, or has already been consumed (Accept deletes a
	// token's record when it consumes it).
	ErrUnknownToken = errors.New("channel: unknown or expired token")

	// ErrAlreadyConsumed marks a token that has already authorized one
	// transfer. Accept deletes consumed records, so a reused token reports
	// ErrUnknownToken rather than this error.
	ErrAlreadyConsumed = errors.New("channel: token already consumed")

	// ErrWrongHash is returned when a token is presented against a data
	// hash other than the one it was issued for.
	ErrWrongHash = errors.New("channel: token does not match data hash")
)

// Authorization issues and verifies one-shot data-channel tokens.
type Authorization struct {
	mu      sync.Mutex
	tokens  map[Token]*record
	ttl     time.Duration
}

// NewAuthorization constructs an issuer with the default TTL.
func NewAuthorization() *Authorization {
	return &Authorization{
		tokens: make(map[Token]*record),
		ttl:    DefaultTTL,
	}
}

// Issue produces a fresh token that records (hash, purpose), valid for one
// Accept call within the authorization's TTL. Accept checks the hash only;
// the recorded purpose is not checked.
func (a *Authorization) Issue(hash keys.Hash160, purpose Purpose) (Token, error) {
	var t Token
	fastrand.Read(t[:])

	a.mu.Lock()
	defer a.mu.Unlock()
	a.reapLocked()
	a.tokens[t] = &record{
		hash:    hash,
		purpose: purpose,
		expires: time.Now().Add(a.ttl),
	}
	return t, nil
}

// Accept consumes token if it is valid, unexpired, and issued for hash.
// A token can be accepted at most once.
func (a *Authorization) Accept(t Token, hash keys.Hash160) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.tokens[t]
	if !ok {
		return ErrUnknownToken
	}
	if time.Now().After(rec.expires) {
		delete(a.tokens, t)
		return ErrUnknownToken
	}
	if rec.consumed {
		return ErrAlreadyConsumed
	}
	if rec.hash != hash {
		return ErrWrongHash
	}
	rec.consumed = true
	delete(a.tokens, t)
	return nil
}

func (a *Authorization) reapLocked() {
	now := time.Now()
	for t, rec := range a.tokens {
		if now.After(rec.expires) {
			delete(a.tokens, t)
		}
	}
}
