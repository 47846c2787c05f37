// Package signature verifies the detached signatures carried by
// transactions and queries. Signatures are ed25519 over a blake2b-256
// digest of the payload bytes.
package signature

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/veritas-ledger/gateway/internal/datamodel"
)

var (
	// ErrNoSignatures indicates a payload without any signature.
	ErrNoSignatures = errors.New("no signatures attached")
	// ErrBadSignature indicates a cryptographically invalid signature.
	ErrBadSignature = errors.New("signature verification failed")
	// ErrUnknownSigner indicates a signature from a key not registered to
	// the claimed authority.
	ErrUnknownSigner = errors.New("signer key not registered to authority")
)

// Verifier checks signatures over a payload against a claimed authority.
type Verifier interface {
	Verify(ctx context.Context, authority datamodel.AccountID, payload []byte, sigs []datamodel.Signature) error
}

// KeyResolver reports the public keys registered to an account. A nil
// resolver disables the authority binding check, leaving only cryptographic
// validity.
type KeyResolver interface {
	PublicKeys(authority datamodel.AccountID) [][]byte
}

// Ed25519Verifier verifies ed25519 signatures over blake2b-256 payload
// digests, optionally binding signer keys to the claimed authority.
type Ed25519Verifier struct {
	Keys KeyResolver
}

// Verify checks every attached signature. All signatures must be valid; when
// a key resolver is configured, every signer key must also be registered to
// the authority.
func (v Ed25519Verifier) Verify(ctx context.Context, authority datamodel.AccountID, payload []byte, sigs []datamodel.Signature) error {
	if len(sigs) == 0 {
		return ErrNoSignatures
	}
	digest := blake2b.Sum256(payload)
	var registered [][]byte
	if v.Keys != nil {
		registered = v.Keys.PublicKeys(authority)
	}
	for i, sig := range sigs {
		if len(sig.PublicKey) != ed25519.PublicKeySize {
			return fmt.Errorf("signature %d: %w: bad key length %d", i, ErrBadSignature, len(sig.PublicKey))
		}
		if !ed25519.Verify(ed25519.PublicKey(sig.PublicKey), digest[:], sig.Value) {
			return fmt.Errorf("signature %d: %w", i, ErrBadSignature)
		}
		if v.Keys != nil && !keyRegistered(registered, sig.PublicKey) {
			return fmt.Errorf("signature %d: %w", i, ErrUnknownSigner)
		}
	}
	return nil
}

func keyRegistered(registered [][]byte, key []byte) bool {
	for _, k := range registered {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}

// Sign produces a signature over the payload with the given private key.
// Used by client helpers and tests.
func Sign(priv ed25519.PrivateKey, payload []byte) datamodel.Signature {
	digest := blake2b.Sum256(payload)
	return datamodel.Signature{
		PublicKey: append([]byte(nil), priv.Public().(ed25519.PublicKey)...),
		Value:     ed25519.Sign(priv, digest[:]),
	}
}
