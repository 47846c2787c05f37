package datamodel

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Signature is a detached ed25519 signature over a payload digest, carrying
// the public key it was produced with.
type Signature struct {
	PublicKey []byte `json:"public_key"`
	Value     []byte `json:"value"`
}

// TransactionPayload is the signed portion of a transaction. The contained
// instructions are opaque to the gateway; only the consensus engine
// interprets them.
type TransactionPayload struct {
	Authority    AccountID `json:"authority"`
	Instructions []byte    `json:"instructions"`
	CreatedAtMS  uint64    `json:"created_at_ms"`
	TTLMS        uint64    `json:"ttl_ms"`
	Nonce        uint32    `json:"nonce"`
}

// Transaction is a decoded client transaction. PayloadBytes holds the exact
// wire encoding of the payload; signatures and the transaction hash are
// computed over those bytes, not a re-encoding.
type Transaction struct {
	Version      uint8
	Payload      TransactionPayload
	PayloadBytes []byte
	Signatures   []Signature
}

// Hash returns the blake2b-256 digest of the payload bytes.
func (t *Transaction) Hash() [32]byte {
	return blake2b.Sum256(t.PayloadBytes)
}

// HashHex returns the transaction hash as a lowercase hex string.
func (t *Transaction) HashHex() string {
	h := t.Hash()
	return hex.EncodeToString(h[:])
}
