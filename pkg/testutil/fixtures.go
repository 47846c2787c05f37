// Package testutil provides fixtures shared by gateway tests: deterministic
// keypairs, a seeded world state and signed wire-format envelopes.
package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/veritas-ledger/gateway/internal/codec"
	"github.com/veritas-ledger/gateway/internal/datamodel"
	"github.com/veritas-ledger/gateway/internal/ledger"
	"github.com/veritas-ledger/gateway/internal/signature"
)

// Keypair is a test signing identity.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewKeypair generates a fresh ed25519 keypair.
func NewKeypair(t *testing.T) Keypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return Keypair{Public: pub, Private: priv}
}

// Alice is the canonical seeded account, alice@wonderland.
var Alice = datamodel.AccountID{Name: "alice", Domain: "wonderland"}

// Roses is the canonical seeded asset definition, rose#wonderland.
var Roses = datamodel.AssetDefinitionID{Name: "rose", Domain: "wonderland"}

// SeededWorld builds a world state holding the wonderland domain, Alice's
// account registered with the given key, the rose definition and Alice's
// rose holding.
func SeededWorld(aliceKey ed25519.PublicKey) *ledger.World {
	w := ledger.NewWorld()
	w.AddDomain(datamodel.Domain{ID: "wonderland"})
	w.AddAccount(datamodel.Account{ID: Alice, PublicKeys: [][]byte{aliceKey}})
	w.AddAssetDefinition(datamodel.AssetDefinition{ID: Roses, ValueType: "quantity"})
	w.AddAsset(datamodel.Asset{
		ID:       datamodel.AssetID{Definition: Roses, Account: Alice},
		Quantity: 42,
	})
	return w
}

// SignedTransaction encodes and signs a transaction envelope ready for the
// wire. The returned bytes decode back to a transaction whose hash covers
// exactly the encoded payload.
func SignedTransaction(t *testing.T, kp Keypair, authority datamodel.AccountID, version uint8) []byte {
	t.Helper()
	payload := datamodel.TransactionPayload{
		Authority:    authority,
		Instructions: []byte{0x01},
		CreatedAtMS:  1700000000000,
		TTLMS:        3600000,
		Nonce:        7,
	}
	payloadBytes, err := codec.MarshalTransactionPayload(payload)
	if err != nil {
		t.Fatalf("marshal transaction payload: %v", err)
	}
	tx := &datamodel.Transaction{
		Version:      version,
		Payload:      payload,
		PayloadBytes: payloadBytes,
		Signatures:   []datamodel.Signature{signature.Sign(kp.Private, payloadBytes)},
	}
	raw, err := codec.EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("encode transaction: %v", err)
	}
	return raw
}

// SignedQuery encodes and signs a query envelope ready for the wire.
func SignedQuery(t *testing.T, kp Keypair, payload datamodel.QueryPayload, version uint8) []byte {
	t.Helper()
	payloadBytes, err := codec.MarshalQueryPayload(payload)
	if err != nil {
		t.Fatalf("marshal query payload: %v", err)
	}
	q := &datamodel.SignedQuery{
		Version:      version,
		Payload:      payload,
		PayloadBytes: payloadBytes,
		Signature:    signature.Sign(kp.Private, payloadBytes),
	}
	raw, err := codec.EncodeQuery(q)
	if err != nil {
		t.Fatalf("encode query: %v", err)
	}
	return raw
}

// FindAsset builds a FindAsset payload for the given target.
func FindAsset(authority datamodel.AccountID, asset datamodel.AssetID) datamodel.QueryPayload {
	return datamodel.QueryPayload{Authority: authority, Kind: datamodel.QueryFindAsset, Asset: &asset}
}

// FindAccount builds a FindAccount payload for the given target.
func FindAccount(authority, account datamodel.AccountID) datamodel.QueryPayload {
	return datamodel.QueryPayload{Authority: authority, Kind: datamodel.QueryFindAccount, Account: &account}
}
