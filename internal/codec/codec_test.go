package codec

import (
	"bytes"
	"testing"

	"github.com/veritas-ledger/gateway/internal/datamodel"
)

var alice = datamodel.AccountID{Name: "alice", Domain: "wonderland"}

func TestTransactionRoundTrip(t *testing.T) {
	payload := datamodel.TransactionPayload{
		Authority:    alice,
		Instructions: []byte{0xde, 0xad},
		CreatedAtMS:  1700000000000,
		TTLMS:        60000,
		Nonce:        42,
	}
	payloadBytes, err := MarshalTransactionPayload(payload)
	if err != nil {
		t.Fatalf("MarshalTransactionPayload: %v", err)
	}
	in := &datamodel.Transaction{
		Version:      1,
		Payload:      payload,
		PayloadBytes: payloadBytes,
		Signatures: []datamodel.Signature{
			{PublicKey: bytes.Repeat([]byte{1}, 32), Value: bytes.Repeat([]byte{2}, 64)},
		},
	}

	raw, err := EncodeTransaction(in)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}
	out, err := DecodeTransaction(raw)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}

	if out.Version != in.Version {
		t.Errorf("version = %d, want %d", out.Version, in.Version)
	}
	if out.Payload.Authority != alice {
		t.Errorf("authority = %v, want %v", out.Payload.Authority, alice)
	}
	if out.Payload.Nonce != 42 || out.Payload.TTLMS != 60000 {
		t.Errorf("payload = %+v, want nonce 42 ttl 60000", out.Payload)
	}
	if len(out.Signatures) != 1 || !bytes.Equal(out.Signatures[0].Value, in.Signatures[0].Value) {
		t.Errorf("signatures not preserved: %+v", out.Signatures)
	}

	// The decoded payload bytes are the exact bytes that were signed, so
	// hashes computed before and after the wire trip agree.
	if !bytes.Equal(out.PayloadBytes, payloadBytes) {
		t.Error("payload bytes were re-encoded in transit")
	}
	if out.HashHex() != in.HashHex() {
		t.Errorf("hash changed in transit: %s != %s", out.HashHex(), in.HashHex())
	}
}

func TestQueryRoundTrip(t *testing.T) {
	asset := datamodel.AssetID{
		Definition: datamodel.AssetDefinitionID{Name: "rose", Domain: "wonderland"},
		Account:    alice,
	}
	payload := datamodel.QueryPayload{Authority: alice, Kind: datamodel.QueryFindAsset, Asset: &asset}
	payloadBytes, err := MarshalQueryPayload(payload)
	if err != nil {
		t.Fatalf("MarshalQueryPayload: %v", err)
	}
	in := &datamodel.SignedQuery{
		Version:      1,
		Payload:      payload,
		PayloadBytes: payloadBytes,
		Signature:    datamodel.Signature{PublicKey: bytes.Repeat([]byte{3}, 32), Value: bytes.Repeat([]byte{4}, 64)},
	}

	raw, err := EncodeQuery(in)
	if err != nil {
		t.Fatalf("EncodeQuery: %v", err)
	}
	out, err := DecodeQuery(raw)
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}

	if out.Payload.Kind != datamodel.QueryFindAsset {
		t.Errorf("kind = %s, want %s", out.Payload.Kind, datamodel.QueryFindAsset)
	}
	if out.Payload.Asset == nil || *out.Payload.Asset != asset {
		t.Errorf("asset target = %+v, want %+v", out.Payload.Asset, asset)
	}
	if !bytes.Equal(out.PayloadBytes, payloadBytes) {
		t.Error("payload bytes were re-encoded in transit")
	}
}

func TestDecodeTransaction_Malformed(t *testing.T) {
	inputs := map[string][]byte{
		"empty":        {},
		"not cbor":     []byte("hello"),
		"wrong shape":  mustMarshal(t, "just a string"),
		"wrong fields": mustMarshal(t, []int{1, 2, 3}),
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeTransaction(raw); err == nil {
				t.Error("DecodeTransaction succeeded, want error")
			}
		})
	}
}

func TestDecodeQuery_BadAssetTarget(t *testing.T) {
	raw, err := encMode.Marshal(queryEnvelope{
		Version: 1,
		Payload: mustMarshal(t, queryPayload{
			Authority: toWireAccount(alice),
			Kind:      string(datamodel.QueryFindAsset),
			Asset:     &wireAssetID{Definition: "no-separator", Account: toWireAccount(alice)},
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeQuery(raw); err == nil {
		t.Error("DecodeQuery succeeded on a malformed asset definition id, want error")
	}
}

func TestQueryResultRoundTrip(t *testing.T) {
	in := datamodel.NewQueryResult([]datamodel.Object{
		datamodel.AssetObject(datamodel.Asset{
			ID: datamodel.AssetID{
				Definition: datamodel.AssetDefinitionID{Name: "rose", Domain: "wonderland"},
				Account:    alice,
			},
			Quantity: 42,
		}),
		datamodel.AccountObject(datamodel.Account{ID: alice}),
	})

	raw, err := EncodeQueryResult(in)
	if err != nil {
		t.Fatalf("EncodeQueryResult: %v", err)
	}
	out, err := DecodeQueryResult(raw)
	if err != nil {
		t.Fatalf("DecodeQueryResult: %v", err)
	}

	if len(out.Objects) != 2 {
		t.Fatalf("objects = %d, want 2", len(out.Objects))
	}
	// NewQueryResult ordered by identifier: alice@wonderland < rose#...
	if out.Objects[0].Kind != datamodel.ObjectAccount {
		t.Errorf("first object kind = %s, want account", out.Objects[0].Kind)
	}
	if out.Objects[1].Asset == nil || out.Objects[1].Asset.Quantity != 42 {
		t.Errorf("second object = %+v, want the rose asset", out.Objects[1])
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := encMode.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
