// Package codec implements the binary wire envelope for transactions and
// queries. Envelopes are CBOR arrays carrying a protocol version, the raw
// payload bytes and the signature(s). Payload bytes are preserved exactly as
// received so signatures and hashes are computed over what the client signed,
// never over a re-encoding.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/veritas-ledger/gateway/internal/datamodel"
)

// ContentType is the MIME type used for binary envelope bodies.
const ContentType = "application/cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

type wireAccountID struct {
	_      struct{} `cbor:",toarray"`
	Name   string
	Domain string
}

func toWireAccount(a datamodel.AccountID) wireAccountID {
	return wireAccountID{Name: a.Name, Domain: string(a.Domain)}
}

func (w wireAccountID) accountID() datamodel.AccountID {
	return datamodel.AccountID{Name: w.Name, Domain: datamodel.DomainID(w.Domain)}
}

type wireSignature struct {
	_         struct{} `cbor:",toarray"`
	PublicKey []byte
	Value     []byte
}

func toWireSignature(s datamodel.Signature) wireSignature {
	return wireSignature{PublicKey: s.PublicKey, Value: s.Value}
}

func (w wireSignature) signature() datamodel.Signature {
	return datamodel.Signature{PublicKey: w.PublicKey, Value: w.Value}
}

type txEnvelope struct {
	_          struct{} `cbor:",toarray"`
	Version    uint8
	Payload    cbor.RawMessage
	Signatures []wireSignature
}

type txPayload struct {
	_            struct{} `cbor:",toarray"`
	Authority    wireAccountID
	Instructions []byte
	CreatedAtMS  uint64
	TTLMS        uint64
	Nonce        uint32
}

type queryEnvelope struct {
	_         struct{} `cbor:",toarray"`
	Version   uint8
	Payload   cbor.RawMessage
	Signature wireSignature
}

type queryPayload struct {
	_         struct{} `cbor:",toarray"`
	Authority wireAccountID
	Kind      string
	Asset     *wireAssetID
	Account   *wireAccountID
}

type wireAssetID struct {
	_          struct{} `cbor:",toarray"`
	Definition string
	Account    wireAccountID
}

// MarshalTransactionPayload encodes a payload into the exact byte form
// clients sign. Used by client helpers and tests.
func MarshalTransactionPayload(p datamodel.TransactionPayload) ([]byte, error) {
	return encMode.Marshal(txPayload{
		Authority:    toWireAccount(p.Authority),
		Instructions: p.Instructions,
		CreatedAtMS:  p.CreatedAtMS,
		TTLMS:        p.TTLMS,
		Nonce:        p.Nonce,
	})
}

// MarshalQueryPayload encodes a query payload into the signable byte form.
func MarshalQueryPayload(p datamodel.QueryPayload) ([]byte, error) {
	wp := queryPayload{
		Authority: toWireAccount(p.Authority),
		Kind:      string(p.Kind),
	}
	if p.Asset != nil {
		wp.Asset = &wireAssetID{
			Definition: p.Asset.Definition.String(),
			Account:    toWireAccount(p.Asset.Account),
		}
	}
	if p.Account != nil {
		wa := toWireAccount(*p.Account)
		wp.Account = &wa
	}
	return encMode.Marshal(wp)
}

// DecodeTransaction decodes a transaction envelope. The version is returned
// as decoded; checking it against the supported set is the version gate's
// job, not the codec's.
func DecodeTransaction(raw []byte) (*datamodel.Transaction, error) {
	var env txEnvelope
	if err := decMode.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode transaction envelope: %w", err)
	}
	return txFromEnvelope(env)
}

func txFromEnvelope(env txEnvelope) (*datamodel.Transaction, error) {
	var wp txPayload
	if err := decMode.Unmarshal(env.Payload, &wp); err != nil {
		return nil, fmt.Errorf("decode transaction payload: %w", err)
	}
	tx := &datamodel.Transaction{
		Version: env.Version,
		Payload: datamodel.TransactionPayload{
			Authority:    wp.Authority.accountID(),
			Instructions: wp.Instructions,
			CreatedAtMS:  wp.CreatedAtMS,
			TTLMS:        wp.TTLMS,
			Nonce:        wp.Nonce,
		},
		PayloadBytes: append([]byte(nil), env.Payload...),
	}
	for _, ws := range env.Signatures {
		tx.Signatures = append(tx.Signatures, ws.signature())
	}
	return tx, nil
}

// EncodeTransaction encodes a transaction envelope. When PayloadBytes is
// empty the payload struct is marshaled to produce it.
func EncodeTransaction(tx *datamodel.Transaction) ([]byte, error) {
	payload := tx.PayloadBytes
	if len(payload) == 0 {
		var err error
		payload, err = MarshalTransactionPayload(tx.Payload)
		if err != nil {
			return nil, err
		}
	}
	env := txEnvelope{Version: tx.Version, Payload: payload}
	for _, s := range tx.Signatures {
		env.Signatures = append(env.Signatures, toWireSignature(s))
	}
	return encMode.Marshal(env)
}

// DecodeQuery decodes a signed query envelope.
func DecodeQuery(raw []byte) (*datamodel.SignedQuery, error) {
	var env queryEnvelope
	if err := decMode.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode query envelope: %w", err)
	}
	var wp queryPayload
	if err := decMode.Unmarshal(env.Payload, &wp); err != nil {
		return nil, fmt.Errorf("decode query payload: %w", err)
	}
	q := &datamodel.SignedQuery{
		Version: env.Version,
		Payload: datamodel.QueryPayload{
			Authority: wp.Authority.accountID(),
			Kind:      datamodel.QueryKind(wp.Kind),
		},
		PayloadBytes: append([]byte(nil), env.Payload...),
		Signature:    env.Signature.signature(),
	}
	if wp.Asset != nil {
		def, err := datamodel.ParseAssetDefinitionID(wp.Asset.Definition)
		if err != nil {
			return nil, fmt.Errorf("decode query asset target: %w", err)
		}
		q.Payload.Asset = &datamodel.AssetID{
			Definition: def,
			Account:    wp.Asset.Account.accountID(),
		}
	}
	if wp.Account != nil {
		acct := wp.Account.accountID()
		q.Payload.Account = &acct
	}
	return q, nil
}

// EncodeQuery encodes a signed query envelope.
func EncodeQuery(q *datamodel.SignedQuery) ([]byte, error) {
	payload := q.PayloadBytes
	if len(payload) == 0 {
		var err error
		payload, err = MarshalQueryPayload(q.Payload)
		if err != nil {
			return nil, err
		}
	}
	env := queryEnvelope{
		Version:   q.Version,
		Payload:   payload,
		Signature: toWireSignature(q.Signature),
	}
	return encMode.Marshal(env)
}

// EncodeQueryResult encodes a query result body.
func EncodeQueryResult(r datamodel.QueryResult) ([]byte, error) {
	return encMode.Marshal(r)
}

// DecodeQueryResult decodes a query result body. Used by client helpers and
// tests.
func DecodeQueryResult(raw []byte) (datamodel.QueryResult, error) {
	var r datamodel.QueryResult
	if err := decMode.Unmarshal(raw, &r); err != nil {
		return datamodel.QueryResult{}, fmt.Errorf("decode query result: %w", err)
	}
	return r, nil
}

// DecodeTransactions decodes a transaction list. Used by client helpers and
// tests.
func DecodeTransactions(raw []byte) ([]datamodel.Transaction, error) {
	var envs []txEnvelope
	if err := decMode.Unmarshal(raw, &envs); err != nil {
		return nil, fmt.Errorf("decode transaction list: %w", err)
	}
	txs := make([]datamodel.Transaction, 0, len(envs))
	for i := range envs {
		tx, err := txFromEnvelope(envs[i])
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

// EncodeTransactions encodes a transaction list, as served by the pending
// transactions endpoint.
func EncodeTransactions(txs []datamodel.Transaction) ([]byte, error) {
	envs := make([]txEnvelope, 0, len(txs))
	for i := range txs {
		payload := txs[i].PayloadBytes
		if len(payload) == 0 {
			var err error
			payload, err = MarshalTransactionPayload(txs[i].Payload)
			if err != nil {
				return nil, err
			}
		}
		env := txEnvelope{Version: txs[i].Version, Payload: payload}
		for _, s := range txs[i].Signatures {
			env.Signatures = append(env.Signatures, toWireSignature(s))
		}
		envs = append(envs, env)
	}
	return encMode.Marshal(envs)
}
