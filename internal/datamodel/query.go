package datamodel

import "fmt"

// QueryKind identifies the query operation requested by a client.
type QueryKind string

const (
	// QueryFindAsset looks up a single asset by its full ID.
	QueryFindAsset QueryKind = "FindAsset"
	// QueryFindAccount looks up a single account by its ID.
	QueryFindAccount QueryKind = "FindAccount"
	// QueryFindAccountAssets lists all assets held by an account.
	QueryFindAccountAssets QueryKind = "FindAccountAssets"
)

// QueryPayload is the signed portion of a query request. Exactly one target
// field matching the kind must be set.
type QueryPayload struct {
	Authority AccountID  `json:"authority"`
	Kind      QueryKind  `json:"kind"`
	Asset     *AssetID   `json:"asset,omitempty"`
	Account   *AccountID `json:"account,omitempty"`
}

// Validate checks that the kind is known and the matching target is present.
func (q *QueryPayload) Validate() error {
	if q.Authority.IsZero() {
		return fmt.Errorf("query authority is required")
	}
	switch q.Kind {
	case QueryFindAsset:
		if q.Asset == nil {
			return fmt.Errorf("%s requires an asset target", q.Kind)
		}
	case QueryFindAccount, QueryFindAccountAssets:
		if q.Account == nil {
			return fmt.Errorf("%s requires an account target", q.Kind)
		}
	default:
		return fmt.Errorf("unknown query kind %q", q.Kind)
	}
	return nil
}

// SignedQuery is a decoded client query. As with transactions, PayloadBytes
// holds the exact wire encoding covered by the signature.
type SignedQuery struct {
	Version      uint8
	Payload      QueryPayload
	PayloadBytes []byte
	Signature    Signature
}
