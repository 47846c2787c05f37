package datamodel

import "sort"

// ObjectKind tags the variant held by a result Object.
type ObjectKind string

const (
	ObjectDomain          ObjectKind = "domain"
	ObjectAccount         ObjectKind = "account"
	ObjectAssetDefinition ObjectKind = "asset_definition"
	ObjectAsset           ObjectKind = "asset"
)

// Object is one matched ledger object in a query result. Exactly one of the
// variant fields is set, per Kind.
type Object struct {
	Kind       ObjectKind       `json:"kind"`
	Domain     *Domain          `json:"domain,omitempty"`
	Account    *Account         `json:"account,omitempty"`
	Definition *AssetDefinition `json:"definition,omitempty"`
	Asset      *Asset           `json:"asset,omitempty"`
}

// DomainObject wraps a Domain as a result object.
func DomainObject(d Domain) Object { return Object{Kind: ObjectDomain, Domain: &d} }

// AccountObject wraps an Account as a result object.
func AccountObject(a Account) Object { return Object{Kind: ObjectAccount, Account: &a} }

// DefinitionObject wraps an AssetDefinition as a result object.
func DefinitionObject(d AssetDefinition) Object {
	return Object{Kind: ObjectAssetDefinition, Definition: &d}
}

// AssetObject wraps an Asset as a result object.
func AssetObject(a Asset) Object { return Object{Kind: ObjectAsset, Asset: &a} }

// Identifier returns the canonical identifier of the wrapped object. It
// defines the total order of query results.
func (o Object) Identifier() string {
	switch o.Kind {
	case ObjectDomain:
		return o.Domain.ID.String()
	case ObjectAccount:
		return o.Account.ID.String()
	case ObjectAssetDefinition:
		return o.Definition.ID.String()
	case ObjectAsset:
		return o.Asset.ID.String()
	}
	return ""
}

// QueryResult is the ordered sequence of objects matched by a query.
type QueryResult struct {
	Objects []Object `json:"objects"`
}

// NewQueryResult sorts objects into identifier order and wraps them.
func NewQueryResult(objects []Object) QueryResult {
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Identifier() < objects[j].Identifier()
	})
	return QueryResult{Objects: objects}
}

// Window applies pagination to the result, clamped to the available range.
func (r QueryResult) Window(p Pagination) QueryResult {
	return QueryResult{Objects: Paginate(r.Objects, p)}
}
