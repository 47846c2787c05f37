// Package ledger defines read access to the peer's committed world state.
// The gateway never mutates this state; it resolves object existence and
// executes queries against a consistent snapshot per request.
package ledger

import "github.com/veritas-ledger/gateway/internal/datamodel"

// Snapshot is a consistent, read-only view of the world state. A single
// pipeline invocation performs all of its lookups against one snapshot so a
// concurrent commit cannot make an existence chain contradict itself.
type Snapshot interface {
	HasDomain(id datamodel.DomainID) bool
	HasAccount(id datamodel.AccountID) bool
	HasAssetDefinition(id datamodel.AssetDefinitionID) bool
	HasAsset(id datamodel.AssetID) bool

	// Execute runs a validated query and returns the matched objects in no
	// particular order. Callers only invoke it after the query's existence
	// chain has fully resolved.
	Execute(q datamodel.QueryPayload) ([]datamodel.Object, error)
}

// Reader produces snapshots of the current committed state.
type Reader interface {
	Snapshot() Snapshot
}
