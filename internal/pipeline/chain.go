package pipeline

import (
	"github.com/veritas-ledger/gateway/internal/datamodel"
	"github.com/veritas-ledger/gateway/internal/ledger"
)

// chainLink is one ancestor-existence check. The hint names the link in
// NotFound diagnostics; the final target link carries an empty hint.
type chainLink struct {
	name    string
	hint    string
	present func(ledger.Snapshot) bool
}

// existenceChain returns the ordered ancestor checks for the query's target
// kind: domain→account→definition→asset for asset targets,
// domain→account for account targets.
func existenceChain(q datamodel.QueryPayload) []chainLink {
	switch q.Kind {
	case datamodel.QueryFindAsset:
		asset := *q.Asset
		return []chainLink{
			{
				name:    "domain",
				hint:    "domain",
				present: func(s ledger.Snapshot) bool { return s.HasDomain(asset.Account.Domain) },
			},
			{
				name:    "account",
				hint:    "account",
				present: func(s ledger.Snapshot) bool { return s.HasAccount(asset.Account) },
			},
			{
				name:    "definition",
				hint:    "definition",
				present: func(s ledger.Snapshot) bool { return s.HasAssetDefinition(asset.Definition) },
			},
			{
				name:    "asset",
				present: func(s ledger.Snapshot) bool { return s.HasAsset(asset) },
			},
		}

	case datamodel.QueryFindAccount, datamodel.QueryFindAccountAssets:
		account := *q.Account
		return []chainLink{
			{
				name:    "domain",
				hint:    "domain",
				present: func(s ledger.Snapshot) bool { return s.HasDomain(account.Domain) },
			},
			{
				name:    "account",
				present: func(s ledger.Snapshot) bool { return s.HasAccount(account) },
			},
		}
	}
	return nil
}

// walkChain evaluates links left to right, stopping at the first absent one.
// Links past the failure are never evaluated.
func walkChain(snap ledger.Snapshot, links []chainLink) (missing string, hint string, ok bool) {
	for _, link := range links {
		if !link.present(snap) {
			return link.name, link.hint, false
		}
	}
	return "", "", true
}
