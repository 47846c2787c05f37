package ledger

import (
	"encoding/hex"
	"fmt"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/veritas-ledger/gateway/internal/datamodel"
)

// World is an in-memory world state replica. It backs the gateway when it
// runs against a local snapshot (seeded from a genesis file) and serves as
// the deterministic fixture for pipeline tests.
type World struct {
	mu          sync.RWMutex
	domains     map[datamodel.DomainID]datamodel.Domain
	accounts    map[string]datamodel.Account
	definitions map[string]datamodel.AssetDefinition
	assets      map[string]datamodel.Asset
}

// NewWorld returns an empty world state.
func NewWorld() *World {
	return &World{
		domains:     make(map[datamodel.DomainID]datamodel.Domain),
		accounts:    make(map[string]datamodel.Account),
		definitions: make(map[string]datamodel.AssetDefinition),
		assets:      make(map[string]datamodel.Asset),
	}
}

// AddDomain registers a domain.
func (w *World) AddDomain(d datamodel.Domain) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.domains[d.ID] = d
}

// AddAccount registers an account.
func (w *World) AddAccount(a datamodel.Account) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accounts[a.ID.String()] = a
}

// AddAssetDefinition registers an asset definition.
func (w *World) AddAssetDefinition(d datamodel.AssetDefinition) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.definitions[d.ID.String()] = d
}

// AddAsset registers an asset.
func (w *World) AddAsset(a datamodel.Asset) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assets[a.ID.String()] = a
}

// PublicKeys implements signature.KeyResolver against the registered
// accounts.
func (w *World) PublicKeys(authority datamodel.AccountID) [][]byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	acct, ok := w.accounts[authority.String()]
	if !ok {
		return nil
	}
	return acct.PublicKeys
}

// Snapshot returns a consistent view of the current state. The maps are
// cloned under the read lock; later mutations are invisible to the view.
func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return &worldView{
		domains:     maps.Clone(w.domains),
		accounts:    maps.Clone(w.accounts),
		definitions: maps.Clone(w.definitions),
		assets:      maps.Clone(w.assets),
	}
}

type worldView struct {
	domains     map[datamodel.DomainID]datamodel.Domain
	accounts    map[string]datamodel.Account
	definitions map[string]datamodel.AssetDefinition
	assets      map[string]datamodel.Asset
}

func (v *worldView) HasDomain(id datamodel.DomainID) bool {
	_, ok := v.domains[id]
	return ok
}

func (v *worldView) HasAccount(id datamodel.AccountID) bool {
	_, ok := v.accounts[id.String()]
	return ok
}

func (v *worldView) HasAssetDefinition(id datamodel.AssetDefinitionID) bool {
	_, ok := v.definitions[id.String()]
	return ok
}

func (v *worldView) HasAsset(id datamodel.AssetID) bool {
	_, ok := v.assets[id.String()]
	return ok
}

func (v *worldView) Execute(q datamodel.QueryPayload) ([]datamodel.Object, error) {
	switch q.Kind {
	case datamodel.QueryFindAsset:
		asset, ok := v.assets[q.Asset.String()]
		if !ok {
			return nil, fmt.Errorf("asset %s not found", q.Asset)
		}
		return []datamodel.Object{datamodel.AssetObject(asset)}, nil

	case datamodel.QueryFindAccount:
		acct, ok := v.accounts[q.Account.String()]
		if !ok {
			return nil, fmt.Errorf("account %s not found", q.Account)
		}
		return []datamodel.Object{datamodel.AccountObject(acct)}, nil

	case datamodel.QueryFindAccountAssets:
		var objects []datamodel.Object
		for _, asset := range v.assets {
			if asset.ID.Account == *q.Account {
				objects = append(objects, datamodel.AssetObject(asset))
			}
		}
		return objects, nil
	}
	return nil, fmt.Errorf("unknown query kind %q", q.Kind)
}

// genesisFile is the YAML shape of a world-state seed file.
type genesisFile struct {
	Domains []struct {
		ID string `yaml:"id"`
	} `yaml:"domains"`
	Accounts []struct {
		ID         string   `yaml:"id"`
		PublicKeys []string `yaml:"public_keys"`
	} `yaml:"accounts"`
	AssetDefinitions []struct {
		ID        string `yaml:"id"`
		ValueType string `yaml:"value_type"`
	} `yaml:"asset_definitions"`
	Assets []struct {
		Definition string `yaml:"definition"`
		Account    string `yaml:"account"`
		Quantity   uint64 `yaml:"quantity"`
	} `yaml:"assets"`
}

// LoadGenesis seeds a world state from a YAML file.
func LoadGenesis(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", path, err)
	}
	var gf genesisFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", path, err)
	}

	w := NewWorld()
	for _, d := range gf.Domains {
		if d.ID == "" {
			return nil, fmt.Errorf("genesis domain with empty id")
		}
		w.AddDomain(datamodel.Domain{ID: datamodel.DomainID(d.ID)})
	}
	for _, a := range gf.Accounts {
		id, err := datamodel.ParseAccountID(a.ID)
		if err != nil {
			return nil, fmt.Errorf("genesis account: %w", err)
		}
		acct := datamodel.Account{ID: id}
		for _, k := range a.PublicKeys {
			raw, err := hex.DecodeString(k)
			if err != nil {
				return nil, fmt.Errorf("genesis account %s: bad public key: %w", a.ID, err)
			}
			acct.PublicKeys = append(acct.PublicKeys, raw)
		}
		w.AddAccount(acct)
	}
	for _, d := range gf.AssetDefinitions {
		id, err := datamodel.ParseAssetDefinitionID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("genesis asset definition: %w", err)
		}
		w.AddAssetDefinition(datamodel.AssetDefinition{ID: id, ValueType: d.ValueType})
	}
	for _, a := range gf.Assets {
		def, err := datamodel.ParseAssetDefinitionID(a.Definition)
		if err != nil {
			return nil, fmt.Errorf("genesis asset: %w", err)
		}
		acct, err := datamodel.ParseAccountID(a.Account)
		if err != nil {
			return nil, fmt.Errorf("genesis asset: %w", err)
		}
		w.AddAsset(datamodel.Asset{
			ID:       datamodel.AssetID{Definition: def, Account: acct},
			Quantity: a.Quantity,
		})
	}
	return w, nil
}
