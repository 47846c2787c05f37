// Package datamodel defines the ledger object identifiers and the request
// and result types exchanged through the gateway. Identifiers have a
// canonical string form which also defines the total order used when
// windowing query results.
package datamodel

import (
	"fmt"
	"strings"
)

// DomainID names a ledger domain.
type DomainID string

func (d DomainID) String() string { return string(d) }

// AccountID names an account within a domain. Canonical form "name@domain".
type AccountID struct {
	Name   string   `json:"name" yaml:"name"`
	Domain DomainID `json:"domain" yaml:"domain"`
}

// NewAccountID builds an AccountID from its parts.
func NewAccountID(name string, domain DomainID) AccountID {
	return AccountID{Name: name, Domain: domain}
}

// ParseAccountID parses the canonical "name@domain" form.
func ParseAccountID(s string) (AccountID, error) {
	name, domain, ok := strings.Cut(s, "@")
	if !ok || name == "" || domain == "" {
		return AccountID{}, fmt.Errorf("invalid account id %q, want name@domain", s)
	}
	return AccountID{Name: name, Domain: DomainID(domain)}, nil
}

func (a AccountID) String() string { return a.Name + "@" + string(a.Domain) }

// IsZero reports whether the ID is unset.
func (a AccountID) IsZero() bool { return a.Name == "" && a.Domain == "" }

// AssetDefinitionID names an asset definition within a domain. Canonical
// form "name#domain".
type AssetDefinitionID struct {
	Name   string   `json:"name" yaml:"name"`
	Domain DomainID `json:"domain" yaml:"domain"`
}

// ParseAssetDefinitionID parses the canonical "name#domain" form.
func ParseAssetDefinitionID(s string) (AssetDefinitionID, error) {
	name, domain, ok := strings.Cut(s, "#")
	if !ok || name == "" || domain == "" {
		return AssetDefinitionID{}, fmt.Errorf("invalid asset definition id %q, want name#domain", s)
	}
	return AssetDefinitionID{Name: name, Domain: DomainID(domain)}, nil
}

func (d AssetDefinitionID) String() string { return d.Name + "#" + string(d.Domain) }

// AssetID names a concrete asset: an instance of a definition held by an
// account. Canonical form "name#domain@account@accountdomain".
type AssetID struct {
	Definition AssetDefinitionID `json:"definition" yaml:"definition"`
	Account    AccountID         `json:"account" yaml:"account"`
}

func (a AssetID) String() string { return a.Definition.String() + "@" + a.Account.String() }

// Domain is a registered ledger domain.
type Domain struct {
	ID DomainID `json:"id" yaml:"id"`
}

// Account is a registered ledger account with its signatory public keys.
type Account struct {
	ID         AccountID `json:"id" yaml:"id"`
	PublicKeys [][]byte  `json:"public_keys" yaml:"public_keys"`
}

// AssetDefinition describes an asset type registered in a domain.
type AssetDefinition struct {
	ID        AssetDefinitionID `json:"id" yaml:"id"`
	ValueType string            `json:"value_type" yaml:"value_type"`
}

// Asset is a quantity of a defined asset held by an account.
type Asset struct {
	ID       AssetID `json:"id" yaml:"id"`
	Quantity uint64  `json:"quantity" yaml:"quantity"`
}
