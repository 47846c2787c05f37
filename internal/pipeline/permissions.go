package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/veritas-ledger/gateway/internal/datamodel"
)

// ErrPermissionDenied is returned by judges rejecting a query.
var ErrPermissionDenied = errors.New("permission denied")

// PermissionJudge decides whether an authenticated identity may run a query
// against its target scope.
type PermissionJudge interface {
	Allow(ctx context.Context, authority datamodel.AccountID, q datamodel.QueryPayload) error
}

// DomainScopeJudge grants queries whose target lives in the authority's own
// domain. The default policy for a peer that does not delegate permission
// evaluation to an external service.
type DomainScopeJudge struct{}

// Allow implements PermissionJudge.
func (DomainScopeJudge) Allow(_ context.Context, authority datamodel.AccountID, q datamodel.QueryPayload) error {
	var target datamodel.DomainID
	switch {
	case q.Asset != nil:
		target = q.Asset.Account.Domain
	case q.Account != nil:
		target = q.Account.Domain
	default:
		return fmt.Errorf("%w: query has no target", ErrPermissionDenied)
	}
	if target != authority.Domain {
		return fmt.Errorf("%w: %s may not query domain %s", ErrPermissionDenied, authority, target)
	}
	return nil
}

// AllowAllJudge grants every query. Useful for open read replicas.
type AllowAllJudge struct{}

// Allow implements PermissionJudge.
func (AllowAllJudge) Allow(context.Context, datamodel.AccountID, datamodel.QueryPayload) error {
	return nil
}
