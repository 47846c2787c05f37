// Package pipeline implements the ordered, short-circuiting validation
// applied to every transaction and query entering the gateway. Checks run
// in a fixed order and the first terminal outcome wins; later checks are
// never invoked, which both bounds wasted work and keeps NotFound hints
// honest about what was actually evaluated.
package pipeline

import (
	"context"
	"fmt"

	"github.com/veritas-ledger/gateway/internal/codec"
	"github.com/veritas-ledger/gateway/internal/datamodel"
	"github.com/veritas-ledger/gateway/internal/ledger"
	"github.com/veritas-ledger/gateway/internal/logging"
	"github.com/veritas-ledger/gateway/internal/metrics"
	"github.com/veritas-ledger/gateway/internal/signature"
)

// RequestKind selects the check sequence applied to a payload.
type RequestKind string

const (
	RequestTransaction RequestKind = "transaction"
	RequestQuery       RequestKind = "query"
)

// request is the mutable state threaded through one pipeline invocation.
// It is owned exclusively by that invocation and discarded afterwards.
type request struct {
	kind       RequestKind
	raw        []byte
	pagination datamodel.Pagination
	snapshot   ledger.Snapshot

	tx     *datamodel.Transaction
	query  *datamodel.SignedQuery
	result *datamodel.QueryResult
}

// check is one validation step. A nil return means "continue"; a non-nil
// return is terminal for the whole invocation.
type check interface {
	name() string
	apply(ctx context.Context, req *request) *Outcome
}

// Pipeline validates decoded requests against the version set, signature
// verifier, permission judge and ledger reader it was built with.
type Pipeline struct {
	supported map[uint8]bool
	verifier  signature.Verifier
	judge     PermissionJudge
	reader    ledger.Reader
	log       *logging.Logger
	metrics   *metrics.Metrics

	txChecks    []check
	queryChecks []check
}

// New builds a pipeline. The metrics handle may be nil.
func New(supportedVersions []uint8, verifier signature.Verifier, judge PermissionJudge, reader ledger.Reader, log *logging.Logger, m *metrics.Metrics) *Pipeline {
	p := &Pipeline{
		supported: make(map[uint8]bool, len(supportedVersions)),
		verifier:  verifier,
		judge:     judge,
		reader:    reader,
		log:       log,
		metrics:   m,
	}
	for _, v := range supportedVersions {
		p.supported[v] = true
	}
	p.txChecks = []check{
		decodeCheck{p},
		versionCheck{p},
		signatureCheck{p},
	}
	p.queryChecks = []check{
		decodeCheck{p},
		versionCheck{p},
		signatureCheck{p},
		permissionCheck{p},
		findCheck{p},
	}
	return p
}

// ProcessTransaction validates a transaction envelope. Success means the
// transaction passed decode and signature checks and may be queued; it says
// nothing about consensus finality.
func (p *Pipeline) ProcessTransaction(ctx context.Context, raw []byte) Outcome {
	req := &request{kind: RequestTransaction, raw: raw}
	return p.run(ctx, req, p.txChecks)
}

// ProcessQuery validates and executes a query envelope. All ledger lookups
// of one invocation observe a single snapshot.
func (p *Pipeline) ProcessQuery(ctx context.Context, raw []byte, pagination datamodel.Pagination) Outcome {
	req := &request{
		kind:       RequestQuery,
		raw:        raw,
		pagination: pagination,
		snapshot:   p.reader.Snapshot(),
	}
	return p.run(ctx, req, p.queryChecks)
}

func (p *Pipeline) run(ctx context.Context, req *request, checks []check) Outcome {
	for _, c := range checks {
		if out := c.apply(ctx, req); out != nil {
			p.observe(req, *out, c.name())
			return *out
		}
	}

	out := Outcome{Kind: OutcomeSuccess}
	switch req.kind {
	case RequestQuery:
		out.Result = req.result
	case RequestTransaction:
		out.Transaction = req.tx
	}
	p.observe(req, out, "")
	return out
}

func (p *Pipeline) observe(req *request, out Outcome, failedCheck string) {
	if p.metrics != nil {
		p.metrics.RecordOutcome(string(req.kind), string(out.Kind))
	}
	if out.Kind == OutcomeSuccess {
		return
	}
	p.log.WithError(out.Err).WithFields(map[string]interface{}{
		"kind":    string(req.kind),
		"check":   failedCheck,
		"outcome": string(out.Kind),
	}).Debug("pipeline rejected request")
}

// decodeCheck attempts the structural decode of the wire envelope.
type decodeCheck struct{ p *Pipeline }

func (decodeCheck) name() string { return "decode" }

func (c decodeCheck) apply(_ context.Context, req *request) *Outcome {
	switch req.kind {
	case RequestTransaction:
		tx, err := codec.DecodeTransaction(req.raw)
		if err != nil {
			out := Malformed(err)
			return &out
		}
		req.tx = tx
	case RequestQuery:
		q, err := codec.DecodeQuery(req.raw)
		if err != nil {
			out := Malformed(err)
			return &out
		}
		if err := q.Payload.Validate(); err != nil {
			out := Malformed(err)
			return &out
		}
		req.query = q
	}
	return nil
}

// versionCheck rejects envelopes whose protocol version is not supported.
type versionCheck struct{ p *Pipeline }

func (versionCheck) name() string { return "version" }

func (c versionCheck) apply(_ context.Context, req *request) *Outcome {
	version := req.version()
	if !c.p.supported[version] {
		out := Malformed(fmt.Errorf("unsupported protocol version %d", version))
		return &out
	}
	return nil
}

// signatureCheck verifies the payload signatures against the claimed
// authority.
type signatureCheck struct{ p *Pipeline }

func (signatureCheck) name() string { return "signature" }

func (c signatureCheck) apply(ctx context.Context, req *request) *Outcome {
	var err error
	switch req.kind {
	case RequestTransaction:
		err = c.p.verifier.Verify(ctx, req.tx.Payload.Authority, req.tx.PayloadBytes, req.tx.Signatures)
	case RequestQuery:
		err = c.p.verifier.Verify(ctx, req.query.Payload.Authority, req.query.PayloadBytes,
			[]datamodel.Signature{req.query.Signature})
	}
	if err != nil {
		out := Unauthenticated(err)
		return &out
	}
	return nil
}

// permissionCheck asks the judge whether the authenticated identity may run
// the query. Denial surfaces with the same status as absence so callers
// cannot probe for existence.
type permissionCheck struct{ p *Pipeline }

func (permissionCheck) name() string { return "permission" }

func (c permissionCheck) apply(ctx context.Context, req *request) *Outcome {
	if err := c.p.judge.Allow(ctx, req.query.Payload.Authority, req.query.Payload); err != nil {
		out := Unauthorized(err)
		return &out
	}
	return nil
}

// findCheck walks the existence chain for the query target and, when every
// link is present, executes the query and windows the result.
type findCheck struct{ p *Pipeline }

func (findCheck) name() string { return "find" }

func (c findCheck) apply(_ context.Context, req *request) *Outcome {
	links := existenceChain(req.query.Payload)
	missing, hint, ok := walkChain(req.snapshot, links)
	if !ok {
		out := NotFound(fmt.Errorf("%s not found", missing), hint)
		return &out
	}

	objects, err := req.snapshot.Execute(req.query.Payload)
	if err != nil {
		out := NotFound(err, "")
		return &out
	}
	result := datamodel.NewQueryResult(objects).Window(req.pagination)
	req.result = &result
	return nil
}

// version returns the decoded envelope version for either request kind.
func (req *request) version() uint8 {
	if req.tx != nil {
		return req.tx.Version
	}
	if req.query != nil {
		return req.query.Version
	}
	return 0
}
