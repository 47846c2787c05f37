package pipeline

import "github.com/veritas-ledger/gateway/internal/datamodel"

// OutcomeKind tags the terminal result of one pipeline invocation.
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeMalformed       OutcomeKind = "malformed"
	OutcomeUnauthenticated OutcomeKind = "unauthenticated"
	OutcomeUnauthorized    OutcomeKind = "unauthorized"
	OutcomeNotFound        OutcomeKind = "not_found"
)

// Outcome is the single tagged result produced per request. Exactly one is
// emitted per invocation; it is the sole input to the response mapper.
type Outcome struct {
	Kind OutcomeKind
	// Err is the diagnostic cause for failure outcomes.
	Err error
	// Hint names the first missing ancestor for NotFound outcomes. Empty
	// when only the query's final target is absent.
	Hint string
	// Result carries the query result for successful query invocations.
	// It is nil for transactions, whose success means "queued", not
	// "committed".
	Result *datamodel.QueryResult
	// Transaction carries the decoded transaction for successful
	// transaction invocations so the caller can hand it to the queue.
	Transaction *datamodel.Transaction
}

// Malformed builds a structural/version failure outcome.
func Malformed(err error) Outcome {
	return Outcome{Kind: OutcomeMalformed, Err: err}
}

// Unauthenticated builds a signature failure outcome.
func Unauthenticated(err error) Outcome {
	return Outcome{Kind: OutcomeUnauthenticated, Err: err}
}

// Unauthorized builds a permission failure outcome.
func Unauthorized(err error) Outcome {
	return Outcome{Kind: OutcomeUnauthorized, Err: err}
}

// NotFound builds an absence outcome with the first-missing-ancestor hint.
func NotFound(err error, hint string) Outcome {
	return Outcome{Kind: OutcomeNotFound, Err: err, Hint: hint}
}
