// Package respond maps pipeline outcomes to HTTP status codes and
// diagnostic bodies. The mapping is a pure function so the full status
// table is testable without a transport.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/veritas-ledger/gateway/internal/pipeline"
)

// Body is the JSON diagnostic attached to failure responses.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Map translates an outcome into a status code and an optional diagnostic
// body. Success yields a nil body; the caller writes the result payload.
//
// Unauthorized deliberately produces the same status and body shape as
// NotFound, without the hint, so a caller lacking permission cannot learn
// whether the target exists.
func Map(o pipeline.Outcome) (int, *Body) {
	switch o.Kind {
	case pipeline.OutcomeSuccess:
		return http.StatusOK, nil

	case pipeline.OutcomeMalformed:
		return http.StatusBadRequest, &Body{
			Code:    "MALFORMED",
			Message: errMessage(o, "malformed payload"),
		}

	case pipeline.OutcomeUnauthenticated:
		return http.StatusUnauthorized, &Body{
			Code:    "UNAUTHENTICATED",
			Message: errMessage(o, "signature verification failed"),
		}

	case pipeline.OutcomeUnauthorized:
		return http.StatusNotFound, &Body{
			Code:    "NOT_FOUND",
			Message: "not found",
		}

	case pipeline.OutcomeNotFound:
		return http.StatusNotFound, &Body{
			Code:    "NOT_FOUND",
			Message: "not found",
			Hint:    o.Hint,
		}
	}

	return http.StatusInternalServerError, &Body{
		Code:    "INTERNAL",
		Message: "unknown pipeline outcome",
	}
}

func errMessage(o pipeline.Outcome, fallback string) string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return fallback
}

// WriteError writes a failure outcome to the response. It must only be
// called for non-success outcomes.
func WriteError(w http.ResponseWriter, o pipeline.Outcome) {
	status, body := Map(o)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}
