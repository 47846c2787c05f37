package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/veritas-ledger/gateway/internal/errors"
	"github.com/veritas-ledger/gateway/internal/logging"
)

// getConfiguration returns the running configuration as JSON. With a
// ?field=<path> parameter it returns just that field, addressed with a
// dotted path such as "server.address" or "protocol.supported_versions.0".
func (h *Handler) getConfiguration(w http.ResponseWriter, r *http.Request) {
	view := map[string]interface{}{
		"server":     h.cfg.Server,
		"logging":    h.cfg.Logging,
		"protocol":   h.cfg.Protocol,
		"queue":      h.cfg.Queue,
		"events":     h.cfg.Events,
		"rate_limit": h.cfg.RateLimit,
		"cors":       h.cfg.CORS,
	}
	raw, err := json.Marshal(view)
	if err != nil {
		writeServiceError(w, errors.Internal("failed to encode configuration", err))
		return
	}

	field := r.URL.Query().Get("field")
	if field == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
		return
	}

	result := gjson.GetBytes(raw, field)
	if !result.Exists() {
		writeServiceError(w, errors.NotFound("unknown configuration field: "+field))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"field": field,
		"value": json.RawMessage(result.Raw),
	})
}

type configurationUpdate struct {
	LogLevel string `json:"log_level"`
}

// postConfiguration applies runtime-adjustable settings. Only the log
// level can change while the gateway is running.
func (h *Handler) postConfiguration(w http.ResponseWriter, r *http.Request) {
	var update configurationUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeServiceError(w, errors.BadRequest("invalid configuration update"))
		return
	}
	if update.LogLevel == "" {
		writeServiceError(w, errors.BadRequest("log_level is required"))
		return
	}

	if err := logging.SetGlobalLevel(update.LogLevel); err != nil {
		writeServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	h.log.WithContext(r.Context()).WithField("log_level", update.LogLevel).Info("log level updated")
	writeJSON(w, http.StatusOK, map[string]string{"log_level": update.LogLevel})
}
