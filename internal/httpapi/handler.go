// Package httpapi exposes the gateway's client-facing endpoints: binary
// transaction submission and query execution, the websocket event and block
// stream channels, and the thin operational endpoints (health, status,
// configuration, pending transactions, metrics).
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/veritas-ledger/gateway/internal/blocks"
	"github.com/veritas-ledger/gateway/internal/codec"
	"github.com/veritas-ledger/gateway/internal/config"
	"github.com/veritas-ledger/gateway/internal/datamodel"
	"github.com/veritas-ledger/gateway/internal/errors"
	"github.com/veritas-ledger/gateway/internal/events"
	"github.com/veritas-ledger/gateway/internal/logging"
	"github.com/veritas-ledger/gateway/internal/metrics"
	"github.com/veritas-ledger/gateway/internal/middleware"
	"github.com/veritas-ledger/gateway/internal/pipeline"
	"github.com/veritas-ledger/gateway/internal/queue"
	"github.com/veritas-ledger/gateway/internal/respond"
)

// Handler bundles the gateway's HTTP endpoints.
type Handler struct {
	cfg       *config.Config
	log       *logging.Logger
	metrics   *metrics.Metrics
	pipe      *pipeline.Pipeline
	queue     *queue.Queue
	broker    *events.Broker
	store     *blocks.Store
	limiter   *middleware.RateLimiter
	startedAt time.Time
}

// NewHandler constructs the endpoint handler.
func NewHandler(cfg *config.Config, log *logging.Logger, m *metrics.Metrics, pipe *pipeline.Pipeline, q *queue.Queue, broker *events.Broker, store *blocks.Store) *Handler {
	return &Handler{
		cfg:       cfg,
		log:       log,
		metrics:   m,
		pipe:      pipe,
		queue:     q,
		broker:    broker,
		store:     store,
		startedAt: time.Now(),
	}
}

// Close stops background work owned by the handler's middleware.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.Stop()
	}
}

// NewRouter assembles the routes and middleware chain.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware("gateway", h.metrics))

	r.HandleFunc("/transaction", h.submitTransaction).Methods(http.MethodPost)
	r.HandleFunc("/query", h.executeQuery).Methods(http.MethodPost)
	r.HandleFunc("/events", h.subscribeEvents).Methods(http.MethodGet)
	r.HandleFunc("/block_stream", h.streamBlocks).Methods(http.MethodGet)
	r.HandleFunc("/pending_transactions", h.pendingTransactions).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/configuration", h.getConfiguration).Methods(http.MethodGet)

	admin := middleware.NewAdminAuthMiddleware(h.cfg.Admin.JWTSecret, h.log)
	r.Handle("/configuration", admin.Handler(http.HandlerFunc(h.postConfiguration))).Methods(http.MethodPost)

	r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	var handler http.Handler = r
	if h.cfg.RateLimit.Enabled {
		h.limiter = middleware.NewRateLimiter(h.cfg.RateLimit.RequestsPerSecond, h.cfg.RateLimit.Burst, h.log)
		handler = h.limiter.Handler(handler)
	}
	handler = middleware.NewCORSMiddleware(h.cfg.CORS.AllowedOrigins).Handler(handler)
	handler = middleware.NewTracingMiddleware(h.log).Handler(handler)
	return handler
}

// submitTransaction accepts a binary transaction envelope, validates it
// through the pipeline and queues it for consensus. A 200 means queued,
// not committed.
func (h *Handler) submitTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.cfg.Server.MaxContentLen)
	if err != nil {
		writeServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	out := h.pipe.ProcessTransaction(r.Context(), body)
	if out.Kind != pipeline.OutcomeSuccess {
		respond.WriteError(w, out)
		return
	}

	tx := out.Transaction
	if err := h.queue.Push(*tx); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("failed to queue transaction")
		switch err {
		case queue.ErrDuplicate:
			writeServiceError(w, errors.BadRequest("transaction already queued"))
		default:
			writeServiceError(w, errors.QueueFull(err))
		}
		return
	}
	h.metrics.SetQueueDepth(h.queue.Len())

	h.broker.Publish(events.Event{
		Kind:      events.KindTransactionQueued,
		Origin:    tx.Payload.Authority.String(),
		Domain:    string(tx.Payload.Authority.Domain),
		Hash:      tx.HashHex(),
		Timestamp: time.Now(),
	})

	writeJSON(w, http.StatusOK, map[string]string{"hash": tx.HashHex()})
}

// executeQuery accepts a binary signed query envelope, validates and
// executes it, and returns the encoded result window.
func (h *Handler) executeQuery(w http.ResponseWriter, r *http.Request) {
	pg, err := datamodel.ParsePagination(r.URL.Query())
	if err != nil {
		writeServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	body, err := readBody(w, r, h.cfg.Server.MaxContentLen)
	if err != nil {
		writeServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	out := h.pipe.ProcessQuery(r.Context(), body, pg)
	if out.Kind != pipeline.OutcomeSuccess {
		respond.WriteError(w, out)
		return
	}

	data, err := codec.EncodeQueryResult(*out.Result)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("failed to encode query result")
		writeServiceError(w, errors.Internal("failed to encode result", err))
		return
	}
	w.Header().Set("Content-Type", codec.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// pendingTransactions lists queued transactions, windowed by pagination.
func (h *Handler) pendingTransactions(w http.ResponseWriter, r *http.Request) {
	pg, err := datamodel.ParsePagination(r.URL.Query())
	if err != nil {
		writeServiceError(w, errors.BadRequest(err.Error()))
		return
	}

	data, err := codec.EncodeTransactions(h.queue.Pending(pg))
	if err != nil {
		writeServiceError(w, errors.Internal("failed to encode pending transactions", err))
		return
	}
	w.Header().Set("Content-Type", codec.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_ms":            time.Since(h.startedAt).Milliseconds(),
		"pending_transactions": h.queue.Len(),
		"active_subscriptions": h.broker.SubscriberCount(),
		"log_level":            logging.GlobalLevel(),
	})
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, se *errors.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus)
	json.NewEncoder(w).Encode(se)
}
