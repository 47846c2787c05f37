package httpapi

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/veritas-ledger/gateway/internal/subscription"
)

// subscribeEvents upgrades the connection and runs a subscription session
// until the client disconnects or violates the protocol.
func (h *Handler) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()

	sess := subscription.NewSession(subscription.NewWSConn(ws), h.broker, h.cfg.Events.AckTimeout, h.log, h.metrics)
	if err := sess.Run(r.Context()); err != nil && !stderrors.Is(err, context.Canceled) {
		h.log.WithContext(r.Context()).WithError(err).WithField("session_id", sess.ID().String()).Debug("subscription session ended")
	}
}

// streamBlocks upgrades the connection and streams committed blocks from the
// height the client requests, one block in flight at a time.
func (h *Handler) streamBlocks(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.metrics.SessionOpened()
	defer h.metrics.SessionClosed()

	sess := subscription.NewBlockSession(subscription.NewWSConn(ws), h.store, h.cfg.Events.AckTimeout, h.log, h.metrics)
	if err := sess.Run(r.Context()); err != nil && !stderrors.Is(err, context.Canceled) {
		h.log.WithContext(r.Context()).WithError(err).WithField("session_id", sess.ID().String()).Debug("block stream session ended")
	}
}

func (h *Handler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
