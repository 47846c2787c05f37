// Package runtime wires the gateway's components together and owns their
// lifecycle.
package runtime

import (
	"context"
	"fmt"

	"github.com/veritas-ledger/gateway/internal/blocks"
	"github.com/veritas-ledger/gateway/internal/config"
	"github.com/veritas-ledger/gateway/internal/events"
	"github.com/veritas-ledger/gateway/internal/httpapi"
	"github.com/veritas-ledger/gateway/internal/ledger"
	"github.com/veritas-ledger/gateway/internal/logging"
	"github.com/veritas-ledger/gateway/internal/metrics"
	"github.com/veritas-ledger/gateway/internal/pipeline"
	"github.com/veritas-ledger/gateway/internal/queue"
	"github.com/veritas-ledger/gateway/internal/signature"
)

// Application owns the gateway's components.
type Application struct {
	cfg     *config.Config
	log     *logging.Logger
	broker  *events.Broker
	queue   *queue.Queue
	handler *httpapi.Handler
	server  *httpapi.Server
}

// NewApplication builds the full gateway from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	m := metrics.New()

	world := ledger.NewWorld()
	if cfg.Genesis != "" {
		world, err = ledger.LoadGenesis(cfg.Genesis)
		if err != nil {
			return nil, fmt.Errorf("load genesis %s: %w", cfg.Genesis, err)
		}
		log.WithField("path", cfg.Genesis).Info("loaded genesis world state")
	}

	verifier := &signature.Ed25519Verifier{Keys: world}
	judge := &pipeline.DomainScopeJudge{}
	pipe := pipeline.New(cfg.Protocol.SupportedVersions, verifier, judge, world, log, m)

	broker := events.NewBroker(cfg.Events.BufferSize)
	chain := blocks.NewStore(broker)

	q := queue.New(cfg.Queue.Capacity, cfg.Queue.TransactionTTL)
	if cfg.Queue.EvictionSchedule != "" {
		if err := q.StartEviction(cfg.Queue.EvictionSchedule); err != nil {
			return nil, fmt.Errorf("start queue eviction: %w", err)
		}
	}

	handler := httpapi.NewHandler(cfg, log, m, pipe, q, broker, chain)
	server := httpapi.NewServer(cfg.Server, httpapi.NewRouter(handler), log)

	return &Application{
		cfg:     cfg,
		log:     log,
		broker:  broker,
		queue:   q,
		handler: handler,
		server:  server,
	}, nil
}

// Logger exposes the application logger for the entry point.
func (a *Application) Logger() *logging.Logger {
	return a.log
}

// Start serves requests until Stop is called.
func (a *Application) Start() error {
	return a.server.Start()
}

// Stop drains the server and shuts down background workers.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.broker.Close()
	a.queue.Stop()
	a.handler.Close()
	return err
}
