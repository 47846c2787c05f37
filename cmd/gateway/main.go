// Command gateway runs the ledger peer's client-facing gateway: request
// validation for transactions and queries, plus the event subscription
// channel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/veritas-ledger/gateway/internal/config"
	"github.com/veritas-ledger/gateway/internal/runtime"
)

func main() {
	// Optional; deployments set real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	app, err := runtime.NewApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize gateway: %v\n", err)
		os.Exit(1)
	}
	log := app.Logger()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
		return
	}

	if err := app.Stop(context.Background()); err != nil {
		log.WithError(err).Error("shutdown incomplete")
		os.Exit(1)
	}
	log.Info("gateway stopped")
}
