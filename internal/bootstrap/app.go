package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/valkey-io/valkey-go"
	"golang.org/x/sync/errgroup"

	"github.com/yanqian/redisolar/internal/infra/config"
	"github.com/yanqian/redisolar/internal/infra/ingest"
)

// App encapsulates the HTTP server and ingestion lifecycle.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *http.Server
	consumer *ingest.Consumer
	client   valkey.Client
}

// NewApp is used by Wire to build the runnable app. consumer is nil when
// Kafka ingestion is disabled.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, consumer *ingest.Consumer, client valkey.Client) *App {
	return &App{
		cfg:      cfg,
		logger:   logger.With("component", "bootstrap"),
		server:   server,
		consumer: consumer,
		client:   client,
	}
}

// Run starts the HTTP server and the optional consumer and blocks until
// shutdown. The store client is closed once both have stopped.
func (a *App) Run(ctx context.Context) error {
	defer a.client.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if a.consumer != nil {
		g.Go(func() error {
			defer a.consumer.Close()
			if err := a.consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if ctx.Err() != nil {
			a.logger.Info("shutdown signal received")
		}
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
