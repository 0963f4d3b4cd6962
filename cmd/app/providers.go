package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/domain/sitestats"
	"github.com/yanqian/redisolar/internal/infra/config"
	"github.com/yanqian/redisolar/internal/infra/feedstore"
	"github.com/yanqian/redisolar/internal/infra/ingest"
	"github.com/yanqian/redisolar/internal/infra/keys"
	"github.com/yanqian/redisolar/internal/infra/script"
	"github.com/yanqian/redisolar/internal/infra/statsstore"
	"github.com/yanqian/redisolar/internal/infra/valkeyclient"
)

func provideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, error) {
	client, err := valkeyclient.New(cfg.Valkey)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := valkeyclient.NewChecker(client).Check(ctx); err != nil {
		logger.Warn("valkey ping failed at startup", "addr", cfg.Valkey.Addr, "error", err)
	} else {
		logger.Info("valkey connected", "addr", cfg.Valkey.Addr, "keyPrefix", cfg.Valkey.KeyPrefix)
	}
	return client, nil
}

func provideKeyGenerator(cfg *config.Config) keys.Generator {
	return keys.New(cfg.Valkey.KeyPrefix)
}

func provideFeedOptions(cfg *config.Config) feedstore.Options {
	return feedstore.Options{
		GlobalMaxLength: cfg.Feed.GlobalMaxLength,
		SiteMaxLength:   cfg.Feed.SiteMaxLength,
	}
}

func provideMeterConfig(cfg *config.Config) meter.Config {
	return meter.Config{
		DefaultLimit: cfg.Feed.DefaultLimit,
		MaxLimit:     cfg.Feed.MaxLimit,
	}
}

func provideStatsStore(cfg *config.Config, client valkey.Client, gen keys.Generator, cas *script.CompareAndUpdate, logger *slog.Logger) (*statsstore.Store, error) {
	strategy, err := sitestats.ParseStrategy(cfg.Stats.Strategy)
	if err != nil {
		return nil, err
	}
	store, err := statsstore.New(client, gen, cas, strategy, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("site stats strategy selected", "strategy", store.Strategy())
	return store, nil
}

func provideConsumer(cfg *config.Config, svc meter.Service, logger *slog.Logger) (*ingest.Consumer, error) {
	kafkaCfg := cfg.Ingest.Kafka
	if !kafkaCfg.Enabled {
		return nil, nil
	}
	return ingest.NewConsumer(ingest.Config{
		Brokers:     kafkaCfg.Brokers,
		Topic:       kafkaCfg.Topic,
		GroupID:     kafkaCfg.GroupID,
		PollTimeout: kafkaCfg.PollTimeout,
	}, svc, logger)
}
