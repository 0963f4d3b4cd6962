//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/redisolar/internal/bootstrap"
	"github.com/yanqian/redisolar/internal/domain/meter"
	"github.com/yanqian/redisolar/internal/domain/site"
	"github.com/yanqian/redisolar/internal/domain/sitestats"
	"github.com/yanqian/redisolar/internal/infra/config"
	"github.com/yanqian/redisolar/internal/infra/feedstore"
	"github.com/yanqian/redisolar/internal/infra/script"
	"github.com/yanqian/redisolar/internal/infra/sitestore"
	"github.com/yanqian/redisolar/internal/infra/statsstore"
	"github.com/yanqian/redisolar/internal/infra/valkeyclient"
	httpiface "github.com/yanqian/redisolar/internal/interface/http"
	"github.com/yanqian/redisolar/pkg/logger"
	"github.com/yanqian/redisolar/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.New,
		provideValkeyClient,
		provideKeyGenerator,
		provideFeedOptions,
		provideMeterConfig,
		provideStatsStore,
		provideConsumer,
		script.NewCompareAndUpdate,
		feedstore.New,
		sitestore.New,
		valkeyclient.NewChecker,
		meter.NewService,
		site.NewService,
		sitestats.NewService,
		wire.Bind(new(meter.Feed), new(*feedstore.ValkeyFeed)),
		wire.Bind(new(meter.StatsRecorder), new(*statsstore.Store)),
		wire.Bind(new(sitestats.Store), new(*statsstore.Store)),
		wire.Bind(new(site.Registry), new(*sitestore.Store)),
		wire.Bind(new(httpiface.HealthChecker), new(*valkeyclient.Checker)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
