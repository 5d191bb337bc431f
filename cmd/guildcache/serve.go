package main

import (
	"context"
	"errors"
	"github.com/magic-lib/go-plat-guildcache/cache"
	loadcache "github.com/magic-lib/go-plat-guildcache/cache/load-cache"
	"github.com/magic-lib/go-plat-guildcache/config"
	"github.com/magic-lib/go-plat-guildcache/guild"
	"github.com/magic-lib/go-plat-guildcache/internal/mlog"
	"github.com/magic-lib/go-plat-guildcache/server"
	"github.com/magic-lib/go-plat-guildcache/upstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"syscall"
)

const metricsNamespace = "guildcache"

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the http server and the eviction sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file, env vars with prefix "+config.EnvPrefix+" override it")
	return cmd
}

type metricsSet interface {
	Register(reg prometheus.Registerer) error
}

type app struct {
	logger  *zap.Logger
	sweeper *cache.Sweeper[string, string]
	source  upstream.Source
	server  *server.Server
}

// newApp 组装各组件，指标注册到 reg
func newApp(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) (*app, error) {
	store := cache.NewStore[string, string]()

	cacheMetrics := cache.NewMetrics(metricsNamespace, store.Len)
	if err := cacheMetrics.Register(reg); err != nil {
		return nil, err
	}
	sweeper, err := cache.NewSweeper(store, cache.SweeperOpts{
		TTL:      cfg.Cache.TTL,
		Interval: cfg.Cache.SweepInterval,
		Logger:   logger.Named("sweeper"),
		Metrics:  cacheMetrics,
	})
	if err != nil {
		return nil, err
	}

	source, err := upstream.New(&cfg.Upstream, logger.Named("upstream"))
	if err != nil {
		return nil, err
	}

	loadMetrics := loadcache.NewMetrics(metricsNamespace)
	guildMetrics := guild.NewMetrics(metricsNamespace)
	for _, r := range []metricsSet{loadMetrics, guildMetrics} {
		if err := r.Register(reg); err != nil {
			_ = source.Close()
			return nil, err
		}
	}

	loader, err := loadcache.New[string, string](store, source, loadcache.Options{
		FreshFor:    cfg.Cache.TTL,
		NegativeTTL: cfg.Cache.NegativeTTL,
		ErrNotFound: upstream.ErrNotFound,
		Metrics:     loadMetrics,
		Logger:      logger.Named("loader"),
	})
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	svc, err := guild.NewService(loader, guild.Options{
		OnlineTTL:      cfg.Online.TTL,
		MaxConcurrency: cfg.Online.MaxConcurrency,
		Metrics:        guildMetrics,
		Logger:         logger.Named("guild"),
	})
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	srv, err := server.New(svc, server.Options{
		Gatherer:          reg,
		Logger:            logger.Named("http"),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	return &app{logger: logger, sweeper: sweeper, source: source, server: srv}, nil
}

// run 任一组件退出时取消其余组件
func (a *app) run(ctx context.Context, listen string) error {
	defer a.source.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.sweeper.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.server.ListenAndServe(gctx, listen)
	})
	return g.Wait()
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := mlog.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(cfg, logger, reg)
	if err != nil {
		return err
	}
	logger.Info("guildcache starting",
		zap.String("version", version),
		zap.String("listen", cfg.Server.Listen),
		zap.String("upstream", cfg.Upstream.Kind),
		zap.Duration("ttl", cfg.Cache.TTL),
		zap.Duration("sweep_interval", cfg.Cache.SweepInterval),
	)
	return a.run(ctx, cfg.Server.Listen)
}
