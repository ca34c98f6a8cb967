package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/goforj/restaurantdata"
	"github.com/goforj/restaurantdata/assetproxy"
	"github.com/goforj/restaurantdata/connectivity"
	"github.com/goforj/restaurantdata/internal/config"
	"github.com/goforj/restaurantdata/internal/httpapi"
	"github.com/goforj/restaurantdata/internal/logging"
	"github.com/goforj/restaurantdata/kv"
	"github.com/goforj/restaurantdata/offline"
	"github.com/goforj/restaurantdata/remote"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logFile, logger, err := logging.OpenDaily(cfg.Logging.Directory, logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	}, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("restaurantd stopped", slog.Any("error", err))
		logFile.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store := openStore(ctx, cfg.Store, logger)

	api, err := remote.New(cfg.API.Origin, remote.WithTimeout(cfg.API.Timeout), remote.WithLogger(logger))
	if err != nil {
		return err
	}

	sw := connectivity.NewSwitch(false)
	poller := connectivity.NewPoller(cfg.Offline.CheckURL, sw,
		connectivity.WithInterval(cfg.Offline.CheckInterval),
		connectivity.WithLogger(logger),
	)
	poller.Check(ctx)
	go poller.Run(ctx)

	mode, err := offline.ParseMode(cfg.Offline.Mode)
	if err != nil {
		return err
	}
	queue := offline.New(store, api, sw,
		offline.WithMode(mode),
		offline.WithLogger(logger),
		offline.WithReplayTimeout(cfg.Offline.ReplayTimeout),
	)
	client := restaurantdata.New(store, api, sw,
		restaurantdata.WithLogger(logger),
		restaurantdata.WithQueue(queue),
	)

	var assets http.Handler
	var proxy *assetproxy.Proxy
	if cfg.Asset.Enabled {
		proxy, err = assetproxy.New(store, cfg.Asset.Origin, cfg.Asset.Manifest,
			assetproxy.WithCacheName(cfg.Asset.CacheName),
			assetproxy.WithSideFetchPrefixes(cfg.Asset.SideFetchPrefixes...),
			assetproxy.WithCompression(kv.CompressionCodec(cfg.Asset.Compression)),
			assetproxy.WithMemo(cfg.Asset.MemoSize),
			assetproxy.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		assets = proxy
		go installAssets(ctx, proxy, cfg.Asset.InstallTimeout, logger)
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())
	httpapi.New(client, assets, logger).Register(e)

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.Server.Addr), slog.String("api_origin", api.Origin()))
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", slog.Any("error", err))
	}
	if proxy != nil {
		_ = proxy.Close()
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Store, logger *slog.Logger) kv.Store {
	store := kv.NewStore(ctx, cfg.KV())
	if err := store.Ready(ctx); err != nil {
		logger.Warn("store unavailable, running without persistence",
			slog.String("driver", cfg.Driver),
			slog.Any("error", err),
		)
	} else {
		logger.Info("store ready", slog.String("driver", string(store.Driver())))
	}
	if !cfg.Trace {
		return store
	}
	return kv.NewObservedStore(store, kv.ObserverFunc(func(ctx context.Context, op, key string, hit bool, err error, dur time.Duration, driver kv.Driver) {
		logger.DebugContext(ctx, "store op",
			slog.String("op", op),
			slog.String("key", key),
			slog.Bool("hit", hit),
			slog.Duration("duration", dur),
			slog.String("driver", string(driver)),
			slog.Any("error", err),
		)
	}))
}

func installAssets(ctx context.Context, proxy *assetproxy.Proxy, timeout time.Duration, logger *slog.Logger) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := proxy.Install(ctx); err != nil {
		logger.Warn("asset install failed, proxy stays pass-through", slog.Any("error", err))
		return
	}
	proxy.Activate()
}
