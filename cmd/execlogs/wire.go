package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/archive"
	"github.com/datallboy/execlogs/internal/infra/config"
	"github.com/datallboy/execlogs/internal/infra/logger"
	"github.com/datallboy/execlogs/internal/infra/metrics"
	"github.com/datallboy/execlogs/internal/sparkui"
	"github.com/datallboy/execlogs/internal/store"
)

func loadConfig(opts *rootOptions, flags *pflag.FlagSet, keys map[string]string, defaults map[string]any) (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(opts.configPath, flags, keys, defaults)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

// buildContext wires the collaborators cfg asks for. The returned cleanup
// closes the store.
func buildContext(cfg *config.Config) (*app.Context, func(), error) {
	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	appCtx := app.NewContext(cfg, log)
	appCtx.Metrics = metrics.New("execlogs")

	appCtx.Fetcher = sparkui.NewClient(sparkui.Options{
		Timeout:           cfg.Download.FetchTimeout,
		RequestsPerSecond: cfg.Download.RequestsPerSecond,
		Burst:             cfg.Download.Concurrency,
	})
	appCtx.Discoverer = sparkui.NewDiscoverer(nil)
	appCtx.Packer = archive.NewZipPacker()

	if cfg.Archive.UploadURL != "" {
		up, err := archive.NewUploader(cfg.Archive.UploadURL)
		if err != nil {
			return nil, nil, err
		}
		appCtx.Uploader = up
	}

	cleanup := func() {}
	if cfg.Store.Driver != "none" {
		db, err := store.NewPersistentStore(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open run history: %w", err)
		}
		appCtx.Store = db
		cleanup = func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close run history: %v", err)
			}
		}
	}

	return appCtx, cleanup, nil
}
