package app

import (
	"context"
	"fmt"

	"github.com/semmidev/bucketeer/internal/adapter/compressor"
	"github.com/semmidev/bucketeer/internal/adapter/notifier"
	"github.com/semmidev/bucketeer/internal/adapter/storage"
	"github.com/semmidev/bucketeer/internal/config"
	"github.com/semmidev/bucketeer/internal/domain"
	"github.com/semmidev/bucketeer/internal/infrastructure/logger"
	"github.com/semmidev/bucketeer/internal/infrastructure/scheduler"
	"github.com/semmidev/bucketeer/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	buckets   *usecase.Buckets
	scheduler *scheduler.Scheduler
	notifier  domain.Notifier
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(logger.Options{
		Name:  cfg.App.Name,
		Level: cfg.App.LogLevel,
		File:  cfg.App.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := newStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Provider, err)
	}
	log.Debugf("Using %s storage", cfg.Storage.Provider)

	buckets := usecase.NewBuckets(store, compressor.NewGzip(), log, usecase.Naming{
		Prefix: cfg.Naming.Prefix,
		Region: cfg.Naming.Region,
	})

	return &App{
		config:    cfg,
		logger:    log,
		buckets:   buckets,
		scheduler: scheduler.New(log),
	}, nil
}

func newStore(ctx context.Context, cfg *config.StorageConfig) (domain.BucketStore, error) {
	switch cfg.Provider {
	case config.ProviderS3:
		return storage.NewS3(ctx, cfg)
	case config.ProviderMinio:
		return storage.NewMinio(cfg)
	case config.ProviderGCS:
		return storage.NewGCS(ctx, cfg)
	case config.ProviderLocal:
		return storage.NewLocal(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func (a *App) Buckets() *usecase.Buckets {
	return a.buckets
}

// Run schedules every enabled sync job and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.config.Notify.Telegram.Enabled {
		tg, err := notifier.NewTelegram(&a.config.Notify.Telegram)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram: %w", err)
		}
		a.notifier = tg
		a.logger.Infof("✓ Telegram notifications enabled")
	}

	jobs := a.config.GetEnabledJobs()
	if len(jobs) == 0 {
		return fmt.Errorf("no enabled sync jobs found")
	}

	for _, jobCfg := range jobs {
		job := domain.SyncJob{
			Name:      jobCfg.Name,
			Schedule:  jobCfg.Schedule,
			Bucket:    jobCfg.Bucket,
			Files:     jobCfg.Files,
			KeyPrefix: jobCfg.KeyPrefix,
			Compress:  jobCfg.Compress,
		}
		syncUC := usecase.NewSync(job, a.buckets, a.notifier, a.logger)

		if err := a.scheduler.AddJob(job.Name, job.Schedule, syncUC.Execute); err != nil {
			return fmt.Errorf("failed to schedule sync for %s: %w", job.Name, err)
		}
		a.logger.Infof("✓ Scheduled sync %s to %s: %s", job.Name, job.Bucket, job.Schedule)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started with %d job(s)", a.scheduler.Len())

	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Debugf("Shutting down...")
	a.scheduler.Stop()
	a.logger.Close()
}
