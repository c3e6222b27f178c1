package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/studyrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/studyrag/internal/adapters/driven/auth/jwt"
	blobfile "github.com/custodia-labs/studyrag/internal/adapters/driven/blob/file"
	"github.com/custodia-labs/studyrag/internal/adapters/driven/config/file"
	memlock "github.com/custodia-labs/studyrag/internal/adapters/driven/lock/memory"
	redislock "github.com/custodia-labs/studyrag/internal/adapters/driven/lock/redis"
	asynqqueue "github.com/custodia-labs/studyrag/internal/adapters/driven/queue/asynq"
	localqueue "github.com/custodia-labs/studyrag/internal/adapters/driven/queue/local"
	"github.com/custodia-labs/studyrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/studyrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/studyrag/internal/adapters/driven/telemetry"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/core/services"
	"github.com/custodia-labs/studyrag/internal/extractors"
	"github.com/custodia-labs/studyrag/internal/logger"
	"github.com/custodia-labs/studyrag/internal/postprocessors/chunker"
)

const shutdownTimeout = 5 * time.Second

// stores is what both storage drivers provide.
type stores interface {
	DocumentStore() driven.DocumentStore
	ChunkStore() driven.ChunkStore
	JobStore() driven.JobStore
	Close() error
}

// closers runs cleanups in reverse order.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build wires adapters and services from configuration.
func build(ctx context.Context, cfg *file.Config, withAI bool) (_ *cli.App, err error) {
	var cleanup closers
	defer func() {
		if err != nil {
			_ = cleanup.close()
		}
	}()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	cleanup.add(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdownTracing(sctx)
	})

	st, err := openStores(cfg)
	if err != nil {
		return nil, err
	}
	cleanup.add(st.Close)

	blobs, err := blobfile.NewStore(cfg.Storage.BlobDir)
	if err != nil {
		return nil, err
	}

	ingestion := cfg.IngestionSettings()

	var (
		lock  driven.IngestionLock
		queue driven.JobQueue
	)
	switch cfg.Queue.Driver {
	case "asynq":
		rl, err := redislock.Dial(ctx, cfg.Queue.RedisAddr)
		if err != nil {
			return nil, err
		}
		cleanup.add(rl.Close)
		lock = rl
		queue = asynqqueue.New(asynqqueue.Config{
			RedisAddr:  cfg.Queue.RedisAddr,
			Workers:    ingestion.Workers,
			JobTimeout: ingestion.JobTimeout,
		})
	default:
		lock = memlock.New()
		queue = localqueue.New(ingestion.Workers, ingestion.QueueSize)
	}
	cleanup.add(queue.Close)

	var (
		embedder driven.EmbeddingService
		llm      driven.LLMService
		warnings []string
	)
	if withAI {
		res, err := ai.Init(ctx, cfg.EmbeddingSettings(), cfg.LLMSettings())
		if err != nil {
			return nil, fmt.Errorf("initialising AI services: %w", err)
		}
		cleanup.add(func() error { res.Close(); return nil })
		embedder, llm, warnings = res.EmbeddingService, res.LLMService, res.Warnings
	}

	ingestSvc := services.NewIngestionService(services.IngestionDeps{
		Documents: st.DocumentStore(),
		Chunks:    st.ChunkStore(),
		Jobs:      st.JobStore(),
		Blobs:     blobs,
		Extractors: extractors.NewDefaultRegistry(
			extractors.WithTimeout(ingestion.ExtractionTimeout),
			extractors.WithMaxBytes(ingestion.MaxFileBytes),
		),
		Chunker:  chunker.New(chunker.WithSettings(cfg.ChunkingSettings())),
		Embedder: embedder,
		Lock:     lock,
		Queue:    queue,
	}, ingestion, cfg.EmbeddingSettings())

	var query driving.QueryService
	if withAI {
		prompts, err := file.NewPromptStore(cfg.PromptDir)
		if err != nil {
			return nil, err
		}
		query = services.NewQueryServiceFromSettings(
			st.DocumentStore(), st.ChunkStore(), embedder, llm, prompts,
			cfg.RetrievalSettings(), cfg.LLMSettings(),
		)
	}

	var verifier driven.OwnerVerifier
	if cfg.Server.JWTSecret != "" {
		v, err := jwt.NewVerifier(cfg.Server.JWTSecret)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	scheduler := services.NewScheduler(st.JobStore(), ingestSvc, ingestion.JobTimeout, cfg.ReapInterval())

	return &cli.App{
		Documents: services.NewDocumentService(st.DocumentStore(), lock),
		Ingestion: ingestSvc,
		Query:     query,
		Verifier:  verifier,
		Locator:   blobs.Locator,
		RunWorkers: func(ctx context.Context) error {
			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			defer scheduler.Stop()
			return queue.Run(ctx, ingestSvc.Process)
		},
		LocalQueue: cfg.Queue.Driver != "asynq",
		Warnings:   warnings,
		Close:      cleanup.close,
	}, nil
}

func openStores(cfg *file.Config) (stores, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("memory storage: documents are lost when the process exits")
		return memory.NewStore()
	}
	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	s, err := sqlite.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Debug("database %s", s.Path())
	return s, nil
}
