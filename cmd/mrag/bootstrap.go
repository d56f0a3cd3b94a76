package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/db"
	"github.com/xxxsen/mrag/internal/embedcache"
	"github.com/xxxsen/mrag/internal/job"
	"github.com/xxxsen/mrag/internal/repo"
	"github.com/xxxsen/mrag/internal/schedule"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/snapshot"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

// app holds everything built from one config file.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	store      snapshot.Store
	index      *vectorindex.Index
	embedder   ai.IEmbedder
	ingest     *service.IngestService
	query      *service.QueryService
	ingestLogs *repo.IngestLogRepo
	cacheRepo  *repo.EmbeddingCacheRepo
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logutil.GetLogger(ctx)
	a := &app{cfg: cfg}
	if cfg.Database.Enabled() {
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
		a.ingestLogs = repo.NewIngestLogRepo(conn)
		a.cacheRepo = repo.NewEmbeddingCacheRepo(conn)
		logger.Info("database ready")
	}

	limiter := ai.NewLimiter(cfg.AI.RequestsPerSecond, cfg.AI.Burst)
	retry := ai.RetryPolicy{
		MaxRetries: cfg.AI.MaxRetries,
		BaseDelay:  time.Duration(cfg.AI.RetryBaseMS) * time.Millisecond,
	}
	generator, err := buildGenerator(cfg.AI.Generators)
	if err != nil {
		a.Close()
		return nil, err
	}
	generator = ai.WrapRateLimitGenerator(generator, limiter)

	embedder, err := a.buildEmbedder(limiter, retry)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.embedder = embedder

	store, err := snapshot.New(snapshot.Config{Type: cfg.IndexStore.Type, Data: cfg.IndexStore.Data})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init index store: %w", err)
	}
	a.store = store
	index, err := vectorindex.Open(ctx, store, embedder.ModelName())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	a.index = index

	chunker, err := ai.NewChunker(cfg.Chunk.Size, cfg.Chunk.Overlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	var logs service.IngestLogWriter
	if a.ingestLogs != nil {
		logs = a.ingestLogs
	}
	a.ingest = service.NewIngestService(chunker, embedder, index, store, logs, service.IngestConfig{
		EmbedWorkers: cfg.AI.EmbedWorkers,
	})
	manager := ai.NewManager(generator, ai.ManagerConfig{
		Timeout:         cfg.AI.Timeout,
		MaxContextChars: cfg.AI.MaxContextChars,
		Retry:           retry,
	})
	a.query = service.NewQueryService(embedder, index, manager,
		service.NewAnswerPolicy(cfg.AI.FallbackAnswer, cfg.AI.RefusalPhrases),
		service.QueryConfig{
			TopK:      cfg.Retrieval.TopK,
			MinScore:  cfg.Retrieval.MinScore,
			CacheSize: cfg.AnswerCache.Size,
			CacheTTL:  time.Duration(cfg.AnswerCache.TTLSeconds) * time.Second,
		})
	logger.Info("pipeline ready",
		zap.String("embed_model", embedder.ModelName()),
		zap.Int("generators", len(cfg.AI.Generators)),
		zap.String("index_store", store.Type()),
		zap.Int("chunk_size", chunker.Size()),
		zap.Int("chunk_overlap", chunker.Overlap()),
	)
	return a, nil
}

func buildGenerator(items []config.ProviderConfig) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(items))
	for _, item := range items {
		provider, err := ai.NewProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init generator %s: %w", item.Provider, err)
		}
		name := item.Name
		if name == "" {
			name = item.Provider + "/" + item.Model
		}
		entries = append(entries, ai.GeneratorEntry{Name: name, Generator: ai.NewGenerator(provider, item.Model)})
	}
	return ai.NewGroupGenerator(entries), nil
}

// buildEmbedder stacks, from the outside in: memory cache, database cache,
// retry, rate limit, provider.
func (a *app) buildEmbedder(limiter *rate.Limiter, retry ai.RetryPolicy) (ai.IEmbedder, error) {
	cfg := a.cfg
	provider, err := ai.NewEmbedProvider(cfg.AI.Embedder.Provider, cfg.AI.Embedder.Data)
	if err != nil {
		return nil, fmt.Errorf("init embedder %s: %w", cfg.AI.Embedder.Provider, err)
	}
	e := ai.NewEmbedder(provider, cfg.AI.Embedder.Model)
	e = ai.WrapRateLimitEmbedder(e, limiter)
	e = ai.WrapRetryEmbedder(e, retry)
	if cfg.EmbedCache.DBEnabled && a.cacheRepo != nil {
		e = embedcache.WrapDBCacheToEmbedder(e, a.cacheRepo)
	}
	e = embedcache.WrapLruCacheToEmbedder(e, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLSeconds)*time.Second)
	return e, nil
}

type scheduledJob struct {
	job  schedule.Job
	spec string
}

// startJobs schedules maintenance. Database jobs only run when a database
// is configured.
func (a *app) startJobs(ctx context.Context) (*schedule.CronScheduler, error) {
	s := schedule.NewCronScheduler()
	jobs := []scheduledJob{
		{job.NewSnapshotVerifyJob(a.store, a.index), a.cfg.Jobs.SnapshotVerify},
	}
	if a.cacheRepo != nil && a.cfg.EmbedCache.DBEnabled {
		jobs = append(jobs, scheduledJob{job.NewEmbeddingCacheCleanupJob(a.cacheRepo, a.cfg.EmbedCache.MaxAgeDays), a.cfg.Jobs.CacheCleanup})
	}
	if a.ingestLogs != nil {
		jobs = append(jobs, scheduledJob{job.NewIngestLogCleanupJob(a.ingestLogs, a.cfg.Jobs.IngestLogMaxDays), a.cfg.Jobs.IngestLogCleanup})
	}
	for _, j := range jobs {
		if err := s.AddJob(j.job, j.spec); err != nil {
			return nil, err
		}
	}
	s.Start(ctx)
	for _, j := range jobs {
		if next, ok := s.Next(j.job.Name()); ok {
			logutil.GetLogger(ctx).Info("job next run", zap.String("job", j.job.Name()), zap.Time("next", next))
		}
	}
	return s, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
