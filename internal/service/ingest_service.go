package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/snapshot"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

const defaultEmbedWorkers = 4

// IngestLogWriter records finished ingestions. Failures are logged only.
type IngestLogWriter interface {
	Append(ctx context.Context, item *model.IngestLog) error
}

type IngestConfig struct {
	EmbedWorkers int
}

// IngestService turns documents into indexed chunks.
//
// Batches are applied one at a time. A batch is embedded and persisted before
// it becomes visible to queries, and any failure leaves both the live index
// and the stored snapshot as they were.
type IngestService struct {
	mu       sync.Mutex
	chunker  *ai.Chunker
	embedder ai.IEmbedder
	index    *vectorindex.Index
	store    snapshot.Store
	logs     IngestLogWriter
	cfg      IngestConfig
}

func NewIngestService(chunker *ai.Chunker, embedder ai.IEmbedder, index *vectorindex.Index, store snapshot.Store, logs IngestLogWriter, cfg IngestConfig) *IngestService {
	if cfg.EmbedWorkers <= 0 {
		cfg.EmbedWorkers = defaultEmbedWorkers
	}
	return &IngestService{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		store:    store,
		logs:     logs,
		cfg:      cfg,
	}
}

// Ingest chunks, embeds, persists and publishes docs as one batch. Blank
// documents are skipped; a batch with nothing left is a successful no-op.
func (s *IngestService) Ingest(ctx context.Context, docs []model.Document) (*model.IngestResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.Int("documents", len(docs)))
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, sources, err := s.chunkAll(ctx, docs)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageChunk, err)
	}
	result := &model.IngestResult{
		Documents:   len(sources),
		TotalChunks: s.index.Len(),
		Generation:  s.index.Generation(),
	}
	if len(chunks) == 0 {
		logger.Info("nothing to ingest")
		return result, nil
	}

	start := time.Now()
	records, err := s.embedAll(ctx, chunks)
	if err != nil {
		logger.Error("embed chunks failed", zap.Error(err))
		return nil, appErr.Wrap(appErr.StageEmbed, err)
	}
	batch, err := s.index.Prepare(s.embedder.ModelName(), records)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageIndex, err)
	}
	data, err := batch.Encode()
	if err != nil {
		return nil, appErr.Wrap(appErr.StageIndex, err)
	}
	if err := s.store.Save(ctx, data); err != nil {
		logger.Error("persist snapshot failed", zap.Error(err))
		return nil, appErr.Wrap(appErr.StagePersist, appErr.Storage("save", err))
	}
	if err := s.index.Commit(batch); err != nil {
		return nil, appErr.Wrap(appErr.StageIndex, err)
	}
	result.ChunksAdded = batch.Added()
	result.TotalChunks = batch.Total()
	result.Generation = batch.Generation()
	logger.Info("ingest completed",
		zap.Int("chunks_added", result.ChunksAdded),
		zap.Int("total_chunks", result.TotalChunks),
		zap.Uint64("generation", result.Generation),
		zap.Duration("cost", time.Since(start)),
	)
	s.writeLog(ctx, sources, result)
	return result, nil
}

func (s *IngestService) chunkAll(ctx context.Context, docs []model.Document) ([]model.Chunk, []string, error) {
	var (
		all     []model.Chunk
		sources []string
	)
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			logutil.GetLogger(ctx).Debug("skip blank document", zap.String("source", doc.Source))
			continue
		}
		chunks, err := s.chunker.Chunk(ctx, doc)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, chunks...)
		sources = append(sources, doc.Source)
	}
	return all, sources, nil
}

func (s *IngestService) embedAll(ctx context.Context, chunks []model.Chunk) ([]model.VectorRecord, error) {
	records := make([]model.VectorRecord, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedWorkers)
	for i := range chunks {
		ch := chunks[i]
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, ch.Text, ai.TaskRetrievalDocument)
			if err != nil {
				return err
			}
			records[i] = model.VectorRecord{
				ChunkID:  ch.ID,
				Source:   ch.Source,
				Position: ch.Position,
				Text:     ch.Text,
				Vector:   vec,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *IngestService) writeLog(ctx context.Context, sources []string, result *model.IngestResult) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Append(ctx, &model.IngestLog{
		ID:          uuid.NewString(),
		Sources:     sources,
		ChunksAdded: result.ChunksAdded,
		TotalChunks: result.TotalChunks,
		Generation:  result.Generation,
		EmbedModel:  s.embedder.ModelName(),
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("write ingest log failed", zap.Error(err))
	}
}

func (s *IngestService) Status() model.IndexStatus {
	state := model.IndexStateUninitialized
	if s.index.Initialized() {
		state = model.IndexStateReady
	}
	status := model.IndexStatus{
		State:      state,
		Records:    s.index.Len(),
		Dimension:  s.index.Dimension(),
		EmbedModel: s.embedder.ModelName(),
		Generation: s.index.Generation(),
		Store:      s.store.Type(),
	}
	if c, ok := s.embedder.(cacheStatser); ok {
		st := c.Stats()
		status.EmbedCache = &st
	}
	return status
}

type cacheStatser interface {
	Stats() model.CacheStats
}
