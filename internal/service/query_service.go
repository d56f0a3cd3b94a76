package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

const (
	DefaultTopK     = 3
	maxQueryRunes   = 4000
	defaultCacheTTL = 10 * time.Minute

	NoDocumentsMessage = "No documents uploaded yet."
)

type QueryConfig struct {
	TopK      int
	MinScore  float64
	CacheSize int
	CacheTTL  time.Duration
}

// QueryService answers questions from the indexed chunks.
type QueryService struct {
	embedder ai.IEmbedder
	index    *vectorindex.Index
	manager  *ai.Manager
	policy   AnswerPolicy
	cfg      QueryConfig
	cache    *expirable.LRU[string, model.Answer]
}

func NewQueryService(embedder ai.IEmbedder, index *vectorindex.Index, manager *ai.Manager, policy AnswerPolicy, cfg QueryConfig) *QueryService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	s := &QueryService{
		embedder: embedder,
		index:    index,
		manager:  manager,
		policy:   policy,
		cfg:      cfg,
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, model.Answer](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

func cleanQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", appErr.Validation("query is required")
	}
	if len([]rune(query)) > maxQueryRunes {
		return "", appErr.Validation("query longer than %d characters", maxQueryRunes)
	}
	return query, nil
}

// Retrieve returns up to k chunks most similar to query, best first.
func (s *QueryService) Retrieve(ctx context.Context, query string, k int) ([]model.SearchHit, error) {
	query, err := cleanQuery(query)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.cfg.TopK
	}
	vec, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageEmbed, err)
	}
	hits, err := s.index.Search(vec, k)
	if err != nil {
		return nil, appErr.Wrap(appErr.StageRetrieve, err)
	}
	if s.cfg.MinScore <= 0 {
		return hits, nil
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= s.cfg.MinScore {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

// Answer runs the full question answering flow. Having no documents yet is
// reported through the answer status, not as an error.
func (s *QueryService) Answer(ctx context.Context, query string) (*model.Answer, error) {
	query, err := cleanQuery(query)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))
	if !s.index.Initialized() {
		return &model.Answer{Query: query, Text: NoDocumentsMessage, Status: model.AnswerStatusNoDocuments}, nil
	}
	cacheKey := strconv.FormatUint(s.index.Generation(), 10) + "\x00" + query
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			logger.Debug("answer cache hit")
			cached.Cached = true
			return &cached, nil
		}
	}

	hits, err := s.Retrieve(ctx, query, s.cfg.TopK)
	if err != nil {
		logger.Error("retrieve failed", zap.Error(err))
		return nil, err
	}
	answer := &model.Answer{Query: query, Sources: toSources(hits)}
	if len(hits) == 0 {
		answer.Text = s.policy.Fallback()
		answer.Status = model.AnswerStatusNotFound
		return answer, nil
	}
	contexts := make([]string, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, h.Record.Text)
	}
	raw, err := s.manager.Answer(ctx, query, contexts)
	if err != nil {
		logger.Error("generate answer failed", zap.Error(err))
		return nil, appErr.Wrap(appErr.StageGenerate, err)
	}
	text, found := s.policy.Apply(raw)
	answer.Text = text
	answer.Status = model.AnswerStatusOK
	if !found {
		answer.Status = model.AnswerStatusNotFound
	}
	logger.Info("question answered", zap.String("status", string(answer.Status)), zap.Int("contexts", len(hits)))
	if s.cache != nil {
		s.cache.Add(cacheKey, *answer)
	}
	return answer, nil
}

func toSources(hits []model.SearchHit) []model.AnswerSource {
	if len(hits) == 0 {
		return nil
	}
	out := make([]model.AnswerSource, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.AnswerSource{
			Source:   h.Record.Source,
			Position: h.Record.Position,
			Score:    h.Score,
		})
	}
	return out
}
