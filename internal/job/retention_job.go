package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Deleter removes rows created before cutoff (unix seconds).
type Deleter interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// RetentionJob drops rows older than maxAgeDays from one table.
type RetentionJob struct {
	name       string
	target     Deleter
	maxAgeDays int
	now        func() time.Time
}

func NewRetentionJob(name string, target Deleter, maxAgeDays int) *RetentionJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &RetentionJob{name: name, target: target, maxAgeDays: maxAgeDays, now: time.Now}
}

// NewEmbeddingCacheCleanupJob expires cached embeddings.
func NewEmbeddingCacheCleanupJob(target Deleter, maxAgeDays int) *RetentionJob {
	return NewRetentionJob("embedding_cache_cleanup", target, maxAgeDays)
}

// NewIngestLogCleanupJob trims the ingestion history.
func NewIngestLogCleanupJob(target Deleter, maxAgeDays int) *RetentionJob {
	return NewRetentionJob("ingest_log_cleanup", target, maxAgeDays)
}

func (j *RetentionJob) Name() string {
	return j.name
}

func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-time.Duration(j.maxAgeDays) * 24 * time.Hour).Unix()
	n, err := j.target.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("expired rows removed", zap.String("job", j.name), zap.Int64("rows", n))
	return nil
}
