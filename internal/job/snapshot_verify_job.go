package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/snapshot"
	"github.com/xxxsen/mrag/internal/vectorindex"
)

// SnapshotVerifyJob re-reads the stored snapshot and checks that it decodes.
// A snapshot at the live generation must hold the same number of records;
// an older one is only logged, since a batch may commit mid-check.
type SnapshotVerifyJob struct {
	store snapshot.Store
	index *vectorindex.Index
}

func NewSnapshotVerifyJob(store snapshot.Store, index *vectorindex.Index) *SnapshotVerifyJob {
	return &SnapshotVerifyJob{store: store, index: index}
}

func (j *SnapshotVerifyJob) Name() string {
	return "snapshot_verify"
}

func (j *SnapshotVerifyJob) Run(ctx context.Context) error {
	if !j.index.Initialized() {
		return nil
	}
	stored, err := vectorindex.Load(ctx, j.store)
	if errors.Is(err, snapshot.ErrNotFound) {
		return errors.New("index is initialized but no snapshot is stored")
	}
	if err != nil {
		return err
	}
	liveGen, liveLen := j.index.Stat()
	if stored.Generation() == liveGen && stored.Len() != liveLen {
		return fmt.Errorf("snapshot generation %d holds %d records, live index holds %d",
			liveGen, stored.Len(), liveLen)
	}
	// a batch may commit between the load and this check
	if stored.Generation()+1 < liveGen {
		logutil.GetLogger(ctx).Warn("stored snapshot lags behind live index",
			zap.Uint64("stored_generation", stored.Generation()),
			zap.Uint64("live_generation", liveGen),
		)
	}
	return nil
}
