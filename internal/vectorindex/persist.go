package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/snapshot"
	"go.uber.org/zap"
)

// Persist writes the current index to store.
func (i *Index) Persist(ctx context.Context, store snapshot.Store) error {
	data, err := i.MarshalBinary()
	if err != nil {
		return appErr.Storage("encode", err)
	}
	return appErr.Storage("save", store.Save(ctx, data))
}

// Load reads a snapshot from store. A missing snapshot is an error here, use
// Open for startup where a missing snapshot means "no documents yet".
func Load(ctx context.Context, store snapshot.Store) (*Index, error) {
	data, err := store.Load(ctx)
	if err != nil {
		return nil, appErr.Storage("load", err)
	}
	idx := New()
	if err := idx.UnmarshalBinary(data); err != nil {
		return nil, appErr.Storage("decode", err)
	}
	return idx, nil
}

// Open restores the index at startup.
//
//   - no snapshot: an uninitialized index
//   - interrupted save and unreadable snapshot: ErrRecoveryRequired
//   - interrupted save but the snapshot verifies: load it and clear the flag
//   - snapshot from another embedding model: ErrEmbedderMismatch
func Open(ctx context.Context, store snapshot.Store, embedModel string) (*Index, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("store", store.Type()))
	pending, err := store.RecoveryPending(ctx)
	if err != nil {
		return nil, appErr.Storage("check recovery", err)
	}
	idx, err := Load(ctx, store)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		if pending {
			logger.Warn("interrupted save left no snapshot, starting empty")
			if err := store.ClearRecovery(ctx); err != nil {
				return nil, appErr.Storage("clear recovery", err)
			}
		}
		logger.Info("no index snapshot found, waiting for first upload")
		return New(), nil
	case err != nil && pending && errors.Is(err, appErr.ErrCorruptSnapshot):
		return nil, fmt.Errorf("%w: %v", appErr.ErrRecoveryRequired, err)
	case err != nil:
		return nil, err
	}
	if pending {
		logger.Warn("previous save was interrupted, snapshot verified and kept")
		if err := store.ClearRecovery(ctx); err != nil {
			return nil, appErr.Storage("clear recovery", err)
		}
	}
	if m := idx.ModelName(); embedModel != "" && m != "" && m != embedModel {
		return nil, fmt.Errorf("snapshot built with %q, configured embedder is %q: %w", m, embedModel, appErr.ErrEmbedderMismatch)
	}
	logger.Info("index snapshot loaded",
		zap.Int("chunks", idx.Len()),
		zap.Int("dim", idx.Dimension()),
		zap.Uint64("generation", idx.Generation()),
	)
	return idx, nil
}
