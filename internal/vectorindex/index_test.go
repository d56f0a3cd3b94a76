package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/snapshot"
)

func rec(id string, vec ...float32) model.VectorRecord {
	return model.VectorRecord{ChunkID: id, Source: "doc.txt", Text: "text " + id, Vector: vec}
}

func TestUninitializedIndex(t *testing.T) {
	idx := New()
	require.False(t, idx.Initialized())
	require.Zero(t, idx.Len())
	hits, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)
	_, err = idx.MarshalBinary()
	require.Error(t, err)
}

func TestInsertAndSearchRanking(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("m", []model.VectorRecord{
		rec("a", 1, 0, 0),
		rec("b", 0.7, 0.7, 0),
		rec("c", 0, 0, 1),
	}))
	require.True(t, idx.Initialized())
	require.Equal(t, 3, idx.Dimension())
	require.Equal(t, uint64(1), idx.Generation())

	hits, err := idx.Search([]float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "a", hits[0].Record.ChunkID)
	require.Equal(t, "b", hits[1].Record.ChunkID)
	require.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	hits, err = idx.Search([]float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	hits, err = idx.Search([]float32{0, 0, 0}, 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("first", 1, 0), rec("second", 1, 0)}))
	require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("third", 1, 0)}))
	hits, err := idx.Search([]float32{2, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, "first", hits[0].Record.ChunkID)
	require.Equal(t, "second", hits[1].Record.ChunkID)
	require.Equal(t, "third", hits[2].Record.ChunkID)
}

func TestInsertValidation(t *testing.T) {
	idx := New()
	err := idx.Insert("m", nil)
	require.True(t, appErr.IsInvalid(err))
	require.False(t, idx.Initialized())

	err = idx.Insert("m", []model.VectorRecord{rec("a", 1, 0), rec("b", 1)})
	require.True(t, appErr.IsInvalid(err))
	require.False(t, idx.Initialized())

	require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("a", 1, 0)}))
	err = idx.Insert("m", []model.VectorRecord{rec("b", 1, 0, 0)})
	require.True(t, appErr.IsInvalid(err))
	require.Equal(t, 1, idx.Len())

	err = idx.Insert("other", []model.VectorRecord{rec("c", 1, 0)})
	require.ErrorIs(t, err, appErr.ErrEmbedderMismatch)

	_, err = idx.Search([]float32{1}, 1)
	require.True(t, appErr.IsInvalid(err))
}

func TestPrepareDoesNotPublish(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("a", 1, 0)}))
	b, err := idx.Prepare("m", []model.VectorRecord{rec("b", 0, 1)})
	require.NoError(t, err)
	require.Equal(t, 1, b.Added())
	require.Equal(t, 2, b.Total())
	require.Equal(t, 1, idx.Len())

	stale, err := idx.Prepare("m", []model.VectorRecord{rec("c", 0, 1)})
	require.NoError(t, err)
	require.NoError(t, idx.Commit(b))
	require.Equal(t, 2, idx.Len())
	require.Error(t, idx.Commit(stale))
	require.Equal(t, 2, idx.Len())
}

func TestDuplicatesAreKept(t *testing.T) {
	idx := New()
	batch := []model.VectorRecord{rec("a", 1, 0)}
	require.NoError(t, idx.Insert("m", batch))
	require.NoError(t, idx.Insert("m", batch))
	require.Equal(t, 2, idx.Len())
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := New()
	var records []model.VectorRecord
	for i := 0; i < 20; i++ {
		r := rec(fmt.Sprintf("id-%d", i), float32(i)*0.1, 1-float32(i)*0.05, float32(i%3))
		r.Position = i
		r.Text = fmt.Sprintf("chunk %d ü 天", i)
		records = append(records, r)
	}
	require.NoError(t, idx.Insert("local/hash", records))

	data, err := idx.MarshalBinary()
	require.NoError(t, err)
	restored := New()
	require.NoError(t, restored.UnmarshalBinary(data))
	require.Equal(t, idx.Len(), restored.Len())
	require.Equal(t, "local/hash", restored.ModelName())
	require.Equal(t, idx.Generation(), restored.Generation())

	for _, q := range [][]float32{{1, 0, 0}, {0.3, 0.3, 1}, {-1, 2, 0.5}} {
		want, err := idx.Search(q, 5)
		require.NoError(t, err)
		got, err := restored.Search(q, 5)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestSnapshotCorruption(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("a", 1, 2, 3)}))
	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)/2] ^= 0xff
	require.ErrorIs(t, New().UnmarshalBinary(flipped), appErr.ErrCorruptSnapshot)
	require.ErrorIs(t, New().UnmarshalBinary(data[:len(data)-3]), appErr.ErrCorruptSnapshot)
	require.ErrorIs(t, New().UnmarshalBinary([]byte("MRAG")), appErr.ErrCorruptSnapshot)
}

func TestPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewLocal(t.TempDir())
	_, err := Load(ctx, store)
	require.True(t, appErr.IsStorage(err))

	idx := New()
	require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("a", 1, 0), rec("b", 0, 1)}))
	require.NoError(t, idx.Persist(ctx, store))

	loaded, err := Load(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
}

type dirtyStore struct {
	*snapshot.Memory
	pending bool
	cleared bool
	raw     []byte
}

func (d *dirtyStore) Load(ctx context.Context) ([]byte, error) {
	if d.raw != nil {
		return d.raw, nil
	}
	return d.Memory.Load(ctx)
}

func (d *dirtyStore) RecoveryPending(ctx context.Context) (bool, error) {
	return d.pending, nil
}

func (d *dirtyStore) ClearRecovery(ctx context.Context) error {
	d.pending = false
	d.cleared = true
	return nil
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	empty := &dirtyStore{Memory: snapshot.NewMemory(), pending: true}
	idx, err := Open(ctx, empty, "m")
	require.NoError(t, err)
	require.False(t, idx.Initialized())
	require.True(t, empty.cleared)

	src := New()
	require.NoError(t, src.Insert("m", []model.VectorRecord{rec("a", 1, 0)}))
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	good := &dirtyStore{Memory: snapshot.NewMemory(), pending: true, raw: data}
	idx, err = Open(ctx, good, "m")
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
	require.True(t, good.cleared)

	broken := append([]byte(nil), data...)
	broken[10] ^= 0x01
	bad := &dirtyStore{Memory: snapshot.NewMemory(), pending: true, raw: broken}
	_, err = Open(ctx, bad, "m")
	require.ErrorIs(t, err, appErr.ErrRecoveryRequired)
	require.False(t, bad.cleared)

	clean := &dirtyStore{Memory: snapshot.NewMemory(), raw: broken}
	_, err = Open(ctx, clean, "m")
	require.True(t, appErr.IsStorage(err))
	require.False(t, errors.Is(err, appErr.ErrRecoveryRequired))

	other := &dirtyStore{Memory: snapshot.NewMemory(), raw: data}
	_, err = Open(ctx, other, "different")
	require.ErrorIs(t, err, appErr.ErrEmbedderMismatch)
}

func TestConcurrentSearchDuringInsert(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("seed", 1, 0)}))
	var (
		wg      sync.WaitGroup
		partial atomic.Int32
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				hits, err := idx.Search([]float32{1, 0}, 1000)
				// a search sees whole batches only
				if err != nil || len(hits)%2 != 1 {
					partial.Add(1)
				}
			}
		}()
	}
	for n := 0; n < 50; n++ {
		require.NoError(t, idx.Insert("m", []model.VectorRecord{rec("x", 1, 0), rec("y", 0.5, 0.5)}))
	}
	wg.Wait()
	require.Zero(t, partial.Load())
	require.Equal(t, 101, idx.Len())
}
