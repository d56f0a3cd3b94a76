package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

// Index is an in-memory cosine similarity index over chunk embeddings.
//
// A fresh Index is uninitialized, which is different from initialized but
// empty: it has no dimension and no embedder bound to it yet. Writers build
// a Batch off to the side and swap it in with Commit, so readers never see a
// half applied insert.
type Index struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	model      string
	dim        int
	generation uint64
	records    []model.VectorRecord
	mags       []float64
}

// Batch is a fully built successor state that has not been published yet.
type Batch struct {
	base  *state
	next  *state
	added int
}

func New() *Index {
	return &Index{}
}

func (i *Index) snapshot() *state {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Index) Initialized() bool {
	return i.snapshot() != nil
}

func (i *Index) Len() int {
	if s := i.snapshot(); s != nil {
		return len(s.records)
	}
	return 0
}

func (i *Index) Dimension() int {
	if s := i.snapshot(); s != nil {
		return s.dim
	}
	return 0
}

func (i *Index) ModelName() string {
	if s := i.snapshot(); s != nil {
		return s.model
	}
	return ""
}

// Generation increases by one on every committed batch.
func (i *Index) Generation() uint64 {
	if s := i.snapshot(); s != nil {
		return s.generation
	}
	return 0
}

// Stat reports generation and record count from one consistent state.
func (i *Index) Stat() (uint64, int) {
	if s := i.snapshot(); s != nil {
		return s.generation, len(s.records)
	}
	return 0, 0
}

// Prepare validates records and builds the state that would result from
// inserting them. The index itself is not touched. An uninitialized index
// takes its dimension from the first record.
func (i *Index) Prepare(modelName string, records []model.VectorRecord) (*Batch, error) {
	if len(records) == 0 {
		return nil, appErr.Validation("empty batch")
	}
	base := i.snapshot()
	dim := len(records[0].Vector)
	if base != nil {
		dim = base.dim
		if base.model != "" && modelName != "" && base.model != modelName {
			return nil, fmt.Errorf("index built with %q, got vectors from %q: %w", base.model, modelName, appErr.ErrEmbedderMismatch)
		}
		if base.model != "" {
			modelName = base.model
		}
	}
	if dim == 0 {
		return nil, appErr.Validation("embedding dimension must be positive")
	}
	for idx, r := range records {
		if len(r.Vector) != dim {
			return nil, appErr.Validation("record %d has dimension %d, index expects %d", idx, len(r.Vector), dim)
		}
	}
	next := &state{model: modelName, dim: dim}
	var n int
	if base != nil {
		n = len(base.records)
		next.generation = base.generation
	}
	// full slice expressions force a fresh backing array, readers of base keep theirs
	if base != nil {
		next.records = append(base.records[:n:n], records...)
		next.mags = append(base.mags[:n:n], make([]float64, len(records))...)
	} else {
		next.records = append([]model.VectorRecord(nil), records...)
		next.mags = make([]float64, len(records))
	}
	for j := range records {
		next.mags[n+j] = magnitude(records[j].Vector)
	}
	next.generation++
	return &Batch{base: base, next: next, added: len(records)}, nil
}

func (b *Batch) Added() int {
	return b.added
}

func (b *Batch) Total() int {
	return len(b.next.records)
}

func (b *Batch) Generation() uint64 {
	return b.next.generation
}

// Encode serializes the state the index will have after Commit.
func (b *Batch) Encode() ([]byte, error) {
	return encodeState(b.next)
}

// Commit publishes the batch. It fails if another batch was committed after
// this one was prepared.
func (i *Index) Commit(b *Batch) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != b.base {
		return fmt.Errorf("index changed since batch was prepared")
	}
	i.state = b.next
	return nil
}

// Insert adds records without persisting them.
func (i *Index) Insert(modelName string, records []model.VectorRecord) error {
	b, err := i.Prepare(modelName, records)
	if err != nil {
		return err
	}
	return i.Commit(b)
}

// Search returns up to k records ranked by cosine similarity to query. Ties
// keep insertion order. A zero query vector matches nothing.
func (i *Index) Search(query []float32, k int) ([]model.SearchHit, error) {
	s := i.snapshot()
	if s == nil || len(s.records) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, appErr.Validation("query dimension %d does not match index dimension %d", len(query), s.dim)
	}
	qm := magnitude(query)
	if qm == 0 {
		return nil, nil
	}
	type scored struct {
		idx   int
		score float64
	}
	scoreds := make([]scored, 0, len(s.records))
	for j := range s.records {
		if s.mags[j] == 0 {
			continue
		}
		sc := dot(query, s.records[j].Vector) / (qm * s.mags[j])
		if math.IsNaN(sc) {
			continue
		}
		scoreds = append(scoreds, scored{idx: j, score: sc})
	}
	sort.SliceStable(scoreds, func(a, b int) bool { return scoreds[a].score > scoreds[b].score })
	if k > len(scoreds) {
		k = len(scoreds)
	}
	out := make([]model.SearchHit, k)
	for n := 0; n < k; n++ {
		out[n] = model.SearchHit{Record: s.records[scoreds[n].idx], Score: scoreds[n].score}
	}
	return out, nil
}

func (i *Index) MarshalBinary() ([]byte, error) {
	s := i.snapshot()
	if s == nil {
		return nil, fmt.Errorf("index is not initialized")
	}
	return encodeState(s)
}

// UnmarshalBinary replaces the index content with a decoded snapshot.
func (i *Index) UnmarshalBinary(data []byte) error {
	s, err := decodeState(data)
	if err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s
	return nil
}

func magnitude(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
