package vectorindex

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"evocore/internal/logging"
)

// LinearIndex is the library-free fallback backend: a flat slice scanned in
// full on every search. Correct for any N; intended for small-to-medium
// corpora where an approximate index would be overkill (spec.md §4.2:
// "a pluggable backend exists so that a library-free fallback... remains
// correct for small N").
type LinearIndex struct {
	mu       sync.RWMutex
	vectors  [][]float32
	metas    []Metadata
	nextID   int64
}

// NewLinearIndex creates an empty linear-scan index.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{nextID: 1}
}

func (idx *LinearIndex) Add(ctx context.Context, vectors [][]float32, metas []Metadata) ([]int64, error) {
	if len(vectors) != len(metas) {
		return nil, fmt.Errorf("vectorindex: vectors/metadata length mismatch: %d != %d", len(vectors), len(metas))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := make([]int64, len(vectors))
	for i, v := range vectors {
		id := idx.nextID
		idx.nextID++
		m := metas[i]
		m.ID = id
		idx.vectors = append(idx.vectors, append([]float32(nil), v...))
		idx.metas = append(idx.metas, m)
		ids[i] = id
	}
	logging.For(logging.CategoryVectorIndex).Debugw("added vectors", "count", len(vectors), "total", len(idx.vectors))
	return ids, nil
}

func (idx *LinearIndex) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if topK <= 0 {
		topK = 10
	}
	if len(idx.vectors) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		d, err := l2Distance(query, v)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{
			ID:       idx.metas[i].ID,
			Score:    d,
			Metadata: idx.metas[i],
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (idx *LinearIndex) NTotal() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

type persistedIndex struct {
	Vectors [][]float32 `json:"vectors"`
	NextID  int64       `json:"nextId"`
}

// Save writes "<basePath>.faiss" (gob-encoded vectors) and
// "<basePath>.faiss.metadata.json" (JSON metadata side-table) as a pair.
func (idx *LinearIndex) Save(basePath string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	indexPath := basePath + ".faiss"
	metaPath := basePath + ".faiss.metadata.json"

	f, err := os.Create(indexPath)
	if err != nil {
		return fmt.Errorf("vectorindex: create %s: %w", indexPath, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(persistedIndex{Vectors: idx.vectors, NextID: idx.nextID}); err != nil {
		return fmt.Errorf("vectorindex: encode index: %w", err)
	}

	metaData, err := json.Marshal(idx.metas)
	if err != nil {
		return fmt.Errorf("vectorindex: marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaData, 0o644); err != nil {
		return fmt.Errorf("vectorindex: write %s: %w", metaPath, err)
	}
	return nil
}

// Load reads the index/metadata pair. Divergence (index present, metadata
// missing) falls back to an empty index per spec.md §4.2.
func (idx *LinearIndex) Load(basePath string) error {
	indexPath := basePath + ".faiss"
	metaPath := basePath + ".faiss.metadata.json"

	f, err := os.Open(indexPath)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("vectorindex: open %s: %w", indexPath, err)
	}
	defer f.Close()

	var persisted persistedIndex
	if err := gob.NewDecoder(f).Decode(&persisted); err != nil {
		return fmt.Errorf("vectorindex: decode index: %w", err)
	}

	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		logging.For(logging.CategoryVectorIndex).Warnw("metadata missing, falling back to empty index", "path", metaPath)
		idx.mu.Lock()
		idx.vectors = nil
		idx.metas = nil
		idx.nextID = 1
		idx.mu.Unlock()
		return nil
	}
	var metas []Metadata
	if err := json.Unmarshal(metaData, &metas); err != nil {
		return fmt.Errorf("vectorindex: unmarshal metadata: %w", err)
	}
	if len(metas) != len(persisted.Vectors) {
		logging.For(logging.CategoryVectorIndex).Warnw("metadata/index length mismatch, falling back to empty index",
			"metaLen", len(metas), "vectorLen", len(persisted.Vectors))
		idx.mu.Lock()
		idx.vectors = nil
		idx.metas = nil
		idx.nextID = 1
		idx.mu.Unlock()
		return nil
	}

	idx.mu.Lock()
	idx.vectors = persisted.Vectors
	idx.metas = metas
	idx.nextID = persisted.NextID
	idx.mu.Unlock()
	return nil
}
