// Package vectorindex implements the Vector Index (spec.md §4.2): a dense
// vector index keyed by an auto-incrementing internal id, with an external
// metadata side-table. The default backend is a pure-Go linear L2 scan,
// correct for the small-to-medium corpora this core operates on.
// SQLiteIndex (sqlite.go) keeps vectors and metadata in one SQLite file and
// also searches by a linear L2 scan in Go. Building with the sqlite_vec and
// cgo tags only registers the sqlite-vec extension (sqlite_vec.go); no
// backend uses it.
package vectorindex

import (
	"context"
	"fmt"
	"math"
)

// Metadata describes one stored vector's provenance.
type Metadata struct {
	ID       int64  `json:"id"`
	Source   string `json:"source"`
	Text     string `json:"text"`
	StartPos int    `json:"startPos"`
	EndPos   int    `json:"endPos"`
}

// SearchResult is one ranked hit, sorted by ascending L2 distance.
type SearchResult struct {
	ID       int64
	Score    float64
	Metadata Metadata
}

// Index is the Vector Index contract.
type Index interface {
	// Add appends vectors with length-matched metadata, assigning ids.
	Add(ctx context.Context, vectors [][]float32, metas []Metadata) ([]int64, error)
	// Search returns up to topK nearest neighbors to query, ascending by
	// L2 distance. An empty index returns an empty slice.
	Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error)
	// NTotal returns the number of stored vectors.
	NTotal() int
	// Save persists the index and its metadata side-table as a single
	// logical unit to basePath ("<basePath>.faiss" and
	// "<basePath>.faiss.metadata.json").
	Save(basePath string) error
	// Load reads the index and metadata from basePath. If the metadata
	// file is missing while the index file is present, Load falls back to
	// an empty index rather than erroring (spec.md §4.2).
	Load(basePath string) error
}

func l2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectorindex: dimension mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
