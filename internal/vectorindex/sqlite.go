package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"evocore/internal/logging"
)

// SQLiteIndex persists vectors and their metadata together in a single
// SQLite database file (via the pure-Go modernc.org/sqlite driver, so no
// cgo toolchain is required), satisfying the "index and metadata are a
// single logical unit" invariant by construction: there is only one file to
// diverge from. Search is a linear L2 scan in Go; this backend trades
// search speed for durability and crash-safety over LinearIndex's
// gob+json file pair.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLiteIndex opens (creating if necessary) a SQLite-backed vector
// index at path.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open sqlite %s: %w", path, err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS vectors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	embedding BLOB NOT NULL,
	source TEXT,
	text TEXT,
	start_pos INTEGER,
	end_pos INTEGER
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorindex: create schema: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func (s *SQLiteIndex) Add(ctx context.Context, vectors [][]float32, metas []Metadata) ([]int64, error) {
	if len(vectors) != len(metas) {
		return nil, fmt.Errorf("vectorindex: vectors/metadata length mismatch: %d != %d", len(vectors), len(metas))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]int64, len(vectors))
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors(embedding, source, text, start_pos, end_pos) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for i, v := range vectors {
		res, err := stmt.ExecContext(ctx, encodeVector(v), metas[i].Source, metas[i].Text, metas[i].StartPos, metas[i].EndPos)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	logging.For(logging.CategoryVectorIndex).Debugw("sqlite index: added vectors", "count", len(vectors))
	return ids, nil
}

func (s *SQLiteIndex) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding, source, text, start_pos, end_pos FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var id int64
		var emb []byte
		var meta Metadata
		if err := rows.Scan(&id, &emb, &meta.Source, &meta.Text, &meta.StartPos, &meta.EndPos); err != nil {
			continue
		}
		meta.ID = id
		d, err := l2Distance(query, decodeVector(emb))
		if err != nil {
			continue
		}
		results = append(results, SearchResult{ID: id, Score: d, Metadata: meta})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

func (s *SQLiteIndex) NTotal() int {
	var n int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM vectors`).Scan(&n)
	return n
}

// Save is a no-op: the SQLite database file is already the persisted form.
func (s *SQLiteIndex) Save(basePath string) error { return nil }

// Load is a no-op: data is read live from the open database on every call.
func (s *SQLiteIndex) Load(basePath string) error { return nil }

// Close releases the underlying database handle.
func (s *SQLiteIndex) Close() error { return s.db.Close() }
