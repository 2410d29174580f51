package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"evocore/internal/modelapi"
)

const embeddingMemoCapacity = 1000

// Cache is the Reasoning Cache (spec.md §4.5): a similarity-keyed store of
// prior {request, embedding, plan} triples, single-writer-per-instance.
type Cache struct {
	mu                  sync.Mutex
	embedder            modelapi.Embedder
	similarityThreshold float64
	items               map[string]*CachedReasoningItem // keyed by a stable hash of the request
	embeddingMemo       map[string][]float32
	memoOrder           []string // insertion order, for oldest-eviction
}

// NewCache constructs a Reasoning Cache backed by embedder for similarity
// lookups.
func NewCache(embedder modelapi.Embedder, similarityThreshold float64) *Cache {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.85
	}
	return &Cache{
		embedder:            embedder,
		similarityThreshold: similarityThreshold,
		items:               make(map[string]*CachedReasoningItem),
		embeddingMemo:       make(map[string][]float32),
	}
}

// embed memoizes embeddings by raw request string with a bounded capacity
// and oldest-eviction, per spec.md §4.5.
func (c *Cache) embed(ctx context.Context, request string) ([]float32, error) {
	c.mu.Lock()
	if v, ok := c.embeddingMemo[request]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	vecs, err := c.embedder.Embed(ctx, []string{request})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("reasoning: embedder returned no vectors for request")
	}
	vec := vecs[0]

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.embeddingMemo[request]; !exists {
		if len(c.memoOrder) >= embeddingMemoCapacity {
			oldest := c.memoOrder[0]
			c.memoOrder = c.memoOrder[1:]
			delete(c.embeddingMemo, oldest)
		}
		c.memoOrder = append(c.memoOrder, request)
	}
	c.embeddingMemo[request] = vec
	return vec, nil
}

// Embed exposes the memoized embedding lookup for callers (e.g. the
// orchestrator) that need "compute the embedding once" semantics shared
// by the cache and the decision tree (spec.md §4.9 step 2).
func (c *Cache) Embed(ctx context.Context, request string) ([]float32, error) {
	return c.embed(ctx, request)
}

func requestKey(request string) string {
	return fmt.Sprintf("%x", hashString(request))
}

func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// FindSimilar scans stored entries for the highest cosine similarity to the
// embedding of request, returning the match if it meets the similarity
// threshold. A hit increments AccessCount.
func (c *Cache) FindSimilar(ctx context.Context, request string) (*CachedReasoningItem, bool, error) {
	embedding, err := c.embed(ctx, request)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var best *CachedReasoningItem
	bestScore := c.similarityThreshold
	for _, item := range c.items {
		score, simErr := modelapi.CosineSimilarity(embedding, item.Embedding)
		if simErr != nil {
			continue
		}
		if score >= bestScore {
			bestScore = score
			best = item
		}
	}
	if best == nil {
		return nil, false, nil
	}
	best.AccessCount++
	result := *best
	return &result, true, nil
}

// Store writes a plan under a stable hash of request, last-writer-wins.
func (c *Cache) Store(request string, embedding []float32, plan ExecutionPlan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[requestKey(request)] = &CachedReasoningItem{
		Request:   request,
		Embedding: embedding,
		Plan:      plan,
		StoredAt:  timeNow(),
	}
}

// UpdateSuccessRate attaches a post-execution outcome to the cached entry
// for request, if one exists.
func (c *Cache) UpdateSuccessRate(request string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[requestKey(request)]
	if !ok {
		return
	}
	reward := 0.0
	if success {
		reward = 1.0
	}
	item.SuccessRate = 0.8*item.SuccessRate + 0.2*reward
}

// persistedCache is the on-disk shape for Save/Load.
type persistedCache struct {
	Items []CachedReasoningItem `json:"items"`
}

// Save writes every cached item to path as JSON.
func (c *Cache) Save(path string) error {
	c.mu.Lock()
	items := make([]CachedReasoningItem, 0, len(c.items))
	for _, v := range c.items {
		items = append(items, *v)
	}
	c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(persistedCache{Items: items}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load replaces the cache's contents with what is stored at path. A
// missing file is not an error.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var pc persistedCache
	if err := json.Unmarshal(data, &pc); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*CachedReasoningItem, len(pc.Items))
	for i := range pc.Items {
		item := pc.Items[i]
		c.items[requestKey(item.Request)] = &item
	}
	return nil
}

var timeNow = func() time.Time { return time.Now() }
