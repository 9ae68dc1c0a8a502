// Package memindex is a per-request in-memory vector index with brute-force
// cosine similarity search. An index holds exactly one corpus and is
// discarded when the request completes.
package memindex

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lucidate/scribe/internal/domain"
)

// Index stores passages with their embedding vectors.
type Index struct {
	mu       sync.RWMutex
	dim      int
	vectors  [][]float32
	passages []string
}

// New creates an empty index. The dimension is pinned by the first Add.
func New() *Index {
	return &Index{}
}

// Add inserts a passage with its vector.
func (x *Index) Add(passage string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for passage")
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		x.dim = len(vector)
	} else if len(vector) != x.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), x.dim)
	}
	x.vectors = append(x.vectors, vector)
	x.passages = append(x.passages, passage)
	return nil
}

// Len returns the number of stored passages.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.passages)
}

// Search returns the topK most similar passages, best first.
func (x *Index) Search(vector []float32, topK int) []domain.Passage {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if topK <= 0 || len(x.vectors) == 0 {
		return nil
	}

	scored := make([]domain.Passage, len(x.vectors))
	for i, v := range x.vectors {
		scored[i] = domain.Passage{Text: x.passages[i], Score: cosine(v, vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

// cosine computes cosine similarity; zero vectors score 0.
func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
