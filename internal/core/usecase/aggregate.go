package usecase

import (
	"context"
	"sync"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

// MultiCollectionAggregator fans one query out to every configured collection
// in parallel and merges the per-collection results into a single grouped set.
type MultiCollectionAggregator struct {
	searcher    *CollectionSearcher
	collections []domain.CollectionRef
	perCollK    int
}

func NewMultiCollectionAggregator(searcher *CollectionSearcher, collections []domain.CollectionRef, perCollK int) *MultiCollectionAggregator {
	if perCollK < 1 {
		perCollK = defaultTopK
	}
	return &MultiCollectionAggregator{
		searcher:    searcher,
		collections: collections,
		perCollK:    perCollK,
	}
}

func (a *MultiCollectionAggregator) Collections() []domain.CollectionRef {
	return a.collections
}

// SearchAll queries every collection concurrently and waits for all of them.
// Collections that return nothing are omitted from the result, and hits are
// deduplicated per collection on (document, article, title), keeping the
// first (highest scored) occurrence. Hits come back stamped with the logical
// id of the collection that produced them.
func (a *MultiCollectionAggregator) SearchAll(ctx context.Context, query string) domain.ResultSet {
	results := make([][]domain.SearchHit, len(a.collections))

	var wg sync.WaitGroup
	for i, coll := range a.collections {
		wg.Add(1)
		go func(i int, coll domain.CollectionRef) {
			defer wg.Done()
			results[i] = a.searcher.Search(ctx, coll.Name, query, a.perCollK)
		}(i, coll)
	}
	wg.Wait()

	out := make(domain.ResultSet, len(a.collections))
	for i, coll := range a.collections {
		hits := dedupeHits(results[i])
		for j := range hits {
			hits[j].Collection = coll.ID
		}
		if len(hits) > 0 {
			out[coll.ID] = hits
		}
	}
	return out
}

// SearchAllFlat returns the same hits as SearchAll in a single slice, ordered
// by the configured collection order.
func (a *MultiCollectionAggregator) SearchAllFlat(ctx context.Context, query string) []domain.SearchHit {
	return a.SearchAll(ctx, query).Flatten(a.collections)
}

func dedupeHits(hits []domain.SearchHit) []domain.SearchHit {
	if len(hits) < 2 {
		return hits
	}
	seen := make(map[string]struct{}, len(hits))
	out := hits[:0:0]
	for _, h := range hits {
		key := h.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
