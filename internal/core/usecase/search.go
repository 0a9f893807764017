package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/core/ports"
)

const defaultTopK = 5

// docTypeKeywordPattern matches the administrative document-type words that,
// together with a short number, make a query "ID-like" (e.g. "portaria 641").
var docTypeKeywordPattern = regexp.MustCompile(`(?i)\b(portaria|decreto|diretriz|lei|resolu[cç][aã]o|instru[cç][aã]o|norma|procedimento)\b`)

var documentNumberPattern = regexp.MustCompile(`\b(\d{2,6})\b`)

// CollectionSearcher runs one query against one collection, routing between
// the keyword and hybrid strategies. Backend failures degrade to zero hits so
// that one broken collection never fails the whole request.
type CollectionSearcher struct {
	index ports.SearchIndex
}

func NewCollectionSearcher(index ports.SearchIndex) *CollectionSearcher {
	return &CollectionSearcher{index: index}
}

// Search returns at most k usable hits, scores normalized to [0,1], sorted by
// descending score. The result is not yet deduplicated; that happens at
// aggregation level.
func (s *CollectionSearcher) Search(ctx context.Context, collection, query string, k int) []domain.SearchHit {
	if k < 1 {
		k = defaultTopK
	}

	q := domain.IndexQuery{
		Text:      query,
		ASCIIText: asciiFold(query),
		Number:    extractDocumentNumber(query),
		Limit:     k,
	}

	if isIDLikeQuery(query) {
		hits, err := s.index.Keyword(ctx, collection, q)
		if err != nil {
			slog.Warn("keyword search degraded to empty",
				"collection", collection, "error", err)
			hits = nil
		}
		if hits = prepareHits(hits, k); len(hits) > 0 {
			return hits
		}
		// Keyword found nothing for an exact-looking reference; the hybrid
		// strategy still gets a chance below.
	}

	hits, err := s.index.Hybrid(ctx, collection, q)
	if err != nil {
		slog.Warn("hybrid search degraded to empty",
			"collection", collection, "error", err)
		return nil
	}
	return prepareHits(hits, k)
}

// prepareHits filters unusable hits, normalizes scores and orders by score.
func prepareHits(hits []domain.SearchHit, k int) []domain.SearchHit {
	usable := hits[:0:0]
	for _, h := range hits {
		if h.Usable() {
			usable = append(usable, h)
		}
	}
	usable = normalizeScores(usable)

	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Scored != usable[j].Scored {
			return usable[i].Scored
		}
		return usable[i].Score > usable[j].Score
	})

	if len(usable) > k {
		usable = usable[:k]
	}
	return usable
}

// normalizeScores maps scores onto a common [0,1] scale before gating. Lexical
// (BM25-like) scores are unbounded and not comparable to cosine similarities,
// so when the maximum exceeds 1 the whole set is divided by it. Cosine-scale
// sets pass through untouched.
func normalizeScores(hits []domain.SearchHit) []domain.SearchHit {
	maxScore := 0.0
	for _, h := range hits {
		if h.Scored && h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore <= 1 {
		return hits
	}
	for i := range hits {
		if hits[i].Scored {
			hits[i].Score /= maxScore
		}
	}
	return hits
}

// isIDLikeQuery reports whether the query names a document type together with
// an explicit 2-6 digit number, which makes exact lexical lookup the better
// first strategy.
func isIDLikeQuery(query string) bool {
	return docTypeKeywordPattern.MatchString(query) && documentNumberPattern.MatchString(query)
}

func extractDocumentNumber(query string) string {
	m := documentNumberPattern.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return m[1]
}
