package domain

import "strings"

// CollectionRef points at one logical document collection on the search backend.
type CollectionRef struct {
	ID   string `json:"id"`   // logical type, e.g. "Decreto"
	Name string `json:"name"` // backend collection name, e.g. "pmpr_decretos"
}

// SearchHit is one retrieved passage, normalized from the backend's loose shape.
type SearchHit struct {
	Collection string  `json:"collection"`
	DocumentID string  `json:"document_id"`
	Article    string  `json:"article"` // "-" when the backend has no sub-unit reference
	Title      string  `json:"title"`   // "-" when unknown
	Number     string  `json:"number"`
	IssuedAt   string  `json:"issued_at"` // year or full date, format heterogeneous
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score"`
	Scored     bool    `json:"scored"` // false when the backend returned no score field
}

// Usable reports whether the hit can enter aggregation at all.
func (h SearchHit) Usable() bool {
	return strings.TrimSpace(h.Excerpt) != ""
}

// DedupKey identifies the logical citation behind a hit. Two hits sharing a key
// are the same citation even when their excerpt text differs.
func (h SearchHit) DedupKey() string {
	return h.DocumentID + "|" + h.Article + "|" + strings.TrimSpace(h.Title)
}

// ResultSet groups deduplicated hits by logical collection id. Collections
// without usable hits are absent from the map, never present as empty slices.
type ResultSet map[string][]SearchHit

// Flatten returns all hits as one list in the caller-supplied collection order,
// each hit already stamped with its collection id.
func (rs ResultSet) Flatten(order []CollectionRef) []SearchHit {
	out := make([]SearchHit, 0, len(rs)*4)
	for _, ref := range order {
		out = append(out, rs[ref.ID]...)
	}
	return out
}

// IndexQuery is the normalized request handed to a search backend strategy.
type IndexQuery struct {
	Text      string // normalized query text
	ASCIIText string // diacritic-folded variant, for accent-sensitive lexical indexes
	Number    string // explicit document number extracted from the query, "" when absent
	Limit     int
}
