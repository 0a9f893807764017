package usecase

import "github.com/gfaraujo/normabot/internal/core/domain"

const DefaultMinSimilarity = 0.28

// ConfidenceGate decides whether retrieved hits give enough basis to answer.
// In strict mode a below-threshold best score means the pipeline refuses; in
// non-strict mode the hits still flow through, only flagged as weak.
type ConfidenceGate struct {
	MinSimilarity float64
	Strict        bool
}

// GateDecision carries the gate outcome. Reason is set only on rejection.
type GateDecision struct {
	Accepted bool
	Hits     []domain.SearchHit
	Reason   string
}

func NewConfidenceGate(minSimilarity float64, strict bool) ConfidenceGate {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return ConfidenceGate{MinSimilarity: minSimilarity, Strict: strict}
}

// Evaluate filters the hits to those at or above the threshold. An accepted
// decision carries only the clearing hits, so sub-threshold noise never turns
// into a citable prompt block. A rejection still carries the originals for
// the non-strict fallback path. Hits without a score cannot clear: an
// unscored excerpt is no evidence of relevance.
func (g ConfidenceGate) Evaluate(hits []domain.SearchHit) GateDecision {
	if len(hits) == 0 {
		return GateDecision{Reason: "no_basis"}
	}
	cleared := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Scored && h.Score >= g.MinSimilarity {
			cleared = append(cleared, h)
		}
	}
	if len(cleared) == 0 {
		return GateDecision{Hits: hits, Reason: "no_basis"}
	}
	return GateDecision{Accepted: true, Hits: cleared}
}
