package topk

import (
	"strconv"
	"strings"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

// Collections were indexed at different times by different pipelines, so rows
// come back with inconsistent field names. Each attribute is resolved through
// an ordered chain of known aliases; the first non-empty one wins.
var (
	docIDKeys   = []string{"doc_id", "document_id", "id", "_id"}
	articleKeys = []string{"artigo_numero", "artigo", "section"}
	titleKeys   = []string{"titulo", "title", "document_title"}
	excerptKeys = []string{"trecho", "excerto", "ementa", "text", "chunk", "content"}
	scoreKeys   = []string{"score", "text_score", "sim", "similarity", "_score"}
	numberKeys  = []string{"numero_portaria", "numero", "num"}
	issuedKeys  = []string{"ano", "data", "date"}
)

// normalizeRow maps one loose backend row onto a SearchHit. Rows with no
// excerpt text under any known key are rejected; everything else gets
// placeholder-friendly defaults.
func normalizeRow(row map[string]any) (domain.SearchHit, bool) {
	hit := domain.SearchHit{
		DocumentID: firstString(row, docIDKeys),
		Article:    orDash(firstString(row, articleKeys)),
		Title:      orDash(firstString(row, titleKeys)),
		Number:     firstString(row, numberKeys),
		IssuedAt:   firstString(row, issuedKeys),
		Excerpt:    resolveExcerpt(row),
	}
	if strings.TrimSpace(hit.Excerpt) == "" {
		return domain.SearchHit{}, false
	}
	if score, ok := firstNumber(row, scoreKeys); ok {
		hit.Score = score
		hit.Scored = true
	}
	return hit, true
}

// resolveExcerpt prefers the pre-cut passage fields; older collections carry
// the legal head and body separately, which are then joined.
func resolveExcerpt(row map[string]any) string {
	for _, key := range []string{"trecho", "excerto"} {
		if v := stringValue(row[key]); strings.TrimSpace(v) != "" {
			return v
		}
	}

	caput := strings.TrimSpace(stringValue(row["caput"]))
	texto := strings.TrimSpace(stringValue(row["texto"]))
	if caput != "" || texto != "" {
		if caput == "" {
			return texto
		}
		if texto == "" {
			return caput
		}
		return caput + "\n" + texto
	}

	for _, key := range excerptKeys[2:] {
		if v := stringValue(row[key]); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstString(row map[string]any, keys []string) string {
	for _, key := range keys {
		if v := stringValue(row[key]); strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstNumber(row map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		switch v := row[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// stringValue renders scalar JSON values as text. Numbers show up where the
// indexer stored years or document numbers numerically.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
