package topk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

func TestClientSendsScoringProfileAndAuth(t *testing.T) {
	var got queryRequest
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"results":[{"doc_id":"d1","trecho":"texto","score":0.5}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"}, nil)

	hits, err := c.Hybrid(context.Background(), "pmpr_decretos", domain.IndexQuery{
		Text:      "pergunta sobre conduta",
		ASCIIText: "pergunta sobre conduta",
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "d1" {
		t.Fatalf("hits = %+v", hits)
	}

	if gotPath != "/v1/collections/pmpr_decretos/query" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if got.Mode != "hybrid" || got.TopK != 5 {
		t.Fatalf("request = %+v", got)
	}
	if got.Scoring.SemanticWeight != DefaultSemanticWeight ||
		got.Scoring.LexicalWeight != DefaultLexicalWeight {
		t.Fatalf("scoring = %+v", got.Scoring)
	}
	if got.Scoring.FieldWeights["texto"] != DefaultTextWeight ||
		got.Scoring.FieldWeights["ementa"] != DefaultEmentaWeight ||
		got.Scoring.FieldWeights["titulo"] != DefaultTitleWeight {
		t.Fatalf("field weights = %+v", got.Scoring.FieldWeights)
	}
	if got.Scoring.NumberBoost != DefaultNumberBoost {
		t.Fatalf("number boost = %v", got.Scoring.NumberBoost)
	}
}

func TestClientKeywordModeCarriesNumber(t *testing.T) {
	var got queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Keyword(context.Background(), "pmpr_portarias", domain.IndexQuery{
		Text: "portaria 641", Number: "641", Limit: 3,
	})
	if err != nil {
		t.Fatalf("Keyword: %v", err)
	}
	if got.Mode != "keyword" || got.Number != "641" {
		t.Fatalf("request = %+v", got)
	}
}

func TestClientErrorsAreBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.Hybrid(context.Background(), "c", domain.IndexQuery{Text: "q", Limit: 1})
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if !domain.IsKind(err, domain.ErrBackendUnavailable) {
		t.Fatalf("error kind = %v", err)
	}
}

func TestClientSkipsUnusableRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"doc_id":"ok","trecho":"texto","score":0.5},
			{"doc_id":"sem-texto","score":0.9}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	hits, err := c.Hybrid(context.Background(), "c", domain.IndexQuery{Text: "q", Limit: 5})
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "ok" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestClassifySearchErrorStatusCodes(t *testing.T) {
	cases := []struct {
		code      int
		retryable bool
		record    bool
	}{
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, true, true},
		{http.StatusBadGateway, true, true},
		{http.StatusBadRequest, false, true},
		{http.StatusUnauthorized, false, true},
	}
	for _, c := range cases {
		got := classifySearchError(&statusError{code: c.code})
		if got.Retryable != c.retryable || got.RecordFailure != c.record {
			t.Errorf("classify(%d) = %+v, want retryable=%v record=%v",
				c.code, got, c.retryable, c.record)
		}
	}
}
