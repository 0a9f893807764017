package topk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/core/ports"
	"github.com/gfaraujo/normabot/internal/infrastructure/resilience"
)

// Default scoring profile sent with every query. The backend combines the
// semantic and lexical components per field and adds a small boost when the
// extracted document number matches exactly.
const (
	DefaultSemanticWeight = 0.8
	DefaultLexicalWeight  = 0.2
	DefaultTextWeight     = 0.4
	DefaultEmentaWeight   = 0.3
	DefaultTitleWeight    = 0.3
	DefaultNumberBoost    = 0.05
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	SemanticWeight float64
	LexicalWeight  float64
	TextWeight     float64
	EmentaWeight   float64
	TitleWeight    float64
	NumberBoost    float64
}

func (c Config) normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.SemanticWeight <= 0 {
		c.SemanticWeight = DefaultSemanticWeight
	}
	if c.LexicalWeight <= 0 {
		c.LexicalWeight = DefaultLexicalWeight
	}
	if c.TextWeight <= 0 {
		c.TextWeight = DefaultTextWeight
	}
	if c.EmentaWeight <= 0 {
		c.EmentaWeight = DefaultEmentaWeight
	}
	if c.TitleWeight <= 0 {
		c.TitleWeight = DefaultTitleWeight
	}
	if c.NumberBoost <= 0 {
		c.NumberBoost = DefaultNumberBoost
	}
	return c
}

// Client talks to the document search service over its JSON query API. It
// implements both retrieval strategies; row normalization lives in the
// adapter, not here.
type Client struct {
	cfg      Config
	http     *http.Client
	executor *resilience.Executor
}

func NewClient(cfg Config, executor *resilience.Executor) *Client {
	cfg = cfg.normalize()
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		executor: executor,
	}
}

var _ ports.SearchIndex = (*Client)(nil)

func (c *Client) Hybrid(ctx context.Context, collection string, q domain.IndexQuery) ([]domain.SearchHit, error) {
	return c.query(ctx, collection, "hybrid", q)
}

func (c *Client) Keyword(ctx context.Context, collection string, q domain.IndexQuery) ([]domain.SearchHit, error) {
	return c.query(ctx, collection, "keyword", q)
}

type queryRequest struct {
	Query      string  `json:"query"`
	QueryASCII string  `json:"query_ascii,omitempty"`
	Number     string  `json:"number,omitempty"`
	TopK       int     `json:"top_k"`
	Mode       string  `json:"mode"`
	Scoring    scoring `json:"scoring"`
}

type scoring struct {
	SemanticWeight float64            `json:"semantic_weight"`
	LexicalWeight  float64            `json:"lexical_weight"`
	FieldWeights   map[string]float64 `json:"field_weights"`
	NumberBoost    float64            `json:"number_boost"`
}

type queryResponse struct {
	Results []map[string]any `json:"results"`
}

func (c *Client) query(ctx context.Context, collection, mode string, q domain.IndexQuery) ([]domain.SearchHit, error) {
	body := queryRequest{
		Query:      q.Text,
		QueryASCII: q.ASCIIText,
		Number:     q.Number,
		TopK:       q.Limit,
		Mode:       mode,
		Scoring: scoring{
			SemanticWeight: c.cfg.SemanticWeight,
			LexicalWeight:  c.cfg.LexicalWeight,
			FieldWeights: map[string]float64{
				"texto":  c.cfg.TextWeight,
				"ementa": c.cfg.EmentaWeight,
				"titulo": c.cfg.TitleWeight,
			},
			NumberBoost: c.cfg.NumberBoost,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/collections/%s/query",
		c.cfg.BaseURL, url.PathEscape(collection))

	var hits []domain.SearchHit
	call := func(ctx context.Context) error {
		var err error
		hits, err = c.doQuery(ctx, endpoint, payload)
		return err
	}

	op := "search." + mode
	if c.executor != nil {
		err = c.executor.Execute(ctx, op, call, classifySearchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, op, err)
	}
	return hits, nil
}

func (c *Client) doQuery(ctx context.Context, endpoint string, payload []byte) ([]domain.SearchHit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Body is read for the error message only; 8KB is plenty.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, &statusError{code: resp.StatusCode, body: string(snippet)}
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(decoded.Results))
	for _, row := range decoded.Results {
		if hit, ok := normalizeRow(row); ok {
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("search backend returned %d: %s", e.code, e.body)
}
