package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/core/ports"
	"github.com/gfaraujo/normabot/internal/infrastructure/resilience"
)

// WhatsApp rejects text bodies over 4096 characters; 3800 leaves headroom
// for the chunk counter prefix.
const MaxMessageChars = 3800

type Config struct {
	BaseURL       string // default https://graph.facebook.com/v20.0
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
	SendRate      rate.Limit // messages per second across all users
	SendBurst     int
}

func (c Config) normalize() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://graph.facebook.com/v20.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.SendRate <= 0 {
		c.SendRate = 10
	}
	if c.SendBurst <= 0 {
		c.SendBurst = 5
	}
	return c
}

// Client sends messages through the WhatsApp Cloud API. Long answers are
// split into numbered chunks; delivery is rate limited and retried on the
// transient Graph API statuses.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	executor *resilience.Executor
}

func NewClient(cfg Config, executor *resilience.Executor) *Client {
	cfg = cfg.normalize()
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(cfg.SendRate, cfg.SendBurst),
		executor: executor,
	}
}

var _ ports.MessageSender = (*Client)(nil)

// SendText delivers text to one user, chunking when it exceeds the transport
// limit. Chunks go out in order; a failed chunk aborts the remainder so the
// user never sees a gap in the middle of an answer.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	chunks := chunkText(text, MaxMessageChars)
	total := len(chunks)
	for i, chunk := range chunks {
		if total > 1 {
			chunk = fmt.Sprintf("(%d/%d)\n%s", i+1, total, chunk)
		}
		if err := c.sendOne(ctx, to, chunk); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, total, err)
		}
	}
	return nil
}

func (c *Client) sendOne(ctx context.Context, to, body string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body, "preview_url": false},
	}

	call := func(ctx context.Context) error {
		return c.post(ctx, payload)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "whatsapp.send", call, classifyGraphError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrBackendUnavailable, "whatsapp.send", err)
	}
	return nil
}

// MarkRead flips the blue check on the user's side. Callers treat failures
// as non-fatal.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	if err := c.post(ctx, payload); err != nil {
		return domain.WrapError(domain.ErrTemporary, "whatsapp.mark_read", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &graphError{code: resp.StatusCode, body: string(snippet)}
	}
	return nil
}

type graphError struct {
	code int
	body string
}

func (e *graphError) Error() string {
	return fmt.Sprintf("graph api returned %d: %s", e.code, e.body)
}

func classifyGraphError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	var gErr *graphError
	if errors.As(err, &gErr) {
		retryable := gErr.code == http.StatusTooManyRequests || gErr.code >= 500
		return resilience.ErrorClassification{
			Retryable:     retryable,
			RecordFailure: gErr.code >= 500,
		}
	}
	return resilience.ErrorClassification{
		Retryable:     true,
		RecordFailure: true,
	}
}

// chunkText splits text into pieces of at most limit runes, preferring to
// break on a paragraph boundary, then a line, then a space.
func chunkText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		cut := limit
		window := string(runes[:limit])
		for _, sep := range []string{"\n\n", "\n", " "} {
			if idx := lastIndexRunes(window, sep); idx > limit/2 {
				cut = idx + len([]rune(sep))
				break
			}
		}

		chunks = append(chunks, trimRight(string(runes[:cut])))
		runes = runes[cut:]
	}
	return chunks
}

func lastIndexRunes(s, sep string) int {
	idx := -1
	sepRunes := []rune(sep)
	sRunes := []rune(s)
	for i := 0; i+len(sepRunes) <= len(sRunes); i++ {
		if string(sRunes[i:i+len(sepRunes)]) == sep {
			idx = i
		}
	}
	return idx
}

func trimRight(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
