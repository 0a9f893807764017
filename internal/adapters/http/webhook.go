package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

// Meta caps webhook payloads well below this; the limit only bounds abuse.
const maxWebhookBody = 1 << 20

// verifyWebhook answers the hub.challenge handshake Meta performs when the
// webhook URL is registered.
func (rt *Router) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != rt.verifyToken {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "verification failed"})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// receiveEvents walks the notification payload, publishes every text message
// to the queue and acknowledges immediately. Status-only events (delivered,
// read) are acknowledged without publishing. A rejected signature is the only
// path that does not return 200: Meta retries those, and retrying is correct.
func (rt *Router) receiveEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !rt.verifySignature(r.Header.Get("X-Hub-Signature-256"), body) {
		if rt.metrics != nil {
			rt.metrics.RecordSignatureFailure()
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Malformed payloads are acknowledged; a retry cannot fix them.
		slog.Warn("undecodable webhook payload", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	inbound := payload.messages(time.Now().UTC())
	for _, msg := range inbound {
		if rt.metrics != nil {
			rt.metrics.RecordWebhookEvent(rt.service, "message")
		}
		err := rt.queue.PublishInbound(r.Context(), msg)
		if rt.metrics != nil {
			rt.metrics.RecordPublish(rt.service, err)
		}
		if err != nil {
			// The 200 still goes out: Meta redelivers the whole batch on
			// non-200, and the dedup layer absorbs redelivered siblings.
			slog.Error("publish inbound failed",
				"message_id", msg.MessageID, "error", err)
		}
	}
	if rt.metrics != nil && len(inbound) == 0 {
		rt.metrics.RecordWebhookEvent(rt.service, "status")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// webhookPayload mirrors the Cloud API notification envelope. Only the parts
// the bot reads are declared; everything else is ignored on decode.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []webhookMessage `json:"messages"`
				Statuses []json.RawMessage `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Button struct {
		Text string `json:"text"`
	} `json:"button"`
	Interactive struct {
		ButtonReply struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// messages flattens the envelope into inbound messages. Non-text types come
// through with empty text; the worker answers those with the ask-for-text
// canned message.
func (p webhookPayload) messages(receivedAt time.Time) []domain.InboundMessage {
	var out []domain.InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				out = append(out, domain.InboundMessage{
					MessageID:  m.ID,
					PhoneID:    change.Value.Metadata.PhoneNumberID,
					From:       m.From,
					Text:       m.textContent(),
					ReceivedAt: receivedAt,
				})
			}
		}
	}
	return out
}

func (m webhookMessage) textContent() string {
	switch m.Type {
	case "text":
		return strings.TrimSpace(m.Text.Body)
	case "button":
		return strings.TrimSpace(m.Button.Text)
	case "interactive":
		if t := strings.TrimSpace(m.Interactive.ButtonReply.Title); t != "" {
			return t
		}
		return strings.TrimSpace(m.Interactive.ListReply.Title)
	default:
		return ""
	}
}
