package ports

import (
	"context"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the retrieval-ranking and
// answer-assembly pipeline. The returned Reply always carries non-empty text;
// an error is returned only when the context is done.
type QuestionAnswerer interface {
	Answer(ctx context.Context, userID, question string) (domain.Reply, error)
}

// MessageHandler is the inbound contract for processing one queued WhatsApp
// message end to end (dedup, answer, memory, send).
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.InboundMessage) error
}
