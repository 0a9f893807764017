package ports

import (
	"context"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

// SearchIndex executes one query strategy against one backend collection.
// Implementations return the backend's hits already parsed into SearchHit;
// they do not filter, dedupe or reorder.
type SearchIndex interface {
	Hybrid(ctx context.Context, collection string, q domain.IndexQuery) ([]domain.SearchHit, error)
	Keyword(ctx context.Context, collection string, q domain.IndexQuery) ([]domain.SearchHit, error)
}

// Completer produces the final answer text from the assembled prompt.
// Conversation history travels inside the user message (the assembler's
// history block), not as separate chat turns.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ConversationMemory persists per-user short-term history. Append-only from
// the pipeline's perspective; Recent returns at most n turns, oldest first.
type ConversationMemory interface {
	Append(ctx context.Context, userID string, turn domain.ConversationTurn) error
	Recent(ctx context.Context, userID string, n int) ([]domain.ConversationTurn, error)
}

// MessageSender delivers text back to the end user, chunking as the transport
// requires.
type MessageSender interface {
	SendText(ctx context.Context, to, text string) error
	MarkRead(ctx context.Context, messageID string) error
}

// MessageDeduper remembers recently processed message ids.
type MessageDeduper interface {
	Seen(ctx context.Context, messageID string) (bool, error)
}

// MessageQueue decouples webhook acknowledgement from message processing.
type MessageQueue interface {
	PublishInbound(ctx context.Context, msg domain.InboundMessage) error
	SubscribeInbound(ctx context.Context, handler func(context.Context, domain.InboundMessage) error) error
}
