package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/core/ports"
)

const (
	AskForTextMessage = "Por enquanto só consigo responder mensagens de texto. Pode escrever sua pergunta?"
	PanicMessage      = "Ocorreu um erro inesperado ao processar sua mensagem. Tente novamente."

	defaultAnswerTimeout = 60 * time.Second
)

// HandleMessageUseCase processes one inbound WhatsApp message end to end:
// dedup, read receipt, answer, memory, delivery.
type HandleMessageUseCase struct {
	answerer ports.QuestionAnswerer
	memory   ports.ConversationMemory
	sender   ports.MessageSender
	deduper  ports.MessageDeduper
	timeout  time.Duration
}

func NewHandleMessageUseCase(
	answerer ports.QuestionAnswerer,
	memory ports.ConversationMemory,
	sender ports.MessageSender,
	deduper ports.MessageDeduper,
	timeout time.Duration,
) *HandleMessageUseCase {
	if timeout <= 0 {
		timeout = defaultAnswerTimeout
	}
	return &HandleMessageUseCase{
		answerer: answerer,
		memory:   memory,
		sender:   sender,
		deduper:  deduper,
		timeout:  timeout,
	}
}

var _ ports.MessageHandler = (*HandleMessageUseCase)(nil)

// Handle never lets a processing failure escape without the user getting some
// reply. Errors are returned only for queue-level visibility; the message is
// considered consumed either way.
func (u *HandleMessageUseCase) Handle(ctx context.Context, msg domain.InboundMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("message handling panicked", "message_id", msg.MessageID, "panic", r)
			u.send(ctx, msg.From, PanicMessage)
			err = fmt.Errorf("handle %s: panic: %v", msg.MessageID, r)
		}
	}()

	if u.alreadySeen(ctx, msg.MessageID) {
		slog.Debug("duplicate message skipped", "message_id", msg.MessageID)
		return nil
	}

	// Best effort: a failed read receipt must not block the answer.
	if err := u.sender.MarkRead(ctx, msg.MessageID); err != nil {
		slog.Warn("mark read failed", "message_id", msg.MessageID, "error", err)
	}

	if strings.TrimSpace(msg.Text) == "" {
		return u.send(ctx, msg.From, AskForTextMessage)
	}

	actx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	reply, err := u.answerer.Answer(actx, msg.From, msg.Text)
	if err != nil {
		slog.Error("answer pipeline failed", "message_id", msg.MessageID, "error", err)
		if reply.Text == "" {
			reply.Text = BackendDownMessage
		}
	}

	u.remember(ctx, msg.From, domain.TurnRoleUser, msg.Text)
	u.remember(ctx, msg.From, domain.TurnRoleAssistant, reply.Text)

	return u.send(ctx, msg.From, reply.Text)
}

// alreadySeen treats dedup store failures as "not seen": answering twice is
// better than silently dropping a question.
func (u *HandleMessageUseCase) alreadySeen(ctx context.Context, messageID string) bool {
	seen, err := u.deduper.Seen(ctx, messageID)
	if err != nil {
		slog.Warn("dedup check failed, processing anyway", "message_id", messageID, "error", err)
		return false
	}
	return seen
}

func (u *HandleMessageUseCase) remember(ctx context.Context, userID string, role domain.TurnRole, content string) {
	turn := domain.ConversationTurn{Role: role, Content: content, CreatedAt: time.Now().UTC()}
	if err := u.memory.Append(ctx, userID, turn); err != nil {
		slog.Warn("conversation append failed", "user", userID, "error", err)
	}
}

func (u *HandleMessageUseCase) send(ctx context.Context, to, text string) error {
	if err := u.sender.SendText(ctx, to, text); err != nil {
		slog.Error("send failed", "to", to, "error", err)
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}
