package domain

import "time"

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one message of the per-user short-term history,
// consumed read-only by the context assembler.
type ConversationTurn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// InboundMessage is one text message received over the WhatsApp webhook,
// carried through the queue to the worker.
type InboundMessage struct {
	MessageID  string    `json:"message_id"`
	PhoneID    string    `json:"phone_id"` // business phone_number_id the message arrived on
	From       string    `json:"from"`     // end-user wa id
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}
