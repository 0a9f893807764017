package domain

import "strings"

// PromptContext is the assembled per-request view handed to the completion
// model. It is derived state: built, sent, discarded.
type PromptContext struct {
	Rules        string
	HistoryBlock string
	ContextBlock string
	UserQuery    string
}

// UserMessage renders the single user-role message sent alongside the rules.
func (p PromptContext) UserMessage() string {
	var b strings.Builder
	if p.HistoryBlock != "" {
		b.WriteString("Histórico recente:\n")
		b.WriteString(p.HistoryBlock)
		b.WriteString("\n\n")
	}
	b.WriteString("Contexto (trechos recuperados):\n")
	b.WriteString(p.ContextBlock)
	b.WriteString("\n\nPergunta do usuário:\n")
	b.WriteString(p.UserQuery)
	return b.String()
}

// Len is the total character size of the assembled context, the quantity the
// assembler's budget applies to.
func (p PromptContext) Len() int {
	return len(p.Rules) + len(p.HistoryBlock) + len(p.ContextBlock) + len(p.UserQuery)
}

// Reply is the pipeline's terminal outcome for one question. Text is always
// non-empty, whatever failed upstream.
type Reply struct {
	Text     string
	Grounded bool // at least one excerpt cleared the similarity threshold
	Sources  []SearchHit
}
