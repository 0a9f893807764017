package usecase

import (
	"fmt"
	"strings"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

// AssemblerMode controls how much of each excerpt the prompt carries.
type AssemblerMode string

const (
	ModeConcise  AssemblerMode = "concise"
	ModeExpanded AssemblerMode = "expanded"
)

const (
	conciseExcerptBudget  = 600
	expandedExcerptBudget = 1400
	defaultPromptBudget   = 6200
	defaultHistoryWindow  = 3
	historyLineBudget     = 160

	emptyContextMarker = "NENHUM TRECHO ENCONTRADO."
)

// AssemblerConfig tunes the prompt builder. Zero values select the concise
// mode with the default budgets.
type AssemblerConfig struct {
	Mode          AssemblerMode
	PromptBudget  int
	HistoryWindow int
}

// ContextAssembler renders the retrieved hits and the recent conversation
// into the model prompt. It is deterministic: the same hits, history and
// question always produce the same prompt.
type ContextAssembler struct {
	cfg   AssemblerConfig
	rules string
}

func NewContextAssembler(cfg AssemblerConfig, rules string) *ContextAssembler {
	if cfg.Mode == "" {
		cfg.Mode = ModeConcise
	}
	if cfg.PromptBudget <= 0 {
		cfg.PromptBudget = defaultPromptBudget
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	return &ContextAssembler{cfg: cfg, rules: rules}
}

// Assemble builds the prompt. Excerpts are trimmed to the mode's budget and,
// if the whole prompt would still exceed the total budget, dropped from the
// tail. When a single block remains its text is cut, then the history; the
// rules and the question are never touched.
func (a *ContextAssembler) Assemble(hits []domain.SearchHit, history []domain.ConversationTurn, question string) domain.PromptContext {
	pc := domain.PromptContext{
		Rules:        a.rules,
		HistoryBlock: a.renderHistory(history),
		UserQuery:    question,
	}

	excerptBudget := conciseExcerptBudget
	if a.cfg.Mode == ModeExpanded {
		excerptBudget = expandedExcerptBudget
	}

	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		blocks = append(blocks, renderHitBlock(i+1, h, excerptBudget))
	}

	pc.ContextBlock = emptyContextMarker
	if len(blocks) > 0 {
		pc.ContextBlock = strings.Join(blocks, "\n\n")
		for pc.Len() > a.cfg.PromptBudget && len(blocks) > 1 {
			blocks = blocks[:len(blocks)-1]
			pc.ContextBlock = strings.Join(blocks, "\n\n")
		}
		for pc.Len() > a.cfg.PromptBudget && pc.ContextBlock != "" {
			pc.ContextBlock = shrinkTail(pc.ContextBlock, pc.Len()-a.cfg.PromptBudget)
		}
	}
	for pc.Len() > a.cfg.PromptBudget && pc.HistoryBlock != "" {
		pc.HistoryBlock = shrinkTail(pc.HistoryBlock, pc.Len()-a.cfg.PromptBudget)
	}
	return pc
}

// shrinkTail cuts the tail of s to free roughly over bytes. Callers loop on
// the remaining overrun: a multi-byte rune frees more than one byte per rune,
// and the ellipsis truncate appends costs a few back.
func shrinkTail(s string, over int) string {
	keep := len([]rune(s)) - over - 1
	if keep <= 0 {
		return ""
	}
	return truncate(s, keep)
}

// renderHitBlock formats one numbered source block, e.g.
//
//	[1] Decreto nº 123 (2019) — Regulamento disciplinar, art. 5
//	<excerpt>
//
// Missing numbers and dates get the explicit "s/ nº" and "s/ data" markers so
// the model never invents them.
func renderHitBlock(n int, h domain.SearchHit, excerptBudget int) string {
	number := strings.TrimSpace(h.Number)
	if number == "" {
		number = "s/ nº"
	} else {
		number = "nº " + number
	}
	year := strings.TrimSpace(h.IssuedAt)
	if year == "" {
		year = "s/ data"
	}

	header := fmt.Sprintf("[%d] %s %s (%s)", n, h.Collection, number, year)
	if t := strings.TrimSpace(h.Title); t != "" {
		header += " — " + t
	}
	if art := strings.TrimSpace(h.Article); art != "" {
		header += ", art. " + art
	}
	return header + "\n" + truncate(h.Excerpt, excerptBudget)
}

func (a *ContextAssembler) renderHistory(history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > a.cfg.HistoryWindow {
		history = history[len(history)-a.cfg.HistoryWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		speaker := "Usuário"
		if t.Role == domain.TurnRoleAssistant {
			speaker = "Assistente"
		}
		line := strings.Join(strings.Fields(t.Content), " ")
		lines = append(lines, speaker+": "+truncate(line, historyLineBudget))
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most limit runes, appending an ellipsis when it cut.
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
