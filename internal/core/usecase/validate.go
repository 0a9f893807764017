package usecase

import (
	"regexp"
	"strings"
)

// Canned user-facing messages. The bot answers in Portuguese, so these are
// fixed strings rather than a translation layer.
const (
	RefusalMessage     = "Não encontrei base nos documentos consultados para responder a essa pergunta."
	EmptyAnswerMessage = "Não consegui gerar uma resposta agora. Pode tentar reformular a pergunta?"
	BackendDownMessage = "Estou com dificuldade de acessar os documentos agora. Tente novamente em alguns minutos."
)

var citationPattern = regexp.MustCompile(`\[\d+\]`)

// ValidateAnswer checks the model output after synthesis and replaces it when
// it fails the grounding rules. It returns the text to send and whether the
// original output was replaced.
//
// An answer produced over retrieved hits must cite at least one numbered
// source block; one that cites nothing is treated as ungrounded and replaced
// by the refusal. Empty output is replaced regardless.
func ValidateAnswer(output string, hadHits bool) (string, bool) {
	text := strings.TrimSpace(output)
	if text == "" {
		return EmptyAnswerMessage, true
	}
	if hadHits && !citationPattern.MatchString(text) {
		return RefusalMessage, true
	}
	return text, false
}
