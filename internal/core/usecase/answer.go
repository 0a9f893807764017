package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gfaraujo/normabot/internal/core/domain"
	"github.com/gfaraujo/normabot/internal/core/ports"
)

// Pipeline outcome labels reported to the observer.
const (
	OutcomeAnswered    = "answered"
	OutcomeRefused     = "refused"
	OutcomeReplaced    = "replaced"
	OutcomeBackendDown = "backend_down"
)

// PipelineObserver receives pipeline telemetry. Implementations must be cheap
// and must not fail; the metrics adapter is the real one, tests use the noop.
type PipelineObserver interface {
	CollectionReturned(collection string, hits int)
	GateEvaluated(accepted bool)
	Finished(outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) CollectionReturned(string, int) {}
func (noopObserver) GateEvaluated(bool)             {}
func (noopObserver) Finished(string, time.Duration) {}

// AnswerPipeline wires normalization, multi-collection retrieval, confidence
// gating, context assembly, completion and post-synthesis validation into the
// single Answer operation.
type AnswerPipeline struct {
	normalizer *QueryNormalizer
	aggregator *MultiCollectionAggregator
	gate       ConfidenceGate
	assembler  *ContextAssembler
	completer  ports.Completer
	memory     ports.ConversationMemory
	observer   PipelineObserver
	historyN   int
}

func NewAnswerPipeline(
	normalizer *QueryNormalizer,
	aggregator *MultiCollectionAggregator,
	gate ConfidenceGate,
	assembler *ContextAssembler,
	completer ports.Completer,
	memory ports.ConversationMemory,
	observer PipelineObserver,
) *AnswerPipeline {
	if observer == nil {
		observer = noopObserver{}
	}
	return &AnswerPipeline{
		normalizer: normalizer,
		aggregator: aggregator,
		gate:       gate,
		assembler:  assembler,
		completer:  completer,
		memory:     memory,
		observer:   observer,
		historyN:   defaultHistoryWindow * 2,
	}
}

var _ ports.QuestionAnswerer = (*AnswerPipeline)(nil)

// Answer runs one question through the full pipeline. The reply always
// carries non-empty text; an error comes back only when ctx is done.
func (p *AnswerPipeline) Answer(ctx context.Context, userID, question string) (domain.Reply, error) {
	started := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		p.observer.Finished(OutcomeReplaced, time.Since(started))
		return domain.Reply{Text: EmptyAnswerMessage}, nil
	}

	// Search runs on the normalized+expanded text; the prompt carries the
	// user's original wording.
	normalized := p.normalizer.Normalize(question)

	grouped := p.aggregator.SearchAll(ctx, normalized)
	for coll, hits := range grouped {
		p.observer.CollectionReturned(coll, len(hits))
	}
	flat := grouped.Flatten(p.aggregator.Collections())

	decision := p.gate.Evaluate(flat)
	p.observer.GateEvaluated(decision.Accepted)
	if !decision.Accepted && p.gate.Strict {
		p.observer.Finished(OutcomeRefused, time.Since(started))
		return domain.Reply{Text: RefusalMessage}, nil
	}

	history := p.recentHistory(ctx, userID)
	prompt := p.assembler.Assemble(decision.Hits, history, question)

	output, err := p.completer.Complete(ctx, prompt.Rules, prompt.UserMessage())
	if err != nil {
		if ctx.Err() != nil {
			p.observer.Finished(OutcomeBackendDown, time.Since(started))
			return domain.Reply{Text: BackendDownMessage}, ctx.Err()
		}
		slog.Error("completion failed", "user", userID, "error", err)
		p.observer.Finished(OutcomeBackendDown, time.Since(started))
		return domain.Reply{Text: BackendDownMessage}, nil
	}

	text, replaced := ValidateAnswer(output, len(decision.Hits) > 0)
	outcome := OutcomeAnswered
	if replaced {
		outcome = OutcomeReplaced
	}
	p.observer.Finished(outcome, time.Since(started))

	return domain.Reply{
		Text:     text,
		Grounded: decision.Accepted && !replaced,
		Sources:  decision.Hits,
	}, nil
}

// recentHistory never fails the request; a dead memory store just means an
// answer without conversational context.
func (p *AnswerPipeline) recentHistory(ctx context.Context, userID string) []domain.ConversationTurn {
	if p.memory == nil {
		return nil
	}
	history, err := p.memory.Recent(ctx, userID, p.historyN)
	if err != nil {
		slog.Warn("conversation history unavailable", "user", userID, "error", err)
		return nil
	}
	return history
}
