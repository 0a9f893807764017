package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gfaraujo/normabot/internal/core/domain"
)

type fakeCompleter struct {
	reply      string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeMemory struct {
	turns     map[string][]domain.ConversationTurn
	appendErr error
	recentErr error
}

func (f *fakeMemory) Append(_ context.Context, userID string, turn domain.ConversationTurn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	if f.turns == nil {
		f.turns = map[string][]domain.ConversationTurn{}
	}
	f.turns[userID] = append(f.turns[userID], turn)
	return nil
}

func (f *fakeMemory) Recent(_ context.Context, userID string, n int) ([]domain.ConversationTurn, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	turns := f.turns[userID]
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

func newTestPipeline(idx *fakeIndex, completer *fakeCompleter, memory *fakeMemory, strict bool) *AnswerPipeline {
	return NewAnswerPipeline(
		NewQueryNormalizer(SynonymTable{}),
		NewMultiCollectionAggregator(NewCollectionSearcher(idx), testCollections, 5),
		NewConfidenceGate(0.28, strict),
		NewContextAssembler(AssemblerConfig{}, testRules),
		completer,
		memory,
		nil,
	)
}

func TestAnswerHappyPath(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.7)}},
	}
	completer := &fakeCompleter{reply: "Conforme o art. 5º, o prazo é de 24 horas [1]."}
	p := newTestPipeline(idx, completer, &fakeMemory{}, true)

	reply, err := p.Answer(context.Background(), "user-1", "qual o prazo do flagrante?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !reply.Grounded {
		t.Fatal("accepted and cited answer must be grounded")
	}
	if reply.Text != completer.reply {
		t.Fatalf("text = %q", reply.Text)
	}
	if len(reply.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(reply.Sources))
	}
	if completer.lastSystem != testRules {
		t.Fatalf("rules must go as system message, got %q", completer.lastSystem)
	}
	if !strings.Contains(completer.lastUser, "qual o prazo do flagrante?") {
		t.Fatal("original question must reach the model")
	}
}

func TestAnswerPromptCarriesOnlyClearingHits(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{
			"pmpr_decretos": {hit("fraco", 0.05), hit("forte", 0.90)},
		},
	}
	completer := &fakeCompleter{reply: "resposta [1]"}
	p := newTestPipeline(idx, completer, &fakeMemory{}, true)

	reply, err := p.Answer(context.Background(), "user-1", "pergunta")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(completer.lastUser, "trecho de forte") {
		t.Fatalf("strong hit missing from prompt:\n%s", completer.lastUser)
	}
	if strings.Contains(completer.lastUser, "trecho de fraco") {
		t.Fatalf("below-threshold hit rendered in prompt:\n%s", completer.lastUser)
	}
	if len(reply.Sources) != 1 || reply.Sources[0].DocumentID != "forte" {
		t.Fatalf("sources = %v, want only the strong hit", reply.Sources)
	}
}

func TestAnswerStrictRefusesWithoutBasis(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.05)}},
	}
	completer := &fakeCompleter{reply: "nunca deveria rodar"}
	p := newTestPipeline(idx, completer, &fakeMemory{}, true)

	reply, err := p.Answer(context.Background(), "user-1", "pergunta fora do escopo")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply.Text != RefusalMessage {
		t.Fatalf("text = %q, want refusal", reply.Text)
	}
	if reply.Grounded {
		t.Fatal("refusal is never grounded")
	}
	if completer.calls != 0 {
		t.Fatal("strict refusal must not invoke the model")
	}
}

func TestAnswerNonStrictProceedsUngrounded(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.05)}},
	}
	completer := &fakeCompleter{reply: "Com base no trecho disponível [1]."}
	p := newTestPipeline(idx, completer, &fakeMemory{}, false)

	reply, err := p.Answer(context.Background(), "user-1", "pergunta vaga")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if completer.calls != 1 {
		t.Fatal("non-strict mode must still complete")
	}
	if reply.Grounded {
		t.Fatal("below-threshold hits can never yield a grounded reply")
	}
}

func TestAnswerCompleterFailureYieldsBackendMessage(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.7)}},
	}
	completer := &fakeCompleter{err: errors.New("model down")}
	p := newTestPipeline(idx, completer, &fakeMemory{}, true)

	reply, err := p.Answer(context.Background(), "user-1", "pergunta")
	if err != nil {
		t.Fatalf("completer failure must not surface as error: %v", err)
	}
	if reply.Text != BackendDownMessage {
		t.Fatalf("text = %q, want backend-down message", reply.Text)
	}
}

func TestAnswerContextCancelledReturnsError(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.7)}},
	}
	completer := &fakeCompleter{err: context.Canceled}
	p := newTestPipeline(idx, completer, &fakeMemory{}, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply, err := p.Answer(ctx, "user-1", "pergunta")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if reply.Text == "" {
		t.Fatal("reply text must be non-empty even on cancellation")
	}
}

func TestAnswerUncitedModelOutputReplacedByRefusal(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.7)}},
	}
	completer := &fakeCompleter{reply: "O prazo é de 24 horas."}
	p := newTestPipeline(idx, completer, &fakeMemory{}, true)

	reply, err := p.Answer(context.Background(), "user-1", "pergunta")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply.Text != RefusalMessage {
		t.Fatalf("text = %q, want refusal after validation", reply.Text)
	}
	if reply.Grounded {
		t.Fatal("replaced answer must not be grounded")
	}
}

func TestAnswerHistoryFailureDoesNotFailRequest(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.7)}},
	}
	completer := &fakeCompleter{reply: "resposta [1]"}
	p := newTestPipeline(idx, completer, &fakeMemory{recentErr: errors.New("pg down")}, true)

	reply, err := p.Answer(context.Background(), "user-1", "pergunta")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply.Text != "resposta [1]" {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerHistoryReachesPrompt(t *testing.T) {
	idx := &fakeIndex{
		hybridHits: map[string][]domain.SearchHit{"pmpr_decretos": {hit("d1", 0.7)}},
	}
	memory := &fakeMemory{}
	_ = memory.Append(context.Background(), "user-1", domain.ConversationTurn{
		Role: domain.TurnRoleUser, Content: "qual o prazo do flagrante?", CreatedAt: time.Now(),
	})
	completer := &fakeCompleter{reply: "resposta [1]"}
	p := newTestPipeline(idx, completer, memory, true)

	if _, err := p.Answer(context.Background(), "user-1", "e para menor de idade?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(completer.lastUser, "Usuário: qual o prazo do flagrante?") {
		t.Fatalf("history missing from prompt:\n%s", completer.lastUser)
	}
}

func TestAnswerBlankQuestion(t *testing.T) {
	completer := &fakeCompleter{}
	p := newTestPipeline(&fakeIndex{}, completer, &fakeMemory{}, true)

	reply, err := p.Answer(context.Background(), "user-1", "   ")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply.Text != EmptyAnswerMessage {
		t.Fatalf("text = %q", reply.Text)
	}
	if completer.calls != 0 {
		t.Fatal("blank question must short-circuit")
	}
}
