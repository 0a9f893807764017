package usecase

import (
	"strings"
	"testing"
)

const testSynonymYAML = `
max_expansions_per_term: 2
terms:
  - key: cpp
    sigla: ['\bcpp\b']
    texto: ['c[oó]digo de processo penal']
    from_sigla: ['Código de Processo Penal', 'processo penal']
    from_texto: ['CPP']
  - key: bou
    sigla: ['\bbou\b']
    texto: ['boletim de ocorr[eê]ncia unificado']
    from_sigla: ['Boletim de Ocorrência Unificado', 'boletim de ocorrência', 'registro de ocorrência']
    from_texto: ['BOU']
`

func testTable(t *testing.T) SynonymTable {
	t.Helper()
	table, err := ParseSynonymTable([]byte(testSynonymYAML))
	if err != nil {
		t.Fatalf("ParseSynonymTable: %v", err)
	}
	return table
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	n := NewQueryNormalizer(SynonymTable{})

	got := n.Normalize("  o que\tdiz   o\n decreto  ")
	want := "o que diz o decreto"
	if got != want {
		t.Fatalf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeExpandsAcronym(t *testing.T) {
	n := NewQueryNormalizer(testTable(t))

	got := n.Normalize("prazo do cpp para flagrante")
	if !strings.Contains(got, `"Código de Processo Penal"`) {
		t.Fatalf("expected acronym expansion in %q", got)
	}
	if !strings.Contains(got, `"processo penal"`) {
		t.Fatalf("expected second expansion in %q", got)
	}
}

func TestNormalizeExpandsSpelledOutForm(t *testing.T) {
	n := NewQueryNormalizer(testTable(t))

	got := n.Normalize("o que o código de processo penal diz sobre prisão")
	if !strings.Contains(got, `"CPP"`) {
		t.Fatalf("expected reverse expansion in %q", got)
	}
}

func TestNormalizeCapsExpansionsPerTerm(t *testing.T) {
	n := NewQueryNormalizer(testTable(t))

	got := n.Normalize("como preencher o bou")
	if strings.Contains(got, "registro de ocorrência") {
		t.Fatalf("third expansion should be capped, got %q", got)
	}
	if !strings.Contains(got, `"Boletim de Ocorrência Unificado"`) {
		t.Fatalf("expected first expansion in %q", got)
	}
}

func TestNormalizeDoesNotDuplicatePresentPhrase(t *testing.T) {
	n := NewQueryNormalizer(testTable(t))

	got := n.Normalize("cpp e código de processo penal")
	if c := strings.Count(strings.ToLower(got), "código de processo penal"); c != 1 {
		t.Fatalf("phrase duplicated %d times in %q", c, got)
	}
}

func TestNormalizeSearchContentStableOnRerun(t *testing.T) {
	n := NewQueryNormalizer(testTable(t))

	once := n.Normalize("prazo do cpp")
	twice := n.Normalize(once)
	if c := strings.Count(strings.ToLower(twice), "código de processo penal"); c != 1 {
		t.Fatalf("re-normalization duplicated expansion: %q", twice)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := NewQueryNormalizer(testTable(t))

	if got := n.Normalize("   \t "); got != "" {
		t.Fatalf("Normalize(blank) = %q, want empty", got)
	}
}

func TestASCIIFold(t *testing.T) {
	cases := []struct{ in, want string }{
		{"resolução nº 45", "resolucao n 45"},
		{"instrução normativa", "instrucao normativa"},
		{"plain text", "plain text"},
	}
	for _, c := range cases {
		if got := asciiFold(c.in); got != c.want {
			t.Errorf("asciiFold(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
