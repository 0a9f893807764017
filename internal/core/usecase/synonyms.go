package usecase

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// SynonymTable holds the institutional acronym expansions applied during query
// normalization. The table is external configuration data, not code: it is
// loaded from YAML at startup and grows without touching the pipeline.
type SynonymTable struct {
	MaxExpansionsPerTerm int
	Terms                []SynonymTerm
}

// SynonymTerm maps detection patterns for one acronym to the phrases appended
// when either form of the term appears in a query.
type SynonymTerm struct {
	Key          string
	SiglaPattern []*regexp.Regexp // matches the acronym form
	TextPattern  []*regexp.Regexp // matches the spelled-out form
	FromSigla    []string         // appended when the acronym matched
	FromText     []string         // appended when the spelled-out form matched
}

type synonymFile struct {
	MaxExpansionsPerTerm int `yaml:"max_expansions_per_term"`
	Terms                []struct {
		Key       string   `yaml:"key"`
		Sigla     []string `yaml:"sigla"`
		Texto     []string `yaml:"texto"`
		FromSigla []string `yaml:"from_sigla"`
		FromTexto []string `yaml:"from_texto"`
	} `yaml:"terms"`
}

// LoadSynonymTable reads and compiles a synonym table. An empty path yields an
// empty table, which disables expansion entirely.
func LoadSynonymTable(path string) (SynonymTable, error) {
	if strings.TrimSpace(path) == "" {
		return SynonymTable{MaxExpansionsPerTerm: 2}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return SynonymTable{}, fmt.Errorf("read synonym table: %w", err)
	}
	return ParseSynonymTable(raw)
}

// ParseSynonymTable compiles the YAML synonym definition.
func ParseSynonymTable(raw []byte) (SynonymTable, error) {
	var file synonymFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return SynonymTable{}, fmt.Errorf("unmarshal synonym table: %w", err)
	}

	table := SynonymTable{MaxExpansionsPerTerm: file.MaxExpansionsPerTerm}
	if table.MaxExpansionsPerTerm <= 0 {
		table.MaxExpansionsPerTerm = 2
	}

	for _, t := range file.Terms {
		term := SynonymTerm{
			Key:       strings.TrimSpace(t.Key),
			FromSigla: t.FromSigla,
			FromText:  t.FromTexto,
		}
		for _, p := range t.Sigla {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return SynonymTable{}, fmt.Errorf("compile sigla pattern %q for %s: %w", p, t.Key, err)
			}
			term.SiglaPattern = append(term.SiglaPattern, re)
		}
		for _, p := range t.Texto {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return SynonymTable{}, fmt.Errorf("compile texto pattern %q for %s: %w", p, t.Key, err)
			}
			term.TextPattern = append(term.TextPattern, re)
		}
		table.Terms = append(table.Terms, term)
	}
	return table, nil
}

// expansions returns the phrases to append for the given query, capped per
// matched term and deduplicated case-insensitively, preserving order.
func (t SynonymTable) expansions(query string) []string {
	var extras []string
	for _, term := range t.Terms {
		if matchesAny(term.SiglaPattern, query) {
			extras = append(extras, capList(term.FromSigla, t.MaxExpansionsPerTerm)...)
		}
		if matchesAny(term.TextPattern, query) {
			extras = append(extras, capList(term.FromText, t.MaxExpansionsPerTerm)...)
		}
	}

	seen := make(map[string]struct{}, len(extras))
	out := make([]string, 0, len(extras))
	for _, e := range extras {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func capList(items []string, limit int) []string {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}
