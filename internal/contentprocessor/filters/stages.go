package filters

import (
	"strings"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
)

// gate is a cheap boolean stage that can reject an article outright.
type gate interface {
	Name() string
	Pass(a *model.Article) bool
}

// relationResolver contributes one id column to a relation row. Every
// resolver looks its term up independently; a miss leaves the column null.
type relationResolver interface {
	Resolve(term string, row *model.RelationRow)
}

// listGate accepts an article when the selected field is on its allow-list.
// Comparison is trimmed and case-insensitive.
type listGate struct {
	name    string
	allowed []string
	field   func(a *model.Article) string
}

func newListGate(name string, allowed []string, field func(a *model.Article) string) *listGate {
	cleaned := make([]string, 0, len(allowed))
	for _, v := range allowed {
		cleaned = append(cleaned, strings.ToLower(strings.TrimSpace(v)))
	}
	return &listGate{name: name, allowed: cleaned, field: field}
}

func (g *listGate) Name() string { return g.name }

func (g *listGate) Pass(a *model.Article) bool {
	value := strings.ToLower(strings.TrimSpace(g.field(a)))
	for _, v := range g.allowed {
		if v == value {
			return true
		}
	}
	return false
}

// keywordGate passes an article when at least threshold distinct keywords
// appear in it. An empty keyword list disables the gate.
type keywordGate struct {
	keywords  []string
	threshold int
}

func (g *keywordGate) Name() string { return "keyword" }

func (g *keywordGate) Pass(a *model.Article) bool {
	if len(g.keywords) == 0 {
		return true
	}
	normTitle := normalizeWindow(a.Title)
	normContent := normalizeWindow(a.Content)

	matches := 0
	for _, keyword := range g.keywords {
		if matches >= g.threshold {
			break
		}
		if containsTerm(normTitle, keyword) || containsTerm(normContent, keyword) {
			matches++
		}
	}
	return matches >= g.threshold
}

// termScan matches every term of one dictionary against an article. It backs
// both the cursory relevance check (first match wins) and the enrichment
// pass (all matches recorded), and resolves its own relation column.
type termScan struct {
	name string
	dict Dictionary
	// record is how a match is attached to the article: drug-like scans and
	// the condition scan accumulate into different sets.
	record func(a *model.Article, term string, scope model.RelevanceScope)
	// column stamps this scan's id column on a relation row.
	column func(row *model.RelationRow, id *int64)
}

func (s *termScan) Name() string { return s.name }

// FirstMatch returns the first dictionary term found in the article's title
// or content window.
func (s *termScan) FirstMatch(a *model.Article) (string, bool) {
	normTitle := normalizeWindow(a.Title)
	normContent := normalizeWindow(a.Content)
	for term := range s.dict {
		if containsTerm(normTitle, term) || containsTerm(normContent, term) {
			return term, true
		}
	}
	return "", false
}

// Populate records every dictionary term found in the article, with a title
// match taking precedence over a content match for the same term.
func (s *termScan) Populate(a *model.Article) {
	normTitle := normalizeWindow(a.Title)
	normContent := normalizeWindow(a.Content)
	for term := range s.dict {
		if containsTerm(normTitle, term) {
			s.record(a, term, model.ScopeTitle)
		} else if containsTerm(normContent, term) {
			s.record(a, term, model.ScopeContent)
		}
	}
}

func (s *termScan) Resolve(term string, row *model.RelationRow) {
	s.column(row, s.dict.Lookup(term))
}

// combinationIndex never scans; it only resolves the combination id column
// from the index built while the drug dictionaries were loaded.
type combinationIndex struct {
	dict Dictionary
}

func (c *combinationIndex) Resolve(term string, row *model.RelationRow) {
	row.CombinationId = c.dict.Lookup(term)
}
