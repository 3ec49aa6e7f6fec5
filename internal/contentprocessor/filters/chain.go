// Package filters decides which articles are relevant and enriches the ones
// that are. A FilterChain owns one immutable snapshot of every reference
// dictionary plus the gates and scans configured over them; separate chains
// never share state.
package filters

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/medwatch/contentprocessor/internal/common/processorerrors"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
)

type FilterChain struct {
	cfg    configuration.FiltersConfig
	loader Loader
	stages atomic.Value // *stageSet
}

// stageSet is everything built from one snapshot. Swapped atomically on
// reload so checks in flight keep a consistent view.
type stageSet struct {
	gates []gate
	// cursory scans run in fixed order during the relevance check and
	// again, exhaustively, during enrichment
	drugScans     []*termScan
	conditionScan *termScan
	// resolvers for relation rows derived from drug-like terms
	drugResolvers []relationResolver
}

func NewFilterChain(cfg configuration.FiltersConfig, loader Loader) *FilterChain {
	return &FilterChain{cfg: cfg, loader: loader}
}

// Initialize loads every stage's dictionary and builds the stages. It must
// complete before any worker starts; a load failure is fatal to startup.
func (c *FilterChain) Initialize(ctx context.Context) error {
	return c.Reload(ctx)
}

// Reload fetches a fresh snapshot and swaps it in wholesale. There is no
// automatic refresh schedule; this is triggered by an operator.
func (c *FilterChain) Reload(ctx context.Context) error {
	snapshot, err := c.loader.Load(ctx)
	if err != nil {
		return errors.WithMessage(err, "loading filter dictionaries")
	}
	c.stages.Store(buildStages(c.cfg, snapshot))
	log.WithFields(log.Fields{
		"queries":      len(snapshot.Queries),
		"genericNames": len(snapshot.GenericNames),
		"products":     len(snapshot.Products),
		"combinations": len(snapshot.Combinations),
		"conditions":   len(snapshot.Conditions),
		"keywords":     len(snapshot.Keywords),
	}).Info("Filter dictionaries loaded")
	return nil
}

func (c *FilterChain) stageSet() *stageSet {
	stages, ok := c.stages.Load().(*stageSet)
	if !ok {
		panic(&processorerrors.ErrInvalidConfiguration{
			Component: "filters",
			Message:   "filter chain used before Initialize",
		})
	}
	return stages
}

// CheckRelevance runs the gates in order, then a cursory dictionary scan
// that stops at the first matching term. Gates short-circuit: a failed gate
// rejects the article without running anything after it.
func (c *FilterChain) CheckRelevance(a *model.Article) bool {
	stages := c.stageSet()

	for _, g := range stages.gates {
		if !g.Pass(a) {
			return false
		}
	}

	for _, scan := range stages.drugScans {
		if term, ok := scan.FirstMatch(a); ok {
			a.DeclareRelevant(term)
			return true
		}
	}
	return false
}

// Populate re-scans a relevant article with every enrichment stage,
// recording all matched terms and where they matched. The resulting scope is
// order-independent: a title match from any stage dominates.
func (c *FilterChain) Populate(a *model.Article) {
	stages := c.stageSet()
	for _, scan := range stages.drugScans {
		scan.Populate(a)
	}
	if stages.conditionScan != nil {
		stages.conditionScan.Populate(a)
	}
}

// BuildRelations derives one relation row per matched term. Drug-like terms
// are resolved against the query, generic name, product and combination
// dictionaries independently; condition terms against the condition
// dictionary. Misses leave columns null.
func (c *FilterChain) BuildRelations(a *model.Article) []*model.RelationRow {
	stages := c.stageSet()

	rows := make([]*model.RelationRow, 0, len(a.DrugsFound)+len(a.ConditionsFound))
	for _, term := range sortedTerms(a.DrugsFound) {
		row := &model.RelationRow{}
		for _, resolver := range stages.drugResolvers {
			resolver.Resolve(term, row)
		}
		rows = append(rows, row)
	}
	if stages.conditionScan != nil {
		for _, term := range sortedTerms(a.ConditionsFound) {
			row := &model.RelationRow{}
			stages.conditionScan.Resolve(term, row)
			rows = append(rows, row)
		}
	}
	return rows
}

func buildStages(cfg configuration.FiltersConfig, snapshot *Snapshot) *stageSet {
	stages := &stageSet{}

	if cfg.Stages.Category {
		stages.gates = append(stages.gates, newListGate("category", cfg.Categories,
			func(a *model.Article) string { return a.Category }))
	}
	if cfg.Stages.Rank {
		stages.gates = append(stages.gates, newListGate("editorialRank", cfg.EditorialRanks,
			func(a *model.Article) string { return a.EditorialRank }))
	}
	if cfg.Stages.Keyword {
		stages.gates = append(stages.gates, &keywordGate{
			keywords:  snapshot.Keywords,
			threshold: cfg.KeywordMatchThreshold,
		})
	}

	recordDrug := func(a *model.Article, term string, scope model.RelevanceScope) {
		a.AddDrug(term, scope)
	}
	if cfg.Stages.Queries {
		stages.drugScans = append(stages.drugScans, &termScan{
			name:   "queries",
			dict:   snapshot.Queries,
			record: recordDrug,
			column: func(row *model.RelationRow, id *int64) { row.QueryId = id },
		})
	}
	if cfg.Stages.GenericNames {
		stages.drugScans = append(stages.drugScans, &termScan{
			name:   "genericNames",
			dict:   snapshot.GenericNames,
			record: recordDrug,
			column: func(row *model.RelationRow, id *int64) { row.GenericNameId = id },
		})
	}
	if cfg.Stages.Products {
		stages.drugScans = append(stages.drugScans, &termScan{
			name:   "products",
			dict:   snapshot.Products,
			record: recordDrug,
			column: func(row *model.RelationRow, id *int64) { row.ProductId = id },
		})
	}

	for _, scan := range stages.drugScans {
		stages.drugResolvers = append(stages.drugResolvers, scan)
	}
	if cfg.Stages.Combinations {
		stages.drugResolvers = append(stages.drugResolvers, &combinationIndex{dict: snapshot.Combinations})
	}

	if cfg.Stages.Conditions {
		stages.conditionScan = &termScan{
			name: "conditions",
			dict: snapshot.Conditions,
			record: func(a *model.Article, term string, scope model.RelevanceScope) {
				a.AddCondition(term, scope)
			},
			column: func(row *model.RelationRow, id *int64) { row.ConditionId = id },
		}
	}

	return stages
}

// sortedTerms gives deterministic row order out of the matched-term sets.
func sortedTerms(set map[string]bool) []string {
	terms := make([]string, 0, len(set))
	for term := range set {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
