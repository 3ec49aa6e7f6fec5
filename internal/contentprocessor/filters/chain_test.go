package filters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
)

type fakeLoader struct {
	snapshot *Snapshot
}

func (l *fakeLoader) Load(ctx context.Context) (*Snapshot, error) {
	return l.snapshot, nil
}

func allStages() configuration.StagesConfig {
	return configuration.StagesConfig{
		Category:     true,
		Rank:         true,
		Keyword:      true,
		Queries:      true,
		GenericNames: true,
		Products:     true,
		Combinations: true,
		Conditions:   true,
	}
}

func testConfig() configuration.FiltersConfig {
	return configuration.FiltersConfig{
		Categories:            []string{"national", "journal"},
		EditorialRanks:        []string{"1", "2"},
		KeywordMatchThreshold: 2,
		Stages:                allStages(),
	}
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		Queries:      Dictionary{"acetaminophen": 11},
		GenericNames: Dictionary{"ibuprofen": 21},
		Products:     Dictionary{"tylenol": 42},
		Combinations: Dictionary{"tylenol": 7},
		Conditions:   Dictionary{"headache": 31},
	}
}

func withChain(cfg configuration.FiltersConfig, snapshot *Snapshot, action func(chain *FilterChain)) {
	chain := NewFilterChain(cfg, &fakeLoader{snapshot: snapshot})
	if err := chain.Initialize(context.Background()); err != nil {
		panic(err)
	}
	action(chain)
}

func testArticle() *model.Article {
	return &model.Article{
		Title:         "Tylenol recall widens",
		Content:       "Patients with headache symptoms were advised to check lot numbers.",
		Category:      "National",
		EditorialRank: "1",
	}
}

func TestCheckRelevance_FirstMatchDeclaresRelevant(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		assert.True(t, chain.CheckRelevance(article))
		assert.True(t, article.Relevant)
		assert.Equal(t, "tylenol", article.FirstMatchedTerm)
	})
}

func TestCheckRelevance_GateRejectsWithoutScanning(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		article.Category = "sports"
		assert.False(t, chain.CheckRelevance(article))
		assert.False(t, article.Relevant)
		assert.Empty(t, article.DrugsFound)
	})
}

func TestCheckRelevance_RankGate(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		article.EditorialRank = "5"
		assert.False(t, chain.CheckRelevance(article))
	})
}

func TestCheckRelevance_NoDictionaryTermFound(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		article.Title = "Weather forecast"
		article.Content = "Sunny spells expected across the region."
		assert.False(t, chain.CheckRelevance(article))
	})
}

func TestCheckRelevance_InactiveScanIsOmitted(t *testing.T) {
	cfg := testConfig()
	cfg.Stages.Products = false
	withChain(cfg, testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		article.Content = "No other terms here."
		assert.False(t, chain.CheckRelevance(article))
	})
}

func TestKeywordGate_ThresholdOfDistinctMatches(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Keywords = []string{"recall", "patients", "absent"}
	withChain(testConfig(), snapshot, func(chain *FilterChain) {
		assert.True(t, chain.CheckRelevance(testArticle()))

		article := testArticle()
		article.Title = "Tylenol news"
		article.Content = "tylenol mentioned once"
		assert.False(t, chain.CheckRelevance(article))
	})
}

func TestKeywordGate_EmptyListDisablesGate(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		assert.True(t, chain.CheckRelevance(testArticle()))
	})
}

func TestPopulate_ScopeTitleDominates(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		require.True(t, chain.CheckRelevance(article))
		chain.Populate(article)

		assert.Equal(t, map[string]bool{"tylenol": true}, article.DrugsFound)
		assert.Equal(t, map[string]bool{"headache": true}, article.ConditionsFound)
		// tylenol matched in the title, so the condition's content match
		// cannot lower the scope
		assert.Equal(t, model.ScopeTitle, article.Scope)
	})
}

func TestPopulate_ContentOnlyScope(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		article.Title = "Pharma briefing"
		article.Content = "Tylenol and ibuprofen both feature."
		require.True(t, chain.CheckRelevance(article))
		chain.Populate(article)

		assert.Equal(t, map[string]bool{"tylenol": true, "ibuprofen": true}, article.DrugsFound)
		assert.Equal(t, model.ScopeContent, article.Scope)
	})
}

func TestBuildRelations_IndependentColumnResolution(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		require.True(t, chain.CheckRelevance(article))
		chain.Populate(article)
		rows := chain.BuildRelations(article)

		require.Len(t, rows, 2)
		// drug rows sort before condition rows, terms sorted within each
		tylenol := rows[0]
		require.NotNil(t, tylenol.ProductId)
		assert.Equal(t, int64(42), *tylenol.ProductId)
		require.NotNil(t, tylenol.CombinationId)
		assert.Equal(t, int64(7), *tylenol.CombinationId)
		assert.Nil(t, tylenol.QueryId)
		assert.Nil(t, tylenol.GenericNameId)
		assert.Nil(t, tylenol.ConditionId)

		headache := rows[1]
		require.NotNil(t, headache.ConditionId)
		assert.Equal(t, int64(31), *headache.ConditionId)
		assert.Nil(t, headache.ProductId)
	})
}

func TestBuildRelations_DeterministicOrder(t *testing.T) {
	withChain(testConfig(), testSnapshot(), func(chain *FilterChain) {
		article := testArticle()
		article.Content = "Ibuprofen and acetaminophen compared for headache relief."
		require.True(t, chain.CheckRelevance(article))
		chain.Populate(article)

		first := chain.BuildRelations(article)
		second := chain.BuildRelations(article)
		assert.Equal(t, first, second)
		require.Len(t, first, 4)
	})
}

func TestChainPanicsBeforeInitialize(t *testing.T) {
	chain := NewFilterChain(testConfig(), &fakeLoader{snapshot: testSnapshot()})
	assert.Panics(t, func() {
		chain.CheckRelevance(testArticle())
	})
}

func TestReloadSwapsDictionaries(t *testing.T) {
	loader := &fakeLoader{snapshot: testSnapshot()}
	chain := NewFilterChain(testConfig(), loader)
	require.NoError(t, chain.Initialize(context.Background()))

	article := testArticle()
	require.True(t, chain.CheckRelevance(article))

	loader.snapshot = &Snapshot{
		Queries:      Dictionary{},
		GenericNames: Dictionary{},
		Products:     Dictionary{},
		Combinations: Dictionary{},
		Conditions:   Dictionary{},
	}
	require.NoError(t, chain.Reload(context.Background()))
	assert.False(t, chain.CheckRelevance(testArticle()))
}
