package model

import (
	"time"
)

// RelevanceScope records where in an article the matched terms were found.
// Title dominates content: once any stage has seen a title match the scope
// stays "title" no matter what later stages report.
type RelevanceScope string

const (
	ScopeNone    RelevanceScope = ""
	ScopeContent RelevanceScope = "content"
	ScopeTitle   RelevanceScope = "title"
)

// Merge resolves two scopes, preferring title over content over none.
func (s RelevanceScope) Merge(other RelevanceScope) RelevanceScope {
	if s == ScopeTitle || other == ScopeTitle {
		return ScopeTitle
	}
	if s == ScopeContent || other == ScopeContent {
		return ScopeContent
	}
	return ScopeNone
}

// Article is one ingested news document. The upper block is populated at
// parse time and never changes; the annotation block below is written only
// by the filter chain.
type Article struct {
	SequenceId    int64
	Title         string
	Content       string
	Url           string
	SourceId      int
	SourceName    string
	SourceUrl     string
	Country       string
	Category      string
	EditorialRank string
	PublishDate   *time.Time
	RecordDate    time.Time
	ImageUrl      string
	SourceLogoUrl string
	RawXml        string

	Relevant         bool
	DrugsFound       map[string]bool
	ConditionsFound  map[string]bool
	FirstMatchedTerm string
	Scope            RelevanceScope
}

// DeclareRelevant marks the article relevant with the term the cursory scan
// hit first. The first declaration wins.
func (a *Article) DeclareRelevant(term string) {
	a.Relevant = true
	if a.FirstMatchedTerm == "" {
		a.FirstMatchedTerm = term
	}
}

// AddDrug records a matched drug-like term together with where it matched.
func (a *Article) AddDrug(term string, scope RelevanceScope) {
	if a.DrugsFound == nil {
		a.DrugsFound = map[string]bool{}
	}
	a.DrugsFound[term] = true
	a.Scope = a.Scope.Merge(scope)
}

// AddCondition records a matched condition term.
func (a *Article) AddCondition(term string, scope RelevanceScope) {
	if a.ConditionsFound == nil {
		a.ConditionsFound = map[string]bool{}
	}
	a.ConditionsFound[term] = true
	a.Scope = a.Scope.Merge(scope)
}

// DocumentRow is the primary row inserted into the documents table.
type DocumentRow struct {
	Id    int64
	Type  string
	Url   string
	Title string
	Date  *time.Time
}

// AttributeRow is one key/value attribute attached to a persisted document.
// BlobUrl points at blob storage where the attribute body lives; Value holds
// small inline values. Either may be null.
type AttributeRow struct {
	DocumentId int64
	Key        string
	BlobUrl    *string
	Value      *string
}

// RelationRow links a persisted document to one matched reference term.
// Each id column is resolved independently; an unresolved lookup leaves the
// column null without failing the row.
type RelationRow struct {
	DocumentId    int64
	QueryId       *int64
	GenericNameId *int64
	ProductId     *int64
	CombinationId *int64
	ConditionId   *int64
}
