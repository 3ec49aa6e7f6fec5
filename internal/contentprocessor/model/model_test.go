package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeMerge(t *testing.T) {
	assert.Equal(t, ScopeTitle, ScopeTitle.Merge(ScopeContent))
	assert.Equal(t, ScopeTitle, ScopeContent.Merge(ScopeTitle))
	assert.Equal(t, ScopeContent, ScopeContent.Merge(ScopeNone))
	assert.Equal(t, ScopeContent, ScopeNone.Merge(ScopeContent))
	assert.Equal(t, ScopeNone, ScopeNone.Merge(ScopeNone))
}

func TestDeclareRelevantFirstTermWins(t *testing.T) {
	a := &Article{}
	a.DeclareRelevant("tylenol")
	a.DeclareRelevant("ibuprofen")

	assert.True(t, a.Relevant)
	assert.Equal(t, "tylenol", a.FirstMatchedTerm)
}

func TestAddDrugMergesScope(t *testing.T) {
	a := &Article{}
	a.AddDrug("tylenol", ScopeContent)
	assert.Equal(t, ScopeContent, a.Scope)

	a.AddCondition("headache", ScopeTitle)
	assert.Equal(t, ScopeTitle, a.Scope)

	a.AddDrug("ibuprofen", ScopeContent)
	assert.Equal(t, ScopeTitle, a.Scope)

	assert.Equal(t, map[string]bool{"tylenol": true, "ibuprofen": true}, a.DrugsFound)
	assert.Equal(t, map[string]bool{"headache": true}, a.ConditionsFound)
}
