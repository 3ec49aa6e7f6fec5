package filters

import "context"

// Dictionary maps normalized reference terms to their numeric ids.
type Dictionary map[string]int64

// Lookup resolves a term to its id, or nil when the dictionary does not hold
// the term. Callers stamp the result straight into a relation row column.
func (d Dictionary) Lookup(term string) *int64 {
	id, ok := d[term]
	if !ok {
		return nil
	}
	return &id
}

// Snapshot is one complete, consistent load of every reference dictionary.
// A snapshot is immutable once built; reloads build a fresh snapshot and
// swap it in wholesale, so a relevance check can never observe a half-loaded
// dictionary.
type Snapshot struct {
	Queries      Dictionary
	GenericNames Dictionary
	Products     Dictionary
	// Combinations is a secondary index populated as a side effect of
	// loading the generic name and product dictionaries.
	Combinations Dictionary
	Conditions   Dictionary
	Keywords     []string
}

// Loader produces dictionary snapshots. The production implementation reads
// them from the reference database and the keyword file.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}
