// Package refdata loads the reference dictionaries the filter chain matches
// against: drug names, products, combinations, conditions and canonical
// query terms from the reference database, plus the medical keyword list
// from a flat file.
package refdata

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/medwatch/contentprocessor/internal/common/processorerrors"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/configuration"
	"github.com/medwatch/contentprocessor/internal/contentprocessor/filters"
)

// Generic names are restricted to combinations that have at least one
// non-OTC product; loading them also yields the combination index.
const genericNameQuery = `
	SELECT DISTINCT d.name, d.combination_id, d.id
	FROM product b, combination c, generic_name d
	WHERE b.type != 'HUMAN OTC DRUG'
	AND b.combination_id = c.id
	AND d.combination_id = c.id`

const productQuery = `SELECT name, id, combination_id, type FROM product`

const queryTermQuery = `SELECT id, query FROM queries`

const conditionQuery = `SELECT id, name FROM condition`

// Only prescription drug products are matched against articles.
const productTypeKept = "HUMAN PRESCRIPTION DRUG"

type Store struct {
	db  *pgxpool.Pool
	cfg configuration.FiltersConfig
}

func NewStore(db *pgxpool.Pool, cfg configuration.FiltersConfig) *Store {
	return &Store{db: db, cfg: cfg}
}

// Load produces one complete snapshot of every dictionary. Transient
// database errors are retried; a null term in the reference data aborts the
// load, as it indicates a broken source rather than a flaky connection.
func (s *Store) Load(ctx context.Context) (*filters.Snapshot, error) {
	var snapshot *filters.Snapshot
	err := retry.Do(
		func() error {
			var err error
			snapshot, err = s.load(ctx)
			return err
		},
		retry.RetryIf(processorerrors.IsRetryable),
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	return snapshot, err
}

func (s *Store) load(ctx context.Context) (*filters.Snapshot, error) {
	start := time.Now()
	snapshot := &filters.Snapshot{
		Queries:      filters.Dictionary{},
		GenericNames: filters.Dictionary{},
		Products:     filters.Dictionary{},
		Combinations: filters.Dictionary{},
		Conditions:   filters.Dictionary{},
	}

	genRows, err := s.db.Query(ctx, genericNameQuery)
	if err != nil {
		return nil, errors.Wrap(err, "querying generic names")
	}
	if err := readGenericNames(genRows, snapshot.GenericNames, snapshot.Combinations); err != nil {
		return nil, err
	}

	prodRows, err := s.db.Query(ctx, productQuery)
	if err != nil {
		return nil, errors.Wrap(err, "querying products")
	}
	if err := readProducts(prodRows, snapshot.Products, snapshot.Combinations); err != nil {
		return nil, err
	}

	queryRows, err := s.db.Query(ctx, queryTermQuery)
	if err != nil {
		return nil, errors.Wrap(err, "querying query terms")
	}
	if err := readTerms(queryRows, "query", snapshot.Queries); err != nil {
		return nil, err
	}

	condRows, err := s.db.Query(ctx, conditionQuery)
	if err != nil {
		return nil, errors.Wrap(err, "querying conditions")
	}
	if err := readTerms(condRows, "condition", snapshot.Conditions); err != nil {
		return nil, err
	}

	snapshot.Keywords, err = ReadKeywords(s.cfg.KeywordFilePath)
	if err != nil {
		return nil, err
	}

	log.Infof("Loaded reference dictionaries in %s", time.Since(start).Round(time.Millisecond))
	return snapshot, nil
}

// rows is the subset of pgx.Rows the readers need; tests supply fakes.
type rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close()
}

func readGenericNames(r rows, dict filters.Dictionary, combinations filters.Dictionary) error {
	defer r.Close()
	for r.Next() {
		var name *string
		var combinationId *int64
		var id int64
		if err := r.Scan(&name, &combinationId, &id); err != nil {
			return errors.Wrap(err, "scanning generic name row")
		}
		if name == nil {
			return &processorerrors.ErrInvalidConfiguration{
				Component: "refdata",
				Message:   "null name in generic_name reference data",
			}
		}
		term := filters.Normalize(*name)
		dict[term] = id
		if combinationId != nil {
			combinations[term] = *combinationId
		}
	}
	return errors.Wrap(r.Err(), "reading generic names")
}

func readProducts(r rows, dict filters.Dictionary, combinations filters.Dictionary) error {
	defer r.Close()
	for r.Next() {
		var name *string
		var productType *string
		var combinationId *int64
		var id int64
		if err := r.Scan(&name, &id, &combinationId, &productType); err != nil {
			return errors.Wrap(err, "scanning product row")
		}
		if name == nil {
			return &processorerrors.ErrInvalidConfiguration{
				Component: "refdata",
				Message:   "null name in product reference data",
			}
		}
		if productType == nil || !strings.EqualFold(strings.TrimSpace(*productType), productTypeKept) {
			continue
		}
		term := filters.Normalize(*name)
		dict[term] = id
		if combinationId != nil {
			combinations[term] = *combinationId
		}
	}
	return errors.Wrap(r.Err(), "reading products")
}

func readTerms(r rows, source string, dict filters.Dictionary) error {
	defer r.Close()
	for r.Next() {
		var id int64
		var term *string
		if err := r.Scan(&id, &term); err != nil {
			return errors.Wrapf(err, "scanning %s row", source)
		}
		if term == nil {
			return &processorerrors.ErrInvalidConfiguration{
				Component: "refdata",
				Message:   "null term in " + source + " reference data",
			}
		}
		dict[filters.Normalize(*term)] = id
	}
	return errors.Wrapf(r.Err(), "reading %s terms", source)
}

// ReadKeywords loads the newline-delimited medical keyword list. An empty
// path disables the keyword gate; a path that cannot be read is a
// configuration error.
func ReadKeywords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &processorerrors.ErrInvalidConfiguration{
			Component: "refdata",
			Message:   "cannot read keyword list: " + err.Error(),
		}
	}
	var keywords []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			keywords = append(keywords, line)
		}
	}
	return keywords, nil
}
