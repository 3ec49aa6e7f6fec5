package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"github.com/medwatch/contentprocessor/internal/contentprocessor/model"
)

// DocumentStore opens one transaction per write cycle. Everything a cycle
// inserts commits or rolls back together; blobs written during the cycle are
// outside the transaction and may leak on rollback, which is harmless.
type DocumentStore interface {
	BeginCycle(ctx context.Context) (CycleTx, error)
}

type CycleTx interface {
	// InsertDocument inserts the primary row and returns its generated id.
	InsertDocument(ctx context.Context, doc *model.DocumentRow) (int64, error)
	InsertAttributes(ctx context.Context, rows []*model.AttributeRow) error
	InsertRelations(ctx context.Context, rows []*model.RelationRow) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type PostgresDocumentStore struct {
	db *pgxpool.Pool
	// upper bound on rows per bulk insert statement
	maxRows int
}

func NewPostgresDocumentStore(db *pgxpool.Pool, maxRows int) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db, maxRows: maxRows}
}

func (s *PostgresDocumentStore) BeginCycle(ctx context.Context) (CycleTx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "beginning write cycle transaction")
	}
	return &postgresCycleTx{tx: tx, maxRows: s.maxRows}, nil
}

type postgresCycleTx struct {
	tx      pgx.Tx
	maxRows int
}

const insertDocumentSql = `INSERT INTO documents (type, url, title, date) VALUES ($1, $2, $3, $4) RETURNING id`

func (t *postgresCycleTx) InsertDocument(ctx context.Context, doc *model.DocumentRow) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, insertDocumentSql, doc.Type, doc.Url, doc.Title, doc.Date).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "inserting document %s", doc.Url)
	}
	return id, nil
}

var attributeColumns = []string{"document_id", "key", "blob_url", "value"}

func (t *postgresCycleTx) InsertAttributes(ctx context.Context, rows []*model.AttributeRow) error {
	for start := 0; start < len(rows); start += t.maxRows {
		chunk := rows[start:min(start+t.maxRows, len(rows))]
		args := make([]interface{}, 0, len(chunk)*len(attributeColumns))
		for _, row := range chunk {
			args = append(args, row.DocumentId, row.Key, row.BlobUrl, row.Value)
		}
		sql := insertStatement("document_attributes", attributeColumns, len(chunk))
		if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
			return errors.Wrap(err, "inserting document attributes")
		}
	}
	return nil
}

var relationColumns = []string{"document_id", "query_id", "generic_name_id", "product_id", "combination_id", "condition_id"}

func (t *postgresCycleTx) InsertRelations(ctx context.Context, rows []*model.RelationRow) error {
	for start := 0; start < len(rows); start += t.maxRows {
		chunk := rows[start:min(start+t.maxRows, len(rows))]
		args := make([]interface{}, 0, len(chunk)*len(relationColumns))
		for _, row := range chunk {
			args = append(args, row.DocumentId, row.QueryId, row.GenericNameId, row.ProductId, row.CombinationId, row.ConditionId)
		}
		sql := insertStatement("document_relations", relationColumns, len(chunk))
		if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
			return errors.Wrap(err, "inserting document relations")
		}
	}
	return nil
}

func (t *postgresCycleTx) Commit(ctx context.Context) error {
	return errors.Wrap(t.tx.Commit(ctx), "committing write cycle")
}

func (t *postgresCycleTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return errors.Wrap(err, "rolling back write cycle")
	}
	return nil
}

// insertStatement builds a multi-row insert with numbered placeholders.
func insertStatement(table string, columns []string, rowCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	arg := 1
	for row := 0; row < rowCount; row++ {
		if row > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for col := range columns {
			if col > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(")")
	}
	return b.String()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
