// Package postgres is a core.DocumentStore keeping every collection in one JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
)

const table = "documents"

// uniqueViolation is the SQLSTATE of a unique index violation.
const uniqueViolation = "23505"

type DB struct {
	db      *sqlx.DB
	indexes sync.Map // unique index name -> core.DuplicateError
}

var _ core.DocumentStore = (*DB)(nil)

// Open connects to conf.Database.URI and waits for the server to be ready.
func Open(conf *core.Config) (*DB, error) {
	db, err := sqlx.Open("postgres", conf.Database.URI)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := Ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

// SQL exposes the underlying pool (migrations).
func (db *DB) SQL() *sql.DB { return db.db.DB }

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func (db *DB) Insert(ctx context.Context, coll string, docs ...core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStoreError("insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO ` + table + ` (collection, id, doc) VALUES ($1, $2, $3)`
	for _, doc := range docs {
		data, err := json.Marshal(doc.Body)
		if err != nil {
			return core.NewStoreError("insert", err)
		}
		if _, err := tx.ExecContext(ctx, q, coll, doc.ID, string(data)); err != nil {
			return db.writeError("insert", err)
		}
	}
	return core.NewStoreError("insert", tx.Commit())
}

func (db *DB) Get(ctx context.Context, coll, id string, dst interface{}) error {
	var data []byte
	err := db.db.GetContext(ctx, &data, `SELECT doc FROM `+table+` WHERE collection = $1 AND id = $2`, coll, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrDocumentNotFound
	} else if err != nil {
		return core.NewStoreError("get", err)
	}
	return core.NewStoreError("decode", json.Unmarshal(data, dst))
}

func (db *DB) Find(ctx context.Context, coll string, q core.Query, dst interface{}) error {
	where, args, err := whereClause(coll, q)
	if err != nil {
		return core.NewStoreError("find", err)
	}

	orderBy := "created_at ASC, id ASC"
	if len(q.Orderings) > 0 {
		terms := make([]string, 0, len(q.Orderings))
		for _, ord := range q.Orderings {
			if !ord.Valid() {
				return core.NewStoreError("find", errors.Errorf("invalid ordering field %q", ord.Field))
			}
			dir := "DESC"
			if ord.Ascending {
				dir = "ASC"
			}
			terms = append(terms, "doc->"+pq.QuoteLiteral(ord.Field)+" "+dir)
		}
		orderBy = strings.Join(append(terms, "created_at ASC", "id ASC"), ", ")
	}

	var data []byte
	query := `SELECT coalesce(jsonb_agg(doc ORDER BY ` + orderBy + `), '[]'::jsonb) FROM ` + table + ` WHERE ` + where
	if err := db.db.GetContext(ctx, &data, query, args...); err != nil {
		return core.NewStoreError("find", err)
	}
	return core.NewStoreError("decode", json.Unmarshal(data, dst))
}

func (db *DB) Count(ctx context.Context, coll string, q core.Query) (int64, error) {
	where, args, err := whereClause(coll, q)
	if err != nil {
		return 0, core.NewStoreError("count", err)
	}
	var n int64
	err = db.db.GetContext(ctx, &n, `SELECT count(*) FROM `+table+` WHERE `+where, args...)
	return n, core.NewStoreError("count", err)
}

func (db *DB) Replace(ctx context.Context, coll, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return core.NewStoreError("replace", err)
	}
	res, err := db.db.ExecContext(ctx, `UPDATE `+table+` SET doc = $3 WHERE collection = $1 AND id = $2`, coll, id, string(data))
	if err != nil {
		return db.writeError("replace", err)
	}
	return affected("replace", res, nil)
}

func (db *DB) Delete(ctx context.Context, coll, id string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE collection = $1 AND id = $2`, coll, id)
	return affected("delete", res, err)
}

// EnsureUnique creates a partial expression index on doc->>field, restricted to the rows of coll.
func (db *DB) EnsureUnique(ctx context.Context, coll, field string) error {
	if !orderingSafe(coll) || !orderingSafe(field) {
		return core.NewStoreError("index", errors.Errorf("invalid unique index %s.%s", coll, field))
	}
	name := uniqueIndexName(coll, field)
	q := `CREATE UNIQUE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier(name) + ` ON ` + table +
		` ((doc->>` + pq.QuoteLiteral(field) + `)) WHERE collection = ` + pq.QuoteLiteral(coll)
	if _, err := db.db.ExecContext(ctx, q); err != nil {
		return core.NewStoreError("index", err)
	}
	db.indexes.Store(name, core.DuplicateError{Collection: coll, Field: field})
	return nil
}

func uniqueIndexName(coll, field string) string {
	return table + "_" + coll + "_" + field + "_key"
}

func orderingSafe(name string) bool {
	return core.DBOrdering{Field: name}.Valid()
}

// writeError turns a violation of an index made by EnsureUnique into a *core.DuplicateError.
func (db *DB) writeError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if dup, ok := db.indexes.Load(pqErr.Constraint); ok {
			d := dup.(core.DuplicateError)
			return &d
		}
	}
	return core.NewStoreError(op, err)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) Close(context.Context) error {
	return db.db.Close()
}

func whereClause(coll string, q core.Query) (string, []interface{}, error) {
	conds := []string{"collection = $1"}
	args := []interface{}{coll}
	if len(q.Filter) > 0 {
		data, err := json.Marshal(q.Filter)
		if err != nil {
			return "", nil, err
		}
		args = append(args, string(data))
		conds = append(conds, "doc @> $2::jsonb")
	}
	if q.IDs != nil {
		args = append(args, pq.Array(core.Unique(q.IDs)))
		conds = append(conds, "id = ANY($"+strconv.Itoa(len(args))+")")
	}
	return strings.Join(conds, " AND "), args, nil
}

func affected(op string, res sql.Result, err error) error {
	if err != nil {
		return core.NewStoreError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewStoreError(op, err)
	}
	if n == 0 {
		return core.ErrDocumentNotFound
	}
	return nil
}
