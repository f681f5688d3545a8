// Package inmemdb is a core.DocumentStore kept in memory. Documents are held JSON encoded,
// so reads never alias what callers stored.
package inmemdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
)

var errDuplicateID = errors.New("duplicate id")

type (
	DB struct {
		mutex  sync.RWMutex
		tables map[string]*table
	}

	table struct {
		rows   map[string][]byte
		order  []string // insertion order
		unique []string // fields set by EnsureUnique
	}
)

var _ core.DocumentStore = (*DB)(nil)

func Open() *DB {
	return &DB{tables: make(map[string]*table)}
}

func (db *DB) table(coll string, create bool) *table {
	t, ok := db.tables[coll]
	if !ok && create {
		t = &table{rows: make(map[string][]byte)}
		db.tables[coll] = t
	}
	return t
}

func (db *DB) Insert(_ context.Context, coll string, docs ...core.Document) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t := db.table(coll, true)
	encoded := make([][]byte, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if _, ok := t.rows[doc.ID]; ok {
			return core.NewStoreError("insert", errors.Wrapf(errDuplicateID, "%s/%s", coll, doc.ID))
		}
		if _, ok := seen[doc.ID]; ok {
			return core.NewStoreError("insert", errors.Wrapf(errDuplicateID, "%s/%s", coll, doc.ID))
		}
		seen[doc.ID] = struct{}{}

		data, err := json.Marshal(doc.Body)
		if err != nil {
			return core.NewStoreError("insert", err)
		}
		encoded[i] = data
	}
	if len(t.unique) > 0 {
		candidates := make(map[string][]byte, len(docs))
		ids := make([]string, len(docs))
		for i, doc := range docs {
			candidates[doc.ID], ids[i] = encoded[i], doc.ID
		}
		if err := t.checkUnique(coll, ids, candidates); err != nil {
			return err
		}
	}
	for i, doc := range docs {
		t.rows[doc.ID] = encoded[i]
		t.order = append(t.order, doc.ID)
	}
	return nil
}

func (db *DB) Get(_ context.Context, coll, id string, dst interface{}) error {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	t := db.table(coll, false)
	if t == nil {
		return core.ErrDocumentNotFound
	}
	data, ok := t.rows[id]
	if !ok {
		return core.ErrDocumentNotFound
	}
	return core.NewStoreError("decode", json.Unmarshal(data, dst))
}

func (db *DB) Find(_ context.Context, coll string, q core.Query, dst interface{}) error {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	rows, err := db.query(coll, q)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r.data)
	}
	buf.WriteByte(']')
	return core.NewStoreError("decode", json.Unmarshal(buf.Bytes(), dst))
}

func (db *DB) Count(_ context.Context, coll string, q core.Query) (int64, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	rows, err := db.query(coll, core.Query{Filter: q.Filter, IDs: q.IDs})
	return int64(len(rows)), err
}

func (db *DB) Replace(_ context.Context, coll, id string, doc interface{}) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t := db.table(coll, false)
	if t == nil {
		return core.ErrDocumentNotFound
	}
	if _, ok := t.rows[id]; !ok {
		return core.ErrDocumentNotFound
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return core.NewStoreError("replace", err)
	}
	if err := t.checkUnique(coll, []string{id}, map[string][]byte{id: data}); err != nil {
		return err
	}
	t.rows[id] = data
	return nil
}

func (db *DB) Delete(_ context.Context, coll, id string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t := db.table(coll, false)
	if t == nil {
		return core.ErrDocumentNotFound
	}
	if _, ok := t.rows[id]; !ok {
		return core.ErrDocumentNotFound
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func (db *DB) EnsureUnique(_ context.Context, coll, field string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t := db.table(coll, true)
	for _, f := range t.unique {
		if f == field {
			return nil
		}
	}
	t.unique = append(t.unique, field)
	return nil
}

// checkUnique fails when a candidate row shares a unique value with a stored row
// or with another candidate. Stored rows with a candidate id are being replaced.
// Missing and null values are not indexed.
func (t *table) checkUnique(coll string, ids []string, candidates map[string][]byte) error {
	for _, field := range t.unique {
		taken := make(map[string]struct{}, len(t.rows))
		for id, data := range t.rows {
			if _, replaced := candidates[id]; replaced {
				continue
			}
			v, err := uniqueValue(data, field)
			if err != nil {
				return core.NewStoreError("insert", err)
			}
			if v != "" {
				taken[v] = struct{}{}
			}
		}
		for _, id := range ids {
			v, err := uniqueValue(candidates[id], field)
			if err != nil {
				return core.NewStoreError("insert", err)
			}
			if v == "" {
				continue
			}
			if _, ok := taken[v]; ok {
				return &core.DuplicateError{Collection: coll, Field: field}
			}
			taken[v] = struct{}{}
		}
	}
	return nil
}

func uniqueValue(data []byte, field string) (string, error) {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(data, &attrs); err != nil {
		return "", err
	}
	v, ok := attrs[field]
	if !ok || string(v) == "null" {
		return "", nil
	}
	return string(v), nil
}

func (db *DB) Ping(context.Context) error { return nil }

func (db *DB) Close(context.Context) error { return nil }

// Reset drops every collection.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = make(map[string]*table)
}

type row struct {
	data  []byte
	attrs map[string]interface{}
}

// query must be called with the read lock held.
func (db *DB) query(coll string, q core.Query) ([]row, error) {
	t := db.table(coll, false)
	if t == nil {
		return nil, nil
	}

	filter, err := normalize(q.Filter)
	if err != nil {
		return nil, core.NewStoreError("find", err)
	}

	ids := t.order
	if q.IDs != nil {
		ids = make([]string, 0, len(q.IDs))
		for _, id := range core.Unique(q.IDs) {
			if _, ok := t.rows[id]; ok {
				ids = append(ids, id)
			}
		}
	}

	rows := make([]row, 0, len(ids))
	for _, id := range ids {
		r := row{data: t.rows[id]}
		if len(filter) > 0 || len(q.Orderings) > 0 {
			if err := json.Unmarshal(r.data, &r.attrs); err != nil {
				return nil, core.NewStoreError("find", err)
			}
		}
		if matches(r.attrs, filter) {
			rows = append(rows, r)
		}
	}

	if len(q.Orderings) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, ord := range q.Orderings {
				c := compare(rows[i].attrs[ord.Field], rows[j].attrs[ord.Field])
				if c == 0 {
					continue
				}
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}
	return rows, nil
}

// normalize round-trips the filter through JSON so values compare like decoded documents.
func normalize(filter core.Filter) (map[string]interface{}, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	err = json.Unmarshal(data, &out)
	return out, err
}

func matches(attrs, filter map[string]interface{}) bool {
	for k, want := range filter {
		if !reflect.DeepEqual(attrs[k], want) {
			return false
		}
	}
	return true
}

// compare orders JSON values: missing < bool < number < string; others by their text.
func compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch va := a.(type) {
	case nil:
		return 0
	case bool:
		vb := b.(bool)
		if va == vb {
			return 0
		} else if !va {
			return -1
		}
		return 1
	case float64:
		vb := b.(float64)
		if va < vb {
			return -1
		} else if va > vb {
			return 1
		}
		return 0
	case string:
		vb := b.(string)
		if va < vb {
			return -1
		} else if va > vb {
			return 1
		}
		return 0
	default:
		sa, sb := fmt.Sprint(a), fmt.Sprint(b)
		if sa < sb {
			return -1
		} else if sa > sb {
			return 1
		}
		return 0
	}
}

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
