package core

import (
	"context"
	"regexp"
)

type (
	// Document is one record to insert: its id and the value to encode.
	Document struct {
		ID   string
		Body interface{}
	}

	// Filter is an equality match on top-level document attributes.
	Filter map[string]interface{}

	Query struct {
		Filter    Filter
		IDs       []string // restrict to these ids when non-nil
		Orderings []DBOrdering
	}

	// DocumentStore is the contract every storage backend implements.
	// Get and Find decode into dst (a pointer to a value, resp. to a slice).
	DocumentStore interface {
		// Insert stores all docs or none of them.
		Insert(ctx context.Context, coll string, docs ...Document) error
		Get(ctx context.Context, coll, id string, dst interface{}) error
		Find(ctx context.Context, coll string, q Query, dst interface{}) error
		Count(ctx context.Context, coll string, q Query) (int64, error)
		Replace(ctx context.Context, coll, id string, doc interface{}) error
		Delete(ctx context.Context, coll, id string) error
		// EnsureUnique makes field a unique attribute of coll: Insert and Replace
		// then fail with a *DuplicateError when another document has the same value.
		EnsureUnique(ctx context.Context, coll, field string) error
		Ping(ctx context.Context) error
		Close(ctx context.Context) error
	}
)

var orderingFieldRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Valid reports whether the field name is safe to hand to a backend.
func (ord DBOrdering) Valid() bool {
	return orderingFieldRegex.MatchString(ord.Field)
}

// Collection is a typed view over one collection of a DocumentStore.
type Collection[T any] struct {
	db   DocumentStore
	name string
}

func NewCollection[T any](db DocumentStore, name string) Collection[T] {
	return Collection[T]{db: db, name: name}
}

func (c Collection[T]) Name() string { return c.name }

func (c Collection[T]) Insert(ctx context.Context, id string, doc T) error {
	return c.db.Insert(ctx, c.name, Document{ID: id, Body: doc})
}

// InsertMany inserts docs[i] under ids[i], all or nothing.
func (c Collection[T]) InsertMany(ctx context.Context, ids []string, docs []T) error {
	batch := make([]Document, len(docs))
	for i := range docs {
		batch[i] = Document{ID: ids[i], Body: docs[i]}
	}
	return c.db.Insert(ctx, c.name, batch...)
}

func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var doc T
	if !ValidID(id) {
		return doc, ErrDocumentNotFound
	}
	err := c.db.Get(ctx, c.name, id, &doc)
	return doc, err
}

func (c Collection[T]) Find(ctx context.Context, q Query) ([]T, error) {
	docs := make([]T, 0)
	if err := c.db.Find(ctx, c.name, q, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetMany loads the documents for ids (unknown and malformed ids are skipped).
func (c Collection[T]) GetMany(ctx context.Context, ids []string) ([]T, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if ValidID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []T{}, nil
	}
	return c.Find(ctx, Query{IDs: valid})
}

func (c Collection[T]) Exists(ctx context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, nil
	}
	n, err := c.db.Count(ctx, c.name, Query{IDs: []string{id}})
	return n > 0, err
}

func (c Collection[T]) Count(ctx context.Context, q Query) (int64, error) {
	return c.db.Count(ctx, c.name, q)
}

func (c Collection[T]) Replace(ctx context.Context, id string, doc T) error {
	if !ValidID(id) {
		return ErrDocumentNotFound
	}
	return c.db.Replace(ctx, c.name, id, doc)
}

func (c Collection[T]) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrDocumentNotFound
	}
	return c.db.Delete(ctx, c.name, id)
}

// Unique returns the distinct non-empty values of ids, in first-seen order.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
