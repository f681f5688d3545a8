package core

import (
	"context"
	"encoding/json"
	"time"
)

// timestampLayout always writes 9 fractional digits: stored timestamps compare as text
// in the same order as in time.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Timestamp is a UTC instant with a fixed-width JSON encoding.
type Timestamp struct {
	time.Time
}

// Now returns the current UTC time.
func Now() Timestamp { return Timestamp{time.Now().UTC()} }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.Time.UTC().Format(timestampLayout) + `"`), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	ts.Time = t.UTC()
	return nil
}

// Base holds the attributes every stored document carries.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Init assigns a new identity and creation timestamps.
func (b *Base) Init() {
	now := Now()
	b.ID = NewID()
	b.CreatedAt = now
	b.UpdatedAt = now
}

func (b *Base) Touch() { b.UpdatedAt = Now() }

// Ref is a reference to another document as rendered on reads.
// It marshals as the resolved projection when there is one, else as the bare id.
type Ref struct {
	ID    string
	Value interface{}
}

func NewRef(id string, projections map[string]interface{}) Ref {
	if v, ok := projections[id]; ok {
		return Ref{ID: id, Value: v}
	}
	return Ref{ID: id}
}

func (r Ref) Resolved() bool { return r.Value != nil }

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Value != nil {
		return json.Marshal(r.Value)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// Refs renders a list of references.
func Refs(ids []string, projections map[string]interface{}) []Ref {
	refs := make([]Ref, len(ids))
	for i, id := range ids {
		refs[i] = NewRef(id, projections)
	}
	return refs
}

// Named is the minimal projection of a referenced document.
type Named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Reference points from an attribute of a document to another document.
type Reference struct {
	Field      string // attribute name, as in JSON
	Resource   string // label used in errors, eg. "province"
	Collection string
	ID         string
}

// Projections holds resolved references: {collection: {id: projection}}.
type Projections map[string]map[string]interface{}

func (p Projections) Ref(coll, id string) Ref { return NewRef(id, p[coll]) }

func (p Projections) Refs(coll string, ids []string) []Ref { return Refs(ids, p[coll]) }

// CheckReferences fails with a NotFoundError for the first non-empty reference that does
// not resolve.
func CheckReferences(ctx context.Context, db DocumentStore, refs ...Reference) error {
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		if !ValidID(ref.ID) {
			return NewNotFoundError(ref.Resource, ref.ID)
		}
		n, err := db.Count(ctx, ref.Collection, Query{IDs: []string{ref.ID}})
		if err != nil {
			return err
		}
		if n == 0 {
			return NewNotFoundError(ref.Resource, ref.ID)
		}
	}
	return nil
}

// ResolveNames loads the Named projection of every referenced document, one query per
// collection.
func ResolveNames(ctx context.Context, db DocumentStore, refs []Reference) (Projections, error) {
	byColl := make(map[string][]string)
	for _, ref := range refs {
		if ref.ID != "" {
			byColl[ref.Collection] = append(byColl[ref.Collection], ref.ID)
		}
	}

	projs := make(Projections, len(byColl))
	for coll, ids := range byColl {
		docs, err := NewCollection[Named](db, coll).GetMany(ctx, Unique(ids))
		if err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, len(docs))
		for _, d := range docs {
			m[d.ID] = d
		}
		projs[coll] = m
	}
	return projs, nil
}
