// Package catalog holds the reference data: organisational units, schools, equipment, partners...
// Every catalog is a flat document collection served by the same generic Service.
package catalog

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/inspectorat/core"
)

// Definition describes one catalog to the generic Service.
type Definition[T any] struct {
	Resource   string // singular label, eg. "province"
	Collection string
	Meta       func(*T) *core.Base
	// Refs lists the documents an entry points to; they must exist on write.
	Refs func(T) []core.Reference
	// View renders an entry with its references resolved (lists only).
	View    func(T, core.Projections) interface{}
	Clean   func(*T)
	Filters []string // attributes allowed as list filters
}

type Service[T any] struct {
	def      Definition[T]
	db       core.DocumentStore
	entries  core.Collection[T]
	validate *validator.Validate
}

func NewService[T any](def Definition[T], db core.DocumentStore, validate *validator.Validate) *Service[T] {
	return &Service[T]{
		def:      def,
		db:       db,
		entries:  core.NewCollection[T](db, def.Collection),
		validate: validate,
	}
}

func (svc *Service[T]) Resource() string { return svc.def.Resource }

func (svc *Service[T]) Filters() []string { return svc.def.Filters }

func (svc *Service[T]) notFound(id string) error { return core.NewNotFoundError(svc.def.Resource, id) }

func (svc *Service[T]) check(ctx context.Context, v *T) error {
	if svc.def.Clean != nil {
		svc.def.Clean(v)
	}
	if err := svc.validate.Struct(v); err != nil {
		return err
	}
	if svc.def.Refs != nil {
		return core.CheckReferences(ctx, svc.db, svc.def.Refs(*v)...)
	}
	return nil
}

// Create validates v, checks its references and stores it with a new identity.
func (svc *Service[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	if err := svc.check(ctx, &v); err != nil {
		return zero, err
	}
	svc.def.Meta(&v).Init()
	if err := svc.entries.Insert(ctx, svc.def.Meta(&v).ID, v); err != nil {
		return zero, err
	}
	return v, nil
}

// List returns every entry matching filter, references resolved to {id, name}.
func (svc *Service[T]) List(ctx context.Context, filter core.Filter, orderings []core.DBOrdering) ([]interface{}, error) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "createdAt", Ascending: true}}
	}
	entries, err := svc.entries.Find(ctx, core.Query{Filter: filter, Orderings: orderings})
	if err != nil {
		return nil, err
	}
	return svc.views(ctx, entries)
}

func (svc *Service[T]) views(ctx context.Context, entries []T) ([]interface{}, error) {
	out := make([]interface{}, len(entries))
	if svc.def.Refs == nil || svc.def.View == nil {
		for i, e := range entries {
			out[i] = e
		}
		return out, nil
	}

	var refs []core.Reference
	for _, e := range entries {
		refs = append(refs, svc.def.Refs(e)...)
	}
	projs, err := core.ResolveNames(ctx, svc.db, refs)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		out[i] = svc.def.View(e, projs)
	}
	return out, nil
}

func (svc *Service[T]) Get(ctx context.Context, id string) (T, error) {
	v, err := svc.entries.Get(ctx, id)
	if err != nil && core.IsNotFound(err) {
		return v, svc.notFound(id)
	}
	return v, err
}

// Update overwrites the attributes present in patch and re-validates the result.
func (svc *Service[T]) Update(ctx context.Context, id string, patch core.Patch) (T, error) {
	var zero T
	orig, err := svc.Get(ctx, id)
	if err != nil {
		return zero, err
	}

	var v T
	if err := patch.Merge(orig, &v, "id", "createdAt", "updatedAt"); err != nil {
		return zero, err
	}
	if err := svc.check(ctx, &v); err != nil {
		return zero, err
	}
	svc.def.Meta(&v).Touch()
	if err := svc.entries.Replace(ctx, id, v); err != nil {
		if core.IsNotFound(err) {
			return zero, svc.notFound(id)
		}
		return zero, err
	}
	return v, nil
}

// Delete removes an entry. Documents referencing it are left as they are.
func (svc *Service[T]) Delete(ctx context.Context, id string) error {
	if err := svc.entries.Delete(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return svc.notFound(id)
		}
		return err
	}
	return nil
}
