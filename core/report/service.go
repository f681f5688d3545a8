package report

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	"github.com/trezcool/inspectorat/core/user"
)

var (
	ErrFormCodeMismatch = errors.New("formCode does not match the report kind")
	ErrNumberExists     = errors.New("a report with this numero already exists")
)

// Kind describes one report kind to the generic Service.
type Kind[S any] struct {
	Resource   string // singular label, eg. "rapport annuel"
	Collection string
	FormCode   string
	// Check runs the rules the validate tags cannot express.
	Check func(S) error
}

func fieldError(field, msg string) error { return core.NewFieldError(field, msg) }

type Service[S any] struct {
	kind     Kind[S]
	db       core.DocumentStore
	reports  core.Collection[Report[S]]
	validate *validator.Validate
}

func NewService[S any](kind Kind[S], db core.DocumentStore, validate *validator.Validate) *Service[S] {
	return &Service[S]{
		kind:     kind,
		db:       db,
		reports:  core.NewCollection[Report[S]](db, kind.Collection),
		validate: validate,
	}
}

func (svc *Service[S]) Resource() string { return svc.kind.Resource }
func (svc *Service[S]) FormCode() string { return svc.kind.FormCode }

func (svc *Service[S]) notFound(id string) error { return core.NewNotFoundError(svc.kind.Resource, id) }

func (svc *Service[S]) checkFormCode(code string) error {
	if code != "" && code != svc.kind.FormCode {
		return core.NewValidationError(ErrFormCodeMismatch, core.FieldError{
			Field: "formCode",
			Error: "must be " + svc.kind.FormCode,
		})
	}
	return nil
}

// prepare cleans and validates r, then checks the inspector and the establishment exist.
func (svc *Service[S]) prepare(ctx context.Context, r *Report[S]) error {
	r.clean()
	if err := svc.checkFormCode(r.FormCode); err != nil {
		return err
	}
	r.FormCode = svc.kind.FormCode

	if err := svc.validate.Struct(r); err != nil {
		return err
	}
	if svc.kind.Check != nil {
		if err := svc.kind.Check(r.Sections); err != nil {
			return err
		}
	}
	return core.CheckReferences(ctx, svc.db,
		core.Reference{Field: "idInspecteur", Resource: "inspecteur", Collection: user.Collection, ID: r.InspectorID},
		core.Reference{Field: "idEtablissement", Resource: "etablissement", Collection: catalog.Etablissements, ID: r.EstablishmentID},
	)
}

// checkNumbers fails if one of numbers is already used by a report other than exclID.
func (svc *Service[S]) checkNumbers(ctx context.Context, exclID string, numbers ...string) error {
	for _, n := range numbers {
		found, err := svc.reports.Find(ctx, core.Query{Filter: core.Filter{"numero": n}})
		if err != nil {
			return err
		}
		for _, r := range found {
			if r.ID != exclID {
				return numberExists()
			}
		}
	}
	return nil
}

func numberExists() error {
	return core.NewValidationError(ErrNumberExists, core.FieldError{Field: "numero", Error: ErrNumberExists.Error()})
}

// EnsureIndexes makes numero unique in the store, closing the gap between checkNumbers and the write.
func (svc *Service[S]) EnsureIndexes(ctx context.Context) error {
	return svc.db.EnsureUnique(ctx, svc.kind.Collection, "numero")
}

// writeError maps a numero refused by the unique index to the same error checkNumbers returns.
func writeError(err error) error {
	var dup *core.DuplicateError
	if errors.As(err, &dup) && dup.Field == "numero" {
		return numberExists()
	}
	return err
}

func (svc *Service[S]) Create(ctx context.Context, r Report[S]) (View[S], error) {
	if err := svc.prepare(ctx, &r); err != nil {
		return View[S]{}, err
	}
	if err := svc.checkNumbers(ctx, "", r.Number); err != nil {
		return View[S]{}, err
	}
	r.Init()
	if err := svc.reports.Insert(ctx, r.ID, r); err != nil {
		return View[S]{}, writeError(err)
	}
	return svc.view(ctx, r)
}

// CreateMany validates every report, then stores them all or none.
func (svc *Service[S]) CreateMany(ctx context.Context, rs []Report[S]) ([]View[S], error) {
	if len(rs) == 0 {
		return []View[S]{}, nil
	}

	ids := make([]string, len(rs))
	numbers := make([]string, len(rs))
	seen := make(map[string]int, len(rs))
	for i := range rs {
		if err := svc.prepare(ctx, &rs[i]); err != nil {
			return nil, &core.BatchError{Index: i, Err: err}
		}
		if j, dup := seen[rs[i].Number]; dup {
			return nil, &core.BatchError{
				Index: i,
				Err:   core.NewFieldError("numero", "same numero as record "+strconv.Itoa(j)),
			}
		}
		seen[rs[i].Number] = i
		rs[i].Init()
		ids[i], numbers[i] = rs[i].ID, rs[i].Number
	}
	if err := svc.checkNumbers(ctx, "", numbers...); err != nil {
		return nil, err
	}

	if err := svc.reports.InsertMany(ctx, ids, rs); err != nil {
		return nil, writeError(err)
	}
	return svc.views(ctx, rs...)
}

func (svc *Service[S]) Get(ctx context.Context, id string) (View[S], error) {
	r, err := svc.get(ctx, id)
	if err != nil {
		return View[S]{}, err
	}
	return svc.view(ctx, r)
}

func (svc *Service[S]) get(ctx context.Context, id string) (Report[S], error) {
	r, err := svc.reports.Get(ctx, id)
	if err != nil && core.IsNotFound(err) {
		return r, svc.notFound(id)
	}
	return r, err
}

// List returns the reports matching filter (idInspecteur, idEtablissement, numero),
// most recent inspection first.
func (svc *Service[S]) List(ctx context.Context, filter core.Filter, orderings []core.DBOrdering) ([]View[S], error) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "dateInspection"}, {Field: "createdAt"}}
	}
	reports, err := svc.reports.Find(ctx, core.Query{Filter: filter, Orderings: orderings})
	if err != nil {
		return nil, err
	}
	return svc.views(ctx, reports...)
}

// Update merges the attributes present in p over the stored report and validates the result.
// The form code of a report never changes.
func (svc *Service[S]) Update(ctx context.Context, id string, p core.Patch) (View[S], error) {
	stored, err := svc.get(ctx, id)
	if err != nil {
		return View[S]{}, err
	}

	if raw, ok := p["formCode"]; ok {
		var code string
		if err := json.Unmarshal(raw, &code); err != nil || code != svc.kind.FormCode {
			return View[S]{}, core.NewValidationError(ErrFormCodeMismatch, core.FieldError{
				Field: "formCode",
				Error: "must be " + svc.kind.FormCode,
			})
		}
	}

	var r Report[S]
	if err := p.Merge(stored, &r, "id", "createdAt", "updatedAt", "formCode"); err != nil {
		return View[S]{}, err
	}
	if err := svc.prepare(ctx, &r); err != nil {
		return View[S]{}, err
	}
	if p.Has("numero") {
		if err := svc.checkNumbers(ctx, id, r.Number); err != nil {
			return View[S]{}, err
		}
	}
	r.Touch()

	if err := svc.reports.Replace(ctx, id, r); err != nil {
		if core.IsNotFound(err) {
			return View[S]{}, svc.notFound(id)
		}
		return View[S]{}, writeError(err)
	}
	return svc.view(ctx, r)
}

func (svc *Service[S]) Delete(ctx context.Context, id string) error {
	if err := svc.reports.Delete(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return svc.notFound(id)
		}
		return err
	}
	return nil
}

func (svc *Service[S]) view(ctx context.Context, r Report[S]) (View[S], error) {
	views, err := svc.views(ctx, r)
	if err != nil {
		return View[S]{}, err
	}
	return views[0], nil
}

// views resolves inspectors and establishments (with their denomination) of reports.
func (svc *Service[S]) views(ctx context.Context, reports ...Report[S]) ([]View[S], error) {
	inspectorIDs := make([]string, 0, len(reports))
	schoolIDs := make([]string, 0, len(reports))
	for _, r := range reports {
		inspectorIDs = append(inspectorIDs, r.InspectorID)
		schoolIDs = append(schoolIDs, r.EstablishmentID)
	}

	inspectors, err := core.NewCollection[user.User](svc.db, user.Collection).GetMany(ctx, core.Unique(inspectorIDs))
	if err != nil {
		return nil, err
	}
	contacts := make(map[string]interface{}, len(inspectors))
	for _, u := range inspectors {
		contacts[u.ID] = InspectorContact{ID: u.ID, Name: u.Name, Email: u.Email}
	}

	schools, err := core.NewCollection[catalog.Etablissement](svc.db, catalog.Etablissements).GetMany(ctx, core.Unique(schoolIDs))
	if err != nil {
		return nil, err
	}
	refs := make([]core.Reference, len(schools))
	for i, s := range schools {
		refs[i] = core.Reference{Collection: catalog.Denominations, ID: s.IDDenomination}
	}
	denominations, err := core.ResolveNames(ctx, svc.db, refs)
	if err != nil {
		return nil, err
	}
	summaries := make(map[string]interface{}, len(schools))
	for _, s := range schools {
		summaries[s.ID] = EstablishmentSummary{
			ID:           s.ID,
			Name:         s.Name,
			Denomination: denominations.Ref(catalog.Denominations, s.IDDenomination),
		}
	}

	views := make([]View[S], len(reports))
	for i, r := range reports {
		views[i] = View[S]{
			Report:        r,
			Inspector:     core.NewRef(r.InspectorID, contacts),
			Establishment: core.NewRef(r.EstablishmentID, summaries),
		}
	}
	return views, nil
}
