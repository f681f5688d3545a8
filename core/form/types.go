package form

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	"github.com/trezcool/inspectorat/core/user"
)

type (
	// TypeView is a FormType with its recipients resolved.
	TypeView struct {
		FormType
		Recipients []core.Ref `json:"destinataires"`
	}

	RecipientContact struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone,omitempty"`
	}

	// RecipientDetail is a recipient with its organisational units, each reduced to a name.
	RecipientDetail struct {
		ID              string   `json:"id"`
		Name            string   `json:"name"`
		Role            string   `json:"role"`
		IDDirection     core.Ref `json:"idDirection"`
		IDSousDirection core.Ref `json:"idSousDirection"`
		IDService       core.Ref `json:"idService"`
	}

	nameOnly struct {
		Name string `json:"name"`
	}
)

type TypeService struct {
	db       core.DocumentStore
	types    core.Collection[FormType]
	users    *user.Service
	validate *validator.Validate
}

func NewTypeService(db core.DocumentStore, users *user.Service, validate *validator.Validate) *TypeService {
	return &TypeService{
		db:       db,
		types:    core.NewCollection[FormType](db, TypesCollection),
		users:    users,
		validate: validate,
	}
}

func typeNotFound(id string) error { return core.NewNotFoundError("form type", id) }

// prepareFields assigns ids to new fields and drops options from non-select fields.
func prepareFields(fields []FieldDefinition) ([]FieldDefinition, error) {
	out := make([]FieldDefinition, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		f.Name = core.CleanString(f.Name)
		if f.ID == "" {
			f.ID = core.NewID()
		}
		if _, dup := seen[f.ID]; dup {
			return nil, core.NewFieldError("champs", "duplicate field id "+f.ID)
		}
		seen[f.ID] = struct{}{}
		if f.Kind != KindSelect {
			f.Options = nil
		}
		out[i] = f
	}
	return out, nil
}

func (svc *TypeService) Create(ctx context.Context, nft NewFormType) (FormType, error) {
	nft.Code = core.CleanString(nft.Code)
	nft.Name = core.CleanString(nft.Name)
	if err := svc.validate.Struct(nft); err != nil {
		return FormType{}, err
	}
	fields, err := prepareFields(nft.Fields)
	if err != nil {
		return FormType{}, err
	}

	ft := FormType{
		Code:       nft.Code,
		Name:       nft.Name,
		Fields:     fields,
		Recipients: core.Unique(nft.Recipients),
		CreatedBy:  nft.CreatedBy,
	}
	ft.Init()
	if err := svc.types.Insert(ctx, ft.ID, ft); err != nil {
		return FormType{}, err
	}
	return ft, nil
}

func (svc *TypeService) Get(ctx context.Context, id string) (FormType, error) {
	ft, err := svc.types.Get(ctx, id)
	if err != nil && core.IsNotFound(err) {
		return ft, typeNotFound(id)
	}
	return ft, err
}

// GetWithContacts returns a FormType with its recipients resolved to {id, name, email, phone}.
func (svc *TypeService) GetWithContacts(ctx context.Context, id string) (TypeView, error) {
	ft, err := svc.Get(ctx, id)
	if err != nil {
		return TypeView{}, err
	}
	users, err := svc.users.GetMany(ctx, ft.Recipients)
	if err != nil {
		return TypeView{}, err
	}
	contacts := make(map[string]interface{}, len(users))
	for _, u := range users {
		contacts[u.ID] = RecipientContact{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
	}
	return TypeView{FormType: ft, Recipients: core.Refs(ft.Recipients, contacts)}, nil
}

// List returns every FormType. With details, recipients are resolved to their name, role
// and the names of their direction, sous-direction and service.
func (svc *TypeService) List(ctx context.Context, details bool, orderings []core.DBOrdering) ([]interface{}, error) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "createdAt", Ascending: true}}
	}
	types, err := svc.types.Find(ctx, core.Query{Orderings: orderings})
	if err != nil {
		return nil, err
	}

	out := make([]interface{}, len(types))
	if !details {
		for i, ft := range types {
			out[i] = ft
		}
		return out, nil
	}

	var ids []string
	for _, ft := range types {
		ids = append(ids, ft.Recipients...)
	}
	recipients, err := svc.recipientDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, ft := range types {
		out[i] = TypeView{FormType: ft, Recipients: core.Refs(ft.Recipients, recipients)}
	}
	return out, nil
}

func (svc *TypeService) recipientDetails(ctx context.Context, ids []string) (map[string]interface{}, error) {
	users, err := svc.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var refs []core.Reference
	for _, u := range users {
		refs = append(refs,
			core.Reference{Collection: catalog.Directions, ID: u.IDDirection},
			core.Reference{Collection: catalog.SousDirections, ID: u.IDSousDirection},
			core.Reference{Collection: catalog.Services, ID: u.IDService},
		)
	}
	named, err := core.ResolveNames(ctx, svc.db, refs)
	if err != nil {
		return nil, err
	}
	names := make(core.Projections, len(named))
	for coll, docs := range named {
		names[coll] = make(map[string]interface{}, len(docs))
		for id, d := range docs {
			names[coll][id] = nameOnly{Name: d.(core.Named).Name}
		}
	}

	out := make(map[string]interface{}, len(users))
	for _, u := range users {
		out[u.ID] = RecipientDetail{
			ID:              u.ID,
			Name:            u.Name,
			Role:            u.Role,
			IDDirection:     names.Ref(catalog.Directions, u.IDDirection),
			IDSousDirection: names.Ref(catalog.SousDirections, u.IDSousDirection),
			IDService:       names.Ref(catalog.Services, u.IDService),
		}
	}
	return out, nil
}

// Update replaces code, nom and createdBy, and champs / destinataires when present.
func (svc *TypeService) Update(ctx context.Context, id string, uft UpdateFormType) (FormType, error) {
	ft, err := svc.Get(ctx, id)
	if err != nil {
		return FormType{}, err
	}

	uft.Code = core.CleanString(uft.Code)
	uft.Name = core.CleanString(uft.Name)
	if err := svc.validate.Struct(uft); err != nil {
		return FormType{}, err
	}

	ft.Code, ft.Name, ft.CreatedBy = uft.Code, uft.Name, uft.CreatedBy
	if uft.Fields != nil {
		if ft.Fields, err = prepareFields(*uft.Fields); err != nil {
			return FormType{}, err
		}
	}
	if uft.Recipients != nil {
		ft.Recipients = core.Unique(*uft.Recipients)
	}
	ft.Touch()

	if err := svc.types.Replace(ctx, id, ft); err != nil {
		if core.IsNotFound(err) {
			return FormType{}, typeNotFound(id)
		}
		return FormType{}, err
	}
	return ft, nil
}

// Delete removes a FormType. Its instances are kept and point to nothing afterwards.
func (svc *TypeService) Delete(ctx context.Context, id string) error {
	if err := svc.types.Delete(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return typeNotFound(id)
		}
		return err
	}
	return nil
}
