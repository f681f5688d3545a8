package form

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	"github.com/trezcool/inspectorat/core/user"
)

var ErrFormTypeNotFound = errors.New("form type not found")

type (
	// TypeSummary is how a FormType is rendered inside its instances.
	TypeSummary struct {
		ID     string            `json:"id"`
		Code   string            `json:"code"`
		Name   string            `json:"nom"`
		Fields []FieldDefinition `json:"champs"`
	}

	// InstanceView is a FormInstance with its form type and sous-direction resolved.
	InstanceView struct {
		FormInstance
		FormType    core.Ref `json:"typeFormulaire"`
		SubDivision core.Ref `json:"idSousDirection"`
	}
)

type InstanceService struct {
	db        core.DocumentStore
	instances core.Collection[FormInstance]
	types     *TypeService
	users     *user.Service
	mailSvc   core.EmailService
	logger    core.Logger
	validate  *validator.Validate
	notify    bool
}

func NewInstanceService(
	db core.DocumentStore,
	types *TypeService,
	users *user.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) *InstanceService {
	return &InstanceService{
		db:        db,
		instances: core.NewCollection[FormInstance](db, InstancesCollection),
		types:     types,
		users:     users,
		mailSvc:   mailSvc,
		logger:    logger,
		validate:  validate,
		notify:    conf.Forms.NotifyRecipients,
	}
}

func instanceNotFound(id string) error { return core.NewNotFoundError("form instance", id) }

// formType loads the form type an instance answers. A missing one is a client error.
func (svc *InstanceService) formType(ctx context.Context, id string) (FormType, error) {
	ft, err := svc.types.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return FormType{}, core.NewValidationError(
				ErrFormTypeNotFound,
				core.FieldError{Field: "typeFormulaire", Error: ErrFormTypeNotFound.Error()},
			)
		}
		return FormType{}, err
	}
	return ft, nil
}

func (svc *InstanceService) Create(ctx context.Context, nfi NewFormInstance) (InstanceView, error) {
	if err := svc.validate.Struct(nfi); err != nil {
		return InstanceView{}, err
	}
	ft, err := svc.formType(ctx, nfi.FormTypeID)
	if err != nil {
		return InstanceView{}, err
	}
	responses, err := checkResponses(ft, nfi.Responses)
	if err != nil {
		return InstanceView{}, err
	}

	createdBy := nfi.CreatedBy
	if createdBy == "" {
		createdBy = core.ActorFrom(ctx).AccountID
	}
	if createdBy == "" {
		return InstanceView{}, core.NewFieldError("createdBy", "createdBy is required")
	}

	fi := FormInstance{
		FormTypeID:    ft.ID,
		Responses:     responses,
		Recipients:    core.Unique(nfi.Recipients),
		SubDivisionID: nfi.SubDivisionID,
		CreatedBy:     createdBy,
	}
	fi.Init()
	if err := svc.instances.Insert(ctx, fi.ID, fi); err != nil {
		return InstanceView{}, err
	}

	if svc.notify {
		svc.notifyRecipients(ctx, ft, fi)
	}
	return svc.view(ctx, fi)
}

// notifyRecipients emails the recipients of the form type and of the instance.
// Unknown accounts and accounts without an email are skipped.
func (svc *InstanceService) notifyRecipients(ctx context.Context, ft FormType, fi FormInstance) {
	ids := core.Unique(append(append([]string{}, ft.Recipients...), fi.Recipients...))
	if len(ids) == 0 {
		return
	}
	users, err := svc.users.GetMany(ctx, ids)
	if err != nil {
		svc.logger.Error("loading form recipients", err, core.ActorFrom(ctx))
		return
	}

	messages := make([]*core.EmailMessage, 0, len(users))
	for _, u := range users {
		if u.Email == "" || !u.IsActive {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: u.Name, Address: u.Email}},
			Subject:      "Nouveau formulaire : " + ft.Name,
			TemplateName: "form_submitted",
			TemplateData: map[string]interface{}{
				"RecipientName": u.Name,
				"FormName":      ft.Name,
				"FormCode":      ft.Code,
				"FormID":        fi.ID,
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
}

func (svc *InstanceService) Get(ctx context.Context, id string) (InstanceView, error) {
	fi, err := svc.instances.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return InstanceView{}, instanceNotFound(id)
		}
		return InstanceView{}, err
	}
	return svc.view(ctx, fi)
}

// List returns the instances matching filter (typeFormulaire, createdBy, idSousDirection).
func (svc *InstanceService) List(ctx context.Context, filter core.Filter, orderings []core.DBOrdering) ([]InstanceView, error) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "createdAt", Ascending: false}}
	}
	instances, err := svc.instances.Find(ctx, core.Query{Filter: filter, Orderings: orderings})
	if err != nil {
		return nil, err
	}
	return svc.views(ctx, instances...)
}

func (svc *InstanceService) view(ctx context.Context, fi FormInstance) (InstanceView, error) {
	views, err := svc.views(ctx, fi)
	if err != nil {
		return InstanceView{}, err
	}
	return views[0], nil
}

// views resolves the form types and sous-directions of instances, one query per collection.
func (svc *InstanceService) views(ctx context.Context, instances ...FormInstance) ([]InstanceView, error) {
	typeIDs := make([]string, 0, len(instances))
	refs := make([]core.Reference, 0, len(instances))
	for _, fi := range instances {
		typeIDs = append(typeIDs, fi.FormTypeID)
		refs = append(refs, core.Reference{Collection: catalog.SousDirections, ID: fi.SubDivisionID})
	}

	types, err := svc.types.types.GetMany(ctx, core.Unique(typeIDs))
	if err != nil {
		return nil, err
	}
	summaries := make(map[string]interface{}, len(types))
	for _, ft := range types {
		summaries[ft.ID] = TypeSummary{ID: ft.ID, Code: ft.Code, Name: ft.Name, Fields: ft.Fields}
	}
	names, err := core.ResolveNames(ctx, svc.db, refs)
	if err != nil {
		return nil, err
	}

	views := make([]InstanceView, len(instances))
	for i, fi := range instances {
		views[i] = InstanceView{
			FormInstance: fi,
			FormType:     core.NewRef(fi.FormTypeID, summaries),
			SubDivision:  names.Ref(catalog.SousDirections, fi.SubDivisionID),
		}
	}
	return views, nil
}

// Update merges uf into the stored instance. Responses are checked again whenever the
// form type or the responses change.
func (svc *InstanceService) Update(ctx context.Context, id string, uf UpdateFormInstance) (InstanceView, error) {
	fi, err := svc.instances.Get(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return InstanceView{}, instanceNotFound(id)
		}
		return InstanceView{}, err
	}
	if err := svc.validate.Struct(uf); err != nil {
		return InstanceView{}, err
	}

	fi = uf.ApplyTo(fi)
	if uf.FormTypeID != nil || uf.Responses != nil {
		ft, err := svc.formType(ctx, fi.FormTypeID)
		if err != nil {
			return InstanceView{}, err
		}
		if fi.Responses, err = checkResponses(ft, fi.Responses); err != nil {
			return InstanceView{}, err
		}
	}
	fi.Recipients = core.Unique(fi.Recipients)
	fi.Touch()

	if err := svc.instances.Replace(ctx, id, fi); err != nil {
		if core.IsNotFound(err) {
			return InstanceView{}, instanceNotFound(id)
		}
		return InstanceView{}, err
	}
	return svc.view(ctx, fi)
}

func (svc *InstanceService) Delete(ctx context.Context, id string) error {
	if err := svc.instances.Delete(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return instanceNotFound(id)
		}
		return err
	}
	return nil
}
