// Package form is the dynamic form system: form types declare typed fields and recipients,
// form instances hold the responses to one form type.
package form

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/inspectorat/core"
)

// Collections
const (
	TypesCollection     = "form_types"
	InstancesCollection = "form_instances"
)

type FieldKind string

// Field kinds
const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
	KindSelect FieldKind = "select"
)

var (
	AllKinds = []FieldKind{KindText, KindNumber, KindDate, KindSelect}

	fieldKindTag  = "fieldkind"
	fieldKindText = "must be one of: text, number, date, select"
)

func (k FieldKind) Valid() bool {
	for _, kind := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type FieldDefinition struct {
	ID       string    `json:"id"`
	Name     string    `json:"nom" validate:"required,notblank"`
	Kind     FieldKind `json:"type" validate:"required,fieldkind"`
	Options  []string  `json:"options,omitempty" validate:"omitempty,dive,notblank"`
	Required bool      `json:"obligatoire"`
}

type FormType struct {
	core.Base
	Code       string            `json:"code" validate:"required,notblank"`
	Name       string            `json:"nom" validate:"required,notblank"`
	Fields     []FieldDefinition `json:"champs" validate:"dive"`
	Recipients []string          `json:"destinataires"`
	CreatedBy  string            `json:"createdBy" validate:"required"`
}

func (ft FormType) Field(id string) (FieldDefinition, bool) {
	for _, f := range ft.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// NewFormType contains information needed to create a FormType.
type NewFormType struct {
	Code       string            `json:"code" validate:"required,notblank"`
	Name       string            `json:"nom" validate:"required,notblank"`
	Fields     []FieldDefinition `json:"champs" validate:"dive"`
	Recipients []string          `json:"destinataires"`
	CreatedBy  string            `json:"createdBy" validate:"required"`
}

// UpdateFormType replaces code, nom and createdBy; champs and destinataires are replaced
// when present.
type UpdateFormType struct {
	Code       string             `json:"code" validate:"required,notblank"`
	Name       string             `json:"nom" validate:"required,notblank"`
	Fields     *[]FieldDefinition `json:"champs" validate:"omitempty,dive"`
	Recipients *[]string          `json:"destinataires"`
	CreatedBy  string             `json:"createdBy" validate:"required"`
}

// Response answers one field of the form type.
type Response struct {
	FieldID string `json:"champId" validate:"required"`
	Value   Value  `json:"valeur"`
}

type FormInstance struct {
	core.Base
	FormTypeID    string     `json:"typeFormulaire"`
	Responses     []Response `json:"reponses"`
	Recipients    []string   `json:"destinataires"`
	SubDivisionID string     `json:"idSousDirection,omitempty"`
	CreatedBy     string     `json:"createdBy"`
	UpdatedBy     string     `json:"updatedBy,omitempty"`
}

// NewFormInstance contains information needed to create a FormInstance.
// CreatedBy defaults to the request actor.
type NewFormInstance struct {
	FormTypeID    string     `json:"typeFormulaire" validate:"required"`
	Responses     []Response `json:"reponses" validate:"dive"`
	Recipients    []string   `json:"destinataires"`
	SubDivisionID string     `json:"idSousDirection"`
	CreatedBy     string     `json:"createdBy"`
}

// UpdateFormInstance is a partial update: nil attributes keep their stored value,
// present ones replace it as a whole.
type UpdateFormInstance struct {
	FormTypeID    *string     `json:"typeFormulaire" validate:"omitempty,notblank"`
	Responses     *[]Response `json:"reponses" validate:"omitempty,dive"`
	Recipients    *[]string   `json:"destinataires"`
	SubDivisionID *string     `json:"idSousDirection"`
	UpdatedBy     *string     `json:"updatedBy"`
}

func (uf UpdateFormInstance) ApplyTo(fi FormInstance) FormInstance {
	if uf.FormTypeID != nil {
		fi.FormTypeID = *uf.FormTypeID
	}
	if uf.Responses != nil {
		fi.Responses = *uf.Responses
	}
	if uf.Recipients != nil {
		fi.Recipients = *uf.Recipients
	}
	if uf.SubDivisionID != nil {
		fi.SubDivisionID = *uf.SubDivisionID
	}
	if uf.UpdatedBy != nil {
		fi.UpdatedBy = *uf.UpdatedBy
	}
	return fi
}

// InitValidators registers the form validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(fieldKindTag, fieldKindValidation)
	core.RegisterCustomTranslation(validate, translator, fieldKindTag, fieldKindText)
	validate.RegisterStructValidation(fieldStructValidation, FieldDefinition{})
}

func fieldKindValidation(fl validator.FieldLevel) bool {
	return FieldKind(fl.Field().String()).Valid()
}

// fieldStructValidation requires options on select fields.
func fieldStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(FieldDefinition)
	if ok && f.Kind == KindSelect && len(f.Options) == 0 {
		sl.ReportError(f.Options, "options", "Options", "required", "")
	}
}

// checkResponses binds every response to its field and checks the required fields are
// answered. It returns the typed responses.
func checkResponses(ft FormType, responses []Response) ([]Response, error) {
	var fldErrs []core.FieldError
	out := make([]Response, 0, len(responses))
	seen := make(map[string]struct{}, len(responses))

	for i, r := range responses {
		field, ok := ft.Field(r.FieldID)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{
				Field: fmt.Sprintf("reponses[%d].champId", i),
				Error: "unknown field for form type " + ft.Code,
			})
			continue
		}
		if _, dup := seen[r.FieldID]; dup {
			fldErrs = append(fldErrs, core.FieldError{
				Field: fmt.Sprintf("reponses[%d].champId", i),
				Error: "field answered more than once",
			})
			continue
		}
		seen[r.FieldID] = struct{}{}

		val, err := r.Value.Bind(field)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("reponses[%d].valeur", i), Error: err.Error()})
			continue
		}
		out = append(out, Response{FieldID: r.FieldID, Value: val})
	}

	for _, f := range ft.Fields {
		if _, ok := seen[f.ID]; f.Required && !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: "reponses", Error: "missing required field " + f.Name})
		}
	}

	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	return out, nil
}
