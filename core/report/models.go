// Package report holds the fixed-shape inspection reports: each kind digitizes one paper
// form and is identified by its form code.
package report

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/inspectorat/core"
)

var (
	sanctionTag  = "sanction"
	sanctionText = "must be one of: avertissement, blame, suspension, revocation"

	viabilityTag  = "viabilite"
	viabilityText = "must be one of: viable, sousReserve, nonViable"
)

// Signature closes every report.
type Signature struct {
	Name    string `json:"nom" validate:"required,notblank"`
	Quality string `json:"qualite" validate:"required,notblank"`
	Place   string `json:"lieu"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Report is one inspection report: the header common to every kind plus the sections of
// its kind.
type Report[S any] struct {
	core.Base
	Number          string    `json:"numero" validate:"required,notblank"`
	FormCode        string    `json:"formCode"`
	InspectorID     string    `json:"idInspecteur" validate:"required"`
	EstablishmentID string    `json:"idEtablissement" validate:"required"`
	InspectionDate  string    `json:"dateInspection" validate:"required,datetime=2006-01-02"`
	Signature       Signature `json:"signature"`
	Sections        S         `json:"sections"`
}

func (r *Report[S]) clean() {
	r.Number = core.CleanString(r.Number)
	r.Signature.Name = core.CleanString(r.Signature.Name)
	r.Signature.Quality = core.CleanString(r.Signature.Quality)
	r.Signature.Place = core.CleanString(r.Signature.Place)
}

// View is a Report with its inspector and establishment resolved.
type View[S any] struct {
	Report[S]
	Inspector     core.Ref `json:"idInspecteur"`
	Establishment core.Ref `json:"idEtablissement"`
}

type (
	// Appreciation rates one aspect on the 0-4 scale.
	Appreciation struct {
		Rating  int    `json:"note" validate:"rating"`
		Comment string `json:"commentaire,omitempty"`
	}

	InspectorContact struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	EstablishmentSummary struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Denomination core.Ref `json:"idDenomination"`
	}
)

// InitValidators registers the report validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(sanctionTag, oneOf(Sanctions...))
	core.RegisterCustomTranslation(validate, translator, sanctionTag, sanctionText)

	_ = validate.RegisterValidation(viabilityTag, oneOf(Viabilities...))
	core.RegisterCustomTranslation(validate, translator, viabilityTag, viabilityText)
}

func oneOf(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, v := range values {
			if s == v {
				return true
			}
		}
		return false
	}
}
