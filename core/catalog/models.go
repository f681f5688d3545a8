package catalog

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/user"
)

// Collections
const (
	Provinces       = "provinces"
	Directions      = "directions"
	SousDirections  = "sous_directions"
	Services        = "services"
	Disciplines     = "disciplines"
	Denominations   = "denominations"
	Etablissements  = "etablissements"
	Equipements     = "equipements"
	Infrastructures = "infrastructures"
	Partenaires     = "partenaires"
	Permissions     = "permissions"
	Presences       = "presences"
)

// Service types
const (
	ServiceTypeDirection     = "direction"
	ServiceTypeSousDirection = "sousDirection"
)

var (
	serviceTypeTag  = "servicetype"
	serviceTypeText = "must be one of: direction, sousDirection"
)

type (
	Province struct {
		core.Base
		Name     string `json:"name" validate:"required,notblank"`
		Code     string `json:"code,omitempty"`
		ChefLieu string `json:"chefLieu,omitempty"`
	}

	Direction struct {
		core.Base
		Name       string `json:"name" validate:"required,notblank"`
		Code       string `json:"code,omitempty"`
		IDProvince string `json:"idProvince" validate:"required"`
	}

	SousDirection struct {
		core.Base
		Name        string `json:"name" validate:"required,notblank"`
		Code        string `json:"code,omitempty"`
		IDDirection string `json:"idDirection" validate:"required"`
	}

	// OrgService belongs to a Direction or to a SousDirection depending on its type.
	OrgService struct {
		core.Base
		Name            string `json:"name" validate:"required,notblank"`
		Type            string `json:"type" validate:"required,servicetype"`
		IDDirection     string `json:"idDirection,omitempty"`
		IDSousDirection string `json:"idSousDirection,omitempty"`
	}

	Discipline struct {
		core.Base
		Name string `json:"name" validate:"required,notblank"`
		Code string `json:"code,omitempty"`
	}

	Denomination struct {
		core.Base
		Name  string `json:"name" validate:"required,notblank"`
		Sigle string `json:"sigle,omitempty"`
	}

	Etablissement struct {
		core.Base
		Name           string `json:"name" validate:"required,notblank"`
		Code           string `json:"code,omitempty"`
		Adresse        string `json:"adresse,omitempty"`
		Regime         string `json:"regime,omitempty"`
		IDDenomination string `json:"idDenomination" validate:"required"`
		IDProvince     string `json:"idProvince,omitempty"`
	}

	Equipement struct {
		core.Base
		Name            string `json:"name" validate:"required,notblank"`
		Quantite        int    `json:"quantite" validate:"gte=0"`
		Etat            string `json:"etat,omitempty"`
		IDEtablissement string `json:"idEtablissement,omitempty"`
	}

	Infrastructure struct {
		core.Base
		Name            string `json:"name" validate:"required,notblank"`
		Type            string `json:"type,omitempty"`
		Etat            string `json:"etat,omitempty"`
		IDEtablissement string `json:"idEtablissement,omitempty"`
	}

	Partenaire struct {
		core.Base
		Name    string `json:"name" validate:"required,notblank"`
		Type    string `json:"type,omitempty"`
		Contact string `json:"contact,omitempty"`
		Email   string `json:"email,omitempty" validate:"omitempty,email"`
	}

	Permission struct {
		core.Base
		Name        string `json:"name" validate:"required,notblank"`
		Description string `json:"description,omitempty"`
	}

	// Presence is one attendance record of an agent.
	Presence struct {
		core.Base
		IDAgent     string `json:"idAgent" validate:"required"`
		Date        string `json:"date" validate:"required,datetime=2006-01-02"`
		Status      string `json:"status" validate:"required,oneof=present absent retard conge"`
		Observation string `json:"observation,omitempty"`
	}
)

type (
	DirectionView struct {
		Direction
		IDProvince core.Ref `json:"idProvince"`
	}

	SousDirectionView struct {
		SousDirection
		IDDirection core.Ref `json:"idDirection"`
	}

	OrgServiceView struct {
		OrgService
		IDDirection     core.Ref `json:"idDirection"`
		IDSousDirection core.Ref `json:"idSousDirection"`
	}

	EtablissementView struct {
		Etablissement
		IDDenomination core.Ref `json:"idDenomination"`
		IDProvince     core.Ref `json:"idProvince"`
	}

	EquipementView struct {
		Equipement
		IDEtablissement core.Ref `json:"idEtablissement"`
	}

	InfrastructureView struct {
		Infrastructure
		IDEtablissement core.Ref `json:"idEtablissement"`
	}

	PresenceView struct {
		Presence
		IDAgent core.Ref `json:"idAgent"`
	}
)

// InitValidators registers the catalog validations on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(serviceTypeTag, serviceTypeValidation)
	core.RegisterCustomTranslation(validate, translator, serviceTypeTag, serviceTypeText)
	validate.RegisterStructValidation(serviceStructValidation, OrgService{})
}

func serviceTypeValidation(fl validator.FieldLevel) bool {
	t := fl.Field().String()
	return t == ServiceTypeDirection || t == ServiceTypeSousDirection
}

// serviceStructValidation requires the parent matching the service type.
func serviceStructValidation(sl validator.StructLevel) {
	svc, ok := sl.Current().Interface().(OrgService)
	if !ok {
		return
	}
	switch svc.Type {
	case ServiceTypeDirection:
		if svc.IDDirection == "" {
			sl.ReportError(svc.IDDirection, "idDirection", "IDDirection", "required", "")
		}
	case ServiceTypeSousDirection:
		if svc.IDSousDirection == "" {
			sl.ReportError(svc.IDSousDirection, "idSousDirection", "IDSousDirection", "required", "")
		}
	}
}

func clean(name *string) { *name = core.CleanString(*name) }

var (
	ProvinceDefinition = Definition[Province]{
		Resource:   "province",
		Collection: Provinces,
		Meta:       func(v *Province) *core.Base { return &v.Base },
		Clean:      func(v *Province) { clean(&v.Name) },
	}

	DirectionDefinition = Definition[Direction]{
		Resource:   "direction",
		Collection: Directions,
		Meta:       func(v *Direction) *core.Base { return &v.Base },
		Clean:      func(v *Direction) { clean(&v.Name) },
		Refs: func(v Direction) []core.Reference {
			return []core.Reference{{Field: "idProvince", Resource: "province", Collection: Provinces, ID: v.IDProvince}}
		},
		View: func(v Direction, p core.Projections) interface{} {
			return DirectionView{Direction: v, IDProvince: p.Ref(Provinces, v.IDProvince)}
		},
		Filters: []string{"idProvince"},
	}

	SousDirectionDefinition = Definition[SousDirection]{
		Resource:   "sous-direction",
		Collection: SousDirections,
		Meta:       func(v *SousDirection) *core.Base { return &v.Base },
		Clean:      func(v *SousDirection) { clean(&v.Name) },
		Refs: func(v SousDirection) []core.Reference {
			return []core.Reference{{Field: "idDirection", Resource: "direction", Collection: Directions, ID: v.IDDirection}}
		},
		View: func(v SousDirection, p core.Projections) interface{} {
			return SousDirectionView{SousDirection: v, IDDirection: p.Ref(Directions, v.IDDirection)}
		},
		Filters: []string{"idDirection"},
	}

	OrgServiceDefinition = Definition[OrgService]{
		Resource:   "service",
		Collection: Services,
		Meta:       func(v *OrgService) *core.Base { return &v.Base },
		Clean: func(v *OrgService) {
			clean(&v.Name)
			// a service hangs off one parent only
			switch v.Type {
			case ServiceTypeDirection:
				v.IDSousDirection = ""
			case ServiceTypeSousDirection:
				v.IDDirection = ""
			}
		},
		Refs: func(v OrgService) []core.Reference {
			return []core.Reference{
				{Field: "idDirection", Resource: "direction", Collection: Directions, ID: v.IDDirection},
				{Field: "idSousDirection", Resource: "sous-direction", Collection: SousDirections, ID: v.IDSousDirection},
			}
		},
		View: func(v OrgService, p core.Projections) interface{} {
			return OrgServiceView{
				OrgService:      v,
				IDDirection:     p.Ref(Directions, v.IDDirection),
				IDSousDirection: p.Ref(SousDirections, v.IDSousDirection),
			}
		},
		Filters: []string{"type", "idDirection", "idSousDirection"},
	}

	DisciplineDefinition = Definition[Discipline]{
		Resource:   "discipline",
		Collection: Disciplines,
		Meta:       func(v *Discipline) *core.Base { return &v.Base },
		Clean:      func(v *Discipline) { clean(&v.Name) },
	}

	DenominationDefinition = Definition[Denomination]{
		Resource:   "denomination",
		Collection: Denominations,
		Meta:       func(v *Denomination) *core.Base { return &v.Base },
		Clean:      func(v *Denomination) { clean(&v.Name) },
	}

	EtablissementDefinition = Definition[Etablissement]{
		Resource:   "etablissement",
		Collection: Etablissements,
		Meta:       func(v *Etablissement) *core.Base { return &v.Base },
		Clean:      func(v *Etablissement) { clean(&v.Name) },
		Refs: func(v Etablissement) []core.Reference {
			return []core.Reference{
				{Field: "idDenomination", Resource: "denomination", Collection: Denominations, ID: v.IDDenomination},
				{Field: "idProvince", Resource: "province", Collection: Provinces, ID: v.IDProvince},
			}
		},
		View: func(v Etablissement, p core.Projections) interface{} {
			return EtablissementView{
				Etablissement:  v,
				IDDenomination: p.Ref(Denominations, v.IDDenomination),
				IDProvince:     p.Ref(Provinces, v.IDProvince),
			}
		},
		Filters: []string{"idDenomination", "idProvince"},
	}

	EquipementDefinition = Definition[Equipement]{
		Resource:   "equipement",
		Collection: Equipements,
		Meta:       func(v *Equipement) *core.Base { return &v.Base },
		Clean:      func(v *Equipement) { clean(&v.Name) },
		Refs: func(v Equipement) []core.Reference {
			return []core.Reference{{Field: "idEtablissement", Resource: "etablissement", Collection: Etablissements, ID: v.IDEtablissement}}
		},
		View: func(v Equipement, p core.Projections) interface{} {
			return EquipementView{Equipement: v, IDEtablissement: p.Ref(Etablissements, v.IDEtablissement)}
		},
		Filters: []string{"idEtablissement"},
	}

	InfrastructureDefinition = Definition[Infrastructure]{
		Resource:   "infrastructure",
		Collection: Infrastructures,
		Meta:       func(v *Infrastructure) *core.Base { return &v.Base },
		Clean:      func(v *Infrastructure) { clean(&v.Name) },
		Refs: func(v Infrastructure) []core.Reference {
			return []core.Reference{{Field: "idEtablissement", Resource: "etablissement", Collection: Etablissements, ID: v.IDEtablissement}}
		},
		View: func(v Infrastructure, p core.Projections) interface{} {
			return InfrastructureView{Infrastructure: v, IDEtablissement: p.Ref(Etablissements, v.IDEtablissement)}
		},
		Filters: []string{"idEtablissement"},
	}

	PartenaireDefinition = Definition[Partenaire]{
		Resource:   "partenaire",
		Collection: Partenaires,
		Meta:       func(v *Partenaire) *core.Base { return &v.Base },
		Clean:      func(v *Partenaire) { clean(&v.Name) },
	}

	PermissionDefinition = Definition[Permission]{
		Resource:   "permission",
		Collection: Permissions,
		Meta:       func(v *Permission) *core.Base { return &v.Base },
		Clean:      func(v *Permission) { clean(&v.Name) },
	}

	PresenceDefinition = Definition[Presence]{
		Resource:   "presence",
		Collection: Presences,
		Meta:       func(v *Presence) *core.Base { return &v.Base },
		Refs: func(v Presence) []core.Reference {
			return []core.Reference{{Field: "idAgent", Resource: "user", Collection: user.Collection, ID: v.IDAgent}}
		},
		View: func(v Presence, p core.Projections) interface{} {
			return PresenceView{Presence: v, IDAgent: p.Ref(user.Collection, v.IDAgent)}
		},
		Filters: []string{"idAgent", "date", "status"},
	}
)
