package echoapi

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	"github.com/trezcool/inspectorat/core/form"
	"github.com/trezcool/inspectorat/core/report"
	"github.com/trezcool/inspectorat/core/user"
)

type (
	// Services holds every domain service the API exposes.
	Services struct {
		Users         *user.Service
		Catalogs      Catalogs
		FormTypes     *form.TypeService
		FormInstances *form.InstanceService
		Reports       Reports
	}

	Catalogs struct {
		Provinces       *catalog.Service[catalog.Province]
		Directions      *catalog.Service[catalog.Direction]
		SousDirections  *catalog.Service[catalog.SousDirection]
		Services        *catalog.Service[catalog.OrgService]
		Disciplines     *catalog.Service[catalog.Discipline]
		Denominations   *catalog.Service[catalog.Denomination]
		Etablissements  *catalog.Service[catalog.Etablissement]
		Equipements     *catalog.Service[catalog.Equipement]
		Infrastructures *catalog.Service[catalog.Infrastructure]
		Partenaires     *catalog.Service[catalog.Partenaire]
		Permissions     *catalog.Service[catalog.Permission]
		Presences       *catalog.Service[catalog.Presence]
	}

	Reports struct {
		FirstVisits            *report.Service[report.FirstVisitSections]
		PedagogicalInspections *report.Service[report.PedagogicalInspectionSections]
		FinancialInspections   *report.Service[report.FinancialInspectionSections]
		DisciplinaryNotices    *report.Service[report.DisciplinaryNoticeSections]
		AnnualReports          *report.Service[report.AnnualReportSections]
		QuarterlyReports       *report.Service[report.QuarterlyReportSections]
		ViabilityControls      *report.Service[report.ViabilityControlSections]
		PedagogicalCoachings   *report.Service[report.PedagogicalCoachingSections]
	}
)

// NewServices builds the domain services on db.
func NewServices(
	db core.DocumentStore,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
) *Services {
	users := user.NewService(db, mailSvc, conf)
	formTypes := form.NewTypeService(db, users, validate)

	return &Services{
		Users: users,
		Catalogs: Catalogs{
			Provinces:       catalog.NewService(catalog.ProvinceDefinition, db, validate),
			Directions:      catalog.NewService(catalog.DirectionDefinition, db, validate),
			SousDirections:  catalog.NewService(catalog.SousDirectionDefinition, db, validate),
			Services:        catalog.NewService(catalog.OrgServiceDefinition, db, validate),
			Disciplines:     catalog.NewService(catalog.DisciplineDefinition, db, validate),
			Denominations:   catalog.NewService(catalog.DenominationDefinition, db, validate),
			Etablissements:  catalog.NewService(catalog.EtablissementDefinition, db, validate),
			Equipements:     catalog.NewService(catalog.EquipementDefinition, db, validate),
			Infrastructures: catalog.NewService(catalog.InfrastructureDefinition, db, validate),
			Partenaires:     catalog.NewService(catalog.PartenaireDefinition, db, validate),
			Permissions:     catalog.NewService(catalog.PermissionDefinition, db, validate),
			Presences:       catalog.NewService(catalog.PresenceDefinition, db, validate),
		},
		FormTypes:     formTypes,
		FormInstances: form.NewInstanceService(db, formTypes, users, mailSvc, validate, conf, logger),
		Reports: Reports{
			FirstVisits:            report.NewService(report.FirstVisitKind, db, validate),
			PedagogicalInspections: report.NewService(report.PedagogicalInspectionKind, db, validate),
			FinancialInspections:   report.NewService(report.FinancialInspectionKind, db, validate),
			DisciplinaryNotices:    report.NewService(report.DisciplinaryNoticeKind, db, validate),
			AnnualReports:          report.NewService(report.AnnualReportKind, db, validate),
			QuarterlyReports:       report.NewService(report.QuarterlyReportKind, db, validate),
			ViabilityControls:      report.NewService(report.ViabilityControlKind, db, validate),
			PedagogicalCoachings:   report.NewService(report.PedagogicalCoachingKind, db, validate),
		},
	}
}

// EnsureIndexes creates the unique indexes of every report kind.
func (r Reports) EnsureIndexes(ctx context.Context) error {
	for _, svc := range []interface{ EnsureIndexes(context.Context) error }{
		r.FirstVisits,
		r.PedagogicalInspections,
		r.FinancialInspections,
		r.DisciplinaryNotices,
		r.AnnualReports,
		r.QuarterlyReports,
		r.ViabilityControls,
		r.PedagogicalCoachings,
	} {
		if err := svc.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InitValidators registers the domain validations on top of core.NewValidator.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	form.InitValidators(validate, translator)
	report.InitValidators(validate, translator)
}
