package report

// Collections
const (
	FirstVisits            = "premieres_visites"
	PedagogicalInspections = "inspections_pedagogiques"
	FinancialInspections   = "inspections_financieres"
	DisciplinaryNotices    = "avis_disciplinaires"
	AnnualReports          = "rapports_annuels"
	QuarterlyReports       = "rapports_trimestriels"
	ViabilityControls      = "controles_viabilite"
	PedagogicalCoachings   = "animations_pedagogiques"
)

// Sanctions
const (
	SanctionWarning    = "avertissement"
	SanctionBlame      = "blame"
	SanctionSuspension = "suspension"
	SanctionDismissal  = "revocation"
)

// Viability opinions
const (
	Viable             = "viable"
	ViableWithReserves = "sousReserve"
	NotViable          = "nonViable"
)

var (
	Sanctions   = []string{SanctionWarning, SanctionBlame, SanctionSuspension, SanctionDismissal}
	Viabilities = []string{Viable, ViableWithReserves, NotViable}
)

// Shared sections
type (
	Activity struct {
		Title   string `json:"intitule" validate:"required,notblank"`
		Done    bool   `json:"realisee"`
		Comment string `json:"commentaire,omitempty"`
	}

	Statistics struct {
		SchoolsVisited    int `json:"etablissementsVisites" validate:"min=0"`
		TeachersInspected int `json:"enseignantsInspectes" validate:"min=0"`
		CoachingSessions  int `json:"animationsOrganisees" validate:"min=0"`
		DisciplinaryCases int `json:"dossiersDisciplinaires" validate:"min=0"`
	}

	Teacher struct {
		Name       string `json:"nom" validate:"required,notblank"`
		Number     string `json:"matricule"`
		Discipline string `json:"idDiscipline,omitempty" validate:"omitempty,docid"`
	}
)

// EPSP-IP-01
type (
	FirstVisitSections struct {
		Identification FirstVisitIdentification `json:"identification"`
		Premises       FirstVisitPremises       `json:"locaux"`
		Records        AdministrativeRecords    `json:"documentsAdministratifs"`
		Observations   string                   `json:"observations,omitempty"`
	}

	FirstVisitIdentification struct {
		Head         string `json:"chefEtablissement" validate:"required,notblank"`
		Pupils       int    `json:"effectifEleves" validate:"min=0"`
		Classes      int    `json:"nombreClasses" validate:"min=0"`
		Teachers     int    `json:"nombreEnseignants" validate:"min=0"`
		CreationDate string `json:"dateCreation,omitempty" validate:"omitempty,datetime=2006-01-02"`
	}

	FirstVisitPremises struct {
		Classrooms Appreciation `json:"salles"`
		Furniture  Appreciation `json:"mobilier"`
		Sanitation Appreciation `json:"sanitaires"`
	}

	AdministrativeRecords struct {
		Enrolment   bool `json:"registreInscriptions"`
		Attendance  bool `json:"registreAppel"`
		Cashbook    bool `json:"livreCaisse"`
		Inventories bool `json:"cahierInventaire"`
	}

	FirstVisit = Report[FirstVisitSections]
)

// EPSP-IP-02
type (
	PedagogicalInspectionSections struct {
		Teacher    Teacher          `json:"enseignant"`
		Class      string           `json:"classe" validate:"required,notblank"`
		Lesson     string           `json:"lecon" validate:"required,notblank"`
		Evaluation LessonEvaluation `json:"evaluation"`
		Advice     string           `json:"conseils,omitempty"`
		Overall    int              `json:"noteGlobale" validate:"rating"`
	}

	LessonEvaluation struct {
		Preparation    Appreciation `json:"preparation"`
		Delivery       Appreciation `json:"deroulement"`
		SubjectMastery Appreciation `json:"maitriseMatiere"`
		ClassControl   Appreciation `json:"gestionClasse"`
		Assessment     Appreciation `json:"evaluationEleves"`
	}

	PedagogicalInspection = Report[PedagogicalInspectionSections]
)

// EPSP-IF-01
type (
	FinancialInspectionSections struct {
		PeriodStart     string       `json:"debutPeriode" validate:"required,datetime=2006-01-02"`
		PeriodEnd       string       `json:"finPeriode" validate:"required,datetime=2006-01-02"`
		Income          Amounts      `json:"recettes"`
		Expenses        Amounts      `json:"depenses"`
		Cashbook        Appreciation `json:"livreCaisse"`
		Vouchers        Appreciation `json:"piecesJustificatives"`
		Irregularities  []string     `json:"irregularites,omitempty" validate:"omitempty,dive,notblank"`
		Recommendations string       `json:"recommandations,omitempty"`
	}

	// Amounts are in Congolese francs.
	Amounts struct {
		SchoolFees float64 `json:"fraisScolaires" validate:"min=0"`
		Grants     float64 `json:"subventions" validate:"min=0"`
		Other      float64 `json:"autres" validate:"min=0"`
	}

	FinancialInspection = Report[FinancialInspectionSections]
)

func (a Amounts) Total() float64 { return a.SchoolFees + a.Grants + a.Other }

// EPSP-PD-01
type (
	DisciplinaryNoticeSections struct {
		Agent      DisciplinedAgent `json:"agent"`
		Facts      string           `json:"faits" validate:"required,notblank"`
		FactsDate  string           `json:"dateFaits,omitempty" validate:"omitempty,datetime=2006-01-02"`
		AgentHeard bool             `json:"agentEntendu"`
		Sanction   string           `json:"sanctionProposee" validate:"required,sanction"`
		Opinion    string           `json:"avisInspecteur" validate:"required,notblank"`
	}

	DisciplinedAgent struct {
		Name     string `json:"nom" validate:"required,notblank"`
		Number   string `json:"matricule"`
		Function string `json:"fonction" validate:"required,notblank"`
	}

	DisciplinaryNotice = Report[DisciplinaryNoticeSections]
)

// EPSP-RA-01
type (
	AnnualReportSections struct {
		SchoolYear   string     `json:"anneeScolaire" validate:"required,notblank"`
		Activities   []Activity `json:"activites" validate:"dive"`
		Statistics   Statistics `json:"statistiques"`
		Difficulties string     `json:"difficultes,omitempty"`
		Outlook      string     `json:"perspectives,omitempty"`
	}

	AnnualReport = Report[AnnualReportSections]
)

// EPSP-RT-01
type (
	QuarterlyReportSections struct {
		SchoolYear   string     `json:"anneeScolaire" validate:"required,notblank"`
		Quarter      int        `json:"trimestre" validate:"min=1,max=3"`
		Activities   []Activity `json:"activites" validate:"dive"`
		Statistics   Statistics `json:"statistiques"`
		Difficulties string     `json:"difficultes,omitempty"`
	}

	QuarterlyReport = Report[QuarterlyReportSections]
)

// EPSP-CV-01
type (
	ViabilityControlSections struct {
		Pupils    int          `json:"effectifEleves" validate:"min=0"`
		Premises  Appreciation `json:"infrastructures"`
		Equipment Appreciation `json:"equipements"`
		Staff     Appreciation `json:"personnel"`
		Enrolment Appreciation `json:"effectifs"`
		Opinion   string       `json:"avis" validate:"required,viabilite"`
		Reasons   string       `json:"motifs,omitempty"`
	}

	ViabilityControl = Report[ViabilityControlSections]
)

// EPSP-AP-01
type (
	PedagogicalCoachingSections struct {
		Theme           string       `json:"theme" validate:"required,notblank"`
		Discipline      string       `json:"idDiscipline,omitempty" validate:"omitempty,docid"`
		Facilitator     string       `json:"animateur" validate:"required,notblank"`
		Participants    int          `json:"participants" validate:"min=1"`
		Relevance       Appreciation `json:"pertinence"`
		Participation   Appreciation `json:"participation"`
		Recommendations string       `json:"recommandations,omitempty"`
	}

	PedagogicalCoaching = Report[PedagogicalCoachingSections]
)

// Kind definitions
var (
	FirstVisitKind = Kind[FirstVisitSections]{
		Resource: "premiere visite", Collection: FirstVisits, FormCode: "EPSP-IP-01",
	}
	PedagogicalInspectionKind = Kind[PedagogicalInspectionSections]{
		Resource: "inspection pedagogique", Collection: PedagogicalInspections, FormCode: "EPSP-IP-02",
	}
	FinancialInspectionKind = Kind[FinancialInspectionSections]{
		Resource: "inspection financiere", Collection: FinancialInspections, FormCode: "EPSP-IF-01",
		Check: func(s FinancialInspectionSections) error {
			if s.PeriodEnd < s.PeriodStart {
				return fieldError("sections.finPeriode", "must not be before debutPeriode")
			}
			return nil
		},
	}
	DisciplinaryNoticeKind = Kind[DisciplinaryNoticeSections]{
		Resource: "avis disciplinaire", Collection: DisciplinaryNotices, FormCode: "EPSP-PD-01",
	}
	AnnualReportKind = Kind[AnnualReportSections]{
		Resource: "rapport annuel", Collection: AnnualReports, FormCode: "EPSP-RA-01",
	}
	QuarterlyReportKind = Kind[QuarterlyReportSections]{
		Resource: "rapport trimestriel", Collection: QuarterlyReports, FormCode: "EPSP-RT-01",
	}
	ViabilityControlKind = Kind[ViabilityControlSections]{
		Resource: "controle de viabilite", Collection: ViabilityControls, FormCode: "EPSP-CV-01",
	}
	PedagogicalCoachingKind = Kind[PedagogicalCoachingSections]{
		Resource: "animation pedagogique", Collection: PedagogicalCoachings, FormCode: "EPSP-AP-01",
	}
)
