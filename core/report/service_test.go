package report

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	"github.com/trezcool/inspectorat/core/user"
	inmemdb "github.com/trezcool/inspectorat/storage/database/inmem"
)

type fixture struct {
	db        *inmemdb.DB
	validate  *validator.Validate
	inspector user.User
	school    catalog.Etablissement
	denom     catalog.Denomination
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	catalog.InitValidators(validate, translator)
	InitValidators(validate, translator)

	db := inmemdb.Open()
	inspector, err := user.NewService(db, nil, core.NewTestConfig()).Create(ctx, user.NewUser{
		Name: "Inspecteur", Email: "inspecteur@test.cd", Role: user.RoleInspecteur, Password: "Pa$$w0rd!",
	})
	require.NoError(t, err)
	denom, err := catalog.NewService(catalog.DenominationDefinition, db, validate).Create(ctx, catalog.Denomination{Name: "Catholique"})
	require.NoError(t, err)
	school, err := catalog.NewService(catalog.EtablissementDefinition, db, validate).Create(ctx, catalog.Etablissement{
		Name: "Institut Bosangani", IDDenomination: denom.ID,
	})
	require.NoError(t, err)

	return fixture{db: db, validate: validate, inspector: inspector, school: school, denom: denom}
}

func (f fixture) annualReport(number string) AnnualReport {
	return AnnualReport{
		Number:          number,
		InspectorID:     f.inspector.ID,
		EstablishmentID: f.school.ID,
		InspectionDate:  "2024-06-30",
		Signature:       Signature{Name: "Inspecteur", Quality: "Inspecteur principal", Place: "Kinshasa"},
		Sections: AnnualReportSections{
			SchoolYear: "2023-2024",
			Activities: []Activity{{Title: "Visites de classes", Done: true}},
			Statistics: Statistics{SchoolsVisited: 12, TeachersInspected: 40},
		},
	}
}

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestService_CreateGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(AnnualReportKind, f.db, f.validate)

	created, err := svc.Create(ctx, f.annualReport(" RA-001 "))
	require.NoError(t, err)
	assert.True(t, core.ValidID(created.ID))
	assert.Equal(t, "RA-001", created.Number)
	assert.Equal(t, "EPSP-RA-01", created.FormCode)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Sections, got.Sections)
	assert.Equal(t, created.Signature, got.Signature)
	assert.JSONEq(t,
		`{"id":"`+f.inspector.ID+`","name":"Inspecteur","email":"inspecteur@test.cd"}`,
		toJSON(t, got.Inspector),
	)
	assert.JSONEq(t,
		`{"id":"`+f.school.ID+`","name":"Institut Bosangani","idDenomination":{"id":"`+f.denom.ID+`","name":"Catholique"}}`,
		toJSON(t, got.Establishment),
	)

	_, err = svc.Create(ctx, f.annualReport("RA-001"))
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "numero", verr.Fields[0].Field)
}

func TestService_CreateInvalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(AnnualReportKind, f.db, f.validate)

	tests := []struct {
		name         string
		modify       func(r *AnnualReport)
		wantNotFound bool
	}{
		{name: "missing numero", modify: func(r *AnnualReport) { r.Number = "  " }},
		{name: "foreign form code", modify: func(r *AnnualReport) { r.FormCode = "EPSP-RT-01" }},
		{name: "bad date", modify: func(r *AnnualReport) { r.InspectionDate = "30/06/2024" }},
		{name: "missing signature", modify: func(r *AnnualReport) { r.Signature = Signature{} }},
		{name: "blank activity", modify: func(r *AnnualReport) { r.Sections.Activities = []Activity{{Title: ""}} }},
		{name: "negative statistics", modify: func(r *AnnualReport) { r.Sections.Statistics.SchoolsVisited = -1 }},
		{name: "unknown inspector", modify: func(r *AnnualReport) { r.InspectorID = core.NewID() }, wantNotFound: true},
		{name: "unknown school", modify: func(r *AnnualReport) { r.EstablishmentID = core.NewID() }, wantNotFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := f.annualReport("RA-002")
			tt.modify(&r)
			_, err := svc.Create(ctx, r)
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, core.IsNotFound(err))
		})
	}

	list, err := svc.List(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_Ratings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(PedagogicalInspectionKind, f.db, f.validate)

	report := func(overall, preparation int) PedagogicalInspection {
		return PedagogicalInspection{
			Number:          "IP-1",
			InspectorID:     f.inspector.ID,
			EstablishmentID: f.school.ID,
			InspectionDate:  "2024-02-12",
			Signature:       Signature{Name: "Inspecteur", Quality: "Inspecteur itinérant"},
			Sections: PedagogicalInspectionSections{
				Teacher:    Teacher{Name: "Mbuyi"},
				Class:      "5e primaire",
				Lesson:     "Les fractions",
				Evaluation: LessonEvaluation{Preparation: Appreciation{Rating: preparation}},
				Overall:    overall,
			},
		}
	}

	for _, tt := range []struct {
		overall, preparation int
		wantErr              bool
	}{
		{overall: 5, preparation: 2, wantErr: true},
		{overall: 3, preparation: -1, wantErr: true},
		{overall: 4, preparation: 0},
	} {
		_, err := svc.Create(ctx, report(tt.overall, tt.preparation))
		if tt.wantErr {
			assert.Error(t, err, "overall=%d preparation=%d", tt.overall, tt.preparation)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(AnnualReportKind, f.db, f.validate)

	created, err := svc.Create(ctx, f.annualReport("RA-010"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, f.annualReport("RA-011"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		check   func(t *testing.T, got View[AnnualReportSections])
		wantErr bool
	}{
		{
			name: "absent attributes kept",
			body: `{"dateInspection":"2024-07-01"}`,
			check: func(t *testing.T, got View[AnnualReportSections]) {
				assert.Equal(t, "2024-07-01", got.InspectionDate)
				assert.Equal(t, "RA-010", got.Number)
				assert.Equal(t, created.Sections, got.Sections)
			},
		},
		{
			name: "sections replaced as a whole",
			body: `{"sections":{"anneeScolaire":"2024-2025"}}`,
			check: func(t *testing.T, got View[AnnualReportSections]) {
				assert.Equal(t, "2024-2025", got.Sections.SchoolYear)
				assert.Empty(t, got.Sections.Activities)
			},
		},
		{
			name: "same form code accepted",
			body: `{"formCode":"EPSP-RA-01"}`,
			check: func(t *testing.T, got View[AnnualReportSections]) {
				assert.Equal(t, "EPSP-RA-01", got.FormCode)
			},
		},
		{name: "form code is immutable", body: `{"formCode":"EPSP-RT-01"}`, wantErr: true},
		{name: "numero taken", body: `{"numero":"RA-011"}`, wantErr: true},
		{name: "invalid result", body: `{"dateInspection":""}`, wantErr: true},
		{name: "wrong shape", body: `{"sections":[]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p core.Patch
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			got, err := svc.Update(ctx, created.ID, p)
			if tt.wantErr {
				assert.True(t, core.IsValidation(err), "want a validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, created.CreatedAt, got.CreatedAt)
			tt.check(t, got)
		})
	}
}

func TestService_CreateMany(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(AnnualReportKind, f.db, f.validate)

	invalid := f.annualReport("RA-102")
	invalid.Sections.SchoolYear = ""

	tests := []struct {
		name    string
		batch   []AnnualReport
		wantErr bool
	}{
		{name: "one invalid record", batch: []AnnualReport{f.annualReport("RA-101"), invalid}, wantErr: true},
		{name: "duplicate numero in batch", batch: []AnnualReport{f.annualReport("RA-101"), f.annualReport("RA-101")}, wantErr: true},
		{name: "valid batch", batch: []AnnualReport{f.annualReport("RA-101"), f.annualReport("RA-102")}},
		{name: "numero already stored", batch: []AnnualReport{f.annualReport("RA-103"), f.annualReport("RA-101")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := svc.List(ctx, nil, nil)
			require.NoError(t, err)

			got, err := svc.CreateMany(ctx, tt.batch)
			after, lerr := svc.List(ctx, nil, nil)
			require.NoError(t, lerr)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Len(t, after, len(before), "nothing from the batch is stored")
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, len(tt.batch))
			assert.Len(t, after, len(before)+len(tt.batch))
		})
	}
}

func TestService_CreateSameNumberConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(AnnualReportKind, f.db, f.validate)
	require.NoError(t, svc.EnsureIndexes(ctx))

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, f.annualReport("RA-500"))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "numero", verr.Fields[0].Field)
	}
	assert.Equal(t, 1, created)

	stored, err := svc.List(ctx, core.Filter{"numero": "RA-500"}, nil)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestWriteError(t *testing.T) {
	storeErr := core.NewStoreError("insert", assert.AnError)
	tests := []struct {
		name           string
		err            error
		wantValidation bool
	}{
		{name: "numero index", err: &core.DuplicateError{Collection: AnnualReports, Field: "numero"}, wantValidation: true},
		{name: "other unique field", err: &core.DuplicateError{Collection: AnnualReports, Field: "code"}},
		{name: "store failure", err: storeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writeError(tt.err)
			if tt.wantValidation {
				var verr *core.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, ErrNumberExists, verr.Err)
				assert.Equal(t, []core.FieldError{{Field: "numero", Error: ErrNumberExists.Error()}}, verr.Fields)
				return
			}
			assert.Equal(t, tt.err, err)
		})
	}
}

func TestService_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(ViabilityControlKind, f.db, f.validate)

	for _, id := range []string{core.NewID(), "malformed"} {
		_, err := svc.Get(ctx, id)
		assert.True(t, core.IsNotFound(err), "get %s", id)
		_, err = svc.Update(ctx, id, core.Patch{})
		assert.True(t, core.IsNotFound(err), "update %s", id)
		assert.True(t, core.IsNotFound(svc.Delete(ctx, id)), "delete %s", id)
	}
}

func TestFinancialInspectionKind_Check(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewService(FinancialInspectionKind, f.db, f.validate)

	r := FinancialInspection{
		Number:          "IF-1",
		InspectorID:     f.inspector.ID,
		EstablishmentID: f.school.ID,
		InspectionDate:  "2024-03-10",
		Signature:       Signature{Name: "Inspecteur", Quality: "Inspecteur financier"},
		Sections: FinancialInspectionSections{
			PeriodStart: "2024-01-01",
			PeriodEnd:   "2023-12-31",
			Income:      Amounts{SchoolFees: 1500000, Grants: 250000},
		},
	}
	_, err := svc.Create(ctx, r)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sections.finPeriode", verr.Fields[0].Field)

	r.Sections.PeriodEnd = "2024-03-31"
	got, err := svc.Create(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 1750000.0, got.Sections.Income.Total())
}
