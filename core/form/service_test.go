package form

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/catalog"
	"github.com/trezcool/inspectorat/core/user"
	appfs "github.com/trezcool/inspectorat/fs"
	emailsvc "github.com/trezcool/inspectorat/services/email"
	logsvc "github.com/trezcool/inspectorat/services/logger"
	inmemdb "github.com/trezcool/inspectorat/storage/database/inmem"
)

type fixture struct {
	db        *inmemdb.DB
	users     *user.Service
	types     *TypeService
	instances *InstanceService
	mail      *emailsvc.ConsoleServiceMock
	validate  *validator.Validate
	author    user.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	InitValidators(validate, translator)

	db := inmemdb.Open()
	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	users := user.NewService(db, mail, conf)
	types := NewTypeService(db, users, validate)

	f := fixture{
		db:        db,
		users:     users,
		types:     types,
		instances: NewInstanceService(db, types, users, mail, validate, conf, logger),
		mail:      mail,
		validate:  validate,
	}
	f.author = f.createUser(t, "Auteur", "auteur@test.cd")
	return f
}

func (f fixture) createUser(t *testing.T, name, email string) user.User {
	t.Helper()
	usr, err := f.users.Create(context.Background(), user.NewUser{
		Name: name, Email: email, Role: user.RoleInspecteur, Password: "Pa$$w0rd!",
	})
	require.NoError(t, err)
	return usr
}

func (f fixture) createType(t *testing.T, recipients ...string) FormType {
	t.Helper()
	ft, err := f.types.Create(context.Background(), NewFormType{
		Code: "F9",
		Name: "Test",
		Fields: []FieldDefinition{
			{Name: "Observation", Kind: KindText, Required: true},
			{Name: "Effectif", Kind: KindNumber},
			{Name: "Date de visite", Kind: KindDate},
			{Name: "Appréciation", Kind: KindSelect, Options: []string{"bon", "mauvais"}},
		},
		Recipients: recipients,
		CreatedBy:  f.author.ID,
	})
	require.NoError(t, err)
	return ft
}

func responses(t *testing.T, body string) []Response {
	t.Helper()
	var rs []Response
	require.NoError(t, json.Unmarshal([]byte(body), &rs))
	return rs
}

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestValue_Bind(t *testing.T) {
	sel := FieldDefinition{Kind: KindSelect, Options: []string{"oui", "non"}}
	tests := []struct {
		name    string
		field   FieldDefinition
		raw     string
		want    Value
		wantErr error
	}{
		{name: "text", field: FieldDefinition{Kind: KindText}, raw: `"x"`, want: TextValue("x")},
		{name: "text rejects number", field: FieldDefinition{Kind: KindText}, raw: `12`, wantErr: errExpectedText},
		{name: "number", field: FieldDefinition{Kind: KindNumber}, raw: `12.5`, want: NumberValue(12.5)},
		{name: "number from string", field: FieldDefinition{Kind: KindNumber}, raw: `"42"`, want: NumberValue(42)},
		{name: "number rejects words", field: FieldDefinition{Kind: KindNumber}, raw: `"douze"`, wantErr: errExpectedNum},
		{name: "date", field: FieldDefinition{Kind: KindDate}, raw: `"2024-03-01"`, want: DateValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{name: "date from timestamp", field: FieldDefinition{Kind: KindDate}, raw: `"2024-03-01T10:30:00Z"`, want: DateValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{name: "date rejects garbage", field: FieldDefinition{Kind: KindDate}, raw: `"01/03/2024"`, wantErr: errExpectedDate},
		{name: "option", field: sel, raw: `"oui"`, want: OptionValue("oui")},
		{name: "unknown option", field: sel, raw: `"peut-être"`, wantErr: errUnknownOption},
		{name: "null", field: FieldDefinition{Kind: KindText}, raw: `null`, wantErr: errValueRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			got, err := v.Bind(tt.field)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name    string
		data    NewFormType
		wantErr bool
	}{
		{name: "missing code", data: NewFormType{Name: "Test", CreatedBy: f.author.ID}, wantErr: true},
		{name: "missing createdBy", data: NewFormType{Code: "F1", Name: "Test"}, wantErr: true},
		{
			name: "select without options",
			data: NewFormType{Code: "F1", Name: "Test", CreatedBy: f.author.ID, Fields: []FieldDefinition{{Name: "Choix", Kind: KindSelect}}},
			wantErr: true,
		},
		{
			name: "unknown kind",
			data: NewFormType{Code: "F1", Name: "Test", CreatedBy: f.author.ID, Fields: []FieldDefinition{{Name: "Fichier", Kind: "file"}}},
			wantErr: true,
		},
		{name: "no fields", data: NewFormType{Code: "F9", Name: "Test", CreatedBy: f.author.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.types.Create(ctx, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	ft := f.createType(t)
	for _, fld := range ft.Fields {
		assert.True(t, core.ValidID(fld.ID), "field %s has an id", fld.Name)
	}
	assert.Empty(t, ft.Fields[0].Options)

	got, err := f.types.Get(ctx, ft.ID)
	require.NoError(t, err)
	assert.Equal(t, ft.Fields, got.Fields)
	assert.Equal(t, ft.CreatedBy, got.CreatedBy)
}

func TestTypeService_Recipients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	prov, err := catalog.NewService(catalog.ProvinceDefinition, f.db, f.validate).Create(ctx, catalog.Province{Name: "Kinshasa"})
	require.NoError(t, err)
	dir, err := catalog.NewService(catalog.DirectionDefinition, f.db, f.validate).Create(ctx, catalog.Direction{Name: "DPE Kinshasa", IDProvince: prov.ID})
	require.NoError(t, err)
	recipient, err := f.users.Create(ctx, user.NewUser{
		Name: "Destinataire", Email: "dest@test.cd", Phone: "+243800000000", Role: user.RoleAgent,
		IDDirection: dir.ID, Password: "Pa$$w0rd!",
	})
	require.NoError(t, err)
	missing := core.NewID()
	ft := f.createType(t, recipient.ID, missing)

	view, err := f.types.GetWithContacts(ctx, ft.ID)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"id":"`+recipient.ID+`","name":"Destinataire","email":"dest@test.cd","phone":"+243800000000"},"`+missing+`"]`,
		toJSON(t, view.Recipients),
	)

	list, err := f.types.List(ctx, true, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t,
		`{"id":"`+recipient.ID+`","name":"Destinataire","role":"agent","idDirection":{"name":"DPE Kinshasa"},"idSousDirection":null,"idService":null}`,
		toJSON(t, list[0].(TypeView).Recipients[0]),
	)

	list, err = f.types.List(ctx, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{recipient.ID, missing}, list[0].(FormType).Recipients)
}

func TestInstanceService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ft := f.createType(t)
	obs, effectif, sel := ft.Fields[0].ID, ft.Fields[1].ID, ft.Fields[3].ID

	tests := []struct {
		name      string
		formType  string
		reponses  string
		wantField string
	}{
		{name: "unknown form type", formType: core.NewID(), reponses: `[]`, wantField: "typeFormulaire"},
		{name: "unknown field", formType: ft.ID, reponses: `[{"champId":"` + obs + `","valeur":"x"},{"champId":"nope","valeur":1}]`, wantField: "reponses[1].champId"},
		{name: "kind mismatch", formType: ft.ID, reponses: `[{"champId":"` + obs + `","valeur":"x"},{"champId":"` + effectif + `","valeur":"beaucoup"}]`, wantField: "reponses[1].valeur"},
		{name: "option not listed", formType: ft.ID, reponses: `[{"champId":"` + obs + `","valeur":"x"},{"champId":"` + sel + `","valeur":"moyen"}]`, wantField: "reponses[1].valeur"},
		{name: "duplicate answer", formType: ft.ID, reponses: `[{"champId":"` + obs + `","valeur":"x"},{"champId":"` + obs + `","valeur":"y"}]`, wantField: "reponses[1].champId"},
		{name: "missing required field", formType: ft.ID, reponses: `[{"champId":"` + effectif + `","valeur":3}]`, wantField: "reponses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.instances.Create(ctx, NewFormInstance{
				FormTypeID: tt.formType,
				Responses:  responses(t, tt.reponses),
				CreatedBy:  f.author.ID,
			})
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			var fields []string
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}

	list, err := f.instances.List(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	// createdBy defaults to the actor
	actx := core.WithActor(ctx, f.author.Actor("req-1"))
	view, err := f.instances.Create(actx, NewFormInstance{
		FormTypeID: ft.ID,
		Responses:  responses(t, `[{"champId":"`+obs+`","valeur":"x"},{"champId":"`+effectif+`","valeur":"12"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, f.author.ID, view.CreatedBy)
	assert.Equal(t, NumberValue(12), view.Responses[1].Value)
	assert.JSONEq(t,
		`{"id":"`+ft.ID+`","code":"F9","nom":"Test","champs":`+toJSON(t, ft.Fields)+`}`,
		toJSON(t, view.FormType),
	)
	assert.Equal(t, "null", toJSON(t, view.SubDivision))
}

func TestInstanceService_UpdateMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := f.createUser(t, "Autre", "autre@test.cd")
	ft := f.createType(t)
	obs, date := ft.Fields[0].ID, ft.Fields[2].ID

	created, err := f.instances.Create(ctx, NewFormInstance{
		FormTypeID: ft.ID,
		Responses:  responses(t, `[{"champId":"`+obs+`","valeur":"R1"},{"champId":"`+date+`","valeur":"2024-05-02"}]`),
		Recipients: []string{f.author.ID},
		CreatedBy:  f.author.ID,
	})
	require.NoError(t, err)
	r1 := toJSON(t, created.Responses)

	// omitted responses are retained
	updatedBy := other.ID
	got, err := f.instances.Update(ctx, created.ID, UpdateFormInstance{UpdatedBy: &updatedBy})
	require.NoError(t, err)
	assert.JSONEq(t, r1, toJSON(t, got.Responses))
	assert.Equal(t, other.ID, got.UpdatedBy)
	assert.Equal(t, []string{f.author.ID}, got.Recipients)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)

	// present responses replace the stored ones as a whole
	r2 := responses(t, `[{"champId":"`+obs+`","valeur":"R2"}]`)
	got, err = f.instances.Update(ctx, created.ID, UpdateFormInstance{Responses: &r2})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"champId":"`+obs+`","valeur":"R2"}]`, toJSON(t, got.Responses))
	assert.Equal(t, other.ID, got.UpdatedBy)

	stored, err := f.instances.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.JSONEq(t, toJSON(t, got.Responses), toJSON(t, stored.Responses))

	// an empty list is a value too
	empty := []string{}
	got, err = f.instances.Update(ctx, created.ID, UpdateFormInstance{Recipients: &empty})
	require.NoError(t, err)
	assert.Empty(t, got.Recipients)

	// new responses are checked against the form type
	bad := responses(t, `[{"champId":"`+date+`","valeur":"2024-05-02"}]`)
	_, err = f.instances.Update(ctx, created.ID, UpdateFormInstance{Responses: &bad})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestInstanceService_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, id := range []string{core.NewID(), "malformed"} {
		_, err := f.instances.Get(ctx, id)
		assert.True(t, core.IsNotFound(err), "get %s", id)
		_, err = f.instances.Update(ctx, id, UpdateFormInstance{})
		assert.True(t, core.IsNotFound(err), "update %s", id)
		assert.True(t, core.IsNotFound(f.instances.Delete(ctx, id)), "delete %s", id)

		_, err = f.types.Get(ctx, id)
		assert.True(t, core.IsNotFound(err), "get type %s", id)
		_, err = f.types.Update(ctx, id, UpdateFormType{Code: "F", Name: "N", CreatedBy: f.author.ID})
		assert.True(t, core.IsNotFound(err), "update type %s", id)
		assert.True(t, core.IsNotFound(f.types.Delete(ctx, id)), "delete type %s", id)
	}
}

func TestTypeService_DeleteLeavesInstances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ft := f.createType(t)

	fi, err := f.instances.Create(ctx, NewFormInstance{
		FormTypeID: ft.ID,
		Responses:  responses(t, `[{"champId":"`+ft.Fields[0].ID+`","valeur":"x"}]`),
		CreatedBy:  f.author.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.types.Delete(ctx, ft.ID))

	got, err := f.instances.Get(ctx, fi.ID)
	require.NoError(t, err)
	assert.False(t, got.FormType.Resolved())
	assert.Equal(t, `"`+ft.ID+`"`, toJSON(t, got.FormType))
}

func TestInstanceService_Notify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	recipient := f.createUser(t, "Destinataire", "dest@test.cd")
	ft := f.createType(t, recipient.ID)

	_, err := f.instances.Create(ctx, NewFormInstance{
		FormTypeID: ft.ID,
		Responses:  responses(t, `[{"champId":"`+ft.Fields[0].ID+`","valeur":"x"}]`),
		Recipients: []string{f.author.ID, recipient.ID, core.NewID()},
		CreatedBy:  f.author.ID,
	})
	require.NoError(t, err)

	sent := f.mail.SentMessages()
	require.Len(t, sent, 2)
	var to []string
	for _, msg := range sent {
		require.Len(t, msg.To, 1)
		to = append(to, msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "F9")
	}
	assert.ElementsMatch(t, []string{"dest@test.cd", "auteur@test.cd"}, to)
}
