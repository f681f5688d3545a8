package user

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/inspectorat/core"
	appfs "github.com/trezcool/inspectorat/fs"
	emailsvc "github.com/trezcool/inspectorat/services/email"
	logsvc "github.com/trezcool/inspectorat/services/logger"
	inmemdb "github.com/trezcool/inspectorat/storage/database/inmem"
)

type fixture struct {
	svc      *Service
	mail     *emailsvc.ConsoleServiceMock
	validate *validator.Validate
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	return fixture{svc: NewService(inmemdb.Open(), mail, conf), mail: mail, validate: validate}
}

func (f fixture) create(t *testing.T, name, email, role string) User {
	t.Helper()
	nu := NewUser{Name: name, Email: email, Role: role, Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"}
	require.NoError(t, nu.Validate(f.validate, f.svc))
	usr, err := f.svc.Create(context.Background(), nu)
	require.NoError(t, err)
	return usr
}

func TestNewUser_Validate(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Existing", "taken@test.cd", RoleAgent)

	tests := []struct {
		name      string
		data      NewUser
		wantField string
	}{
		{
			name:      "missing name",
			data:      NewUser{Email: "a@test.cd", Role: RoleAgent, Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"},
			wantField: "name",
		},
		{
			name:      "invalid role",
			data:      NewUser{Name: "A", Email: "a@test.cd", Role: "root", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"},
			wantField: "role",
		},
		{
			name:      "weak password",
			data:      NewUser{Name: "A", Email: "a@test.cd", Role: RoleAgent, Password: "password", PasswordConfirm: "password"},
			wantField: "password",
		},
		{
			name:      "password similar to email",
			data:      NewUser{Name: "A", Email: "kabila.jean@test.cd", Role: RoleAgent, Password: "Kabila.jean1@test", PasswordConfirm: "Kabila.jean1@test"},
			wantField: "password",
		},
		{
			name:      "confirm mismatch",
			data:      NewUser{Name: "A", Email: "a@test.cd", Role: RoleAgent, Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd?"},
			wantField: "passwordConfirm",
		},
		{
			name:      "email taken",
			data:      NewUser{Name: "A", Email: " TAKEN@test.cd ", Role: RoleAgent, Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"},
			wantField: "email",
		},
	}
	translator := core.NewTranslator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(f.validate, f.svc)
			require.Error(t, err)

			fields := map[string]string{}
			if vErrs, ok := err.(validator.ValidationErrors); ok {
				fields = core.TranslateValidationErrors(vErrs, translator)
			} else if vErr, ok := err.(*core.ValidationError); ok {
				for _, fe := range vErr.Fields {
					fields[fe.Field] = fe.Error
				}
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestService_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	usr := f.create(t, "Mbuyi Kalala", "mbuyi@test.cd", RoleInspecteur)

	got, err := f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mbuyi Kalala", got.Name)
	assert.NoError(t, got.CheckPassword("Pa$$w0rd!"), "password hash must be persisted")

	name := "Mbuyi K."
	updated, err := f.svc.Update(ctx, usr.ID, UpdateUser{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Mbuyi K.", updated.Name)
	assert.Equal(t, "mbuyi@test.cd", updated.Email)
	assert.Equal(t, RoleInspecteur, updated.Role)

	_, err = f.svc.GetByID(ctx, core.NewID())
	assert.True(t, core.IsNotFound(err))
	_, err = f.svc.Update(ctx, "not-an-id", UpdateUser{Name: &name})
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, core.NewID())))

	require.NoError(t, f.svc.Delete(ctx, usr.ID))
	_, err = f.svc.GetByID(ctx, usr.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, "Bea", "bea@test.cd", RoleAgent)
	f.create(t, "Ali", "ali@test.cd", RoleInspecteur)
	f.create(t, "Chantal", "chantal@test.cd", RoleAdmin)

	tests := []struct {
		name   string
		filter *QueryFilter
		want   []string
	}{
		{name: "all, by name", want: []string{"Ali", "Bea", "Chantal"}},
		{name: "one role", filter: &QueryFilter{Roles: []string{RoleAgent}}, want: []string{"Bea"}},
		{name: "many roles", filter: &QueryFilter{Roles: []string{RoleAgent, RoleAdmin}}, want: []string{"Bea", "Chantal"}},
		{name: "search", filter: &QueryFilter{Search: "chan"}, want: []string{"Chantal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := f.svc.Query(ctx, tt.filter, nil)
			require.NoError(t, err)
			names := make([]string, len(users))
			for i, u := range users {
				names[i] = u.Name
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	usr := f.create(t, "Ilunga", "ilunga@test.cd", RoleAgent)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ilunga@test.cd"))
	sent := f.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ilunga@test.cd", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, EncodeUID(usr))

	token := f.svc.tokens.makeToken(usr)
	err := f.svc.ResetPassword(ctx, ResetUserPassword{UID: EncodeUID(usr), Token: "bad-token", Password: "N3w-Pa$$word"})
	assert.Error(t, err)

	require.NoError(t, f.svc.ResetPassword(ctx, ResetUserPassword{UID: EncodeUID(usr), Token: token, Password: "N3w-Pa$$word"}))
	got, err := f.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("N3w-Pa$$word"))

	// the token is bound to the previous password hash
	assert.Error(t, f.svc.ResetPassword(ctx, ResetUserPassword{UID: EncodeUID(usr), Token: token, Password: "An0ther-Pa$$"}))

	assert.True(t, core.IsNotFound(f.svc.RequestPasswordReset(ctx, "nobody@test.cd")))
}
