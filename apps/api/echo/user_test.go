package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/inspectorat/core/user"
)

func TestUserAPI_Login(t *testing.T) {
	app := setup(t)
	inactive := app.createUser(t, "Ancien", "ancien@test.cd", user.RoleAgent)
	active := false
	_, err := app.svcs.Users.Update(context.Background(), inactive.ID, user.UpdateUser{IsActive: &active})
	require.NoError(t, err)

	app.run(t, []httpTest{
		{
			name: "unknown email", method: http.MethodPost, path: "/users/login",
			body:     []byte(`{"email":"nobody@test.cd","password":"` + testPassword + `"}`),
			wantCode: http.StatusBadRequest, wantData: errBody(t, "authentication failed"),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/users/login",
			body:     []byte(`{"email":"insp@test.cd","password":"nope"}`),
			wantCode: http.StatusBadRequest, wantData: errBody(t, "authentication failed"),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/users/login",
			body:     []byte(`{"email":"ancien@test.cd","password":"` + testPassword + `"}`),
			wantCode: http.StatusForbidden, wantData: errBody(t, "account deactivated"),
		},
		{
			name: "missing password", method: http.MethodPost, path: "/users/login",
			body: []byte(`{"email":"insp@test.cd"}`), wantCode: http.StatusBadRequest,
		},
	})

	rec := app.do(http.MethodPost, "/users/login", "", []byte(`{"email":" INSP@test.cd ","password":"`+testPassword+`"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode(t, rec)["token"].(string)

	claims := new(Claims)
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, app.inspector.ID, claims.Subject)
	assert.Equal(t, user.RoleInspecteur, claims.Role)
	assert.Equal(t, claims.IssuedAt, claims.OrigIssuedAt)

	usr, err := app.svcs.Users.GetByID(context.Background(), app.inspector.ID)
	require.NoError(t, err)
	assert.NotNil(t, usr.LastLogin)

	// a refreshed token keeps the original issue time
	rec = app.do(http.MethodPost, "/users/token-refresh", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := new(Claims)
	_, err = jwt.ParseWithClaims(decode(t, rec)["token"].(string), refreshed,
		func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, claims.OrigIssuedAt, refreshed.OrigIssuedAt)
}

func TestUserAPI_RefreshExpired(t *testing.T) {
	app := setup(t)

	claims := app.server.userClaims(app.inspector, time.Now().Add(-5*time.Hour).Unix())
	token, err := app.server.signClaims(claims)
	require.NoError(t, err)

	rec := app.do(http.MethodPost, "/users/token-refresh", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, string(errBody(t, "refresh has expired")), rec.Body.String())
}

func TestUserAPI_Admin(t *testing.T) {
	app := setup(t)

	newUser := []byte(`{"name":"Nouvel Agent","email":"agent@test.cd","role":"agent",` +
		`"password":"Kin$hasa-2024","passwordConfirm":"Kin$hasa-2024"}`)

	app.run(t, []httpTest{
		{name: "list requires a token", path: "/users", wantCode: http.StatusUnauthorized},
		{
			name: "list requires admin", path: "/users", token: app.inspToken,
			wantCode: http.StatusForbidden, wantData: errBody(t, "permission denied"),
		},
		{
			name: "create requires admin", method: http.MethodPost, path: "/users", token: app.inspToken,
			body: newUser, wantCode: http.StatusForbidden,
		},
		{name: "create", method: http.MethodPost, path: "/users", token: app.adminToken, body: newUser, wantCode: http.StatusCreated},
		{
			name: "create duplicate email", method: http.MethodPost, path: "/users", token: app.adminToken, body: newUser,
			wantCode: http.StatusBadRequest,
			wantData: errBody(t, user.ErrEmailExists.Error(), map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "roles", path: "/users/roles", token: app.adminToken, wantData: marshalObj(t, user.Roles),
		},
		{name: "bad isActive", path: "/users?isActive=maybe", token: app.adminToken, wantCode: http.StatusBadRequest},
	})

	rec := app.do(http.MethodGet, "/users?role=agent", app.adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"agent@test.cd"`)
	assert.NotContains(t, rec.Body.String(), `"email":"insp@test.cd"`)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
}

func TestUserAPI_Detail(t *testing.T) {
	app := setup(t)
	other := app.createUser(t, "Autre", "autre@test.cd", user.RoleAgent)
	self := "/users/" + app.inspector.ID

	app.run(t, []httpTest{
		{name: "self", path: self, token: app.inspToken},
		{
			name: "someone else is hidden", path: "/users/" + other.ID, token: app.inspToken,
			wantCode: http.StatusNotFound, wantData: errBody(t, "not found"),
		},
		{name: "admin sees everyone", path: "/users/" + other.ID, token: app.adminToken},
		{
			name: "non admin cannot change role", method: http.MethodPut, path: self, token: app.inspToken,
			body: []byte(`{"role":"admin"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "self update", method: http.MethodPut, path: self, token: app.inspToken,
			body: []byte(`{"phone":"+243 810 000 000"}`),
		},
		{
			name: "delete requires admin", method: http.MethodDelete, path: "/users/" + other.ID, token: app.inspToken,
			wantCode: http.StatusNotFound,
		},
		{
			name: "no self delete", method: http.MethodDelete, path: "/users/" + app.admin.ID, token: app.adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "delete", method: http.MethodDelete, path: "/users/" + other.ID, token: app.adminToken,
			wantData: []byte(`{"message":"user deleted"}`),
		},
	})

	usr, err := app.svcs.Users.GetByID(context.Background(), app.inspector.ID)
	require.NoError(t, err)
	assert.Equal(t, "+243 810 000 000", usr.Phone)
	assert.Equal(t, user.RoleInspecteur, usr.Role)
}

func TestUserAPI_PasswordReset(t *testing.T) {
	app := setup(t)
	app.mail.Reset()

	okMsg := MessageResponse{
		Message: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	}
	app.run(t, []httpTest{
		{
			name: "unknown email", method: http.MethodPost, path: "/users/password-reset",
			body: []byte(`{"email":"nobody@test.cd"}`), wantData: marshalObj(t, okMsg),
		},
		{
			name: "known email", method: http.MethodPost, path: "/users/password-reset",
			body: []byte(`{"email":"insp@test.cd"}`), wantData: marshalObj(t, okMsg),
		},
	})

	sent := app.mail.SentMessages()
	require.Len(t, sent, 1)
	data := sent[0].TemplateData.(map[string]interface{})
	uid := data["UID"].(string)
	token := data["Token"].(string)

	app.run(t, []httpTest{
		{
			name: "bad token", method: http.MethodPost, path: "/users/password-reset-confirm",
			body:     []byte(`{"uid":"` + uid + `","token":"nope","password":"N3w-Pa$$word","passwordConfirm":"N3w-Pa$$word"}`),
			wantCode: http.StatusBadRequest, wantData: errBody(t, user.ErrInvalidResetLink.Error()),
		},
		{
			name: "confirm", method: http.MethodPost, path: "/users/password-reset-confirm",
			body: []byte(`{"uid":"` + uid + `","token":"` + token + `","password":"N3w-Pa$$word","passwordConfirm":"N3w-Pa$$word"}`),
			wantData: marshalObj(t, MessageResponse{Message: "Password has been reset with the new password."}),
		},
		{
			name: "login with the new password", method: http.MethodPost, path: "/users/login",
			body: []byte(`{"email":"insp@test.cd","password":"N3w-Pa$$word"}`),
		},
	})
}
