package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/form"
	"github.com/trezcool/inspectorat/core/user"
)

func TestFormAPI_EndToEnd(t *testing.T) {
	app := setup(t)
	other := app.createUser(t, "Agent", "agent@test.cd", user.RoleAgent)

	rec := app.do(http.MethodPost, "/provinces", app.inspToken, []byte(`{"name":"Kinshasa"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	kinID := decode(t, rec)["id"].(string)
	rec = app.do(http.MethodPost, "/directions", app.inspToken, []byte(`{"name":"DPE","idProvince":"`+kinID+`"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	dirID := decode(t, rec)["id"].(string)
	rec = app.do(http.MethodPost, "/sous-directions", app.inspToken, []byte(`{"name":"Inspection","idDirection":"`+dirID+`"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	subID := decode(t, rec)["id"].(string)

	// form type
	rec = app.do(http.MethodPost, "/type-formulaires", app.inspToken, []byte(`{
		"code": "F9",
		"nom": "Test",
		"champs": [{"nom": "Observation", "type": "text", "obligatoire": true}],
		"destinataires": ["`+other.ID+`"],
		"createdBy": "`+app.inspector.ID+`"
	}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ft struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		Fields []struct {
			ID string `json:"id"`
		} `json:"champs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ft))
	assert.Equal(t, "F9", ft.Code)
	require.Len(t, ft.Fields, 1)
	fieldID := ft.Fields[0].ID
	require.NotEmpty(t, fieldID)

	// form instance
	rec = app.do(http.MethodPost, "/formulaires", app.inspToken, []byte(`{
		"typeFormulaire": "`+ft.ID+`",
		"reponses": [{"champId": "`+fieldID+`", "valeur": "x"}],
		"idSousDirection": "`+subID+`",
		"createdBy": "`+app.inspector.ID+`"
	}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	fiID := created["id"].(string)
	assert.Equal(t, []interface{}{map[string]interface{}{"champId": fieldID, "valeur": "x"}}, created["reponses"])
	assert.Equal(t, map[string]interface{}{"id": subID, "name": "Inspection"}, created["idSousDirection"])
	assert.Equal(t, ft.ID, created["typeFormulaire"].(map[string]interface{})["id"])

	// the recipients of the form type are notified
	require.Len(t, app.mail.SentMessages(), 1)
	assert.Equal(t, other.Email, app.mail.SentMessages()[0].To[0].Address)

	// updating updatedBy only keeps the responses
	rec = app.do(http.MethodPut, "/formulaires/"+fiID, app.inspToken, []byte(`{"updatedBy":"`+other.ID+`"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)
	assert.Equal(t, created["reponses"], updated["reponses"])
	assert.Equal(t, other.ID, updated["updatedBy"])
	assert.Equal(t, app.inspector.ID, updated["createdBy"])

	// new responses replace the old ones as a whole
	rec = app.do(http.MethodPut, "/formulaires/"+fiID, app.inspToken,
		[]byte(`{"reponses":[{"champId":"`+fieldID+`","valeur":"y"}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []interface{}{map[string]interface{}{"champId": fieldID, "valeur": "y"}}, decode(t, rec)["reponses"])

	// reads are public
	rec = app.do(http.MethodGet, "/formulaires/"+fiID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, other.ID, decode(t, rec)["updatedBy"])

	rec = app.do(http.MethodGet, "/formulaires?typeFormulaire="+ft.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, fiID, list[0]["id"])

	rec = app.do(http.MethodGet, "/type-formulaires/"+ft.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"destinataires":[{"id":"`+other.ID+`","name":"Agent","email":"agent@test.cd"}]`)

	rec = app.do(http.MethodGet, "/type-formulaires?details=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"agent"`)

	app.run(t, []httpTest{
		{
			name: "delete type", method: http.MethodDelete, path: "/type-formulaires/" + ft.ID, token: app.inspToken,
			wantData: []byte(`{"message":"form type deleted"}`),
		},
		{
			name: "delete instance", method: http.MethodDelete, path: "/formulaires/" + fiID, token: app.inspToken,
			wantData: []byte(`{"message":"form instance deleted"}`),
		},
		{
			name: "get deleted", path: "/formulaires/" + fiID,
			wantCode: http.StatusNotFound, wantData: errBody(t, "form instance not found"),
		},
	})
}

func TestFormAPI_Errors(t *testing.T) {
	app := setup(t)
	unknown := core.NewID()
	ft, err := app.svcs.FormTypes.Create(context.Background(), form.NewFormType{
		Code: "F1", Name: "Test", CreatedBy: app.inspector.ID,
	})
	require.NoError(t, err)

	app.run(t, []httpTest{
		{
			name: "type: token required", method: http.MethodPost, path: "/type-formulaires",
			body: []byte(`{"code":"F1","nom":"Test","createdBy":"x"}`), wantCode: http.StatusUnauthorized,
		},
		{
			name: "type: missing code", method: http.MethodPost, path: "/type-formulaires", token: app.inspToken,
			body: []byte(`{"nom":"Test","createdBy":"` + app.inspector.ID + `"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "type: update missing createdBy", method: http.MethodPut, path: "/type-formulaires/" + ft.ID,
			token: app.inspToken, body: []byte(`{"code":"F1","nom":"Test"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "type: update unknown", method: http.MethodPut, path: "/type-formulaires/" + unknown, token: app.inspToken,
			body:     []byte(`{"code":"F1","nom":"Test","createdBy":"` + app.inspector.ID + `"}`),
			wantCode: http.StatusNotFound, wantData: errBody(t, "form type not found"),
		},
		{
			name: "instance: unknown form type", method: http.MethodPost, path: "/formulaires", token: app.inspToken,
			body:     []byte(`{"typeFormulaire":"` + unknown + `","reponses":[]}`),
			wantCode: http.StatusBadRequest,
			wantData: errBody(t, "form type not found", map[string]string{"typeFormulaire": "form type not found"}),
		},
		{
			name: "instance: token required", method: http.MethodPost, path: "/formulaires",
			body: []byte(`{"typeFormulaire":"` + unknown + `"}`), wantCode: http.StatusUnauthorized,
		},
		{
			name: "instance: update unknown", method: http.MethodPut, path: "/formulaires/" + unknown, token: app.inspToken,
			body: []byte(`{"updatedBy":"x"}`), wantCode: http.StatusNotFound,
		},
		{
			name: "instance: delete unknown", method: http.MethodDelete, path: "/formulaires/" + unknown, token: app.inspToken,
			wantCode: http.StatusNotFound,
		},
		{name: "list: bad details", path: "/type-formulaires?details=maybe", wantCode: http.StatusBadRequest},
		{name: "list: empty", path: "/formulaires", wantData: []byte(`[]`)},
	})
}
