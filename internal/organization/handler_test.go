package organization

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KellyGutierrez/notifycar-sub000/internal/testdb"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gin.Engine, *Repository) {
	t.Helper()
	repo := NewRepository(testdb.Open(t, &Organization{}))
	router := gin.New()
	NewHandler(repo, zap.NewNop()).RegisterAdminRoutes(router)
	return router, repo
}

func putWrapper(router *gin.Engine, id string, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/organizations/"+id+"/message-wrapper", bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)
	return w
}

func TestUpdateMessageWrapper_SetAndClear(t *testing.T) {
	router, repo := setup(t)
	org := Organization{Name: "Zona Azul Bogotá", Active: true}
	require.NoError(t, repo.DB.Create(&org).Error)

	w := putWrapper(router, org.ID, `{"messageWrapper":"[ZONA AZUL] {{plate}}: {{mensaje}}"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := repo.FindByID(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, "[ZONA AZUL] {{plate}}: {{mensaje}}", got.Wrapper())

	w = putWrapper(router, org.ID, `{"messageWrapper":""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err = repo.FindByID(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MessageWrapper)
	assert.Equal(t, "", got.Wrapper())
}

func TestUpdateMessageWrapper_Errors(t *testing.T) {
	router, _ := setup(t)

	assert.Equal(t, http.StatusBadRequest, putWrapper(router, "x", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, putWrapper(router, "missing", `{"messageWrapper":"x"}`).Code)
}

func TestListAndGetOrganizations(t *testing.T) {
	router, repo := setup(t)
	require.NoError(t, repo.DB.Create(&Organization{Name: "B Fleet", Active: true}).Error)
	require.NoError(t, repo.DB.Create(&Organization{Name: "A Fleet", Active: true}).Error)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/organizations?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data       []Organization         `json:"data"`
		Pagination map[string]interface{} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "A Fleet", resp.Data[0].Name)
	assert.EqualValues(t, 2, resp.Pagination["total"])

	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/organizations/nope", nil))
	assert.Equal(t, http.StatusNotFound, w2.Code)
}
