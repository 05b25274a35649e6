package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/middleware"
	"agrimarket/policy"
	"agrimarket/utils"
)

func testContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{utils.Validation("bad", "field"), http.StatusBadRequest},
		{utils.NotFound("Thing not found"), http.StatusNotFound},
		{utils.Conflict("nope", nil), http.StatusConflict},
		{utils.Forbidden("no"), http.StatusForbidden},
		{utils.Unavailable("down", errors.New("dial")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, w := testContext(http.MethodGet, "/")
		respondError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}

	c, w := testContext(http.MethodGet, "/")
	respondError(c, utils.Validation("missing", "price", "weight"))
	assert.JSONEq(t, `{"error":"missing","fields":["price","weight"]}`, w.Body.String())

	// internal details stay in the log
	c, w = testContext(http.MethodGet, "/")
	respondError(c, errors.New("pq: password authentication failed"))
	assert.JSONEq(t, `{"error":"Server error"}`, w.Body.String())
}

func TestParseID(t *testing.T) {
	c, _ := testContext(http.MethodGet, "/")
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, err := parseID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, raw := range []string{"abc", "0", "-1", ""} {
		c.Params = gin.Params{{Key: "id", Value: raw}}
		_, err := parseID(c, "id")
		assert.Equal(t, http.StatusBadRequest, utils.AsAppError(err).Status(), raw)
	}

	id, err = parseOptionalID("  ", "farmer_id")
	require.NoError(t, err)
	assert.Zero(t, id)
	_, err = parseOptionalID("x", "farmer_id")
	assert.Error(t, err)
}

func TestSheepIDsFromForm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Request.PostForm = map[string][]string{"sheep_ids": {"3, 5", "7"}, "sheep_ids[]": {"9"}}

	ids, err := sheepIDsFromForm(c)
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 5, 7, 9}, ids)

	c.Request.PostForm = map[string][]string{"sheep_ids": {"3,x"}}
	_, err = sheepIDsFromForm(c)
	assert.Error(t, err)
}

func TestCreateReclamationNeedsStore(t *testing.T) {
	prevDB, prevCfg := database.DB, config.AppConfig
	t.Cleanup(func() { database.DB, config.AppConfig = prevDB, prevCfg })
	config.AppConfig = config.Defaults()
	database.DB = nil

	c, w := testContext(http.MethodPost, "/api/reclamations")
	middleware.SetSession(c, policy.Session{UserID: 1, Role: database.RoleConsumer})
	CreateReclamation(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Database unavailable")
}

func TestBuildReclamationWorkbook(t *testing.T) {
	f, err := buildReclamationWorkbook([]database.Reclamation{
		{Reference: "REC-20260101-1234", Subject: "Rancid", Status: "pending", Creator: &database.User{Username: "chadi"}},
	})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Reclamations")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "REC-20260101-1234", rows[1][0])
	assert.Equal(t, "chadi", rows[1][5])
}
