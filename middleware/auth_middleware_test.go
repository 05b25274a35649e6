package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/utils"
)

func setupAuth(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prevCfg, prevDB := config.AppConfig, database.DB
	config.AppConfig = config.Defaults()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	database.DB = db
	t.Cleanup(func() {
		_ = database.CloseDB()
		database.DB, config.AppConfig = prevDB, prevCfg
	})
	require.NoError(t, database.RunMigrations())
}

func createUser(t *testing.T, username, role, status string) database.User {
	t.Helper()
	u := database.User{Username: username, Email: username + "@farm.test", PasswordHash: "x", Role: role, Status: status}
	require.NoError(t, database.DB.Create(&u).Error)
	return u
}

func tokenFor(t *testing.T, u database.User) string {
	t.Helper()
	tok, err := utils.GenerateJWT(u.ID, u.Email, u.Role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return tok
}

func whoami(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		s := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"user_id": s.UserID, "role": s.Role})
	})
	r.GET("/whoami", handlers...)
	return r
}

func call(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	setupAuth(t)
	farmer := createUser(t, "amal", database.RoleFarmer, database.UserStatusAccepted)
	pending := createUser(t, "drnew", database.RoleVet, database.UserStatusPending)
	r := whoami(AuthMiddleware())

	w := call(r, "Bearer "+tokenFor(t, farmer))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":1,"role":"farmer"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer not-a-jwt").Code)

	w = call(r, "Bearer "+tokenFor(t, pending))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "awaiting verification")
}

func TestAuthMiddlewareLiftsExpiredSuspension(t *testing.T) {
	setupAuth(t)
	past := time.Now().Add(-time.Minute)
	u := database.User{Username: "omar", Email: "omar@farm.test", PasswordHash: "x", Role: database.RoleConsumer,
		Status: database.UserStatusSuspended, SuspensionEndDate: &past, SuspensionReason: "spam"}
	require.NoError(t, database.DB.Create(&u).Error)

	w := call(whoami(AuthMiddleware()), "Bearer "+tokenFor(t, u))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored database.User
	require.NoError(t, database.DB.First(&stored, u.ID).Error)
	assert.Equal(t, database.UserStatusAccepted, stored.Status)
	assert.Nil(t, stored.SuspensionEndDate)
	assert.Empty(t, stored.SuspensionReason)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	setupAuth(t)
	vet := createUser(t, "drvet", database.RoleVet, database.UserStatusAccepted)
	r := whoami(OptionalAuthMiddleware())

	w := call(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":0,"role":""}`, w.Body.String())

	w = call(r, "Bearer "+tokenFor(t, vet))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"vet"`)

	// a bad token is rejected rather than treated as anonymous
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer broken").Code)
}

func TestRoleAuthMiddleware(t *testing.T) {
	setupAuth(t)
	farmer := createUser(t, "amal", database.RoleFarmer, database.UserStatusAccepted)
	admin := createUser(t, "root", database.RoleAdmin, database.UserStatusAccepted)

	r := whoami(AuthMiddleware(), AdminAuthMiddleware())
	assert.Equal(t, http.StatusForbidden, call(r, "Bearer "+tokenFor(t, farmer)).Code)
	assert.Equal(t, http.StatusOK, call(r, "Bearer "+tokenFor(t, admin)).Code)

	r = whoami(RoleAuthMiddleware(database.RoleFarmer, database.RoleVet))
	assert.Equal(t, http.StatusUnauthorized, call(r, "").Code)
}
