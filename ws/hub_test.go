package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/events"
	"agrimarket/utils"
)

func setupStore(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	prevCfg, prevDB := config.AppConfig, database.DB
	config.AppConfig = config.Defaults()
	config.AppConfig.JWTSecret = "ws-secret"

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.OpenSQLite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	database.DB = db
	t.Cleanup(func() {
		_ = database.CloseDB()
		database.DB, config.AppConfig = prevDB, prevCfg
	})
	require.NoError(t, database.RunMigrations())
}

func storedUser(t *testing.T, username, status string) (database.User, string) {
	t.Helper()
	u := database.User{Username: username, Email: username + "@farm.test", PasswordHash: "x", Role: database.RoleFarmer, Status: status}
	require.NoError(t, database.DB.Create(&u).Error)
	token, err := utils.GenerateJWT(u.ID, u.Email, u.Role, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return u, token
}

func TestPushToRecipient(t *testing.T) {
	setupStore(t)
	u, token := storedUser(t, "amal", database.UserStatusAccepted)
	other, _ := storedUser(t, "omar", database.UserStatusAccepted)

	r := gin.New()
	r.GET("/api/ws", HandleUserWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, hello, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected"}`, string(hello))
	assert.Equal(t, 1, H.Connected(u.ID))

	require.NoError(t, H.Publish(context.Background(), events.Event{Type: events.MessageCreated, Entity: "message", EntityID: 5, Recipients: []uint{u.ID}}))
	require.NoError(t, H.Publish(context.Background(), events.Event{Type: events.MessageCreated, Entity: "message", EntityID: 6, Recipients: []uint{other.ID}}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, uint(5), ev.EntityID)
}

func TestHandshakeRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/ws", HandleUserWebSocket)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendToUnknownUser(t *testing.T) {
	h := NewHub()
	assert.Equal(t, 0, h.SendTo(1, []byte("x")))
	assert.NoError(t, h.Publish(context.Background(), events.Event{Type: "x"}))
}

func TestHandshakeRechecksAccount(t *testing.T) {
	setupStore(t)
	_, suspended := storedUser(t, "omar", database.UserStatusSuspended)
	gone, goneToken := storedUser(t, "nadia", database.UserStatusAccepted)
	require.NoError(t, database.DB.Delete(&gone).Error)

	r := gin.New()
	r.GET("/api/ws", HandleUserWebSocket)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws?token="+suspended, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "suspended")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws?token="+goneToken, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
