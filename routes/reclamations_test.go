package routes

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/utils"
)

func (a *api) reclamation(t *testing.T, u database.User, subject string) database.Reclamation {
	t.Helper()
	w := a.form(http.MethodPost, "/api/reclamations", a.token(u), map[string]string{
		"subject": subject, "description": "The olive oil lot arrived rancid", "type": "product", "priority": "high",
	}, upload{field: "attachments", name: "bottle.png", content: pngBytes})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[database.Reclamation](t, w)
}

func TestCreateReclamation(t *testing.T) {
	a := newAPI(t)
	u := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)

	r := a.reclamation(t, u, "Rancid oil")
	assert.True(t, utils.IsReferenceCode(r.Reference), r.Reference)
	assert.True(t, strings.HasPrefix(r.Reference, "REC-"))
	assert.Equal(t, database.ReclamationStatusPending, r.Status)
	assert.Equal(t, database.PriorityHigh, r.Priority)
	assert.Equal(t, u.ID, r.CreatorID)
	require.Len(t, r.Attachments, 1)
	assert.True(t, strings.HasPrefix(r.Attachments[0], "/uploads/image/"))
	assert.Nil(t, r.ResolvedAt)

	other := a.reclamation(t, u, "Second")
	assert.NotEqual(t, r.Reference, other.Reference)

	w := a.do(http.MethodPost, "/api/reclamations", a.token(u), gin.H{"subject": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "description")

	w = a.do(http.MethodPost, "/api/reclamations", a.token(u), gin.H{"subject": "x", "description": "y"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plain := decode[database.Reclamation](t, w)
	assert.Equal(t, database.ReclamationTypeOther, plain.Type)
	assert.Equal(t, database.PriorityNormal, plain.Priority)

	w = a.do(http.MethodPost, "/api/reclamations", a.token(u), gin.H{"subject": "x", "description": "y", "priority": "asap"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateReclamationRetriesTakenReference(t *testing.T) {
	a := newAPI(t)
	u := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)

	// another writer grabs the chosen reference between the check and the insert
	var taken string
	err := a.db.Callback().Create().Before("gorm:begin_transaction").Register("race:reference", func(tx *gorm.DB) {
		r, ok := tx.Statement.Dest.(*database.Reclamation)
		if !ok || taken != "" || r.Reference == "" {
			return
		}
		taken = r.Reference
		other := database.Reclamation{Reference: taken, Subject: "Other", Description: "Other", CreatorID: u.ID}
		require.NoError(t, a.db.Create(&other).Error)
	})
	require.NoError(t, err)

	w := a.do(http.MethodPost, "/api/reclamations", a.token(u), gin.H{"subject": "Rancid oil", "description": "Smells off"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	r := decode[database.Reclamation](t, w)
	require.NotEmpty(t, taken)
	assert.NotEqual(t, taken, r.Reference)
	assert.True(t, utils.IsReferenceCode(r.Reference), r.Reference)

	var count int64
	require.NoError(t, a.db.Model(&database.Reclamation{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCreateReclamationRejectsUnreadableAttachments(t *testing.T) {
	a := newAPI(t)
	u := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)

	body := "--b\r\nContent-Disposition: attachment; filename=\"bottle.png\"\r\n\r\nxx\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/reclamations?subject=Rancid&description=Smells+off", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/mixed; boundary=b")
	req.Header.Set("Authorization", "Bearer "+a.token(u))
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var count int64
	require.NoError(t, a.db.Model(&database.Reclamation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReclamationsWithStoreDown(t *testing.T) {
	a := newAPI(t)
	u := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	tok := a.token(u)

	require.NoError(t, database.CloseDB())
	w := a.do(http.MethodPost, "/api/reclamations", tok, gin.H{"subject": "x", "description": "y"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestResolvingTwiceKeepsResolvedAt(t *testing.T) {
	a := newAPI(t)
	admin := a.user("root", database.RoleAdmin, database.UserStatusAccepted)
	u := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	r := a.reclamation(t, u, "Rancid oil")
	path := fmt.Sprintf("/api/reclamations/%d", r.ID)
	adminTok := a.token(admin)

	w := a.do(http.MethodPut, path, adminTok, gin.H{"status": "resolved", "admin_response": "Refunded"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[database.Reclamation](t, w)
	require.NotNil(t, first.ResolvedAt)
	require.NotNil(t, first.ResolverID)
	assert.Equal(t, admin.ID, *first.ResolverID)
	assert.Equal(t, "Refunded", first.AdminResponse)

	w = a.do(http.MethodPut, path, adminTok, gin.H{"status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[database.Reclamation](t, w)
	require.NotNil(t, second.ResolvedAt)
	assert.True(t, first.ResolvedAt.Equal(*second.ResolvedAt))
	assert.False(t, second.LastStatusUpdate.Before(first.LastStatusUpdate))

	w = a.do(http.MethodPut, path, adminTok, gin.H{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code)

	config.AppConfig.WorkflowStrict = true
	w = a.do(http.MethodPut, path, adminTok, gin.H{"status": "pending"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPut, path, adminTok, gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var audits []database.Audit
	require.NoError(t, a.db.Scopes(database.AuditsFor(database.EntityReclamation, r.ID)).Find(&audits).Error)
	assert.Len(t, audits, 3)
}

func TestReclamationScope(t *testing.T) {
	a := newAPI(t)
	admin := a.user("root", database.RoleAdmin, database.UserStatusAccepted)
	owner := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	farmer := a.user("amal", database.RoleFarmer, database.UserStatusAccepted)
	r := a.reclamation(t, owner, "Rancid oil")
	a.reclamation(t, farmer, "Late payment")
	path := fmt.Sprintf("/api/reclamations/%d", r.ID)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, path, a.token(owner), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, a.token(farmer), nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, path, a.token(owner), gin.H{"status": "closed"}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, path, a.token(owner), nil).Code)

	w := a.do(http.MethodGet, "/api/reclamations", a.token(owner), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]database.Reclamation](t, w), 1)

	w = a.do(http.MethodGet, "/api/reclamations?role=farmer", a.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]database.Reclamation](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, farmer.ID, list[0].CreatorID)

	w = a.do(http.MethodGet, "/api/reclamations?priority=high&type=product", a.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]database.Reclamation](t, w), 2)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/reclamations?status=lost", a.token(admin), nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, path, a.token(admin), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, a.token(owner), nil).Code)
}

func TestExportReclamations(t *testing.T) {
	a := newAPI(t)
	admin := a.user("root", database.RoleAdmin, database.UserStatusAccepted)
	u := a.user("chadi", database.RoleConsumer, database.UserStatusAccepted)
	r := a.reclamation(t, u, "Rancid oil")
	a.reclamation(t, u, "Broken crate")

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/reclamations/export", a.token(u), nil).Code)

	w := a.do(http.MethodGet, "/api/reclamations/export", a.token(admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Reclamations")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Reference", rows[0][0])
	assert.Equal(t, r.Reference, rows[1][0])
	assert.Equal(t, "chadi", rows[1][5])
}
