package controllers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/events"
	"agrimarket/middleware"
	"agrimarket/policy"
	"agrimarket/utils"
	"agrimarket/workflow"
)

// respondError writes err as {"error": ..., "fields": [...]}
func respondError(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	if appErr.Kind == utils.KindInternal || appErr.Kind == utils.KindUnavailable {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), appErr)
	}
	body := gin.H{"error": appErr.Message}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.JSON(appErr.Status(), body)
}

// dbFor returns the store bound to a timeout derived from the request
func dbFor(c *gin.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	return database.DB.WithContext(ctx), cancel
}

func session(c *gin.Context) policy.Session {
	return middleware.CurrentSession(c)
}

func workflowMode() workflow.Mode {
	return workflow.ModeFromStrict(config.AppConfig.WorkflowStrict)
}

func parseID(c *gin.Context, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, utils.Validation("invalid id", param)
	}
	return uint(id), nil
}

func parseOptionalID(raw, field string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, utils.Validation("invalid "+field, field)
	}
	return uint(id), nil
}

// firstQuery returns the first non-empty query value among names
func firstQuery(c *gin.Context, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.Query(n)); v != "" {
			return v
		}
	}
	return ""
}

// paginate reads ?page= and ?limit=
func paginate(c *gin.Context) func(*gorm.DB) *gorm.DB {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}

func formDecimal(c *gin.Context, key string) (*decimal.Decimal, bool, error) {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return nil, false, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, true, utils.Validation(key+" must be a number", key)
	}
	return &d, true, nil
}

func formFloat(c *gin.Context, key string) (*float64, bool, error) {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return nil, false, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, true, utils.Validation(key+" must be a number", key)
	}
	return &f, true, nil
}

func formBool(c *gin.Context, key string) (bool, bool) {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return false, false
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return b, true
}

// audit records a write. Inside a transaction the error must abort it.
func audit(c *gin.Context, tx *gorm.DB, entity string, id uint, action, oldValue, newValue string) error {
	s := session(c)
	err := database.WriteAudit(tx, database.AuditEntry{
		ActorID:    s.UserID,
		Action:     action,
		EntityType: entity,
		EntityID:   id,
		OldValue:   oldValue,
		NewValue:   newValue,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		return fmt.Errorf("audit %s #%d: %w", entity, id, err)
	}
	return nil
}

// logAudit records a write that is already committed; failures are logged only
func logAudit(c *gin.Context, db *gorm.DB, entity string, id uint, action, oldValue, newValue string) {
	if err := audit(c, db, entity, id, action, oldValue, newValue); err != nil {
		log.Printf("Warning: failed to write %v", err)
	}
}

// auditTransition records a checked status write
func auditTransition(c *gin.Context, tx *gorm.DB, id uint, tr workflow.Transition) error {
	return audit(c, tx, tr.Entity, id, tr.AuditAction(), tr.From, tr.To)
}

// touchAdmin stamps the admin profile of the acting admin
func touchAdmin(tx *gorm.DB, s policy.Session) error {
	if !s.IsAdmin() {
		return nil
	}
	return tx.Model(&database.Admin{}).Where("user_id = ?", s.UserID).Update("last_action_at", time.Now()).Error
}

func emitTransition(c *gin.Context, kind string, id uint, tr workflow.Transition, recipients ...uint) {
	events.Emit(c.Request.Context(), events.Event{
		Type:       kind,
		Entity:     tr.Entity,
		EntityID:   id,
		From:       tr.From,
		To:         tr.To,
		Flagged:    tr.Flagged,
		ActorID:    session(c).UserID,
		Recipients: recipients,
	})
}

// adminIDs lists the ids of all admin accounts
func adminIDs(db *gorm.DB) []uint {
	var ids []uint
	if err := db.Model(&database.User{}).Where("role = ?", database.RoleAdmin).Pluck("id", &ids).Error; err != nil {
		log.Printf("Warning: failed to list admins: %v", err)
	}
	return ids
}
