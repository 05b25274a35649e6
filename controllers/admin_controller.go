package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agrimarket/database"
	"agrimarket/utils"
)

type statusCount struct {
	Label string
	Total int64
}

// countBy groups a table by column, e.g. users by status
func countBy(db *gorm.DB, model interface{}, column string) (map[string]int64, error) {
	var rows []statusCount
	if err := db.Model(model).Select(column + " AS label, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Label] = r.Total
	}
	return out, nil
}

// AdminDashboard returns key counts for the admin dashboard
func AdminDashboard(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	type section struct {
		name   string
		model  interface{}
		column string
	}
	sections := []section{
		{"users_by_role", &database.User{}, "role"},
		{"users_by_status", &database.User{}, "status"},
		{"products_by_type", &database.Product{}, "type"},
		{"products_by_status", &database.Product{}, "status"},
		{"consultations_by_status", &database.Consultation{}, "status"},
		{"reclamations_by_status", &database.Reclamation{}, "status"},
		{"reclamations_by_priority", &database.Reclamation{}, "priority"},
	}

	stats := gin.H{}
	for _, s := range sections {
		counts, err := countBy(db, s.model, s.column)
		if err != nil {
			respondError(c, utils.FromDB(err, "Statistic"))
			return
		}
		stats[s.name] = counts
	}

	var unread int64
	if err := db.Model(&database.Message{}).Where("is_read = ?", false).Count(&unread).Error; err != nil {
		respondError(c, utils.FromDB(err, "Message"))
		return
	}
	stats["unread_messages"] = unread

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// AdminGetAudits returns the audit trail, newest first. Filters:
// entity_type, entity_id, user_id.
func AdminGetAudits(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	query := db.Model(&database.Audit{})
	entityID, err := parseOptionalID(c.Query("entity_id"), "entity_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if entityType := c.Query("entity_type"); entityType != "" {
		if entityID != 0 {
			query = query.Scopes(database.AuditsFor(entityType, entityID))
		} else {
			query = query.Where("entity_type = ?", entityType).Order("id DESC")
		}
	} else {
		query = query.Order("id DESC")
	}
	userID, err := parseOptionalID(c.Query("user_id"), "user_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}

	var audits []database.Audit
	if err := query.Scopes(paginate(c)).Find(&audits).Error; err != nil {
		respondError(c, utils.FromDB(err, "Audit"))
		return
	}
	c.JSON(http.StatusOK, audits)
}

// HealthCheck reports whether the store answers
func HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := database.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}
