package database

import (
	"gorm.io/gorm"
)

// AuditEntry is the input for WriteAudit
type AuditEntry struct {
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
	OldValue   string
	NewValue   string
	IPAddress  string
	UserAgent  string
}

// WriteAudit appends one audit row using tx (DB when nil)
func WriteAudit(tx *gorm.DB, e AuditEntry) error {
	if tx == nil {
		tx = DB
	}
	row := Audit{
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
	}
	if e.ActorID != 0 {
		actor := e.ActorID
		row.UserID = &actor
	}
	return tx.Create(&row).Error
}

// AuditsFor scopes a query to the trail of a single entity. Zero values widen it.
func AuditsFor(entityType string, entityID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if entityType != "" {
			db = db.Where("entity_type = ?", entityType)
		}
		if entityID != 0 {
			db = db.Where("entity_id = ?", entityID)
		}
		return db.Order("id DESC")
	}
}
