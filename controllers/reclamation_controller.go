package controllers

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"agrimarket/database"
	"agrimarket/events"
	"agrimarket/policy"
	"agrimarket/utils"
	"agrimarket/workflow"
)

// reclamationQuery applies the caller's scope and the list filters
func reclamationQuery(c *gin.Context, db *gorm.DB) (*gorm.DB, error) {
	s := session(c)
	query := db.Model(&database.Reclamation{}).Scopes(policy.VisibleReclamations(s))

	if status := c.Query("status"); status != "" {
		if !workflow.ReclamationTransitions.Has(status) {
			return nil, utils.Validation("status must be one of: "+strings.Join(workflow.ReclamationTransitions.Statuses(), ", "), "status")
		}
		query = query.Where("reclamations.status = ?", status)
	}
	if t := c.Query("type"); t != "" {
		if err := workflow.ValidateReclamationType(t); err != nil {
			return nil, err
		}
		query = query.Where("reclamations.type = ?", t)
	}
	if p := c.Query("priority"); p != "" {
		if err := workflow.ValidatePriority(p); err != nil {
			return nil, err
		}
		query = query.Where("reclamations.priority = ?", p)
	}
	if s.IsAdmin() {
		creatorID, err := parseOptionalID(firstQuery(c, "userId", "user_id"), "userId")
		if err != nil {
			return nil, err
		}
		if creatorID != 0 {
			query = query.Where("reclamations.creator_id = ?", creatorID)
		}
		if role := c.Query("role"); role != "" {
			if err := workflow.ValidateRole(role); err != nil {
				return nil, err
			}
			query = query.Where("reclamations.creator_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&database.User{}).Select("id").Where("role = ?", role))
		}
	}
	return query, nil
}

// GetReclamations lists reclamations: all for admins, own for everyone else
func GetReclamations(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	query, err := reclamationQuery(c, db)
	if err != nil {
		respondError(c, err)
		return
	}

	var reclamations []database.Reclamation
	if err := query.Preload("Creator").Preload("Resolver").Scopes(paginate(c)).Order("reclamations.created_at DESC").Find(&reclamations).Error; err != nil {
		respondError(c, utils.FromDB(err, "Reclamation"))
		return
	}
	c.JSON(http.StatusOK, reclamations)
}

func loadReclamation(c *gin.Context, db *gorm.DB) (*database.Reclamation, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var reclamation database.Reclamation
	if err := db.Scopes(policy.VisibleReclamations(session(c))).First(&reclamation, id).Error; err != nil {
		return nil, utils.FromDB(err, "Reclamation")
	}
	return &reclamation, nil
}

// GetReclamationByID returns one reclamation of the caller's scope
func GetReclamationByID(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	reclamation, err := loadReclamation(c, db)
	if err != nil {
		respondError(c, err)
		return
	}
	db.Preload("Creator").Preload("Resolver").First(reclamation, reclamation.ID)
	c.JSON(http.StatusOK, reclamation)
}

// CreateReclamationRequest binds from JSON or a multipart form with
// attachments files
type CreateReclamationRequest struct {
	Subject     string `json:"subject" form:"subject"`
	Description string `json:"description" form:"description"`
	Type        string `json:"type" form:"type"`
	Priority    string `json:"priority" form:"priority"`
}

// referenceExists checks the unique reference index, ignoring the record
// being saved
func referenceExists(db *gorm.DB, selfID uint) func(string) (bool, error) {
	return func(code string) (bool, error) {
		var count int64
		err := db.Model(&database.Reclamation{}).Where("reference = ? AND id <> ?", code, selfID).Count(&count).Error
		return count > 0, err
	}
}

// CreateReclamation opens a ticket with a unique REC reference
func CreateReclamation(c *gin.Context) {
	s := session(c)

	if err := database.Ping(c.Request.Context()); err != nil {
		respondError(c, utils.Unavailable("Database unavailable, please retry later", err))
		return
	}

	var req CreateReclamationRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	now := time.Now()
	reclamation, err := workflow.NewReclamation(s.UserID, req.Subject, req.Description,
		strings.TrimSpace(req.Type), strings.TrimSpace(req.Priority), now)
	if err != nil {
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	if err := db.Select("id").First(&database.User{}, s.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, utils.NotFound("Creator not found"))
			return
		}
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			respondError(c, utils.Validation("malformed multipart body", "attachments"))
			return
		}
		for _, fh := range form.File["attachments"] {
			saved, err := utils.SaveUpload(fh, utils.KindImage, utils.KindDocument)
			if err != nil {
				for _, p := range reclamation.Attachments {
					utils.RemoveUpload(p)
				}
				respondError(c, err)
				return
			}
			reclamation.Attachments = append(reclamation.Attachments, saved)
		}
	}

	for attempt := 1; ; attempt++ {
		reference, err := utils.GenerateReferenceCode(now, rand.IntN, referenceExists(db, 0))
		if err != nil {
			respondError(c, utils.FromDB(err, "Reclamation"))
			return
		}
		reclamation.Reference = reference
		err = db.Create(reclamation).Error
		if err == nil {
			break
		}
		if utils.IsDuplicateKey(err) && attempt < maxReferenceSaves {
			log.Printf("Warning: reference %s taken concurrently, retrying (%d/%d)", reference, attempt, maxReferenceSaves)
			reclamation.ID = 0
			continue
		}
		for _, p := range reclamation.Attachments {
			utils.RemoveUpload(p)
		}
		respondError(c, utils.FromDB(err, "Reclamation"))
		return
	}

	events.Emit(c.Request.Context(), events.Event{
		Type:       events.ReclamationCreated,
		Entity:     database.EntityReclamation,
		EntityID:   reclamation.ID,
		To:         reclamation.Status,
		ActorID:    s.UserID,
		Recipients: adminIDs(db),
		Summary:    reclamation.Reference + ": " + reclamation.Subject,
	})
	log.Printf("📝 Reclamation %s opened by user %d", reclamation.Reference, s.UserID)

	db.Preload("Creator").First(reclamation, reclamation.ID)
	c.JSON(http.StatusCreated, reclamation)
}

// UpdateReclamationRequest is an admin triage or answer
type UpdateReclamationRequest struct {
	Status        *string `json:"status"`
	Priority      *string `json:"priority"`
	Type          *string `json:"type"`
	AdminResponse *string `json:"admin_response"`
}

// UpdateReclamation lets an admin move, prioritise and answer a reclamation
func UpdateReclamation(c *gin.Context) {
	s := session(c)

	var req UpdateReclamationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	reclamation, err := loadReclamation(c, db)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Priority != nil {
		if err := workflow.ValidatePriority(strings.TrimSpace(*req.Priority)); err != nil {
			respondError(c, err)
			return
		}
		reclamation.Priority = strings.TrimSpace(*req.Priority)
	}
	if req.Type != nil {
		if err := workflow.ValidateReclamationType(strings.TrimSpace(*req.Type)); err != nil {
			respondError(c, err)
			return
		}
		reclamation.Type = strings.TrimSpace(*req.Type)
	}

	var tr workflow.Transition
	statusTouched := req.Status != nil
	if statusTouched {
		if tr, err = workflow.ApplyReclamationStatus(reclamation, strings.TrimSpace(*req.Status), time.Now(), workflowMode()); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.AdminResponse != nil {
		reclamation.AdminResponse = strings.TrimSpace(*req.AdminResponse)
	}
	if statusTouched || req.AdminResponse != nil {
		resolver := s.UserID
		reclamation.ResolverID = &resolver
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(reclamation).
			Select("status", "priority", "type", "admin_response", "resolver_id", "resolved_at", "last_status_update").
			Updates(reclamation).Error; err != nil {
			return err
		}
		if statusTouched {
			if err := auditTransition(c, tx, reclamation.ID, tr); err != nil {
				return err
			}
		}
		return touchAdmin(tx, s)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "Reclamation"))
		return
	}

	if statusTouched && tr.Changed() {
		emitTransition(c, events.ReclamationStatusChanged, reclamation.ID, tr, reclamation.CreatorID)
	}
	db.Preload("Creator").Preload("Resolver").First(reclamation, reclamation.ID)
	c.JSON(http.StatusOK, reclamation)
}

// DeleteReclamation removes a reclamation and its attachments
func DeleteReclamation(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	reclamation, err := loadReclamation(c, db)
	if err != nil {
		respondError(c, err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(reclamation).Error; err != nil {
			return err
		}
		if err := audit(c, tx, database.EntityReclamation, reclamation.ID, "delete", reclamation.Status, ""); err != nil {
			return err
		}
		return touchAdmin(tx, s)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "Reclamation"))
		return
	}
	for _, p := range reclamation.Attachments {
		utils.RemoveUpload(p)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reclamation deleted successfully"})
}

var reclamationExportHeader = []interface{}{
	"Reference", "Subject", "Type", "Priority", "Status", "Creator", "Resolver",
	"Created At", "Last Status Update", "Resolved At", "Admin Response",
}

// ExportReclamations streams the filtered reclamations as an xlsx workbook
func ExportReclamations(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	query, err := reclamationQuery(c, db)
	if err != nil {
		respondError(c, err)
		return
	}
	var reclamations []database.Reclamation
	if err := query.Preload("Creator").Preload("Resolver").Order("reclamations.created_at ASC, reclamations.id ASC").Find(&reclamations).Error; err != nil {
		respondError(c, utils.FromDB(err, "Reclamation"))
		return
	}

	f, err := buildReclamationWorkbook(reclamations)
	if err != nil {
		respondError(c, utils.Internal("Error building export", err))
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("reclamations-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		log.Printf("❌ Error writing reclamation export: %v", err)
	}
}

func buildReclamationWorkbook(reclamations []database.Reclamation) (*excelize.File, error) {
	const sheet = "Reclamations"
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &reclamationExportHeader); err != nil {
		return nil, err
	}

	for i, r := range reclamations {
		creator, resolver, resolvedAt := "", "", ""
		if r.Creator != nil {
			creator = r.Creator.Username
		}
		if r.Resolver != nil {
			resolver = r.Resolver.Username
		}
		if r.ResolvedAt != nil {
			resolvedAt = r.ResolvedAt.Format(time.RFC3339)
		}
		row := []interface{}{
			r.Reference, r.Subject, r.Type, r.Priority, r.Status, creator, resolver,
			r.CreatedAt.Format(time.RFC3339), r.LastStatusUpdate.Format(time.RFC3339), resolvedAt, r.AdminResponse,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}
