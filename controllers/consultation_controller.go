package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agrimarket/database"
	"agrimarket/events"
	"agrimarket/policy"
	"agrimarket/utils"
	"agrimarket/workflow"
)

// GetConsultations lists the consultations of the caller's role scope
func GetConsultations(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	query := db.Model(&database.Consultation{}).Scopes(policy.VisibleConsultations(session(c)))
	if status := c.Query("status"); status != "" {
		if !workflow.ConsultationTransitions.Has(status) {
			respondError(c, utils.Validation("status must be one of: "+strings.Join(workflow.ConsultationTransitions.Statuses(), ", "), "status"))
			return
		}
		query = query.Where("consultations.status = ?", status)
	}

	var consultations []database.Consultation
	if err := query.Preload("Farmer").Preload("Vet").Scopes(paginate(c)).Order("consultations.created_at DESC").Find(&consultations).Error; err != nil {
		respondError(c, utils.FromDB(err, "Consultation"))
		return
	}
	c.JSON(http.StatusOK, consultations)
}

func loadConsultation(c *gin.Context, db *gorm.DB) (*database.Consultation, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var consultation database.Consultation
	if err := db.Scopes(policy.VisibleConsultations(session(c))).First(&consultation, id).Error; err != nil {
		return nil, utils.FromDB(err, "Consultation")
	}
	return &consultation, nil
}

// GetConsultationByID returns one consultation of the caller's scope
func GetConsultationByID(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	consultation, err := loadConsultation(c, db)
	if err != nil {
		respondError(c, err)
		return
	}
	db.Preload("Farmer").Preload("Vet").First(consultation, consultation.ID)
	c.JSON(http.StatusOK, consultation)
}

// sheepIDsFromForm accepts repeated sheep_ids fields as well as a single
// comma separated value
func sheepIDsFromForm(c *gin.Context) ([]uint, error) {
	raw := append(c.PostFormArray("sheep_ids"), c.PostFormArray("sheep_ids[]")...)
	var ids []uint
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return nil, utils.Validation("sheep_ids contains an invalid id", "sheep_ids")
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}

// CreateConsultation lets a farmer ask an accepted vet to review some of
// their own sheep, optionally with a video.
func CreateConsultation(c *gin.Context) {
	s := session(c)

	vetID, err := parseOptionalID(c.PostForm("vet_id"), "vet_id")
	if err != nil {
		respondError(c, err)
		return
	}
	sheepIDs, err := sheepIDsFromForm(c)
	if err != nil {
		respondError(c, err)
		return
	}
	consultation, err := workflow.NewConsultation(s.UserID, vetID, sheepIDs, c.PostForm("description"))
	if err != nil {
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var vet database.User
	err = db.Where("id = ? AND role = ? AND status = ?", vetID, database.RoleVet, database.UserStatusAccepted).First(&vet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, utils.NotFound("Vet not found"))
			return
		}
		respondError(c, utils.FromDB(err, "Vet"))
		return
	}

	var owned int64
	err = db.Model(&database.Product{}).
		Where("id IN ? AND farmer_id = ? AND type = ?", []uint(consultation.SheepIDs), s.UserID, database.ProductTypeSheep).
		Count(&owned).Error
	if err != nil {
		respondError(c, utils.FromDB(err, "Product"))
		return
	}
	if int(owned) != len(consultation.SheepIDs) {
		respondError(c, utils.Validation("sheep_ids must reference your own sheep listings", "sheep_ids"))
		return
	}

	if fh, ferr := c.FormFile("video"); ferr == nil {
		video, err := utils.SaveUpload(fh, utils.KindVideo)
		if err != nil {
			respondError(c, err)
			return
		}
		consultation.VideoPath = video
	}

	if err := db.Create(consultation).Error; err != nil {
		utils.RemoveUpload(consultation.VideoPath)
		respondError(c, utils.FromDB(err, "Consultation"))
		return
	}

	events.Emit(c.Request.Context(), events.Event{
		Type:       events.ConsultationStatusChanged,
		Entity:     database.EntityConsultation,
		EntityID:   consultation.ID,
		To:         consultation.Status,
		ActorID:    s.UserID,
		Recipients: []uint{vet.ID},
		Summary:    "New consultation request",
	})
	log.Printf("🩺 Farmer %d requested consultation %d from vet %d", s.UserID, consultation.ID, vet.ID)

	db.Preload("Farmer").Preload("Vet").First(consultation, consultation.ID)
	c.JSON(http.StatusCreated, consultation)
}

// ConsultationResponseRequest is the vet's answer
type ConsultationResponseRequest struct {
	Status   string `json:"status" form:"status"`
	Response string `json:"response" form:"response"`
}

// SubmitConsultationResponse records the assigned vet's answer. Status,
// response text and response date are written together.
func SubmitConsultationResponse(c *gin.Context) {
	s := session(c)

	var req ConsultationResponseRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	consultation, err := loadConsultation(c, db)
	if err != nil {
		respondError(c, err)
		return
	}
	if consultation.VetID != s.UserID {
		respondError(c, utils.Forbidden("Only the assigned vet can respond to this consultation"))
		return
	}

	tr, err := workflow.SubmitResponse(consultation, strings.TrimSpace(req.Status), req.Response, time.Now(), workflowMode())
	if err != nil {
		respondError(c, err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(consultation).Select("status", "vet_response", "response_date").Updates(consultation).Error; err != nil {
			return err
		}
		return auditTransition(c, tx, consultation.ID, tr)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "Consultation"))
		return
	}

	emitTransition(c, events.ConsultationResponded, consultation.ID, tr, consultation.FarmerID)
	db.Preload("Farmer").Preload("Vet").First(consultation, consultation.ID)
	c.JSON(http.StatusOK, consultation)
}

// UpdateConsultationRequest is an admin status change or a farmer edit
type UpdateConsultationRequest struct {
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

// UpdateConsultation: admins may change the status, the owning farmer may
// rewrite the description while the consultation is still pending.
func UpdateConsultation(c *gin.Context) {
	s := session(c)

	var req UpdateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	consultation, err := loadConsultation(c, db)
	if err != nil {
		respondError(c, err)
		return
	}

	var tr workflow.Transition
	statusTouched := req.Status != nil
	switch {
	case s.IsAdmin():
		if req.Description != nil {
			respondError(c, utils.Forbidden("Only the farmer can edit the description"))
			return
		}
		if !statusTouched {
			respondError(c, utils.Validation("status is required", "status"))
			return
		}
		if tr, err = workflow.ApplyConsultationStatus(consultation, strings.TrimSpace(*req.Status), workflowMode()); err != nil {
			respondError(c, err)
			return
		}
	case s.Is(database.RoleFarmer) && consultation.FarmerID == s.UserID:
		if statusTouched {
			respondError(c, utils.Forbidden("Farmers cannot change the consultation status"))
			return
		}
		if req.Description == nil || strings.TrimSpace(*req.Description) == "" {
			respondError(c, utils.Validation("description is required", "description"))
			return
		}
		if consultation.Status != database.ConsultationStatusPending {
			respondError(c, utils.Conflict("Only pending consultations can be edited", nil))
			return
		}
		consultation.Description = strings.TrimSpace(*req.Description)
	default:
		respondError(c, utils.Forbidden("Permission denied"))
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(consultation).Select("status", "description").Updates(consultation).Error; err != nil {
			return err
		}
		if statusTouched {
			if err := auditTransition(c, tx, consultation.ID, tr); err != nil {
				return err
			}
			if err := touchAdmin(tx, s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "Consultation"))
		return
	}
	if statusTouched && tr.Changed() {
		emitTransition(c, events.ConsultationStatusChanged, consultation.ID, tr, consultation.FarmerID, consultation.VetID)
	}
	c.JSON(http.StatusOK, consultation)
}

// DeleteConsultation removes a consultation; admins only
func DeleteConsultation(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	consultation, err := loadConsultation(c, db)
	if err != nil {
		respondError(c, err)
		return
	}
	if !policy.CanDeleteConsultation(s, consultation) {
		respondError(c, utils.Forbidden("Only administrators can delete consultations"))
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(consultation).Error; err != nil {
			return err
		}
		if err := audit(c, tx, database.EntityConsultation, consultation.ID, "delete", consultation.Status, ""); err != nil {
			return err
		}
		return touchAdmin(tx, s)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "Consultation"))
		return
	}
	utils.RemoveUpload(consultation.VideoPath)
	c.JSON(http.StatusOK, gin.H{"message": "Consultation deleted successfully"})
}
