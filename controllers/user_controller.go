package controllers

import (
	"errors"
	"log"
	"net/http"
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

// GetUserProfile returns the profile of the authenticated user
func GetUserProfile(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	if err := db.First(&user, s.UserID).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfileRequest contains the data for profile update. It binds from
// JSON or from a multipart form carrying a profile_image file.
type UpdateProfileRequest struct {
	Name    *string `json:"name" form:"name"`
	Phone   *string `json:"phone" form:"phone"`
	Address *string `json:"address" form:"address"`
}

// UpdateUserProfile updates the profile of the authenticated user
func UpdateUserProfile(c *gin.Context) {
	s := session(c)

	var req UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	if err := db.First(&user, s.UserID).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			respondError(c, utils.Validation("name cannot be empty", "name"))
			return
		}
		updates["name"] = name
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}

	oldImage := user.ProfileImage
	if fh, err := c.FormFile("profile_image"); err == nil {
		saved, err := utils.SaveUpload(fh, utils.KindImage)
		if err != nil {
			respondError(c, err)
			return
		}
		updates["profile_image"] = saved
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, user)
		return
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		if img, ok := updates["profile_image"].(string); ok {
			utils.RemoveUpload(img)
		}
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	if _, replaced := updates["profile_image"]; replaced && oldImage != "" {
		utils.RemoveUpload(oldImage)
	}

	db.First(&user, user.ID)
	c.JSON(http.StatusOK, user)
}

// ChangePasswordRequest contains the data for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// ChangePassword replaces the password of the authenticated user
func ChangePassword(c *gin.Context) {
	s := session(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data: " + err.Error()})
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	if err := db.First(&user, s.UserID).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	if !utils.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		respondError(c, utils.Validation("current password is incorrect", "current_password"))
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing password"})
		return
	}
	if err := db.Model(&user).Update("password_hash", hash).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// GetUsers lists every account for admins (filters: role, status) and only
// the caller's own account for everyone else.
func GetUsers(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	query := db.Model(&database.User{}).Scopes(policy.VisibleUsers(s))
	if role := c.Query("role"); role != "" {
		if err := workflow.ValidateRole(role); err != nil {
			respondError(c, err)
			return
		}
		query = query.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		if !workflow.UserTransitions.Has(status) {
			respondError(c, utils.Validation("status must be one of: "+strings.Join(workflow.UserTransitions.Statuses(), ", "), "status"))
			return
		}
		query = query.Where("status = ?", status)
	}

	var users []database.User
	if err := query.Scopes(paginate(c)).Order("created_at DESC").Find(&users).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUserByID returns one account visible to the caller
func GetUserByID(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	if err := db.Scopes(policy.VisibleUsers(session(c))).First(&user, id).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// AdminUpdateUserRequest is an admin edit. Status moderation goes through the
// user workflow; the suspension fields only apply to the suspended status.
type AdminUpdateUserRequest struct {
	Status            *string    `json:"status"`
	SuspensionEndDate *time.Time `json:"suspension_end_date"`
	SuspensionReason  string     `json:"suspension_reason"`
	Role              *string    `json:"role"`
	Name              *string    `json:"name"`
	Phone             *string    `json:"phone"`
	Address           *string    `json:"address"`
	ProfileImage      *string    `json:"profile_image"`
}

// UpdateUser lets an admin moderate or edit an account
func UpdateUser(c *gin.Context) {
	s := session(c)
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data: " + err.Error()})
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	if err := db.First(&user, id).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	var tr workflow.Transition
	statusTouched := req.Status != nil
	if statusTouched {
		tr, err = workflow.ApplyUserStatus(&user, workflow.UserStatusChange{
			Status:  strings.TrimSpace(*req.Status),
			EndDate: req.SuspensionEndDate,
			Reason:  strings.TrimSpace(req.SuspensionReason),
		}, time.Now(), workflowMode())
		if err != nil {
			respondError(c, err)
			return
		}
	}

	oldRole := user.Role
	if req.Role != nil {
		role := strings.TrimSpace(*req.Role)
		if err := workflow.ValidateRole(role); err != nil {
			respondError(c, err)
			return
		}
		if user.ID == s.UserID && role != database.RoleAdmin {
			respondError(c, utils.Validation("you cannot remove your own admin role", "role"))
			return
		}
		user.Role = role
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			respondError(c, utils.Validation("name cannot be empty", "name"))
			return
		}
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
	}
	if req.ProfileImage != nil {
		img := strings.TrimSpace(*req.ProfileImage)
		if img != "" && !utils.IsUploadPath(img) {
			respondError(c, utils.Validation("profile_image must be a path under /uploads", "profile_image"))
			return
		}
		user.ProfileImage = img
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).
			Select("status", "suspension_end_date", "suspension_reason", "role", "name", "phone", "address", "profile_image").
			Updates(&user).Error; err != nil {
			return err
		}
		if user.Role == database.RoleAdmin && oldRole != database.RoleAdmin {
			if err := tx.Where(database.Admin{UserID: user.ID}).FirstOrCreate(&database.Admin{}).Error; err != nil {
				return err
			}
		}
		if oldRole == database.RoleAdmin && user.Role != database.RoleAdmin {
			if err := tx.Where("user_id = ?", user.ID).Delete(&database.Admin{}).Error; err != nil {
				return err
			}
		}
		if statusTouched {
			if err := auditTransition(c, tx, user.ID, tr); err != nil {
				return err
			}
		}
		if oldRole != user.Role {
			if err := audit(c, tx, database.EntityUser, user.ID, "role_change", oldRole, user.Role); err != nil {
				return err
			}
		}
		return touchAdmin(tx, s)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	if statusTouched && tr.Changed() {
		log.Printf("🛡️ Admin %d moved user %d from %s to %s", s.UserID, user.ID, tr.From, tr.To)
		emitTransition(c, events.UserStatusChanged, user.ID, tr, user.ID)
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser permanently removes an account with its listings. Messages,
// consultations and reclamations stay as history.
func DeleteUser(c *gin.Context) {
	s := session(c)
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if id == s.UserID {
		respondError(c, utils.Validation("you cannot delete your own account", "id"))
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	if err := db.First(&user, id).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	var products []database.Product
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("farmer_id = ?", user.ID).Find(&products).Error; err != nil {
			return err
		}
		if len(products) > 0 {
			ids := make([]uint, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			if err := tx.Model(&database.Message{}).Where("product_id IN ?", ids).Update("product_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", ids).Delete(&database.Product{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&database.Admin{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&user).Error; err != nil {
			return err
		}
		if err := audit(c, tx, database.EntityUser, user.ID, "delete", user.Status, ""); err != nil {
			return err
		}
		return touchAdmin(tx, s)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	for _, p := range products {
		utils.RemoveUpload(p.ImagePath)
		utils.RemoveUpload(p.CertificatePath)
	}
	utils.RemoveUpload(user.ProfileImage)

	log.Printf("🗑️ Admin %d deleted user %d with %d products", s.UserID, user.ID, len(products))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetVets lists accepted veterinarians, for farmers picking one to consult
func GetVets(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	var vets []database.User
	err := db.Where("role = ? AND status = ?", database.RoleVet, database.UserStatusAccepted).
		Order("name ASC").Find(&vets).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	c.JSON(http.StatusOK, vets)
}
