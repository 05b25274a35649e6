package controllers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/utils"
	"agrimarket/workflow"
)

// LoginRequest contains the credentials for user login. Identifier may be
// an email or a username; the email field is accepted for older clients.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password" binding:"required"`
}

// RegisterRequest contains the data for user registration
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// LoginResponse is the structure returned after login
type LoginResponse struct {
	Token  string        `json:"token"`
	User   database.User `json:"user"`
	Expiry int64         `json:"expiry"`
}

// Register creates a pending account. Admins are never self-registered.
func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data: " + err.Error()})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.ToLower(strings.TrimSpace(req.Role))

	allowed := false
	for _, r := range workflow.SelfRegisterRoles {
		if r == role {
			allowed = true
		}
	}
	if !allowed {
		respondError(c, utils.Validation("role must be one of: "+strings.Join(workflow.SelfRegisterRoles, ", "), "role"))
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var count int64
	if err := db.Model(&database.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	if count > 0 {
		respondError(c, utils.Validation("Email already registered", "email"))
		return
	}
	if err := db.Model(&database.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	if count > 0 {
		respondError(c, utils.Validation("Username already taken", "username"))
		return
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing registration"})
		return
	}

	user := database.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		Status:       database.UserStatusPending,
		Phone:        req.Phone,
		Address:      req.Address,
	}
	if err := db.Create(&user).Error; err != nil {
		if utils.IsDuplicateKey(err) {
			respondError(c, utils.Validation("Email or username already registered", "email", "username"))
			return
		}
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	log.Printf("👤 Registered %s %s (#%d), awaiting approval", user.Role, user.Username, user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Your account is awaiting approval",
		"user":    user,
	})
}

// Login authenticates by email or username and returns a JWT token
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" {
		respondError(c, utils.Validation("identifier is required", "identifier"))
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	err := db.Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	// an elapsed suspension is lifted whatever the outcome of the password check
	now := time.Now()
	if workflow.ApplySuspensionExpiry(&user, now) {
		if err := db.Model(&user).Select("status", "suspension_end_date", "suspension_reason").Updates(&user).Error; err != nil {
			respondError(c, utils.FromDB(err, "User"))
			return
		}
		log.Printf("🔓 Suspension of user %d expired, status back to accepted", user.ID)
	}

	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err := workflow.LoginGate(&user); err != nil {
		respondError(c, err)
		return
	}

	expirationTime := time.Now().Add(config.GetJWTExpiration())
	token, err := utils.GenerateJWT(user.ID, user.Email, user.Role, expirationTime)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}

	user.LastLogin = &now
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		log.Printf("Warning: failed to record last login of user %d: %v", user.ID, err)
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		User:   user,
		Expiry: expirationTime.Unix(),
	})
}

// RefreshToken issues a fresh token for the authenticated user
func RefreshToken(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	var user database.User
	if err := db.First(&user, s.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User no longer exists"})
			return
		}
		respondError(c, utils.FromDB(err, "User"))
		return
	}

	expirationTime := time.Now().Add(config.GetJWTExpiration())
	token, err := utils.GenerateJWT(user.ID, user.Email, user.Role, expirationTime)
	if err != nil {
		log.Printf("Error generating token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		User:   user,
		Expiry: expirationTime.Unix(),
	})
}
