package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agrimarket/database"
	"agrimarket/policy"
	"agrimarket/utils"
	"agrimarket/workflow"
)

const sessionKey = "session"

// CurrentSession returns the session stored by the auth middlewares. It is
// anonymous on public routes without a token.
func CurrentSession(c *gin.Context) policy.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(policy.Session); ok {
			return s
		}
	}
	return policy.Session{}
}

// SetSession stores s on the request
func SetSession(c *gin.Context, s policy.Session) {
	c.Set(sessionKey, s)
	c.Set("user_id", s.UserID)
	c.Set("role", s.Role)
	c.Set("email", s.Email)
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return "", errors.New("Authorization header format must be Bearer {token}")
	}
	return parts[1], nil
}

// Authenticate resolves a bearer token to a live, accepted user. On failure
// it returns the HTTP status and message to answer with.
func Authenticate(c *gin.Context, token string) (*database.User, int, string) {
	claims, err := utils.ValidateJWT(token)
	if err != nil {
		return nil, http.StatusUnauthorized, "Invalid or expired token"
	}

	var user database.User
	if err := database.DB.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusUnauthorized, "User no longer exists"
		}
		appErr := utils.FromDB(err, "User")
		return nil, appErr.Status(), appErr.Message
	}

	if workflow.ApplySuspensionExpiry(&user, time.Now()) {
		if err := database.DB.Model(&user).Select("status", "suspension_end_date", "suspension_reason").Updates(&user).Error; err != nil {
			log.Printf("Warning: failed to lift expired suspension of user %d: %v", user.ID, err)
		}
	}
	if err := workflow.LoginGate(&user); err != nil {
		appErr := utils.AsAppError(err)
		return nil, appErr.Status(), appErr.Message
	}
	return &user, 0, ""
}

// AuthMiddleware validates JWT tokens and attaches the caller's session
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		user, status, msg := Authenticate(c, token)
		if user == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		SetSession(c, policy.Session{UserID: user.ID, Role: user.Role, Email: user.Email})
		c.Next()
	}
}

// OptionalAuthMiddleware attaches a session when a token is sent and lets
// anonymous callers through otherwise.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if token != "" {
			user, status, msg := Authenticate(c, token)
			if user == nil {
				c.AbortWithStatusJSON(status, gin.H{"error": msg})
				return
			}
			SetSession(c, policy.Session{UserID: user.ID, Role: user.Role, Email: user.Email})
		}
		c.Next()
	}
}

// RoleAuthMiddleware validates user roles
func RoleAuthMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := CurrentSession(c)
		if s.Anonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		for _, r := range roles {
			if r == s.Role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
	}
}

func AdminAuthMiddleware() gin.HandlerFunc {
	return RoleAuthMiddleware(database.RoleAdmin)
}

func FarmerAuthMiddleware() gin.HandlerFunc {
	return RoleAuthMiddleware(database.RoleFarmer)
}

func VetAuthMiddleware() gin.HandlerFunc {
	return RoleAuthMiddleware(database.RoleVet)
}
