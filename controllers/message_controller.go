package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agrimarket/database"
	"agrimarket/events"
	"agrimarket/policy"
	"agrimarket/utils"
)

// messageOwner is the session whose mailbox is read. Admins may look at
// another user's mailbox with ?userId=.
func messageOwner(c *gin.Context) (policy.Session, error) {
	s := session(c)
	if !s.IsAdmin() {
		return s, nil
	}
	id, err := parseOptionalID(firstQuery(c, "userId", "user_id"), "userId")
	if err != nil || id == 0 {
		return s, err
	}
	return policy.Session{UserID: id}, nil
}

// GetMessages lists the caller's messages, newest first. ?type=received or
// ?type=sent narrows the box.
func GetMessages(c *gin.Context) {
	box := strings.ToLower(strings.TrimSpace(c.Query("type")))
	if !policy.ValidBox(box) {
		respondError(c, utils.Validation("type must be one of: received, sent", "type"))
		return
	}
	owner, err := messageOwner(c)
	if err != nil {
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var messages []database.Message
	err = db.Scopes(policy.VisibleMessages(owner, box)).
		Preload("Sender").Preload("Receiver").Preload("Product").
		Scopes(paginate(c)).
		Order("messages.created_at DESC").
		Find(&messages).Error
	if err != nil {
		respondError(c, utils.FromDB(err, "Message"))
		return
	}
	c.JSON(http.StatusOK, messages)
}

func loadMessage(c *gin.Context, db *gorm.DB, box string) (*database.Message, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var message database.Message
	if err := db.Scopes(policy.VisibleMessages(session(c), box)).First(&message, id).Error; err != nil {
		return nil, utils.FromDB(err, "Message")
	}
	return &message, nil
}

// GetMessageByID returns a message of the caller. Reading it as the
// receiver marks it read.
func GetMessageByID(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	message, err := loadMessage(c, db, policy.BoxAll)
	if err != nil {
		respondError(c, err)
		return
	}
	if message.ReceiverID == s.UserID && !message.IsRead {
		if err := db.Model(message).Update("is_read", true).Error; err != nil {
			respondError(c, utils.FromDB(err, "Message"))
			return
		}
	}

	db.Preload("Sender").Preload("Receiver").Preload("Product").First(message, message.ID)
	c.JSON(http.StatusOK, message)
}

// CreateMessageRequest is a new message; the sender is always the caller
type CreateMessageRequest struct {
	ReceiverID uint   `json:"receiver_id"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	ProductID  *uint  `json:"product_id"`
}

// CreateMessage sends a message to another user, optionally about a product
func CreateMessage(c *gin.Context) {
	s := session(c)

	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}

	subject := strings.TrimSpace(req.Subject)
	content := strings.TrimSpace(req.Content)
	var missing []string
	if req.ReceiverID == 0 {
		missing = append(missing, "receiver_id")
	}
	if subject == "" {
		missing = append(missing, "subject")
	}
	if content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		respondError(c, utils.Validation("missing required fields: "+strings.Join(missing, ", "), missing...))
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	if err := db.Select("id").First(&database.User{}, s.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, utils.NotFound("Sender not found"))
			return
		}
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	if err := db.Select("id").First(&database.User{}, req.ReceiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, utils.NotFound("Receiver not found"))
			return
		}
		respondError(c, utils.FromDB(err, "User"))
		return
	}
	if req.ProductID != nil {
		if err := db.Select("id").First(&database.Product{}, *req.ProductID).Error; err != nil {
			respondError(c, utils.FromDB(err, "Product"))
			return
		}
	}

	message := database.Message{
		SenderID:   s.UserID,
		ReceiverID: req.ReceiverID,
		Subject:    subject,
		Content:    content,
		ProductID:  req.ProductID,
	}
	if err := db.Create(&message).Error; err != nil {
		respondError(c, utils.FromDB(err, "Message"))
		return
	}

	events.Emit(c.Request.Context(), events.Event{
		Type:       events.MessageCreated,
		Entity:     database.EntityMessage,
		EntityID:   message.ID,
		ActorID:    s.UserID,
		Recipients: []uint{message.ReceiverID},
		Summary:    message.Subject,
	})

	db.Preload("Sender").Preload("Receiver").Preload("Product").First(&message, message.ID)
	c.JSON(http.StatusCreated, message)
}

// MarkMessageRead marks a received message read
func MarkMessageRead(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	message, err := loadMessage(c, db, policy.BoxReceived)
	if err != nil {
		respondError(c, err)
		return
	}
	if !message.IsRead {
		if err := db.Model(message).Update("is_read", true).Error; err != nil {
			respondError(c, utils.FromDB(err, "Message"))
			return
		}
	}
	message.IsRead = true
	c.JSON(http.StatusOK, message)
}

// DeleteMessage removes a message for both sides
func DeleteMessage(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	message, err := loadMessage(c, db, policy.BoxAll)
	if err != nil {
		respondError(c, err)
		return
	}
	if !policy.CanDeleteMessage(s, message) {
		respondError(c, utils.NotFound("Message not found"))
		return
	}
	if err := db.Delete(message).Error; err != nil {
		respondError(c, utils.FromDB(err, "Message"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}
