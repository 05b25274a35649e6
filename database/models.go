package database

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Model is the common base for every table. There is no DeletedAt column:
// deletes are permanent.
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account of any role
type User struct {
	Model
	Username          string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email             string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	Name              string     `json:"name"`
	Role              string     `gorm:"size:20;index;not null" json:"role"`
	Status            string     `gorm:"size:20;index;not null;default:pending" json:"status"`
	ProfileImage      string     `json:"profile_image,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Address           string     `json:"address,omitempty"`
	SuspensionEndDate *time.Time `json:"suspension_end_date,omitempty"`
	SuspensionReason  string     `json:"suspension_reason,omitempty"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
}

// Admin is the moderation profile attached to a role=admin user
type Admin struct {
	Model
	UserID       uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Title        string     `json:"title"`
	LastActionAt *time.Time `json:"last_action_at,omitempty"`
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Product is a farmer listing, either a sheep or an oil lot
type Product struct {
	Model
	FarmerID uint   `gorm:"index;not null" json:"farmer_id"`
	Type     string `gorm:"size:10;index;not null" json:"type"`

	// sheep
	Price                 decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"price"`
	Weight                *float64            `json:"weight,omitempty"`
	HasMedicalCertificate bool                `json:"has_medical_certificate"`
	CertificatePath       string              `json:"certificate_path,omitempty"`

	// oil
	OilType  string   `gorm:"size:20" json:"oil_type,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`

	Description string `gorm:"type:text" json:"description"`
	ImagePath   string `json:"image_path,omitempty"`
	Status      string `gorm:"size:20;index;not null;default:available" json:"status"`
	Farmer      *User  `gorm:"foreignKey:FarmerID" json:"farmer,omitempty"`
}

// Consultation is a farmer's request for a vet to review some of their sheep
type Consultation struct {
	Model
	FarmerID     uint                      `gorm:"index;not null" json:"farmer_id"`
	VetID        uint                      `gorm:"index;not null" json:"vet_id"`
	SheepIDs     datatypes.JSONSlice[uint] `json:"sheep_ids"`
	Description  string                    `gorm:"type:text;not null" json:"description"`
	VideoPath    string                    `json:"video_path,omitempty"`
	Status       string                    `gorm:"size:20;index;not null;default:pending" json:"status"`
	VetResponse  string                    `gorm:"type:text" json:"vet_response,omitempty"`
	ResponseDate *time.Time                `json:"response_date,omitempty"`
	Farmer       *User                     `gorm:"foreignKey:FarmerID" json:"farmer,omitempty"`
	Vet          *User                     `gorm:"foreignKey:VetID" json:"vet,omitempty"`
}

// Message is a directed note between two users
type Message struct {
	Model
	SenderID   uint     `gorm:"index;not null" json:"sender_id"`
	ReceiverID uint     `gorm:"index;not null" json:"receiver_id"`
	Subject    string   `gorm:"not null" json:"subject"`
	Content    string   `gorm:"type:text;not null" json:"content"`
	IsRead     bool     `gorm:"not null;default:false" json:"is_read"`
	ProductID  *uint    `gorm:"index" json:"product_id,omitempty"`
	Sender     *User    `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver   *User    `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Product    *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// Reclamation is a support ticket (complaint)
type Reclamation struct {
	Model
	Reference        string                      `gorm:"size:32;uniqueIndex;not null" json:"reference"`
	Subject          string                      `gorm:"not null" json:"subject"`
	Description      string                      `gorm:"type:text;not null" json:"description"`
	Type             string                      `gorm:"size:20;not null;default:other" json:"type"`
	Status           string                      `gorm:"size:20;index;not null;default:pending" json:"status"`
	Priority         string                      `gorm:"size:20;not null;default:normal" json:"priority"`
	CreatorID        uint                        `gorm:"index;not null" json:"creator_id"`
	ResolverID       *uint                       `json:"resolver_id,omitempty"`
	AdminResponse    string                      `gorm:"type:text" json:"admin_response,omitempty"`
	ResolvedAt       *time.Time                  `json:"resolved_at,omitempty"`
	Attachments      datatypes.JSONSlice[string] `json:"attachments"`
	LastStatusUpdate time.Time                   `json:"last_status_update"`
	Creator          *User                       `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Resolver         *User                       `gorm:"foreignKey:ResolverID" json:"resolver,omitempty"`
}

// StatisticSlice is one wedge of a pie chart
type StatisticSlice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

// Statistic is admin-curated chart data, one row per product category
type Statistic struct {
	Model
	Category string                              `gorm:"size:64;uniqueIndex;not null" json:"category"`
	Title    string                              `json:"title"`
	Slices   datatypes.JSONSlice[StatisticSlice] `json:"slices"`
}

// Audit records one status write or moderation action
type Audit struct {
	Model
	UserID     *uint  `gorm:"index" json:"user_id"`
	Action     string `gorm:"size:64;not null" json:"action"`
	EntityType string `gorm:"size:32;index;not null" json:"entity_type"`
	EntityID   uint   `gorm:"index;not null" json:"entity_id"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	IPAddress  string `gorm:"size:64" json:"ip_address"`
	UserAgent  string `gorm:"size:255" json:"user_agent"`
}

// Constants for status values
const (
	// User roles
	RoleFarmer   = "farmer"
	RoleConsumer = "consumer"
	RoleVet      = "vet"
	RoleAdmin    = "admin"

	UserStatusPending   = "pending"
	UserStatusAccepted  = "accepted"
	UserStatusRejected  = "rejected"
	UserStatusSuspended = "suspended"

	ProductTypeSheep = "sheep"
	ProductTypeOil   = "oil"

	ProductStatusAvailable = "available"
	ProductStatusSoldOut   = "sold-out"
	ProductStatusSuspended = "suspended"

	OilTypeOlive     = "olive"
	OilTypeArgan     = "argan"
	OilTypeSunflower = "sunflower"
	OilTypeOther     = "other"

	ConsultationStatusPending    = "pending"
	ConsultationStatusInProgress = "in-progress"
	ConsultationStatusCompleted  = "completed"
	ConsultationStatusCancelled  = "cancelled"

	ReclamationStatusPending    = "pending"
	ReclamationStatusInProgress = "in-progress"
	ReclamationStatusResolved   = "resolved"
	ReclamationStatusClosed     = "closed"

	ReclamationTypeTechnical = "technical"
	ReclamationTypeProduct   = "product"
	ReclamationTypeService   = "service"
	ReclamationTypeOther     = "other"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Entity names used in audits and events
const (
	EntityUser         = "user"
	EntityProduct      = "product"
	EntityConsultation = "consultation"
	EntityMessage      = "message"
	EntityReclamation  = "reclamation"
	EntityStatistic    = "statistic"
)
