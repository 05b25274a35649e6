// Package policy narrows queries to what the caller of a request may see.
// Every rule is a gorm scope over an explicit Session.
package policy

import (
	"gorm.io/gorm"

	"agrimarket/database"
)

// Session identifies the caller of a request. The zero value is an anonymous caller.
type Session struct {
	UserID uint
	Role   string
	Email  string
}

// Anonymous reports whether no user is attached
func (s Session) Anonymous() bool { return s.UserID == 0 }

func (s Session) IsAdmin() bool { return s.Role == database.RoleAdmin }

func (s Session) Is(role string) bool { return s.Role == role }

func none(db *gorm.DB) *gorm.DB { return db.Where("1 = 0") }

// acceptedFarmers is a subquery of the ids of accepted farmers
func acceptedFarmers(db *gorm.DB) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&database.User{}).
		Select("id").
		Where("role = ? AND status = ?", database.RoleFarmer, database.UserStatusAccepted)
}

// VisibleProducts: products of accepted farmers, plus a farmer's own
// products whatever their own status. Admins see everything.
func VisibleProducts(s Session) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s.IsAdmin() {
			return db
		}
		if s.Is(database.RoleFarmer) {
			return db.Where("products.farmer_id IN (?) OR products.farmer_id = ?", acceptedFarmers(db), s.UserID)
		}
		return db.Where("products.farmer_id IN (?)", acceptedFarmers(db))
	}
}

// VisibleUsers: admins see every account, everyone else only their own
func VisibleUsers(s Session) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s.IsAdmin() {
			return db
		}
		if s.Anonymous() {
			return none(db)
		}
		return db.Where("users.id = ?", s.UserID)
	}
}

// Message box filters
const (
	BoxAll      = ""
	BoxReceived = "received"
	BoxSent     = "sent"
)

// ValidBox reports whether box is a known message filter
func ValidBox(box string) bool {
	return box == BoxAll || box == BoxReceived || box == BoxSent
}

// VisibleMessages: messages where the caller is sender or receiver, narrowed by box
func VisibleMessages(s Session, box string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s.Anonymous() {
			return none(db)
		}
		switch box {
		case BoxReceived:
			return db.Where("messages.receiver_id = ?", s.UserID)
		case BoxSent:
			return db.Where("messages.sender_id = ?", s.UserID)
		default:
			return db.Where("messages.sender_id = ? OR messages.receiver_id = ?", s.UserID, s.UserID)
		}
	}
}

// VisibleConsultations: farmers see the ones they created, vets the ones
// addressed to them, admins all. Consumers see none.
func VisibleConsultations(s Session) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch s.Role {
		case database.RoleAdmin:
			return db
		case database.RoleFarmer:
			return db.Where("consultations.farmer_id = ?", s.UserID)
		case database.RoleVet:
			return db.Where("consultations.vet_id = ?", s.UserID)
		default:
			return none(db)
		}
	}
}

// VisibleReclamations: admins see all, others the ones they created
func VisibleReclamations(s Session) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s.IsAdmin() {
			return db
		}
		if s.Anonymous() {
			return none(db)
		}
		return db.Where("reclamations.creator_id = ?", s.UserID)
	}
}

// CanEditProduct: the owning farmer or an admin
func CanEditProduct(s Session, p *database.Product) bool {
	return s.IsAdmin() || (s.Is(database.RoleFarmer) && p.FarmerID == s.UserID)
}

// CanDeleteConsultation: consultations are only deleted administratively
func CanDeleteConsultation(s Session, _ *database.Consultation) bool {
	return s.IsAdmin()
}

// CanDeleteMessage: either party of the message
func CanDeleteMessage(s Session, m *database.Message) bool {
	return !s.Anonymous() && (m.SenderID == s.UserID || m.ReceiverID == s.UserID)
}
