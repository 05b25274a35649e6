package workflow

import (
	"strings"
	"time"

	"agrimarket/database"
	"agrimarket/utils"
)

// ReclamationTransitions: closed is terminal, resolved may still be closed.
var ReclamationTransitions = Table{
	database.ReclamationStatusPending: {
		database.ReclamationStatusInProgress,
		database.ReclamationStatusResolved,
		database.ReclamationStatusClosed,
	},
	database.ReclamationStatusInProgress: {
		database.ReclamationStatusResolved,
		database.ReclamationStatusClosed,
	},
	database.ReclamationStatusResolved: {database.ReclamationStatusClosed},
	database.ReclamationStatusClosed:   {},
}

var (
	ReclamationTypes = []string{
		database.ReclamationTypeTechnical,
		database.ReclamationTypeProduct,
		database.ReclamationTypeService,
		database.ReclamationTypeOther,
	}
	Priorities = []string{database.PriorityLow, database.PriorityNormal, database.PriorityHigh, database.PriorityUrgent}
)

// ValidatePriority checks a priority value
func ValidatePriority(p string) error { return validateEnum("priority", p, Priorities...) }

// ValidateReclamationType checks a type value
func ValidateReclamationType(t string) error { return validateEnum("type", t, ReclamationTypes...) }

// NewReclamation validates input and builds a pending reclamation without a reference
func NewReclamation(creatorID uint, subject, description, kind, priority string, now time.Time) (*database.Reclamation, error) {
	subject = strings.TrimSpace(subject)
	description = strings.TrimSpace(description)
	var missing []string
	if subject == "" {
		missing = append(missing, "subject")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, utils.Validation("missing required fields: "+strings.Join(missing, ", "), missing...)
	}
	if kind == "" {
		kind = database.ReclamationTypeOther
	}
	if err := ValidateReclamationType(kind); err != nil {
		return nil, err
	}
	if priority == "" {
		priority = database.PriorityNormal
	}
	if err := ValidatePriority(priority); err != nil {
		return nil, err
	}
	return &database.Reclamation{
		Subject:          subject,
		Description:      description,
		Type:             kind,
		Priority:         priority,
		Status:           database.ReclamationStatusPending,
		CreatorID:        creatorID,
		LastStatusUpdate: now,
	}, nil
}

// ApplyReclamationStatus writes next. LastStatusUpdate is refreshed on every
// call; ResolvedAt is only set the first time the reclamation is resolved.
func ApplyReclamationStatus(r *database.Reclamation, next string, now time.Time, mode Mode) (Transition, error) {
	tr, err := Check(ReclamationTransitions, database.EntityReclamation, r.Status, next, mode)
	if err != nil {
		return tr, err
	}
	r.Status = next
	r.LastStatusUpdate = now
	if next == database.ReclamationStatusResolved && r.ResolvedAt == nil {
		at := now
		r.ResolvedAt = &at
	}
	return tr, nil
}
