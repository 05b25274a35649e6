package workflow

import (
	"strings"
	"time"

	"agrimarket/database"
	"agrimarket/utils"
)

// ConsultationTransitions: completed and cancelled are terminal.
var ConsultationTransitions = Table{
	database.ConsultationStatusPending: {
		database.ConsultationStatusInProgress,
		database.ConsultationStatusCompleted,
		database.ConsultationStatusCancelled,
	},
	database.ConsultationStatusInProgress: {
		database.ConsultationStatusCompleted,
		database.ConsultationStatusCancelled,
	},
	database.ConsultationStatusCompleted: {},
	database.ConsultationStatusCancelled: {},
}

// ResponseStatuses are the statuses a vet may set with a response
var ResponseStatuses = []string{database.ConsultationStatusInProgress, database.ConsultationStatusCompleted}

// NewConsultation validates and builds a pending consultation. Ownership of
// the sheep ids is checked by the caller against the store.
func NewConsultation(farmerID, vetID uint, sheepIDs []uint, description string) (*database.Consultation, error) {
	var missing []string
	if vetID == 0 {
		missing = append(missing, "vet_id")
	}
	if len(sheepIDs) == 0 {
		missing = append(missing, "sheep_ids")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, utils.Validation("missing required fields: "+strings.Join(missing, ", "), missing...)
	}

	seen := make(map[uint]bool, len(sheepIDs))
	ordered := make([]uint, 0, len(sheepIDs))
	for _, id := range sheepIDs {
		if id == 0 {
			return nil, utils.Validation("sheep_ids contains an invalid id", "sheep_ids")
		}
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	c := &database.Consultation{
		FarmerID:    farmerID,
		VetID:       vetID,
		Description: description,
		Status:      database.ConsultationStatusPending,
	}
	c.SheepIDs = ordered
	return c, nil
}

// SubmitResponse records the vet's answer: status, text and date are written together.
func SubmitResponse(c *database.Consultation, status, response string, now time.Time, mode Mode) (Transition, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return Transition{}, utils.Validation("response is required", "response")
	}
	if err := validateEnum("status", status, ResponseStatuses...); err != nil {
		return Transition{}, err
	}
	tr, err := Check(ConsultationTransitions, database.EntityConsultation, c.Status, status, mode)
	if err != nil {
		return tr, err
	}
	c.Status = status
	c.VetResponse = response
	at := now
	c.ResponseDate = &at
	return tr, nil
}

// ApplyConsultationStatus is the administrative status write (e.g. cancel)
func ApplyConsultationStatus(c *database.Consultation, next string, mode Mode) (Transition, error) {
	tr, err := Check(ConsultationTransitions, database.EntityConsultation, c.Status, next, mode)
	if err != nil {
		return tr, err
	}
	c.Status = next
	return tr, nil
}
