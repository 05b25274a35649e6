// Package workflow holds the status rules for users, products, consultations
// and reclamations. Functions here mutate the passed model in memory only;
// persisting it is the caller's job.
package workflow

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"agrimarket/utils"
)

// ErrIllegalTransition is wrapped by the Conflict returned in strict mode
var ErrIllegalTransition = errors.New("illegal status transition")

// Mode decides what happens to a transition missing from the table
type Mode int

const (
	// Lenient applies the transition and flags it
	Lenient Mode = iota
	// Strict rejects it with a Conflict
	Strict
)

// ModeFromStrict maps the WORKFLOW_STRICT setting
func ModeFromStrict(strict bool) Mode {
	if strict {
		return Strict
	}
	return Lenient
}

// Table lists, for each status, the statuses it may move to. Writing the
// current status again is always allowed.
type Table map[string][]string

// Statuses returns the known statuses of the table
func (t Table) Statuses() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	return out
}

// Has reports whether status is a known state
func (t Table) Has(status string) bool {
	_, ok := t[status]
	return ok
}

// Allows reports whether from -> to is in the table
func (t Table) Allows(from, to string) bool {
	if from == to {
		return t.Has(to)
	}
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition describes a status write that was checked against a table
type Transition struct {
	Entity  string
	From    string
	To      string
	Flagged bool
}

// Changed reports whether the status value actually moved
func (t Transition) Changed() bool { return t.From != t.To }

// AuditAction is the action name recorded for the transition
func (t Transition) AuditAction() string {
	if t.Flagged {
		return "status_change:flagged"
	}
	return "status_change"
}

// Check validates from -> to for entity. An unknown target status is a
// validation error in every mode.
func Check(table Table, entity, from, to string, mode Mode) (Transition, error) {
	tr := Transition{Entity: entity, From: from, To: to}
	if !table.Has(to) {
		return tr, utils.Validation(fmt.Sprintf("invalid %s status %q", entity, to), "status")
	}
	if from == "" || table.Allows(from, to) {
		return tr, nil
	}
	if mode == Strict {
		return tr, utils.Conflict(fmt.Sprintf("%s cannot move from %s to %s", entity, from, to), ErrIllegalTransition)
	}
	tr.Flagged = true
	log.Printf("⚠️ %s status %s -> %s is outside the transition table, applied anyway", entity, from, to)
	return tr, nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func validateEnum(field, value string, allowed ...string) error {
	if oneOf(value, allowed...) {
		return nil
	}
	return utils.Validation(fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")), field)
}
