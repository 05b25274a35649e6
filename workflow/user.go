package workflow

import (
	"fmt"
	"time"

	"agrimarket/database"
	"agrimarket/utils"
)

// UserTransitions is a complete graph: an admin may move any status to any other.
var UserTransitions = Table{
	database.UserStatusPending:   {database.UserStatusAccepted, database.UserStatusRejected, database.UserStatusSuspended},
	database.UserStatusAccepted:  {database.UserStatusPending, database.UserStatusRejected, database.UserStatusSuspended},
	database.UserStatusRejected:  {database.UserStatusPending, database.UserStatusAccepted, database.UserStatusSuspended},
	database.UserStatusSuspended: {database.UserStatusPending, database.UserStatusAccepted, database.UserStatusRejected},
}

// SelfRegisterRoles are the roles open to self-registration
var SelfRegisterRoles = []string{database.RoleFarmer, database.RoleConsumer, database.RoleVet}

// ValidateRole checks a role value
func ValidateRole(role string) error {
	return validateEnum("role", role, database.RoleFarmer, database.RoleConsumer, database.RoleVet, database.RoleAdmin)
}

// ApplySuspensionExpiry lifts an expired suspension. It reports whether the
// user changed.
func ApplySuspensionExpiry(u *database.User, now time.Time) bool {
	if u.Status != database.UserStatusSuspended || u.SuspensionEndDate == nil {
		return false
	}
	if u.SuspensionEndDate.After(now) {
		return false
	}
	u.Status = database.UserStatusAccepted
	u.SuspensionEndDate = nil
	u.SuspensionReason = ""
	return true
}

// LoginGate returns a Forbidden error explaining why a non-accepted user may not log in
func LoginGate(u *database.User) error {
	switch u.Status {
	case database.UserStatusAccepted:
		return nil
	case database.UserStatusPending:
		switch u.Role {
		case database.RoleFarmer:
			return utils.Forbidden("Your farmer account is awaiting approval by an administrator")
		case database.RoleVet:
			return utils.Forbidden("Your veterinarian account is awaiting verification by an administrator")
		default:
			return utils.Forbidden("Your account is awaiting approval by an administrator")
		}
	case database.UserStatusRejected:
		return utils.Forbidden("Your account request has been rejected. Please contact support")
	case database.UserStatusSuspended:
		msg := "Your account is suspended"
		if u.SuspensionEndDate != nil {
			msg += " until " + u.SuspensionEndDate.UTC().Format("2006-01-02 15:04 MST")
		} else {
			msg += " indefinitely"
		}
		if u.SuspensionReason != "" {
			msg += ". Reason: " + u.SuspensionReason
		}
		return utils.Forbidden(msg)
	default:
		return utils.Forbidden(fmt.Sprintf("Your account status %q does not allow login", u.Status))
	}
}

// UserStatusChange is an admin moderation request
type UserStatusChange struct {
	Status  string
	EndDate *time.Time
	Reason  string
}

// ApplyUserStatus moves u to change.Status. Suspension fields are only kept
// for the suspended status; an end date must lie in the future.
func ApplyUserStatus(u *database.User, change UserStatusChange, now time.Time, mode Mode) (Transition, error) {
	tr, err := Check(UserTransitions, database.EntityUser, u.Status, change.Status, mode)
	if err != nil {
		return tr, err
	}
	if change.Status == database.UserStatusSuspended {
		if change.EndDate != nil && !change.EndDate.After(now) {
			return tr, utils.Validation("suspension end date must be in the future", "suspension_end_date")
		}
		u.SuspensionEndDate = change.EndDate
		u.SuspensionReason = change.Reason
	} else {
		u.SuspensionEndDate = nil
		u.SuspensionReason = ""
	}
	u.Status = change.Status
	return tr, nil
}
