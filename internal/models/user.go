// internal/models/user.go
package models

import "time"

// User is the slice of the identity collaborator this system reads.
// Provisioning, passwords and membership live outside.
type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	EmailVerifiedAt *time.Time `json:"-"`
	PendingApproval bool       `json:"-"`
	ApprovedAt      *time.Time `json:"-"`
}

// EligibleForCuration applies the fan-out eligibility rule: verified email,
// not pending, approval timestamp present.
func (u *User) EligibleForCuration() bool {
	return u.EmailVerifiedAt != nil && !u.PendingApproval && u.ApprovedAt != nil
}
