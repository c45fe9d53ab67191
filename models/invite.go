package models

import (
	"fmt"
	"time"
)

// InviteStatusENUMType invitation lifecycle status ENUM
type InviteStatusENUMType string

const (
	// InviteStatusPending invite created but not yet delivered
	InviteStatusPending InviteStatusENUMType = "PENDING"
	// InviteStatusSent invite delivered to the invitee
	InviteStatusSent InviteStatusENUMType = "SENT"
	// InviteStatusAccepted invite accepted. Terminal.
	InviteStatusAccepted InviteStatusENUMType = "ACCEPTED"
	// InviteStatusCancelled invite cancelled by the vault owner. Terminal.
	InviteStatusCancelled InviteStatusENUMType = "CANCELLED"
	// InviteStatusExpired invite passed its expiry unaccepted. Terminal.
	InviteStatusExpired InviteStatusENUMType = "EXPIRED"
)

// Invite a bearer-token offer of vault membership at a given privilege
//
// The bearer token itself is returned to the caller exactly once; only its
// one-way hash is ever persisted.
type Invite struct {
	// ID invite entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// VaultID the vault being offered
	VaultID string `json:"vault_id" gorm:"column:vault_id;not null" validate:"required,uuid_rfc4122"`
	// InviterID the user who issued the invite
	InviterID string `json:"inviter_id" gorm:"column:inviter_id;not null" validate:"required"`
	// InviteeEmail the email address the invite was issued against
	InviteeEmail string `json:"invitee_email" gorm:"column:invitee_email;not null" validate:"required,email"`
	// InviteeID the invitee's user ID, resolved lazily at acceptance
	InviteeID *string `json:"invitee_id,omitempty" gorm:"column:invitee_id;default:null"`

	// Privilege the membership role offered
	Privilege MemberPrivilegeENUMType `json:"privilege" gorm:"column:privilege;not null" validate:"required,member_privilege"`
	// Status invite lifecycle status
	Status InviteStatusENUMType `json:"status" gorm:"column:status;not null" validate:"required,invite_status"`

	// TokenHash one-way hash of the bearer token
	TokenHash string `json:"-" gorm:"column:token_hash;not null;index" validate:"required"`
	// ExpiresAt when the invite stops being acceptable
	ExpiresAt time.Time `json:"expires_at" gorm:"column:expires_at;not null" validate:"required"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateNextStatus verify can transition to new invite status
func (i *Invite) ValidateNextStatus(newStatus InviteStatusENUMType) error {
	statusesWithTransitions := map[InviteStatusENUMType]map[InviteStatusENUMType]bool{
		InviteStatusPending: {
			InviteStatusPending:   true,
			InviteStatusSent:      true,
			InviteStatusAccepted:  true,
			InviteStatusCancelled: true,
			InviteStatusExpired:   true,
		},
		InviteStatusSent: {
			InviteStatusSent:      true,
			InviteStatusAccepted:  true,
			InviteStatusCancelled: true,
			InviteStatusExpired:   true,
		},
	}

	availableNextStatuses, ok := statusesWithTransitions[i.Status]
	if !ok {
		return fmt.Errorf("invite can't transition out of state '%s'", i.Status)
	}

	if _, ok := availableNextStatuses[newStatus]; !ok {
		return fmt.Errorf("invite can't transition from '%s' to '%s'", i.Status, newStatus)
	}

	return nil
}

// InTerminalStatus whether the invite can no longer change status
func (i *Invite) InTerminalStatus() bool {
	switch i.Status {
	case InviteStatusAccepted:
		fallthrough
	case InviteStatusCancelled:
		fallthrough
	case InviteStatusExpired:
		return true
	}
	return false
}

// ExpiredBy whether the invite has passed its expiry at the given time
func (i *Invite) ExpiredBy(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
