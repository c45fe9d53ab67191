package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// VaultEventTypeENUMType vault activity event type ENUM
type VaultEventTypeENUMType string

const (
	// VaultEventTypeVaultCreate vault was created
	VaultEventTypeVaultCreate VaultEventTypeENUMType = "VAULT_CREATE"

	// VaultEventTypeVaultUpdate vault name or description changed
	VaultEventTypeVaultUpdate VaultEventTypeENUMType = "VAULT_UPDATE"

	// VaultEventTypeVaultDelete vault was soft-deleted
	VaultEventTypeVaultDelete VaultEventTypeENUMType = "VAULT_DELETE"

	// VaultEventTypeVaultRestore vault was restored from soft-delete
	VaultEventTypeVaultRestore VaultEventTypeENUMType = "VAULT_RESTORE"

	// VaultEventTypePolicyUpdate vault release policy configuration changed
	VaultEventTypePolicyUpdate VaultEventTypeENUMType = "POLICY_UPDATE"

	// VaultEventTypePolicyRelease vault content was released
	VaultEventTypePolicyRelease VaultEventTypeENUMType = "POLICY_RELEASE"

	// VaultEventTypePolicyExpire vault content access window closed
	VaultEventTypePolicyExpire VaultEventTypeENUMType = "POLICY_EXPIRE"

	// VaultEventTypePolicyRevoke vault content access was revoked
	VaultEventTypePolicyRevoke VaultEventTypeENUMType = "POLICY_REVOKE"

	// VaultEventTypeInviteCreate invite was issued
	VaultEventTypeInviteCreate VaultEventTypeENUMType = "INVITE_CREATE"

	// VaultEventTypeInviteResend invite was resent with a rotated token
	VaultEventTypeInviteResend VaultEventTypeENUMType = "INVITE_RESEND"

	// VaultEventTypeInviteCancel invite was cancelled
	VaultEventTypeInviteCancel VaultEventTypeENUMType = "INVITE_CANCEL"

	// VaultEventTypeInviteExpire invite passed its expiry unaccepted
	VaultEventTypeInviteExpire VaultEventTypeENUMType = "INVITE_EXPIRE"

	// VaultEventTypeInviteAccept invite was accepted
	VaultEventTypeInviteAccept VaultEventTypeENUMType = "INVITE_ACCEPT"

	// VaultEventTypeMemberPrivilegeChange member privilege changed
	VaultEventTypeMemberPrivilegeChange VaultEventTypeENUMType = "MEMBER_PRIVILEGE_CHANGE"

	// VaultEventTypeMemberRemove member was removed from the vault
	VaultEventTypeMemberRemove VaultEventTypeENUMType = "MEMBER_REMOVE"

	// VaultEventTypeMemberLeave member left the vault
	VaultEventTypeMemberLeave VaultEventTypeENUMType = "MEMBER_LEAVE"

	// VaultEventTypeOwnershipTransfer vault ownership moved to another member
	VaultEventTypeOwnershipTransfer VaultEventTypeENUMType = "OWNERSHIP_TRANSFER"

	// VaultEventTypeItemCreate item was created
	VaultEventTypeItemCreate VaultEventTypeENUMType = "ITEM_CREATE"

	// VaultEventTypeItemUpdate item was updated
	VaultEventTypeItemUpdate VaultEventTypeENUMType = "ITEM_UPDATE"

	// VaultEventTypeItemDelete item was soft-deleted
	VaultEventTypeItemDelete VaultEventTypeENUMType = "ITEM_DELETE"

	// VaultEventTypeItemRestore item was restored from soft-delete
	VaultEventTypeItemRestore VaultEventTypeENUMType = "ITEM_RESTORE"

	// VaultEventTypeVisibilityReplace an item's visibility table was replaced
	VaultEventTypeVisibilityReplace VaultEventTypeENUMType = "VISIBILITY_REPLACE"

	// VaultEventTypeAccountPurge a user account's vault data was purged
	VaultEventTypeAccountPurge VaultEventTypeENUMType = "ACCOUNT_PURGE"
)

// VaultEventAudit append-only recording of vault activity
type VaultEventAudit struct {
	// ID audit entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`
	// VaultID the vault the event occurred in. Empty for account-level events.
	VaultID string `json:"vault_id,omitempty" gorm:"column:vault_id;index;default:null"`
	// ActorUserID the user who performed the action. Empty for lazy transitions.
	ActorUserID string `json:"actor_user_id,omitempty" gorm:"column:actor_user_id;default:null"`
	// EventType vault event type
	EventType VaultEventTypeENUMType `json:"type" gorm:"column:type;not null" validate:"required,vault_event_type"`
	// Metadata metadata relating to the event
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`
	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseMetadata parse the metadata based on the event type
func (a VaultEventAudit) ParseMetadata(validator *validator.Validate) (interface{}, error) {
	switch a.EventType {
	// Invite related vault audit events
	case VaultEventTypeInviteCreate:
		fallthrough
	case VaultEventTypeInviteResend:
		fallthrough
	case VaultEventTypeInviteCancel:
		fallthrough
	case VaultEventTypeInviteExpire:
		fallthrough
	case VaultEventTypeInviteAccept:
		var parsed VaultEventInviteRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("vault event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	// Membership related vault audit events
	case VaultEventTypeMemberPrivilegeChange:
		fallthrough
	case VaultEventTypeMemberRemove:
		fallthrough
	case VaultEventTypeMemberLeave:
		fallthrough
	case VaultEventTypeOwnershipTransfer:
		var parsed VaultEventMemberRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("vault event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	// Item related vault audit events
	case VaultEventTypeItemCreate:
		fallthrough
	case VaultEventTypeItemUpdate:
		fallthrough
	case VaultEventTypeItemDelete:
		fallthrough
	case VaultEventTypeItemRestore:
		fallthrough
	case VaultEventTypeVisibilityReplace:
		var parsed VaultEventItemRelated
		if err := json.Unmarshal(a.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("vault event '%s' metadata parse failed [%w]", a.EventType, err)
		}
		return parsed, validator.Struct(&parsed)
	}
	return nil, nil
}

// VaultEventInviteRelated vault event metadata related to an invite
type VaultEventInviteRelated struct {
	// InviteID the invite entry ID
	InviteID string `json:"invite_id" validate:"required,uuid_rfc4122"`
	// InviteeEmail the email the invite was issued against
	InviteeEmail string `json:"invitee_email" validate:"required,email"`
}

// VaultEventMemberRelated vault event metadata related to a member
type VaultEventMemberRelated struct {
	// MemberID the member entry ID
	MemberID string `json:"member_id" validate:"required,uuid_rfc4122"`
	// MemberUserID the member's user ID
	MemberUserID string `json:"member_user_id" validate:"required"`
}

// VaultEventItemRelated vault event metadata related to an item
type VaultEventItemRelated struct {
	// ItemID the item ID
	ItemID string `json:"item_id" validate:"required,uuid_rfc4122"`
	// ItemTitle the item title
	ItemTitle string `json:"item_title" validate:"required"`
}
