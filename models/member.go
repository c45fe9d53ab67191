package models

import "time"

// MemberPrivilegeENUMType vault-wide member role ENUM
type MemberPrivilegeENUMType string

const (
	// MemberPrivilegeOwner the vault owner. Exactly one active owner per vault.
	MemberPrivilegeOwner MemberPrivilegeENUMType = "OWNER"
	// MemberPrivilegeAdmin a vault administrator
	MemberPrivilegeAdmin MemberPrivilegeENUMType = "ADMIN"
	// MemberPrivilegeMember a regular vault member
	MemberPrivilegeMember MemberPrivilegeENUMType = "MEMBER"
)

// MemberStatusENUMType member lifecycle status ENUM
type MemberStatusENUMType string

const (
	// MemberStatusActive member currently belongs to the vault
	MemberStatusActive MemberStatusENUMType = "ACTIVE"
	// MemberStatusLeft member left the vault on their own
	MemberStatusLeft MemberStatusENUMType = "LEFT"
	// MemberStatusRemoved member was removed from the vault
	MemberStatusRemoved MemberStatusENUMType = "REMOVED"
)

// Member one user's membership of one vault
//
// At most one row exists per (vault, user) pair. Left and removed rows are
// reactivated on re-invite instead of inserting a second row.
type Member struct {
	// ID member entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// VaultID the vault this membership belongs to
	VaultID string `json:"vault_id" gorm:"column:vault_id;not null;index:idx_member_vault_user,unique" validate:"required,uuid_rfc4122"`
	// UserID the member's user ID
	UserID string `json:"user_id" gorm:"column:user_id;not null;index:idx_member_vault_user,unique" validate:"required"`

	// Privilege the member's vault-wide role
	Privilege MemberPrivilegeENUMType `json:"privilege" gorm:"column:privilege;not null" validate:"required,member_privilege"`
	// Status membership lifecycle status
	Status MemberStatusENUMType `json:"status" gorm:"column:status;not null" validate:"required,member_status"`

	// JoinedAt when the member joined, or last rejoined
	JoinedAt time.Time `json:"joined_at" gorm:"column:joined_at;not null"`
	// LeftAt when the member last left
	LeftAt *time.Time `json:"left_at,omitempty" gorm:"column:left_at;default:null"`
	// RemovedAt when the member was last removed
	RemovedAt *time.Time `json:"removed_at,omitempty" gorm:"column:removed_at;default:null"`

	// AddedBy the user who invited or created this member
	AddedBy string `json:"added_by" gorm:"column:added_by;not null" validate:"required"`
	// RemovedBy the user who removed this member
	RemovedBy *string `json:"removed_by,omitempty" gorm:"column:removed_by;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// User a resolved platform user. Identity resolution is external to this module.
type User struct {
	// ID user ID
	ID string `json:"id" validate:"required"`
	// Email the user's verified email address
	Email string `json:"email" validate:"required,email"`
	// Name display name
	Name string `json:"name"`
}
