// Package models - vault system data models
package models

import (
	"fmt"
	"time"
)

// VaultStatusENUMType vault status ENUM
type VaultStatusENUMType string

const (
	// VaultStatusActive vault is active
	VaultStatusActive VaultStatusENUMType = "ACTIVE"
	// VaultStatusDeleted vault is soft-deleted
	VaultStatusDeleted VaultStatusENUMType = "DELETED"
)

// PolicyTypeENUMType vault release policy type ENUM
type PolicyTypeENUMType string

const (
	// PolicyTypeImmediate vault content is accessible immediately
	PolicyTypeImmediate PolicyTypeENUMType = "IMMEDIATE"
	// PolicyTypeTimeBased vault content becomes accessible after a release date
	PolicyTypeTimeBased PolicyTypeENUMType = "TIME_BASED"
	// PolicyTypeExpiryBased vault content is accessible until an expiry date
	PolicyTypeExpiryBased PolicyTypeENUMType = "EXPIRY_BASED"
	// PolicyTypeManualRelease vault content is accessible only after an explicit owner release
	PolicyTypeManualRelease PolicyTypeENUMType = "MANUAL_RELEASE"
)

// ReleaseStatusENUMType vault release status ENUM
type ReleaseStatusENUMType string

const (
	// ReleaseStatusPending vault content is not yet released
	ReleaseStatusPending ReleaseStatusENUMType = "PENDING"
	// ReleaseStatusReleased vault content is released
	ReleaseStatusReleased ReleaseStatusENUMType = "RELEASED"
	// ReleaseStatusExpired vault content access window has closed. Terminal.
	ReleaseStatusExpired ReleaseStatusENUMType = "EXPIRED"
	// ReleaseStatusRevoked vault content access was revoked by the owner. Terminal.
	ReleaseStatusRevoked ReleaseStatusENUMType = "REVOKED"
)

// Vault a container of secret items shared among members under one release policy
type Vault struct {
	// ID vault ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// OwnerID the current vault owner. Changes on ownership transfer.
	OwnerID string `json:"owner_id" gorm:"column:owner_id;not null" validate:"required"`
	// OriginalOwnerID the user who created the vault. Immutable.
	OriginalOwnerID string `json:"original_owner_id" gorm:"column:original_owner_id;not null" validate:"required"`

	// Name vault name
	Name string `json:"name" gorm:"column:name;not null" validate:"required"`
	// Description vault description
	Description string `json:"description" gorm:"column:description"`

	// Status vault status
	Status VaultStatusENUMType `json:"status" gorm:"column:status;not null" validate:"required,vault_status"`
	// DeletedAt soft-delete timestamp. Set only when Status is DELETED.
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"column:deleted_at;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// VaultPolicy the release policy attached to a vault. One per vault.
type VaultPolicy struct {
	// ID policy entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required,uuid_rfc4122"`

	// VaultID the vault this policy governs
	VaultID string `json:"vault_id" gorm:"column:vault_id;not null;unique" validate:"required,uuid_rfc4122"`

	// PolicyType release policy type
	PolicyType PolicyTypeENUMType `json:"policy_type" gorm:"column:policy_type;not null" validate:"required,policy_type"`
	// ReleaseStatus current release status
	ReleaseStatus ReleaseStatusENUMType `json:"release_status" gorm:"column:release_status;not null" validate:"required,release_status"`

	// ReleaseDate when content becomes accessible. TIME_BASED only.
	ReleaseDate *time.Time `json:"release_date,omitempty" gorm:"column:release_date;default:null"`
	// ExpiresAt when content stops being accessible. EXPIRY_BASED only.
	ExpiresAt *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at;default:null"`

	// ReleasedAt when the policy transitioned to RELEASED
	ReleasedAt *time.Time `json:"released_at,omitempty" gorm:"column:released_at;default:null"`
	// ReleasedBy the user who triggered a manual release
	ReleasedBy *string `json:"released_by,omitempty" gorm:"column:released_by;default:null"`

	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// InitialReleaseStatus the release status a newly created policy of this type starts in
func (t PolicyTypeENUMType) InitialReleaseStatus() ReleaseStatusENUMType {
	switch t {
	case PolicyTypeImmediate:
		fallthrough
	case PolicyTypeExpiryBased:
		return ReleaseStatusReleased
	default:
		return ReleaseStatusPending
	}
}

// ValidateNextStatus verify can transition to new release status
func (p *VaultPolicy) ValidateNextStatus(newStatus ReleaseStatusENUMType) error {
	statusesWithTransitions := map[ReleaseStatusENUMType]map[ReleaseStatusENUMType]bool{
		ReleaseStatusPending: {
			ReleaseStatusPending:  true,
			ReleaseStatusReleased: true,
			ReleaseStatusExpired:  true,
			ReleaseStatusRevoked:  true,
		},
		ReleaseStatusReleased: {
			ReleaseStatusReleased: true,
			ReleaseStatusExpired:  true,
			ReleaseStatusRevoked:  true,
		},
	}

	availableNextStatuses, ok := statusesWithTransitions[p.ReleaseStatus]
	if !ok {
		return fmt.Errorf("release policy can't transition out of state '%s'", p.ReleaseStatus)
	}

	if _, ok := availableNextStatuses[newStatus]; !ok {
		return fmt.Errorf(
			"release policy can't transition from '%s' to '%s'", p.ReleaseStatus, newStatus,
		)
	}

	return nil
}

/*
ValidateConfiguration verify the policy date fields agree with the policy type

	@param now time.Time - current time
	@return nil if the configuration is usable
*/
func (p *VaultPolicy) ValidateConfiguration(now time.Time) error {
	switch p.PolicyType {
	case PolicyTypeTimeBased:
		if p.ReleaseDate == nil {
			return fmt.Errorf("time-based release policy requires a release date")
		}
		if !p.ReleaseDate.After(now) {
			return fmt.Errorf("time-based release policy release date must be in the future")
		}

	case PolicyTypeExpiryBased:
		if p.ExpiresAt == nil {
			return fmt.Errorf("expiry-based release policy requires an expiry date")
		}
		if !p.ExpiresAt.After(now) {
			return fmt.Errorf("expiry-based release policy expiry date must be in the future")
		}

	default:
		if p.ReleaseDate != nil || p.ExpiresAt != nil {
			return fmt.Errorf(
				"release policy type '%s' does not take release or expiry dates", p.PolicyType,
			)
		}
	}

	return nil
}

/*
Advance apply any time-based release status transition which is due

Lazy evaluation support. The caller decides when to check, and persists the
policy if a transition fired.

	@param now time.Time - current time
	@return whether the release status changed
*/
func (p *VaultPolicy) Advance(now time.Time) bool {
	switch p.PolicyType {
	case PolicyTypeTimeBased:
		if p.ReleaseDate == nil {
			return false
		}
		if p.ReleaseStatus == ReleaseStatusPending && !now.Before(*p.ReleaseDate) {
			p.ReleaseStatus = ReleaseStatusReleased
			released := now
			p.ReleasedAt = &released
			return true
		}

	case PolicyTypeExpiryBased:
		if p.ExpiresAt == nil {
			return false
		}
		if p.ReleaseStatus == ReleaseStatusReleased && now.After(*p.ExpiresAt) {
			p.ReleaseStatus = ReleaseStatusExpired
			return true
		}
	}

	return false
}

/*
Accessible whether the vault content is accessible to a non-owner member

Call Advance first. The vault owner is never gated by this.

	@param now time.Time - current time
	@return whether the content is accessible
*/
func (p *VaultPolicy) Accessible(now time.Time) bool {
	if p.ReleaseStatus != ReleaseStatusReleased {
		return false
	}
	if p.PolicyType == PolicyTypeExpiryBased && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}

// RestoreWindow how long after a soft-delete a vault or item may still be restored
const RestoreWindow = 30 * 24 * time.Hour

/*
CanRestore whether a soft-deleted entity is still within its restore window

	@param deletedAt *time.Time - the soft-delete timestamp
	@param now time.Time - current time
	@return whether a restore is still allowed
*/
func CanRestore(deletedAt *time.Time, now time.Time) bool {
	if deletedAt == nil {
		return false
	}
	return now.Sub(*deletedAt) <= RestoreWindow
}
