package db

import "github.com/alwitt/covault/models"

// --------------------------------------------------------------------------------------
// Vault audit events

// VaultEventAuditDBEntry vault audit event DB entry
type VaultEventAuditDBEntry struct {
	models.VaultEventAudit
}

// TableName hard code table name
func (VaultEventAuditDBEntry) TableName() string {
	return "vault_audit_events"
}

// --------------------------------------------------------------------------------------
// System parameters

// SystemParamsDBEntry system parameter DB entry
type SystemParamsDBEntry struct {
	models.SystemParams
}

// TableName hard code table name
func (SystemParamsDBEntry) TableName() string {
	return "system_params"
}

// --------------------------------------------------------------------------------------
// Vaults

// VaultDBEntry vault DB entry
type VaultDBEntry struct {
	models.Vault
}

// TableName hard code table name
func (VaultDBEntry) TableName() string {
	return "vaults"
}

// VaultPolicyDBEntry vault release policy DB entry
type VaultPolicyDBEntry struct {
	models.VaultPolicy
	Vault VaultDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:VaultID" validate:"-"`
}

// TableName hard code table name
func (VaultPolicyDBEntry) TableName() string {
	return "vault_policies"
}

// --------------------------------------------------------------------------------------
// Members

// MemberDBEntry vault member DB entry
type MemberDBEntry struct {
	models.Member
	Vault VaultDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:VaultID" validate:"-"`
}

// TableName hard code table name
func (MemberDBEntry) TableName() string {
	return "vault_members"
}

// --------------------------------------------------------------------------------------
// Invites

// InviteDBEntry vault invite DB entry
type InviteDBEntry struct {
	models.Invite
	Vault VaultDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:VaultID" validate:"-"`
}

// TableName hard code table name
func (InviteDBEntry) TableName() string {
	return "vault_invites"
}

// --------------------------------------------------------------------------------------
// Items

// ItemDBEntry vault item DB entry
type ItemDBEntry struct {
	models.Item
	Vault VaultDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:VaultID" validate:"-"`
}

// TableName hard code table name
func (ItemDBEntry) TableName() string {
	return "vault_items"
}

// ItemDetailDBEntry encrypted item payload DB entry
type ItemDetailDBEntry struct {
	models.ItemDetail
	Item ItemDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:ItemID" validate:"-"`
}

// TableName hard code table name
func (ItemDetailDBEntry) TableName() string {
	return "vault_item_details"
}

// ItemVisibilityDBEntry per-item member permission DB entry
type ItemVisibilityDBEntry struct {
	models.ItemVisibility
	Item   ItemDBEntry   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ItemID" validate:"-"`
	Member MemberDBEntry `gorm:"constraint:OnDelete:CASCADE;foreignKey:MemberID" validate:"-"`
}

// TableName hard code table name
func (ItemVisibilityDBEntry) TableName() string {
	return "vault_item_visibilities"
}
