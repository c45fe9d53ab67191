package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/models"
	"github.com/google/uuid"
)

// ======================================================================================
// Vaults

/*
DefineNewVault define a new vault together with its release policy and owner member

	@param ctx context.Context - execution context
	@param ownerID string - the creating user. Becomes owner and original owner.
	@param name string - vault name
	@param description string - vault description
	@param policyType models.PolicyTypeENUMType - release policy type
	@param releaseDate *time.Time - release date. TIME_BASED only.
	@param expiresAt *time.Time - expiry date. EXPIRY_BASED only.
	@param now time.Time - current time
	@returns the vault and its policy
*/
func (d *databaseImpl) DefineNewVault(
	ctx context.Context,
	ownerID string,
	name string,
	description string,
	policyType models.PolicyTypeENUMType,
	releaseDate *time.Time,
	expiresAt *time.Time,
	now time.Time,
) (models.Vault, models.VaultPolicy, error) {
	newVault := VaultDBEntry{
		Vault: models.Vault{
			ID:              uuid.NewString(),
			OwnerID:         ownerID,
			OriginalOwnerID: ownerID,
			Name:            name,
			Description:     description,
			Status:          models.VaultStatusActive,
		},
	}

	newPolicy := VaultPolicyDBEntry{
		VaultPolicy: models.VaultPolicy{
			ID:            uuid.NewString(),
			VaultID:       newVault.ID,
			PolicyType:    policyType,
			ReleaseStatus: policyType.InitialReleaseStatus(),
			ReleaseDate:   releaseDate,
			ExpiresAt:     expiresAt,
		},
	}
	if newPolicy.ReleaseStatus == models.ReleaseStatusReleased {
		released := now
		newPolicy.ReleasedAt = &released
	}

	if err := newPolicy.ValidateConfiguration(now); err != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"new vault '%s' release policy is not valid [%w]", name, err,
		)
	}

	if err := d.validator.Struct(&newVault); err != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"new vault '%s' is not valid [%w]", name, err,
		)
	}
	if err := d.validator.Struct(&newPolicy); err != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"new vault '%s' release policy entry is not valid [%w]", name, err,
		)
	}

	if tmp := d.db.Create(&newVault); tmp.Error != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"new vault '%s' failed insert [%w]", name, tmp.Error,
		)
	}
	if tmp := d.db.Create(&newPolicy); tmp.Error != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"new vault '%s' release policy failed insert [%w]", name, tmp.Error,
		)
	}

	// The owner is a member from the start
	if _, err := d.DefineNewMember(
		ctx, newVault.ID, ownerID, models.MemberPrivilegeOwner, ownerID, now,
	); err != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"new vault '%s' owner membership failed insert [%w]", name, err,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		newVault.ID, ownerID, models.VaultEventTypeVaultCreate, nil,
	); err != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"failed to log create vault '%s' audit event [%w]", name, err,
		)
	}

	return newVault.Vault, newPolicy.VaultPolicy, nil
}

// getVaultEntry find a vault by ID
func (d *databaseImpl) getVaultEntry(vaultID string) (VaultDBEntry, error) {
	var entry VaultDBEntry
	err := d.db.Where("id = ?", vaultID).First(&entry).Error
	return entry, err
}

/*
GetVault fetch a vault by ID

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@returns vault entry
*/
func (d *databaseImpl) GetVault(_ context.Context, vaultID string) (models.Vault, error) {
	entry, err := d.getVaultEntry(vaultID)
	if err != nil {
		return models.Vault{}, fmt.Errorf("failed to fetch vault %s [%w]", vaultID, err)
	}
	return entry.Vault, nil
}

/*
ListVaultsOwnedBy list vaults currently owned by a user

	@param ctx context.Context - execution context
	@param ownerID string - the owner user ID
	@returns list of vaults
*/
func (d *databaseImpl) ListVaultsOwnedBy(
	_ context.Context, ownerID string,
) ([]models.Vault, error) {
	var entries []VaultDBEntry
	if tmp := d.db.Where(
		"owner_id = ?", ownerID,
	).Order("created_at desc").Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list vaults owned by %s [%w]", ownerID, tmp.Error)
	}

	result := []models.Vault{}
	for _, entry := range entries {
		result = append(result, entry.Vault)
	}

	return result, nil
}

/*
UpdateVaultInfo update a vault's name and description

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param name string - new vault name
	@param description string - new vault description
	@param actorID string - the user performing the change
	@returns updated vault entry
*/
func (d *databaseImpl) UpdateVaultInfo(
	_ context.Context, vaultID string, name string, description string, actorID string,
) (models.Vault, error) {
	entry, err := d.getVaultEntry(vaultID)
	if err != nil {
		return models.Vault{}, fmt.Errorf("failed to fetch vault %s [%w]", vaultID, err)
	}

	entry.Name = name
	entry.Description = description
	if err := d.validator.Struct(&entry); err != nil {
		return models.Vault{}, fmt.Errorf("updated vault %s is not valid [%w]", vaultID, err)
	}
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Vault{}, fmt.Errorf("vault %s info update failed [%w]", vaultID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID, actorID, models.VaultEventTypeVaultUpdate, nil,
	); err != nil {
		return models.Vault{}, fmt.Errorf(
			"failed to log update vault %s audit event [%w]", vaultID, err,
		)
	}

	return entry.Vault, nil
}

/*
MarkVaultDeleted soft-delete a vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param actorID string - the user performing the delete
	@param now time.Time - current time
	@returns updated vault entry
*/
func (d *databaseImpl) MarkVaultDeleted(
	_ context.Context, vaultID string, actorID string, now time.Time,
) (models.Vault, error) {
	entry, err := d.getVaultEntry(vaultID)
	if err != nil {
		return models.Vault{}, fmt.Errorf("failed to fetch vault %s [%w]", vaultID, err)
	}

	if entry.Status == models.VaultStatusDeleted {
		// NOOP
		return entry.Vault, nil
	}

	entry.Status = models.VaultStatusDeleted
	deleted := now
	entry.DeletedAt = &deleted
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Vault{}, fmt.Errorf("vault %s soft-delete failed [%w]", vaultID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID, actorID, models.VaultEventTypeVaultDelete, nil,
	); err != nil {
		return models.Vault{}, fmt.Errorf(
			"failed to log delete vault %s audit event [%w]", vaultID, err,
		)
	}

	return entry.Vault, nil
}

/*
MarkVaultActive restore a soft-deleted vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param actorID string - the user performing the restore
	@returns updated vault entry
*/
func (d *databaseImpl) MarkVaultActive(
	_ context.Context, vaultID string, actorID string,
) (models.Vault, error) {
	entry, err := d.getVaultEntry(vaultID)
	if err != nil {
		return models.Vault{}, fmt.Errorf("failed to fetch vault %s [%w]", vaultID, err)
	}

	if entry.Status == models.VaultStatusActive {
		// NOOP
		return entry.Vault, nil
	}

	entry.Status = models.VaultStatusActive
	entry.DeletedAt = nil
	if tmp := d.db.Select("status", "deleted_at").Updates(&entry); tmp.Error != nil {
		return models.Vault{}, fmt.Errorf("vault %s restore failed [%w]", vaultID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID, actorID, models.VaultEventTypeVaultRestore, nil,
	); err != nil {
		return models.Vault{}, fmt.Errorf(
			"failed to log restore vault %s audit event [%w]", vaultID, err,
		)
	}

	return entry.Vault, nil
}

/*
HardDeleteVault permanently delete a vault and, through cascade, all its
policies, members, invites, items, and visibility entries

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
*/
func (d *databaseImpl) HardDeleteVault(_ context.Context, vaultID string) error {
	entry, err := d.getVaultEntry(vaultID)
	if err != nil {
		return fmt.Errorf("failed to fetch vault %s [%w]", vaultID, err)
	}

	if tmp := d.db.Delete(&entry); tmp.Error != nil {
		return fmt.Errorf("failed to delete vault %s [%w]", vaultID, tmp.Error)
	}

	return nil
}

// ======================================================================================
// Vault release policies

// getVaultPolicyEntry find the release policy of a vault
func (d *databaseImpl) getVaultPolicyEntry(vaultID string) (VaultPolicyDBEntry, error) {
	var entry VaultPolicyDBEntry
	err := d.db.Where("vault_id = ?", vaultID).First(&entry).Error
	return entry, err
}

/*
GetVaultPolicy fetch the release policy of a vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@returns policy entry
*/
func (d *databaseImpl) GetVaultPolicy(
	_ context.Context, vaultID string,
) (models.VaultPolicy, error) {
	entry, err := d.getVaultPolicyEntry(vaultID)
	if err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to fetch release policy of vault %s [%w]", vaultID, err,
		)
	}
	return entry.VaultPolicy, nil
}

/*
ReconfigureVaultPolicy replace the release policy configuration of a vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param policyType models.PolicyTypeENUMType - release policy type
	@param releaseDate *time.Time - release date. TIME_BASED only.
	@param expiresAt *time.Time - expiry date. EXPIRY_BASED only.
	@param actorID string - the user performing the change
	@param now time.Time - current time
	@returns updated policy entry
*/
func (d *databaseImpl) ReconfigureVaultPolicy(
	_ context.Context,
	vaultID string,
	policyType models.PolicyTypeENUMType,
	releaseDate *time.Time,
	expiresAt *time.Time,
	actorID string,
	now time.Time,
) (models.VaultPolicy, error) {
	entry, err := d.getVaultPolicyEntry(vaultID)
	if err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to fetch release policy of vault %s [%w]", vaultID, err,
		)
	}

	newStatus := policyType.InitialReleaseStatus()
	if err := entry.ValidateNextStatus(newStatus); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"release policy change of vault %s not allowed [%w]", vaultID, err,
		)
	}

	entry.PolicyType = policyType
	entry.ReleaseStatus = newStatus
	entry.ReleaseDate = releaseDate
	entry.ExpiresAt = expiresAt
	if newStatus == models.ReleaseStatusReleased {
		released := now
		entry.ReleasedAt = &released
	} else {
		entry.ReleasedAt = nil
		entry.ReleasedBy = nil
	}

	if err := entry.ValidateConfiguration(now); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"new release policy of vault %s is not valid [%w]", vaultID, err,
		)
	}

	if tmp := d.db.Select(
		"policy_type", "release_status", "release_date", "expires_at", "released_at", "released_by",
	).Updates(&entry); tmp.Error != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"release policy update of vault %s failed [%w]", vaultID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID, actorID, models.VaultEventTypePolicyUpdate, nil,
	); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to log release policy update audit event [%w]", err,
		)
	}

	return entry.VaultPolicy, nil
}

/*
SaveAdvancedVaultPolicy persist a release policy whose status was advanced
lazily by the policy state machine

	@param ctx context.Context - execution context
	@param policy models.VaultPolicy - the advanced policy
	@returns updated policy entry
*/
func (d *databaseImpl) SaveAdvancedVaultPolicy(
	_ context.Context, policy models.VaultPolicy,
) (models.VaultPolicy, error) {
	entry, err := d.getVaultPolicyEntry(policy.VaultID)
	if err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to fetch release policy of vault %s [%w]", policy.VaultID, err,
		)
	}

	if entry.ReleaseStatus == policy.ReleaseStatus {
		// Another caller observed the transition first
		return entry.VaultPolicy, nil
	}

	if err := entry.ValidateNextStatus(policy.ReleaseStatus); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"release policy advance of vault %s not allowed [%w]", policy.VaultID, err,
		)
	}

	entry.ReleaseStatus = policy.ReleaseStatus
	entry.ReleasedAt = policy.ReleasedAt
	if tmp := d.db.Select(
		"release_status", "released_at",
	).Updates(&entry); tmp.Error != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"release policy advance of vault %s failed [%w]", policy.VaultID, tmp.Error,
		)
	}

	// Record this event
	eventType := models.VaultEventTypePolicyRelease
	if policy.ReleaseStatus == models.ReleaseStatusExpired {
		eventType = models.VaultEventTypePolicyExpire
	}
	if _, err := d.defineNewVaultEvent(policy.VaultID, "", eventType, nil); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to log release policy advance audit event [%w]", err,
		)
	}

	return entry.VaultPolicy, nil
}

/*
ReleaseVaultPolicy manually release a vault's content

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param actorID string - the releasing user
	@param now time.Time - current time
	@returns updated policy entry
*/
func (d *databaseImpl) ReleaseVaultPolicy(
	_ context.Context, vaultID string, actorID string, now time.Time,
) (models.VaultPolicy, error) {
	entry, err := d.getVaultPolicyEntry(vaultID)
	if err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to fetch release policy of vault %s [%w]", vaultID, err,
		)
	}

	if entry.ReleaseStatus == models.ReleaseStatusReleased {
		// NOOP
		return entry.VaultPolicy, nil
	}

	if err := entry.ValidateNextStatus(models.ReleaseStatusReleased); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"manual release of vault %s not allowed [%w]", vaultID, err,
		)
	}

	entry.ReleaseStatus = models.ReleaseStatusReleased
	released := now
	entry.ReleasedAt = &released
	entry.ReleasedBy = &actorID
	if tmp := d.db.Select(
		"release_status", "released_at", "released_by",
	).Updates(&entry); tmp.Error != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"manual release of vault %s failed [%w]", vaultID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID, actorID, models.VaultEventTypePolicyRelease, nil,
	); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to log manual release audit event [%w]", err,
		)
	}

	return entry.VaultPolicy, nil
}

/*
RevokeVaultPolicy revoke access to a vault's content. Terminal.

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param actorID string - the revoking user
	@returns updated policy entry
*/
func (d *databaseImpl) RevokeVaultPolicy(
	_ context.Context, vaultID string, actorID string,
) (models.VaultPolicy, error) {
	entry, err := d.getVaultPolicyEntry(vaultID)
	if err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to fetch release policy of vault %s [%w]", vaultID, err,
		)
	}

	if entry.ReleaseStatus == models.ReleaseStatusRevoked {
		// NOOP
		return entry.VaultPolicy, nil
	}

	if err := entry.ValidateNextStatus(models.ReleaseStatusRevoked); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"revoke of vault %s not allowed [%w]", vaultID, err,
		)
	}

	entry.ReleaseStatus = models.ReleaseStatusRevoked
	if tmp := d.db.Select("release_status").Updates(&entry); tmp.Error != nil {
		return models.VaultPolicy{}, fmt.Errorf("revoke of vault %s failed [%w]", vaultID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID, actorID, models.VaultEventTypePolicyRevoke, nil,
	); err != nil {
		return models.VaultPolicy{}, fmt.Errorf("failed to log revoke audit event [%w]", err)
	}

	return entry.VaultPolicy, nil
}
