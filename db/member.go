package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/models"
	"github.com/google/uuid"
)

/*
DefineNewMember define a new vault member

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param userID string - the member's user ID
	@param privilege models.MemberPrivilegeENUMType - vault-wide role
	@param addedBy string - the inviting user
	@param now time.Time - current time
	@returns member entry
*/
func (d *databaseImpl) DefineNewMember(
	_ context.Context,
	vaultID string,
	userID string,
	privilege models.MemberPrivilegeENUMType,
	addedBy string,
	now time.Time,
) (models.Member, error) {
	newEntry := MemberDBEntry{
		Member: models.Member{
			ID:        uuid.NewString(),
			VaultID:   vaultID,
			UserID:    userID,
			Privilege: privilege,
			Status:    models.MemberStatusActive,
			JoinedAt:  now,
			AddedBy:   addedBy,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Member{}, fmt.Errorf(
			"new member of vault %s is not valid [%w]", vaultID, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Member{}, fmt.Errorf(
			"new member of vault %s failed insert [%w]", vaultID, tmp.Error,
		)
	}

	return newEntry.Member, nil
}

/*
GetMember fetch a vault member by (vault, user) pair

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param userID string - the member's user ID
	@returns member entry
*/
func (d *databaseImpl) GetMember(
	_ context.Context, vaultID string, userID string,
) (models.Member, error) {
	var entry MemberDBEntry
	if tmp := d.db.Where(
		"vault_id = ? AND user_id = ?", vaultID, userID,
	).First(&entry); tmp.Error != nil {
		return models.Member{}, fmt.Errorf(
			"failed to fetch member of vault %s for user %s [%w]", vaultID, userID, tmp.Error,
		)
	}
	return entry.Member, nil
}

// getMemberEntry find a vault member by entry ID
func (d *databaseImpl) getMemberEntry(memberID string) (MemberDBEntry, error) {
	var entry MemberDBEntry
	err := d.db.Where("id = ?", memberID).First(&entry).Error
	return entry, err
}

/*
GetMemberByID fetch a vault member by entry ID

	@param ctx context.Context - execution context
	@param memberID string - member entry ID
	@returns member entry
*/
func (d *databaseImpl) GetMemberByID(
	_ context.Context, memberID string,
) (models.Member, error) {
	entry, err := d.getMemberEntry(memberID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to fetch member %s [%w]", memberID, err)
	}
	return entry.Member, nil
}

/*
ListVaultMembers list members of a vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param filters MemberQueryFilter - entry listing filter
	@return list of members
*/
func (d *databaseImpl) ListVaultMembers(
	_ context.Context, vaultID string, filters MemberQueryFilter,
) ([]models.Member, error) {
	query := d.db.Model(&MemberDBEntry{}).Where("vault_id = ?", vaultID)

	if len(filters.TargetStatuses) > 0 {
		query = query.Where("status in ?", filters.TargetStatuses)
	}
	if len(filters.TargetPrivileges) > 0 {
		query = query.Where("privilege in ?", filters.TargetPrivileges)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("joined_at")

	var entries []MemberDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list members of vault %s [%w]", vaultID, tmp.Error)
	}

	result := []models.Member{}
	for _, entry := range entries {
		result = append(result, entry.Member)
	}

	return result, nil
}

/*
ListMembershipsOfUser list all memberships of one user across vaults

	@param ctx context.Context - execution context
	@param userID string - the user ID
	@param filters MemberQueryFilter - entry listing filter
	@return list of members
*/
func (d *databaseImpl) ListMembershipsOfUser(
	_ context.Context, userID string, filters MemberQueryFilter,
) ([]models.Member, error) {
	query := d.db.Model(&MemberDBEntry{}).Where("user_id = ?", userID)

	if len(filters.TargetStatuses) > 0 {
		query = query.Where("status in ?", filters.TargetStatuses)
	}
	if len(filters.TargetPrivileges) > 0 {
		query = query.Where("privilege in ?", filters.TargetPrivileges)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("joined_at")

	var entries []MemberDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list memberships of user %s [%w]", userID, tmp.Error)
	}

	result := []models.Member{}
	for _, entry := range entries {
		result = append(result, entry.Member)
	}

	return result, nil
}

/*
UpdateMemberPrivilege change a member's vault-wide role

	@param ctx context.Context - execution context
	@param memberID string - member entry ID
	@param newPrivilege models.MemberPrivilegeENUMType - the new role
	@param actorID string - the user performing the change
	@returns updated member entry
*/
func (d *databaseImpl) UpdateMemberPrivilege(
	_ context.Context,
	memberID string,
	newPrivilege models.MemberPrivilegeENUMType,
	actorID string,
) (models.Member, error) {
	entry, err := d.getMemberEntry(memberID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to fetch member %s [%w]", memberID, err)
	}

	if entry.Privilege == newPrivilege {
		// NOOP
		return entry.Member, nil
	}

	entry.Privilege = newPrivilege
	if err := d.validator.Struct(&entry); err != nil {
		return models.Member{}, fmt.Errorf("updated member %s is not valid [%w]", memberID, err)
	}
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Member{}, fmt.Errorf(
			"member %s privilege update failed [%w]", memberID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		actorID,
		models.VaultEventTypeMemberPrivilegeChange,
		models.VaultEventMemberRelated{MemberID: entry.ID, MemberUserID: entry.UserID},
	); err != nil {
		return models.Member{}, fmt.Errorf(
			"failed to log member privilege change audit event [%w]", err,
		)
	}

	return entry.Member, nil
}

/*
MarkMemberRemoved mark a member removed from the vault

	@param ctx context.Context - execution context
	@param memberID string - member entry ID
	@param removedBy string - the removing user
	@param now time.Time - current time
	@returns updated member entry
*/
func (d *databaseImpl) MarkMemberRemoved(
	_ context.Context, memberID string, removedBy string, now time.Time,
) (models.Member, error) {
	entry, err := d.getMemberEntry(memberID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to fetch member %s [%w]", memberID, err)
	}

	if entry.Status == models.MemberStatusRemoved {
		// NOOP
		return entry.Member, nil
	}

	entry.Status = models.MemberStatusRemoved
	removed := now
	entry.RemovedAt = &removed
	entry.RemovedBy = &removedBy
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Member{}, fmt.Errorf("member %s removal failed [%w]", memberID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		removedBy,
		models.VaultEventTypeMemberRemove,
		models.VaultEventMemberRelated{MemberID: entry.ID, MemberUserID: entry.UserID},
	); err != nil {
		return models.Member{}, fmt.Errorf("failed to log member removal audit event [%w]", err)
	}

	return entry.Member, nil
}

/*
MarkMemberLeft mark a member as having left the vault

	@param ctx context.Context - execution context
	@param memberID string - member entry ID
	@param now time.Time - current time
	@returns updated member entry
*/
func (d *databaseImpl) MarkMemberLeft(
	_ context.Context, memberID string, now time.Time,
) (models.Member, error) {
	entry, err := d.getMemberEntry(memberID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to fetch member %s [%w]", memberID, err)
	}

	if entry.Status == models.MemberStatusLeft {
		// NOOP
		return entry.Member, nil
	}

	entry.Status = models.MemberStatusLeft
	left := now
	entry.LeftAt = &left
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Member{}, fmt.Errorf("member %s leave failed [%w]", memberID, tmp.Error)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		entry.UserID,
		models.VaultEventTypeMemberLeave,
		models.VaultEventMemberRelated{MemberID: entry.ID, MemberUserID: entry.UserID},
	); err != nil {
		return models.Member{}, fmt.Errorf("failed to log member leave audit event [%w]", err)
	}

	return entry.Member, nil
}

/*
ReactivateMember reactivate a previously left or removed member

History fields are preserved; JoinedAt is reset.

	@param ctx context.Context - execution context
	@param memberID string - member entry ID
	@param privilege models.MemberPrivilegeENUMType - the role to rejoin with
	@param now time.Time - current time
	@returns updated member entry
*/
func (d *databaseImpl) ReactivateMember(
	_ context.Context,
	memberID string,
	privilege models.MemberPrivilegeENUMType,
	now time.Time,
) (models.Member, error) {
	entry, err := d.getMemberEntry(memberID)
	if err != nil {
		return models.Member{}, fmt.Errorf("failed to fetch member %s [%w]", memberID, err)
	}

	if entry.Status == models.MemberStatusActive {
		// NOOP
		return entry.Member, nil
	}

	entry.Status = models.MemberStatusActive
	entry.Privilege = privilege
	entry.JoinedAt = now
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Member{}, fmt.Errorf(
			"member %s reactivation failed [%w]", memberID, tmp.Error,
		)
	}

	return entry.Member, nil
}

/*
TransferVaultOwnership atomically move vault ownership to another member

Demotes the current owner member to admin, promotes the target member to
owner, and updates the vault's owner reference.

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param newOwnerMemberID string - member entry ID of the new owner
	@param actorID string - the user performing the transfer
	@returns updated vault entry
*/
func (d *databaseImpl) TransferVaultOwnership(
	_ context.Context, vaultID string, newOwnerMemberID string, actorID string,
) (models.Vault, error) {
	vaultEntry, err := d.getVaultEntry(vaultID)
	if err != nil {
		return models.Vault{}, fmt.Errorf("failed to fetch vault %s [%w]", vaultID, err)
	}

	newOwnerEntry, err := d.getMemberEntry(newOwnerMemberID)
	if err != nil {
		return models.Vault{}, fmt.Errorf(
			"failed to fetch member %s [%w]", newOwnerMemberID, err,
		)
	}
	if newOwnerEntry.VaultID != vaultID {
		return models.Vault{}, fmt.Errorf(
			"member %s does not belong to vault %s", newOwnerMemberID, vaultID,
		)
	}

	var currentOwnerEntry MemberDBEntry
	if tmp := d.db.Where(
		"vault_id = ? AND user_id = ?", vaultID, vaultEntry.OwnerID,
	).First(&currentOwnerEntry); tmp.Error != nil {
		return models.Vault{}, fmt.Errorf(
			"failed to fetch owner member of vault %s [%w]", vaultID, tmp.Error,
		)
	}

	// Demote, promote, repoint. One transaction wraps the caller.
	currentOwnerEntry.Privilege = models.MemberPrivilegeAdmin
	if tmp := d.db.Updates(&currentOwnerEntry); tmp.Error != nil {
		return models.Vault{}, fmt.Errorf(
			"owner demotion in vault %s failed [%w]", vaultID, tmp.Error,
		)
	}

	newOwnerEntry.Privilege = models.MemberPrivilegeOwner
	if tmp := d.db.Updates(&newOwnerEntry); tmp.Error != nil {
		return models.Vault{}, fmt.Errorf(
			"owner promotion in vault %s failed [%w]", vaultID, tmp.Error,
		)
	}

	vaultEntry.OwnerID = newOwnerEntry.UserID
	if tmp := d.db.Updates(&vaultEntry); tmp.Error != nil {
		return models.Vault{}, fmt.Errorf(
			"vault %s owner reference update failed [%w]", vaultID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID,
		actorID,
		models.VaultEventTypeOwnershipTransfer,
		models.VaultEventMemberRelated{
			MemberID: newOwnerEntry.ID, MemberUserID: newOwnerEntry.UserID,
		},
	); err != nil {
		return models.Vault{}, fmt.Errorf(
			"failed to log ownership transfer audit event [%w]", err,
		)
	}

	return vaultEntry.Vault, nil
}
