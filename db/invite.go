package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/models"
	"github.com/google/uuid"
)

/*
DefineNewInvite define a new vault invite

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param inviterID string - the inviting user
	@param inviteeEmail string - the email the invite is issued against
	@param privilege models.MemberPrivilegeENUMType - the role offered
	@param tokenHash string - one-way hash of the bearer token
	@param expiresAt time.Time - when the invite stops being acceptable
	@returns invite entry
*/
func (d *databaseImpl) DefineNewInvite(
	_ context.Context,
	vaultID string,
	inviterID string,
	inviteeEmail string,
	privilege models.MemberPrivilegeENUMType,
	tokenHash string,
	expiresAt time.Time,
) (models.Invite, error) {
	newEntry := InviteDBEntry{
		Invite: models.Invite{
			ID:           uuid.NewString(),
			VaultID:      vaultID,
			InviterID:    inviterID,
			InviteeEmail: inviteeEmail,
			Privilege:    privilege,
			Status:       models.InviteStatusPending,
			TokenHash:    tokenHash,
			ExpiresAt:    expiresAt,
		},
	}

	if err := d.validator.Struct(&newEntry); err != nil {
		return models.Invite{}, fmt.Errorf(
			"new invite for vault %s is not valid [%w]", vaultID, err,
		)
	}

	if tmp := d.db.Create(&newEntry); tmp.Error != nil {
		return models.Invite{}, fmt.Errorf(
			"new invite for vault %s failed insert [%w]", vaultID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		vaultID,
		inviterID,
		models.VaultEventTypeInviteCreate,
		models.VaultEventInviteRelated{InviteID: newEntry.ID, InviteeEmail: inviteeEmail},
	); err != nil {
		return models.Invite{}, fmt.Errorf("failed to log invite creation audit event [%w]", err)
	}

	return newEntry.Invite, nil
}

// getInviteEntry find an invite by entry ID
func (d *databaseImpl) getInviteEntry(inviteID string) (InviteDBEntry, error) {
	var entry InviteDBEntry
	err := d.db.Where("id = ?", inviteID).First(&entry).Error
	return entry, err
}

/*
GetInvite fetch an invite by ID

	@param ctx context.Context - execution context
	@param inviteID string - invite entry ID
	@returns invite entry
*/
func (d *databaseImpl) GetInvite(_ context.Context, inviteID string) (models.Invite, error) {
	entry, err := d.getInviteEntry(inviteID)
	if err != nil {
		return models.Invite{}, fmt.Errorf("failed to fetch invite %s [%w]", inviteID, err)
	}
	return entry.Invite, nil
}

/*
GetInviteByTokenHash fetch an invite by its bearer token hash

	@param ctx context.Context - execution context
	@param tokenHash string - one-way hash of the presented token
	@returns invite entry
*/
func (d *databaseImpl) GetInviteByTokenHash(
	_ context.Context, tokenHash string,
) (models.Invite, error) {
	var entry InviteDBEntry
	if tmp := d.db.Where("token_hash = ?", tokenHash).First(&entry); tmp.Error != nil {
		return models.Invite{}, fmt.Errorf(
			"failed to fetch invite by token hash [%w]", tmp.Error,
		)
	}
	return entry.Invite, nil
}

/*
ListVaultInvites list invites of a vault

	@param ctx context.Context - execution context
	@param vaultID string - vault ID
	@param filters InviteQueryFilter - entry listing filter
	@return list of invites
*/
func (d *databaseImpl) ListVaultInvites(
	_ context.Context, vaultID string, filters InviteQueryFilter,
) ([]models.Invite, error) {
	query := d.db.Model(&InviteDBEntry{}).Where("vault_id = ?", vaultID)

	if len(filters.TargetStatuses) > 0 {
		query = query.Where("status in ?", filters.TargetStatuses)
	}
	if filters.TargetInviteeEmail != nil {
		query = query.Where("invitee_email = ?", *filters.TargetInviteeEmail)
	}

	if filters.Limit != nil {
		query = query.Limit(*filters.Limit)
	}
	if filters.Offset != nil {
		query = query.Offset(*filters.Offset)
	}

	query = query.Order("created_at")

	var entries []InviteDBEntry
	if tmp := query.Find(&entries); tmp.Error != nil {
		return nil, fmt.Errorf("failed to list invites of vault %s [%w]", vaultID, tmp.Error)
	}

	result := []models.Invite{}
	for _, entry := range entries {
		result = append(result, entry.Invite)
	}

	return result, nil
}

/*
MarkInviteSent mark an invite as delivered to the invitee

	@param ctx context.Context - execution context
	@param inviteID string - invite entry ID
	@returns updated invite entry
*/
func (d *databaseImpl) MarkInviteSent(
	_ context.Context, inviteID string,
) (models.Invite, error) {
	entry, err := d.getInviteEntry(inviteID)
	if err != nil {
		return models.Invite{}, fmt.Errorf("failed to fetch invite %s [%w]", inviteID, err)
	}

	if entry.Status == models.InviteStatusSent {
		// NOOP
		return entry.Invite, nil
	}

	if err := entry.ValidateNextStatus(models.InviteStatusSent); err != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s can not be marked sent [%w]", inviteID, err,
		)
	}

	entry.Status = models.InviteStatusSent
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s sent marker update failed [%w]", inviteID, tmp.Error,
		)
	}

	return entry.Invite, nil
}

/*
RotateInviteToken replace an invite's bearer token hash and expiry

	@param ctx context.Context - execution context
	@param inviteID string - invite entry ID
	@param tokenHash string - one-way hash of the fresh bearer token
	@param expiresAt time.Time - the fresh expiry
	@param actorID string - the user performing the resend
	@returns updated invite entry
*/
func (d *databaseImpl) RotateInviteToken(
	_ context.Context,
	inviteID string,
	tokenHash string,
	expiresAt time.Time,
	actorID string,
) (models.Invite, error) {
	entry, err := d.getInviteEntry(inviteID)
	if err != nil {
		return models.Invite{}, fmt.Errorf("failed to fetch invite %s [%w]", inviteID, err)
	}

	if entry.InTerminalStatus() {
		return models.Invite{}, fmt.Errorf(
			"invite %s is terminal ('%s') and can not be resent", inviteID, entry.Status,
		)
	}

	entry.TokenHash = tokenHash
	entry.ExpiresAt = expiresAt
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s token rotation failed [%w]", inviteID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		actorID,
		models.VaultEventTypeInviteResend,
		models.VaultEventInviteRelated{InviteID: entry.ID, InviteeEmail: entry.InviteeEmail},
	); err != nil {
		return models.Invite{}, fmt.Errorf("failed to log invite resend audit event [%w]", err)
	}

	return entry.Invite, nil
}

/*
MarkInviteCancelled cancel an invite. Terminal.

	@param ctx context.Context - execution context
	@param inviteID string - invite entry ID
	@param actorID string - the cancelling user
	@returns updated invite entry
*/
func (d *databaseImpl) MarkInviteCancelled(
	_ context.Context, inviteID string, actorID string,
) (models.Invite, error) {
	entry, err := d.getInviteEntry(inviteID)
	if err != nil {
		return models.Invite{}, fmt.Errorf("failed to fetch invite %s [%w]", inviteID, err)
	}

	if entry.Status == models.InviteStatusCancelled {
		// NOOP
		return entry.Invite, nil
	}

	if err := entry.ValidateNextStatus(models.InviteStatusCancelled); err != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s can not be cancelled [%w]", inviteID, err,
		)
	}

	entry.Status = models.InviteStatusCancelled
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s cancellation failed [%w]", inviteID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		actorID,
		models.VaultEventTypeInviteCancel,
		models.VaultEventInviteRelated{InviteID: entry.ID, InviteeEmail: entry.InviteeEmail},
	); err != nil {
		return models.Invite{}, fmt.Errorf(
			"failed to log invite cancellation audit event [%w]", err,
		)
	}

	return entry.Invite, nil
}

/*
MarkInviteExpired mark an invite as having passed its expiry. Terminal.

	@param ctx context.Context - execution context
	@param inviteID string - invite entry ID
	@returns updated invite entry
*/
func (d *databaseImpl) MarkInviteExpired(
	_ context.Context, inviteID string,
) (models.Invite, error) {
	entry, err := d.getInviteEntry(inviteID)
	if err != nil {
		return models.Invite{}, fmt.Errorf("failed to fetch invite %s [%w]", inviteID, err)
	}

	if entry.Status == models.InviteStatusExpired {
		// NOOP
		return entry.Invite, nil
	}

	if err := entry.ValidateNextStatus(models.InviteStatusExpired); err != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s can not be marked expired [%w]", inviteID, err,
		)
	}

	entry.Status = models.InviteStatusExpired
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s expiry marker update failed [%w]", inviteID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		entry.InviterID,
		models.VaultEventTypeInviteExpire,
		models.VaultEventInviteRelated{InviteID: entry.ID, InviteeEmail: entry.InviteeEmail},
	); err != nil {
		return models.Invite{}, fmt.Errorf("failed to log invite expiry audit event [%w]", err)
	}

	return entry.Invite, nil
}

/*
MarkInviteAccepted mark an invite accepted. Terminal.

	@param ctx context.Context - execution context
	@param inviteID string - invite entry ID
	@param inviteeID string - the accepting user's ID
	@returns updated invite entry
*/
func (d *databaseImpl) MarkInviteAccepted(
	_ context.Context, inviteID string, inviteeID string,
) (models.Invite, error) {
	entry, err := d.getInviteEntry(inviteID)
	if err != nil {
		return models.Invite{}, fmt.Errorf("failed to fetch invite %s [%w]", inviteID, err)
	}

	if entry.Status == models.InviteStatusAccepted {
		// NOOP
		return entry.Invite, nil
	}

	if err := entry.ValidateNextStatus(models.InviteStatusAccepted); err != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s can not be accepted [%w]", inviteID, err,
		)
	}

	entry.Status = models.InviteStatusAccepted
	entry.InviteeID = &inviteeID
	if tmp := d.db.Updates(&entry); tmp.Error != nil {
		return models.Invite{}, fmt.Errorf(
			"invite %s acceptance failed [%w]", inviteID, tmp.Error,
		)
	}

	// Record this event
	if _, err := d.defineNewVaultEvent(
		entry.VaultID,
		inviteeID,
		models.VaultEventTypeInviteAccept,
		models.VaultEventInviteRelated{InviteID: entry.ID, InviteeEmail: entry.InviteeEmail},
	); err != nil {
		return models.Invite{}, fmt.Errorf(
			"failed to log invite acceptance audit event [%w]", err,
		)
	}

	return entry.Invite, nil
}
