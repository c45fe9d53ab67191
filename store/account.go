package store

import (
	"context"
	"fmt"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/models"
	"github.com/apex/log"
)

// PurgeReport outcome of one account purge
type PurgeReport struct {
	// VaultsDeleted owned vaults permanently removed
	VaultsDeleted int `json:"vaults_deleted"`
	// MembershipsEnded non-owner memberships marked left
	MembershipsEnded int `json:"memberships_ended"`
	// InvitesCancelled open invites issued by or addressed to the user
	InvitesCancelled int `json:"invites_cancelled"`
	// ItemsReassigned items in surviving vaults whose authorship moved to
	// the vault owner
	ItemsReassigned int `json:"items_reassigned"`
}

/*
AccountManager account level operations

These cut across vaults, so they run against the whole persistence layer
rather than one vault's entries.
*/
type AccountManager interface {
	/*
		PurgeUserAccount remove all vault data tied to a departing user.

		Owned vaults are hard-deleted with everything in them. In vaults the
		user merely belonged to, item authorship moves to the vault owner
		first, then the membership is marked left. Open invites the user
		issued or received are cancelled. The purge itself is recorded in the
		system audit trail.

			@param ctx context.Context - execution context
			@param userID string - the departing user
			@param activeDBClient Database - existing database transaction
			@returns purge report
	*/
	PurgeUserAccount(
		ctx context.Context, userID string, activeDBClient db.Database,
	) (PurgeReport, error)
}

// accountManager implements AccountManager
type accountManager struct {
	managerCore
}

/*
NewAccountManager define new account manager

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param cipher encryption.CipherEngine - cipher engine
	@param notifier Notifier - notification delivery
	@param identity Identity - identity resolution
	@returns manager instance
*/
func NewAccountManager(
	_ context.Context,
	persistence db.Client,
	cipher encryption.CipherEngine,
	notifier Notifier,
	identity Identity,
) (AccountManager, error) {
	return &accountManager{
		managerCore: newManagerCore("account-manager", persistence, cipher, notifier, identity),
	}, nil
}

func (m *accountManager) PurgeUserAccount(
	ctx context.Context, userID string, activeDBClient db.Database,
) (PurgeReport, error) {
	report := PurgeReport{}

	user, userErr := m.identity.ResolveUserByID(ctx, userID)
	if userErr != nil {
		// The identity record may already be gone. The vault data still
		// needs purging, but invites addressed to the email can not be found.
		log.WithError(userErr).WithFields(m.LogTags).
			WithField("user_id", userID).
			Debug("Purging account without an identity record")
	}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			// Detach from vaults owned by someone else before touching the
			// owned ones, so nothing here depends on deletion order
			memberships, err := dbClient.ListMembershipsOfUser(
				dbCtx, userID, db.MemberQueryFilter{
					TargetStatuses: []models.MemberStatusENUMType{models.MemberStatusActive},
				},
			)
			if err != nil {
				return fmt.Errorf("failed to list memberships [%w]", err)
			}
			for _, membership := range memberships {
				if membership.Privilege == models.MemberPrivilegeOwner {
					continue
				}

				vault, err := dbClient.GetVault(dbCtx, membership.VaultID)
				if err != nil {
					return fmt.Errorf("failed to fetch vault %s [%w]", membership.VaultID, err)
				}

				moved, err := dbClient.ReassignVaultItemsCreator(
					dbCtx, membership.VaultID, userID, vault.OwnerID,
				)
				if err != nil {
					return fmt.Errorf(
						"failed to reassign items in vault %s [%w]", membership.VaultID, err,
					)
				}
				report.ItemsReassigned += moved

				cancelled, err := m.cancelUserInvites(dbCtx, dbClient, membership.VaultID, userID, user.Email)
				if err != nil {
					return err
				}
				report.InvitesCancelled += cancelled

				if _, err := dbClient.MarkMemberLeft(dbCtx, membership.ID, m.nowFn()); err != nil {
					return fmt.Errorf(
						"failed to end membership in vault %s [%w]", membership.VaultID, err,
					)
				}
				report.MembershipsEnded++
			}

			// Owned vaults go away entirely, members and items included
			ownedVaults, err := dbClient.ListVaultsOwnedBy(dbCtx, userID)
			if err != nil {
				return fmt.Errorf("failed to list owned vaults [%w]", err)
			}
			for _, vault := range ownedVaults {
				if err := dbClient.HardDeleteVault(dbCtx, vault.ID); err != nil {
					return fmt.Errorf("failed to delete vault %s [%w]", vault.ID, err)
				}
				report.VaultsDeleted++
			}

			return dbClient.RecordAccountPurge(dbCtx, userID)
		},
	); dbErr != nil {
		return PurgeReport{}, fmt.Errorf(
			"failed to purge account of user %s [%w]", userID, dbErr,
		)
	}

	m.notify(ctx, userID, NotifyKindAccountPurged, map[string]string{
		"vaults_deleted": fmt.Sprintf("%d", report.VaultsDeleted),
	})
	return report, nil
}

// cancelUserInvites cancel a vault's open invites issued by or addressed to
// the departing user
func (m *accountManager) cancelUserInvites(
	ctx context.Context, dbClient db.Database, vaultID string, userID string, userEmail string,
) (int, error) {
	invites, err := dbClient.ListVaultInvites(ctx, vaultID, db.InviteQueryFilter{
		TargetStatuses: []models.InviteStatusENUMType{
			models.InviteStatusPending, models.InviteStatusSent,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list invites of vault %s [%w]", vaultID, err)
	}

	cancelled := 0
	for _, invite := range invites {
		if invite.InviterID != userID && (userEmail == "" || invite.InviteeEmail != userEmail) {
			continue
		}
		if _, err := dbClient.MarkInviteCancelled(ctx, invite.ID, userID); err != nil {
			return 0, fmt.Errorf("failed to cancel invite %s [%w]", invite.ID, err)
		}
		cancelled++
	}
	return cancelled, nil
}
