package store

import (
	"context"
	"fmt"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/models"
)

/*
MembershipManager vault membership operations: listing, role changes,
ownership transfer, leaving, and removal.
*/
type MembershipManager interface {
	/*
		ListMembers list members of a vault. Any active member may look.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param filters db.MemberQueryFilter - entry listing filter
			@param activeDBClient Database - existing database transaction
			@returns list of members
	*/
	ListMembers(
		ctx context.Context,
		callerID string,
		vaultID string,
		filters db.MemberQueryFilter,
		activeDBClient db.Database,
	) ([]models.Member, error)

	/*
		UpdateMemberPrivilege change a member's role. Owner only, and never to
		Owner; ownership moves only through TransferOwnership.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param memberID string - member entry ID
			@param newPrivilege models.MemberPrivilegeENUMType - the new role
			@param activeDBClient Database - existing database transaction
			@returns updated member entry
	*/
	UpdateMemberPrivilege(
		ctx context.Context,
		callerID string,
		vaultID string,
		memberID string,
		newPrivilege models.MemberPrivilegeENUMType,
		activeDBClient db.Database,
	) (models.Member, error)

	/*
		TransferOwnership move vault ownership to another member. Owner only;
		the target must be an active admin. Note the vault content key derives
		from the current owner, so existing ciphertext must be handled by the
		caller before transferring.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param newOwnerMemberID string - member entry ID of the new owner
			@param activeDBClient Database - existing database transaction
			@returns updated vault entry
	*/
	TransferOwnership(
		ctx context.Context,
		callerID string,
		vaultID string,
		newOwnerMemberID string,
		activeDBClient db.Database,
	) (models.Vault, error)

	/*
		LeaveVault the caller leaves a vault. The owner can not leave; they
		must transfer ownership first.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param activeDBClient Database - existing database transaction
			@returns updated member entry
	*/
	LeaveVault(
		ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
	) (models.Member, error)

	/*
		RemoveMember remove another member from a vault. Owner only; neither
		the owner themselves nor the caller's own membership can be removed
		this way.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param memberID string - member entry ID
			@param activeDBClient Database - existing database transaction
			@returns updated member entry
	*/
	RemoveMember(
		ctx context.Context,
		callerID string,
		vaultID string,
		memberID string,
		activeDBClient db.Database,
	) (models.Member, error)
}

// membershipManager implements MembershipManager
type membershipManager struct {
	managerCore
}

/*
NewMembershipManager define new membership manager

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param cipher encryption.CipherEngine - cipher engine
	@param notifier Notifier - notification delivery
	@param identity Identity - identity resolution
	@returns manager instance
*/
func NewMembershipManager(
	_ context.Context,
	persistence db.Client,
	cipher encryption.CipherEngine,
	notifier Notifier,
	identity Identity,
) (MembershipManager, error) {
	return &membershipManager{
		managerCore: newManagerCore(
			"membership-manager", persistence, cipher, notifier, identity,
		),
	}, nil
}

func (m *membershipManager) ListMembers(
	ctx context.Context,
	callerID string,
	vaultID string,
	filters db.MemberQueryFilter,
	activeDBClient db.Database,
) ([]models.Member, error) {
	var members []models.Member

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			_, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			members, err = dbClient.ListVaultMembers(dbCtx, vaultID, filters)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list members of vault %s [%w]", vaultID, dbErr)
	}

	return members, nil
}

func (m *membershipManager) UpdateMemberPrivilege(
	ctx context.Context,
	callerID string,
	vaultID string,
	memberID string,
	newPrivilege models.MemberPrivilegeENUMType,
	activeDBClient db.Database,
) (models.Member, error) {
	var member models.Member

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may change roles [%w]", ErrForbidden)
			}
			if newPrivilege == models.MemberPrivilegeOwner {
				return fmt.Errorf(
					"ownership moves only through transfer [%w]", ErrForbidden,
				)
			}

			target, err := dbClient.GetMemberByID(dbCtx, memberID)
			if err != nil || target.VaultID != vaultID {
				return fmt.Errorf("member %s [%w]", memberID, ErrNotFound)
			}
			if target.UserID == access.vault.OwnerID {
				return fmt.Errorf("the owner's role is fixed [%w]", ErrForbidden)
			}

			member, err = dbClient.UpdateMemberPrivilege(dbCtx, memberID, newPrivilege, callerID)
			return err
		},
	); dbErr != nil {
		return models.Member{}, fmt.Errorf(
			"failed to change role of member %s [%w]", memberID, dbErr,
		)
	}

	return member, nil
}

func (m *membershipManager) TransferOwnership(
	ctx context.Context,
	callerID string,
	vaultID string,
	newOwnerMemberID string,
	activeDBClient db.Database,
) (models.Vault, error) {
	var vault models.Vault

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf(
					"only the vault owner may transfer ownership [%w]", ErrForbidden,
				)
			}

			target, err := dbClient.GetMemberByID(dbCtx, newOwnerMemberID)
			if err != nil || target.VaultID != vaultID {
				return fmt.Errorf("member %s [%w]", newOwnerMemberID, ErrNotFound)
			}
			if target.Status != models.MemberStatusActive ||
				target.Privilege != models.MemberPrivilegeAdmin {
				return fmt.Errorf(
					"ownership only transfers to an active admin [%w]", ErrForbidden,
				)
			}

			vault, err = dbClient.TransferVaultOwnership(dbCtx, vaultID, newOwnerMemberID, callerID)
			return err
		},
	); dbErr != nil {
		return models.Vault{}, fmt.Errorf(
			"failed ownership transfer of vault %s [%w]", vaultID, dbErr,
		)
	}

	return vault, nil
}

func (m *membershipManager) LeaveVault(
	ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
) (models.Member, error) {
	var member models.Member

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if access.isOwner {
				return fmt.Errorf(
					"the owner must transfer ownership before leaving [%w]", ErrForbidden,
				)
			}
			member, err = dbClient.MarkMemberLeft(dbCtx, access.member.ID, m.nowFn())
			return err
		},
	); dbErr != nil {
		return models.Member{}, fmt.Errorf("failed to leave vault %s [%w]", vaultID, dbErr)
	}

	return member, nil
}

func (m *membershipManager) RemoveMember(
	ctx context.Context,
	callerID string,
	vaultID string,
	memberID string,
	activeDBClient db.Database,
) (models.Member, error) {
	var member models.Member

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may remove members [%w]", ErrForbidden)
			}

			target, err := dbClient.GetMemberByID(dbCtx, memberID)
			if err != nil || target.VaultID != vaultID {
				return fmt.Errorf("member %s [%w]", memberID, ErrNotFound)
			}
			if target.UserID == callerID {
				return fmt.Errorf("use leave instead of self-removal [%w]", ErrForbidden)
			}
			if target.UserID == access.vault.OwnerID {
				return fmt.Errorf("the owner can not be removed [%w]", ErrForbidden)
			}

			member, err = dbClient.MarkMemberRemoved(dbCtx, memberID, callerID, m.nowFn())
			return err
		},
	); dbErr != nil {
		return models.Member{}, fmt.Errorf(
			"failed to remove member %s from vault %s [%w]", memberID, vaultID, dbErr,
		)
	}

	return member, nil
}
