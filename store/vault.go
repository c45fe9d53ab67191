package store

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/db"
	"github.com/alwitt/covault/encryption"
	"github.com/alwitt/covault/models"
)

// VaultView a caller-scoped view over one vault.
//
// Non-owners only learn whether content is accessible right now; the policy
// details stay with the owner.
type VaultView struct {
	models.Vault
	// Accessible whether the vault's content is open to the caller right now
	Accessible bool `json:"accessible"`
	// Privilege the caller's vault-wide role
	Privilege models.MemberPrivilegeENUMType `json:"privilege"`
	// Policy the release policy. Owner only.
	Policy *models.VaultPolicy `json:"policy,omitempty"`
}

/*
VaultManager vault-level operations: creation, info and policy updates,
release and revocation, soft-delete and restore, and the audit trail.
*/
type VaultManager interface {
	/*
		CreateVault define a new vault with its release policy

		The creating user becomes owner, original owner, and the first member.

			@param ctx context.Context - execution context
			@param ownerID string - the creating user
			@param name string - vault name
			@param description string - vault description
			@param policyType models.PolicyTypeENUMType - release policy type
			@param releaseDate *time.Time - release date. TIME_BASED only.
			@param expiresAt *time.Time - expiry date. EXPIRY_BASED only.
			@param activeDBClient Database - existing database transaction
			@returns the vault and its policy
	*/
	CreateVault(
		ctx context.Context,
		ownerID string,
		name string,
		description string,
		policyType models.PolicyTypeENUMType,
		releaseDate *time.Time,
		expiresAt *time.Time,
		activeDBClient db.Database,
	) (models.Vault, models.VaultPolicy, error)

	/*
		GetVault fetch a caller-scoped view of a vault

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param activeDBClient Database - existing database transaction
			@returns the vault view
	*/
	GetVault(
		ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
	) (VaultView, error)

	/*
		ListVaults list every vault the caller is an active member of

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param activeDBClient Database - existing database transaction
			@returns vault views
	*/
	ListVaults(
		ctx context.Context, callerID string, activeDBClient db.Database,
	) ([]VaultView, error)

	/*
		UpdateVault update a vault's name and description. Owner only.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param name string - new vault name
			@param description string - new vault description
			@param activeDBClient Database - existing database transaction
			@returns updated vault entry
	*/
	UpdateVault(
		ctx context.Context,
		callerID string,
		vaultID string,
		name string,
		description string,
		activeDBClient db.Database,
	) (models.Vault, error)

	/*
		UpdateVaultPolicy replace the release policy configuration. Owner only.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param policyType models.PolicyTypeENUMType - release policy type
			@param releaseDate *time.Time - release date. TIME_BASED only.
			@param expiresAt *time.Time - expiry date. EXPIRY_BASED only.
			@param activeDBClient Database - existing database transaction
			@returns updated policy entry
	*/
	UpdateVaultPolicy(
		ctx context.Context,
		callerID string,
		vaultID string,
		policyType models.PolicyTypeENUMType,
		releaseDate *time.Time,
		expiresAt *time.Time,
		activeDBClient db.Database,
	) (models.VaultPolicy, error)

	/*
		ReleaseVault manually release the vault's content. Owner only, and only
		for a MANUAL_RELEASE policy still pending.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param activeDBClient Database - existing database transaction
			@returns updated policy entry
	*/
	ReleaseVault(
		ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
	) (models.VaultPolicy, error)

	/*
		RevokeVault revoke access to the vault's content. Owner only. Terminal.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param activeDBClient Database - existing database transaction
			@returns updated policy entry
	*/
	RevokeVault(
		ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
	) (models.VaultPolicy, error)

	/*
		DeleteVault soft-delete a vault. Owner only.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param activeDBClient Database - existing database transaction
			@returns updated vault entry
	*/
	DeleteVault(
		ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
	) (models.Vault, error)

	/*
		RestoreVault restore a soft-deleted vault. Owner only, within the
		restore window.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param activeDBClient Database - existing database transaction
			@returns updated vault entry
	*/
	RestoreVault(
		ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
	) (models.Vault, error)

	/*
		ListVaultEvents fetch the vault's audit trail. Owner or admin only.

			@param ctx context.Context - execution context
			@param callerID string - the requesting user
			@param vaultID string - vault ID
			@param filters db.VaultEventQueryFilter - entry listing filter
			@param activeDBClient Database - existing database transaction
			@returns list of audit events
	*/
	ListVaultEvents(
		ctx context.Context,
		callerID string,
		vaultID string,
		filters db.VaultEventQueryFilter,
		activeDBClient db.Database,
	) ([]models.VaultEventAudit, error)
}

// vaultManager implements VaultManager
type vaultManager struct {
	managerCore
}

/*
NewVaultManager define new vault manager

	@param ctx context.Context - execution context
	@param persistence db.Client - persistence layer client
	@param cipher encryption.CipherEngine - cipher engine
	@param notifier Notifier - notification delivery
	@param identity Identity - identity resolution
	@returns manager instance
*/
func NewVaultManager(
	_ context.Context,
	persistence db.Client,
	cipher encryption.CipherEngine,
	notifier Notifier,
	identity Identity,
) (VaultManager, error) {
	return &vaultManager{
		managerCore: newManagerCore("vault-manager", persistence, cipher, notifier, identity),
	}, nil
}

func (m *vaultManager) CreateVault(
	ctx context.Context,
	ownerID string,
	name string,
	description string,
	policyType models.PolicyTypeENUMType,
	releaseDate *time.Time,
	expiresAt *time.Time,
	activeDBClient db.Database,
) (models.Vault, models.VaultPolicy, error) {
	var vault models.Vault
	var policy models.VaultPolicy

	candidate := models.VaultPolicy{
		PolicyType: policyType, ReleaseDate: releaseDate, ExpiresAt: expiresAt,
	}
	if err := candidate.ValidateConfiguration(m.nowFn()); err != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"%s [%w]", err.Error(), ErrInvalidPolicyConfiguration,
		)
	}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			var err error
			vault, policy, err = dbClient.DefineNewVault(
				dbCtx, ownerID, name, description, policyType, releaseDate, expiresAt, m.nowFn(),
			)
			return err
		},
	); dbErr != nil {
		return models.Vault{}, models.VaultPolicy{}, fmt.Errorf(
			"failed to create vault '%s' [%w]", name, dbErr,
		)
	}

	return vault, policy, nil
}

// viewFor build a caller-scoped vault view
func (m *vaultManager) viewFor(access vaultAccess) VaultView {
	view := VaultView{
		Vault:      access.vault,
		Accessible: access.contentAccessible(m.nowFn()),
		Privilege:  access.member.Privilege,
	}
	if access.isOwner {
		policy := access.policy
		view.Policy = &policy
	}
	return view
}

func (m *vaultManager) GetVault(
	ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
) (VaultView, error) {
	var view VaultView

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			view = m.viewFor(access)
			return nil
		},
	); dbErr != nil {
		return VaultView{}, fmt.Errorf("failed to fetch vault %s [%w]", vaultID, dbErr)
	}

	return view, nil
}

func (m *vaultManager) ListVaults(
	ctx context.Context, callerID string, activeDBClient db.Database,
) ([]VaultView, error) {
	views := []VaultView{}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			memberships, err := dbClient.ListMembershipsOfUser(dbCtx, callerID, db.MemberQueryFilter{
				TargetStatuses: []models.MemberStatusENUMType{models.MemberStatusActive},
			})
			if err != nil {
				return fmt.Errorf("failed to list memberships of %s [%w]", callerID, err)
			}

			for _, membership := range memberships {
				access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, membership.VaultID)
				if err != nil {
					// Vault gone between the two reads
					continue
				}
				if access.vault.Status != models.VaultStatusActive && !access.isOwner {
					continue
				}
				views = append(views, m.viewFor(access))
			}
			return nil
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list vaults of %s [%w]", callerID, dbErr)
	}

	return views, nil
}

func (m *vaultManager) UpdateVault(
	ctx context.Context,
	callerID string,
	vaultID string,
	name string,
	description string,
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
				return fmt.Errorf("only the vault owner may update vault info [%w]", ErrForbidden)
			}
			vault, err = dbClient.UpdateVaultInfo(dbCtx, vaultID, name, description, callerID)
			return err
		},
	); dbErr != nil {
		return models.Vault{}, fmt.Errorf("failed to update vault %s [%w]", vaultID, dbErr)
	}

	return vault, nil
}

func (m *vaultManager) UpdateVaultPolicy(
	ctx context.Context,
	callerID string,
	vaultID string,
	policyType models.PolicyTypeENUMType,
	releaseDate *time.Time,
	expiresAt *time.Time,
	activeDBClient db.Database,
) (models.VaultPolicy, error) {
	var policy models.VaultPolicy

	candidate := models.VaultPolicy{
		PolicyType: policyType, ReleaseDate: releaseDate, ExpiresAt: expiresAt,
	}
	if err := candidate.ValidateConfiguration(m.nowFn()); err != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"%s [%w]", err.Error(), ErrInvalidPolicyConfiguration,
		)
	}

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf(
					"only the vault owner may change the release policy [%w]", ErrForbidden,
				)
			}
			policy, err = dbClient.ReconfigureVaultPolicy(
				dbCtx, vaultID, policyType, releaseDate, expiresAt, callerID, m.nowFn(),
			)
			return err
		},
	); dbErr != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to update release policy of vault %s [%w]", vaultID, dbErr,
		)
	}

	return policy, nil
}

func (m *vaultManager) ReleaseVault(
	ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
) (models.VaultPolicy, error) {
	var policy models.VaultPolicy
	var vault models.Vault

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may release the vault [%w]", ErrForbidden)
			}
			if access.policy.PolicyType != models.PolicyTypeManualRelease {
				return fmt.Errorf(
					"release policy '%s' does not support manual release [%w]",
					access.policy.PolicyType,
					ErrForbidden,
				)
			}
			vault = access.vault
			policy, err = dbClient.ReleaseVaultPolicy(dbCtx, vaultID, callerID, m.nowFn())
			if err == nil {
				m.notifyVaultReleased(dbCtx, dbClient, vault)
			}
			return err
		},
	); dbErr != nil {
		return models.VaultPolicy{}, fmt.Errorf(
			"failed to release vault %s [%w]", vaultID, dbErr,
		)
	}

	return policy, nil
}

func (m *vaultManager) RevokeVault(
	ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
) (models.VaultPolicy, error) {
	var policy models.VaultPolicy

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may revoke the vault [%w]", ErrForbidden)
			}
			policy, err = dbClient.RevokeVaultPolicy(dbCtx, vaultID, callerID)
			return err
		},
	); dbErr != nil {
		return models.VaultPolicy{}, fmt.Errorf("failed to revoke vault %s [%w]", vaultID, dbErr)
	}

	return policy, nil
}

func (m *vaultManager) DeleteVault(
	ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
) (models.Vault, error) {
	var vault models.Vault

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may delete the vault [%w]", ErrForbidden)
			}
			vault, err = dbClient.MarkVaultDeleted(dbCtx, vaultID, callerID, m.nowFn())
			return err
		},
	); dbErr != nil {
		return models.Vault{}, fmt.Errorf("failed to delete vault %s [%w]", vaultID, dbErr)
	}

	return vault, nil
}

func (m *vaultManager) RestoreVault(
	ctx context.Context, callerID string, vaultID string, activeDBClient db.Database,
) (models.Vault, error) {
	var vault models.Vault

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner {
				return fmt.Errorf("only the vault owner may restore the vault [%w]", ErrForbidden)
			}
			if access.vault.Status == models.VaultStatusDeleted &&
				!models.CanRestore(access.vault.DeletedAt, m.nowFn()) {
				return fmt.Errorf(
					"vault %s was deleted too long ago [%w]", vaultID, ErrRestoreWindowClosed,
				)
			}
			vault, err = dbClient.MarkVaultActive(dbCtx, vaultID, callerID)
			return err
		},
	); dbErr != nil {
		return models.Vault{}, fmt.Errorf("failed to restore vault %s [%w]", vaultID, dbErr)
	}

	return vault, nil
}

func (m *vaultManager) ListVaultEvents(
	ctx context.Context,
	callerID string,
	vaultID string,
	filters db.VaultEventQueryFilter,
	activeDBClient db.Database,
) ([]models.VaultEventAudit, error) {
	var events []models.VaultEventAudit

	if dbErr := db.ActiveSessionWrapper(
		ctx, activeDBClient, m.persistence, func(dbCtx context.Context, dbClient db.Database) error {
			access, err := m.resolveVaultAccess(dbCtx, dbClient, callerID, vaultID)
			if err != nil {
				return err
			}
			if !access.isOwner && access.member.Privilege != models.MemberPrivilegeAdmin {
				return fmt.Errorf(
					"only the vault owner or an admin may read the audit trail [%w]", ErrForbidden,
				)
			}
			filters.TargetVaultID = &vaultID
			events, err = dbClient.ListVaultEvents(dbCtx, filters)
			return err
		},
	); dbErr != nil {
		return nil, fmt.Errorf("failed to list events of vault %s [%w]", vaultID, dbErr)
	}

	return events, nil
}
