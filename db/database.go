package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/covault/models"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CommonListEntryQueryFilter common query filter when listing data entries
type CommonListEntryQueryFilter struct {
	Limit  *int
	Offset *int
}

// VaultEventQueryFilter audit event query filter conditions
type VaultEventQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetVaultID fetch only events of this vault
	TargetVaultID *string
	// EventTypes the specific event types to query for
	EventTypes []models.VaultEventTypeENUMType
	// EventsAfter filter for events after this timestamp
	EventsAfter *time.Time
	// EventsBefore filter for events before this timestamp
	EventsBefore *time.Time
}

// MemberQueryFilter vault member query filter conditions
type MemberQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetStatuses the specific member statuses to query for
	TargetStatuses []models.MemberStatusENUMType
	// TargetPrivileges the specific member privileges to query for
	TargetPrivileges []models.MemberPrivilegeENUMType
}

// InviteQueryFilter vault invite query filter conditions
type InviteQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetStatuses the specific invite statuses to query for
	TargetStatuses []models.InviteStatusENUMType
	// TargetInviteeEmail fetch only invites issued against this email
	TargetInviteeEmail *string
}

// ItemQueryFilter vault item query filter conditions
type ItemQueryFilter struct {
	CommonListEntryQueryFilter
	// TargetStatuses the specific item statuses to query for
	TargetStatuses []models.ItemStatusENUMType
	// TargetItemTypes the specific item types to query for
	TargetItemTypes []models.ItemTypeENUMType
}

// VisibilitySetting one (member, permission) pair of an item visibility table
type VisibilitySetting struct {
	// MemberID the member entry granted access
	MemberID string `validate:"required,uuid_rfc4122"`
	// Permission the granted permission
	Permission models.VisibilityPermissionENUMType `validate:"required,visibility_permission"`
}

// Database the database handle for interacting with the database
type Database interface {
	// ------------------------------------------------------------------------------------
	// Vault audit events

	/*
		ListVaultEvents list captured vault activity events

			@param ctx context.Context - execution context
			@param filters VaultEventQueryFilter - entry listing filter
			@return list of vault events
	*/
	ListVaultEvents(
		ctx context.Context, filters VaultEventQueryFilter,
	) ([]models.VaultEventAudit, error)

	/*
		RecordAccountPurge record that a user account's vault data was purged

			@param ctx context.Context - execution context
			@param userID string - the purged user
	*/
	RecordAccountPurge(ctx context.Context, userID string) error

	// ------------------------------------------------------------------------------------
	// System parameters

	/*
		GetSystemParamEntry fetch the global singleton system parameter entry

			@param ctx context.Context - execution context
			@returns the entry
	*/
	GetSystemParamEntry(ctx context.Context) (models.SystemParams, error)

	/*
		MarkSystemInitializing mark system is initializing

			@param ctx context.Context - execution context
	*/
	MarkSystemInitializing(ctx context.Context) error

	/*
		MarkSystemInitialized mark system fully initialized

			@param ctx context.Context - execution context
	*/
	MarkSystemInitialized(ctx context.Context) error

	/*
		SetServerSecretFingerprint record the fingerprint of the server secret in use

			@param ctx context.Context - execution context
			@param fingerprint string - one-way hash of the server secret
	*/
	SetServerSecretFingerprint(ctx context.Context, fingerprint string) error

	// ------------------------------------------------------------------------------------
	// Vaults and release policies

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
	DefineNewVault(
		ctx context.Context,
		ownerID string,
		name string,
		description string,
		policyType models.PolicyTypeENUMType,
		releaseDate *time.Time,
		expiresAt *time.Time,
		now time.Time,
	) (models.Vault, models.VaultPolicy, error)

	/*
		GetVault fetch a vault by ID

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@returns vault entry
	*/
	GetVault(ctx context.Context, vaultID string) (models.Vault, error)

	/*
		ListVaultsOwnedBy list vaults currently owned by a user

			@param ctx context.Context - execution context
			@param ownerID string - the owner user ID
			@returns list of vaults
	*/
	ListVaultsOwnedBy(ctx context.Context, ownerID string) ([]models.Vault, error)

	/*
		UpdateVaultInfo update a vault's name and description

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param name string - new vault name
			@param description string - new vault description
			@param actorID string - the user performing the change
			@returns updated vault entry
	*/
	UpdateVaultInfo(
		ctx context.Context, vaultID string, name string, description string, actorID string,
	) (models.Vault, error)

	/*
		MarkVaultDeleted soft-delete a vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param actorID string - the user performing the delete
			@param now time.Time - current time
			@returns updated vault entry
	*/
	MarkVaultDeleted(
		ctx context.Context, vaultID string, actorID string, now time.Time,
	) (models.Vault, error)

	/*
		MarkVaultActive restore a soft-deleted vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param actorID string - the user performing the restore
			@returns updated vault entry
	*/
	MarkVaultActive(ctx context.Context, vaultID string, actorID string) (models.Vault, error)

	/*
		HardDeleteVault permanently delete a vault and, through cascade, all its
		policies, members, invites, items, and visibility entries

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
	*/
	HardDeleteVault(ctx context.Context, vaultID string) error

	/*
		GetVaultPolicy fetch the release policy of a vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@returns policy entry
	*/
	GetVaultPolicy(ctx context.Context, vaultID string) (models.VaultPolicy, error)

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
	ReconfigureVaultPolicy(
		ctx context.Context,
		vaultID string,
		policyType models.PolicyTypeENUMType,
		releaseDate *time.Time,
		expiresAt *time.Time,
		actorID string,
		now time.Time,
	) (models.VaultPolicy, error)

	/*
		SaveAdvancedVaultPolicy persist a release policy whose status was advanced
		lazily by the policy state machine

			@param ctx context.Context - execution context
			@param policy models.VaultPolicy - the advanced policy
			@returns updated policy entry
	*/
	SaveAdvancedVaultPolicy(
		ctx context.Context, policy models.VaultPolicy,
	) (models.VaultPolicy, error)

	/*
		ReleaseVaultPolicy manually release a vault's content

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param actorID string - the releasing user
			@param now time.Time - current time
			@returns updated policy entry
	*/
	ReleaseVaultPolicy(
		ctx context.Context, vaultID string, actorID string, now time.Time,
	) (models.VaultPolicy, error)

	/*
		RevokeVaultPolicy revoke access to a vault's content. Terminal.

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param actorID string - the revoking user
			@returns updated policy entry
	*/
	RevokeVaultPolicy(
		ctx context.Context, vaultID string, actorID string,
	) (models.VaultPolicy, error)

	// ------------------------------------------------------------------------------------
	// Vault members

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
	DefineNewMember(
		ctx context.Context,
		vaultID string,
		userID string,
		privilege models.MemberPrivilegeENUMType,
		addedBy string,
		now time.Time,
	) (models.Member, error)

	/*
		GetMember fetch a vault member by (vault, user) pair

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param userID string - the member's user ID
			@returns member entry
	*/
	GetMember(ctx context.Context, vaultID string, userID string) (models.Member, error)

	/*
		GetMemberByID fetch a vault member by entry ID

			@param ctx context.Context - execution context
			@param memberID string - member entry ID
			@returns member entry
	*/
	GetMemberByID(ctx context.Context, memberID string) (models.Member, error)

	/*
		ListVaultMembers list members of a vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param filters MemberQueryFilter - entry listing filter
			@return list of members
	*/
	ListVaultMembers(
		ctx context.Context, vaultID string, filters MemberQueryFilter,
	) ([]models.Member, error)

	/*
		ListMembershipsOfUser list all memberships of one user across vaults

			@param ctx context.Context - execution context
			@param userID string - the user ID
			@param filters MemberQueryFilter - entry listing filter
			@return list of members
	*/
	ListMembershipsOfUser(
		ctx context.Context, userID string, filters MemberQueryFilter,
	) ([]models.Member, error)

	/*
		UpdateMemberPrivilege change a member's vault-wide role

			@param ctx context.Context - execution context
			@param memberID string - member entry ID
			@param newPrivilege models.MemberPrivilegeENUMType - the new role
			@param actorID string - the user performing the change
			@returns updated member entry
	*/
	UpdateMemberPrivilege(
		ctx context.Context,
		memberID string,
		newPrivilege models.MemberPrivilegeENUMType,
		actorID string,
	) (models.Member, error)

	/*
		MarkMemberRemoved mark a member removed from the vault

			@param ctx context.Context - execution context
			@param memberID string - member entry ID
			@param removedBy string - the removing user
			@param now time.Time - current time
			@returns updated member entry
	*/
	MarkMemberRemoved(
		ctx context.Context, memberID string, removedBy string, now time.Time,
	) (models.Member, error)

	/*
		MarkMemberLeft mark a member as having left the vault

			@param ctx context.Context - execution context
			@param memberID string - member entry ID
			@param now time.Time - current time
			@returns updated member entry
	*/
	MarkMemberLeft(ctx context.Context, memberID string, now time.Time) (models.Member, error)

	/*
		ReactivateMember reactivate a previously left or removed member

		History fields are preserved; JoinedAt is reset.

			@param ctx context.Context - execution context
			@param memberID string - member entry ID
			@param privilege models.MemberPrivilegeENUMType - the role to rejoin with
			@param now time.Time - current time
			@returns updated member entry
	*/
	ReactivateMember(
		ctx context.Context,
		memberID string,
		privilege models.MemberPrivilegeENUMType,
		now time.Time,
	) (models.Member, error)

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
	TransferVaultOwnership(
		ctx context.Context, vaultID string, newOwnerMemberID string, actorID string,
	) (models.Vault, error)

	// ------------------------------------------------------------------------------------
	// Vault invites

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
	DefineNewInvite(
		ctx context.Context,
		vaultID string,
		inviterID string,
		inviteeEmail string,
		privilege models.MemberPrivilegeENUMType,
		tokenHash string,
		expiresAt time.Time,
	) (models.Invite, error)

	/*
		GetInvite fetch an invite by ID

			@param ctx context.Context - execution context
			@param inviteID string - invite entry ID
			@returns invite entry
	*/
	GetInvite(ctx context.Context, inviteID string) (models.Invite, error)

	/*
		GetInviteByTokenHash fetch an invite by its bearer token hash

			@param ctx context.Context - execution context
			@param tokenHash string - one-way hash of the presented token
			@returns invite entry
	*/
	GetInviteByTokenHash(ctx context.Context, tokenHash string) (models.Invite, error)

	/*
		ListVaultInvites list invites of a vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param filters InviteQueryFilter - entry listing filter
			@return list of invites
	*/
	ListVaultInvites(
		ctx context.Context, vaultID string, filters InviteQueryFilter,
	) ([]models.Invite, error)

	/*
		MarkInviteSent mark an invite as delivered to the invitee

			@param ctx context.Context - execution context
			@param inviteID string - invite entry ID
			@returns updated invite entry
	*/
	MarkInviteSent(ctx context.Context, inviteID string) (models.Invite, error)

	/*
		RotateInviteToken replace an invite's bearer token hash and expiry

			@param ctx context.Context - execution context
			@param inviteID string - invite entry ID
			@param tokenHash string - one-way hash of the fresh bearer token
			@param expiresAt time.Time - the fresh expiry
			@param actorID string - the user performing the resend
			@returns updated invite entry
	*/
	RotateInviteToken(
		ctx context.Context,
		inviteID string,
		tokenHash string,
		expiresAt time.Time,
		actorID string,
	) (models.Invite, error)

	/*
		MarkInviteCancelled cancel an invite. Terminal.

			@param ctx context.Context - execution context
			@param inviteID string - invite entry ID
			@param actorID string - the cancelling user
			@returns updated invite entry
	*/
	MarkInviteCancelled(
		ctx context.Context, inviteID string, actorID string,
	) (models.Invite, error)

	/*
		MarkInviteExpired mark an invite as having passed its expiry. Terminal.

			@param ctx context.Context - execution context
			@param inviteID string - invite entry ID
			@returns updated invite entry
	*/
	MarkInviteExpired(ctx context.Context, inviteID string) (models.Invite, error)

	/*
		MarkInviteAccepted mark an invite accepted. Terminal.

			@param ctx context.Context - execution context
			@param inviteID string - invite entry ID
			@param inviteeID string - the accepting user's ID
			@returns updated invite entry
	*/
	MarkInviteAccepted(
		ctx context.Context, inviteID string, inviteeID string,
	) (models.Invite, error)

	// ------------------------------------------------------------------------------------
	// Vault items

	/*
		DefineNewItem define a new vault item with its encrypted payload and
		initial visibility table

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param creatorID string - the creating user
			@param itemType models.ItemTypeENUMType - item type
			@param title string - item title
			@param description string - item description
			@param encPayload []byte - the encrypted serialized payload
			@param encNonce []byte - the encryption nonce used
			@param visibilities []VisibilitySetting - the initial visibility table
			@returns item entry
	*/
	DefineNewItem(
		ctx context.Context,
		vaultID string,
		creatorID string,
		itemType models.ItemTypeENUMType,
		title string,
		description string,
		encPayload []byte,
		encNonce []byte,
		visibilities []VisibilitySetting,
	) (models.Item, error)

	/*
		GetItem fetch a vault item by ID

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@returns item entry
	*/
	GetItem(ctx context.Context, itemID string) (models.Item, error)

	/*
		GetItemDetail fetch the encrypted payload of an item

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@returns item detail entry
	*/
	GetItemDetail(ctx context.Context, itemID string) (models.ItemDetail, error)

	/*
		ListVaultItems list items of a vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param filters ItemQueryFilter - entry listing filter
			@return list of items
	*/
	ListVaultItems(
		ctx context.Context, vaultID string, filters ItemQueryFilter,
	) ([]models.Item, error)

	/*
		UpdateItem update an item's descriptive fields and encrypted payload

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param title string - new item title
			@param description string - new item description
			@param encPayload []byte - the new encrypted serialized payload
			@param encNonce []byte - the encryption nonce used
			@param actorID string - the user performing the change
			@returns updated item entry
	*/
	UpdateItem(
		ctx context.Context,
		itemID string,
		title string,
		description string,
		encPayload []byte,
		encNonce []byte,
		actorID string,
	) (models.Item, error)

	/*
		MarkItemDeleted soft-delete an item

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param actorID string - the user performing the delete
			@param now time.Time - current time
			@returns updated item entry
	*/
	MarkItemDeleted(
		ctx context.Context, itemID string, actorID string, now time.Time,
	) (models.Item, error)

	/*
		MarkItemActive restore a soft-deleted item

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param actorID string - the user performing the restore
			@returns updated item entry
	*/
	MarkItemActive(ctx context.Context, itemID string, actorID string) (models.Item, error)

	/*
		ReplaceItemVisibility replace the full visibility table of an item

		Remove-all and re-insert. Entries absent from the new table lose access.

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param visibilities []VisibilitySetting - the new visibility table
			@param actorID string - the user performing the change
	*/
	ReplaceItemVisibility(
		ctx context.Context, itemID string, visibilities []VisibilitySetting, actorID string,
	) error

	/*
		GetItemVisibility fetch one member's visibility entry on an item

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@param memberID string - member entry ID
			@returns visibility entry
	*/
	GetItemVisibility(
		ctx context.Context, itemID string, memberID string,
	) (models.ItemVisibility, error)

	/*
		ListItemVisibility list the visibility table of an item

			@param ctx context.Context - execution context
			@param itemID string - item ID
			@return list of visibility entries
	*/
	ListItemVisibility(ctx context.Context, itemID string) ([]models.ItemVisibility, error)

	/*
		SeedMemberVisibility grant a member a permission on every active item of a vault

		Used when a member joins or rejoins a vault. Existing entries are left alone.

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param memberID string - member entry ID
			@param permission models.VisibilityPermissionENUMType - the permission to grant
			@return number of visibility entries created
	*/
	SeedMemberVisibility(
		ctx context.Context,
		vaultID string,
		memberID string,
		permission models.VisibilityPermissionENUMType,
	) (int, error)

	/*
		ReassignVaultItemsCreator move item authorship from one user to another
		within a vault

			@param ctx context.Context - execution context
			@param vaultID string - vault ID
			@param fromUserID string - the current item creator
			@param toUserID string - the new item creator
			@return number of items reassigned
	*/
	ReassignVaultItemsCreator(
		ctx context.Context, vaultID string, fromUserID string, toUserID string,
	) (int, error)
}

// databaseImpl implements Database
type databaseImpl struct {
	goutils.Component
	db        *gorm.DB
	validator *validator.Validate
}

// newDatabase define a new database client
func newDatabase(_ context.Context, sqlClient *gorm.DB) (Database, error) {
	logTags := log.Fields{"package": "covault", "module": "db", "component": "db-client"}

	instance := &databaseImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:        sqlClient,
		validator: validator.New(),
	}

	if err := models.RegisterWithValidator(instance.validator); err != nil {
		return nil, fmt.Errorf("failed to install custom validation macros [%w]", err)
	}

	return instance, nil
}
